// Package auth signs members in with Discord OAuth2 and issues the service's
// own JWT. The only scope requested is "identify": the service needs a
// verified Discord user ID and nothing else.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"membership-bot/config"
	"membership-bot/internal/api/checkout"
	"membership-bot/internal/domain/tiers"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Discord's OAuth2 endpoints. No discovery document; the URLs are fixed.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const discordMeURL = "https://discord.com/api/users/@me"

type Handler struct {
	cfg *config.Config
}

func NewHandler(cfg *config.Config) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.DiscordClientID,
		ClientSecret: h.cfg.DiscordClientSecret,
		RedirectURL:  h.cfg.DiscordRedirectURL,
		Scopes:       []string{"identify"},
		Endpoint:     discordEndpoint,
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /auth/discord
func (h *Handler) Start(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	// state in an HttpOnly cookie, checked on callback
	c.SetCookie(
		"oauth_state",
		state,
		300, // 5 minutes
		"/",
		"",    // domain (set in prod)
		false, // secure (true in prod HTTPS)
		true,  // httpOnly
	)

	// A ?tier= on the start URL is carried through so the callback can drop
	// the member straight into checkout.
	if tier := c.Query("tier"); tier != "" {
		c.SetCookie("checkout_tier", tier, 300, "/", "", false, true)
	}

	url := h.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOnline)
	c.Redirect(http.StatusFound, url)
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GET /auth/discord/callback
func (h *Handler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}

	cookieState, err := c.Cookie("oauth_state")
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}

	tok, err := h.oauthConfig().Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}

	user, err := h.fetchDiscordUser(c, tok)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to fetch discord user"})
		return
	}

	tokenString, err := h.issueJWT(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return
	}

	// If the member came in through a buy link, send them on to checkout now
	// that their Discord ID is verified.
	if raw, err := c.Cookie("checkout_tier"); err == nil {
		if tier, ok := tiers.Parse(raw); ok {
			url, err := checkout.SessionURL(h.cfg, user.ID, tier)
			if err == nil {
				c.SetCookie("checkout_tier", "", -1, "/", "", false, true)
				c.Redirect(http.StatusSeeOther, url)
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tokenString,
		"discord_id": user.ID,
		"username":   user.Username,
	})
}

func (h *Handler) fetchDiscordUser(c *gin.Context, tok *oauth2.Token) (*discordUser, error) {
	client := h.oauthConfig().Client(c.Request.Context(), tok)
	resp, err := client.Get(discordMeURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord identity endpoint returned %d", resp.StatusCode)
	}

	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *Handler) issueJWT(discordID string) (string, error) {
	role := "user"
	if h.cfg.AdminDiscordIDs[discordID] {
		role = "admin"
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"discord_id": discordID,
		"role":       role,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
	})
	return t.SignedString([]byte(h.cfg.JWTSecret))
}
