package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"membership-bot/internal/domain/tiers"

	"github.com/joho/godotenv"
)

// PlanSpec maps one Stripe price to the tier and entitlement duration it buys.
type PlanSpec struct {
	PriceID  string
	Tier     tiers.Tier
	Duration time.Duration
}

// Config is built once at startup and passed by reference; the price and role
// maps are never read from ambient globals.
type Config struct {
	Port      string
	DBURL     string
	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	DiscordToken        string
	DiscordGuildID      string
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURL  string

	// Plans maps Stripe price ID -> purchased plan. Unknown price IDs in
	// webhook events are acknowledged and dropped.
	Plans map[string]PlanSpec
	// TierRoles maps tier -> Discord role ID. The reconciler only ever
	// touches roles listed here.
	TierRoles map[tiers.Tier]string
	// VerifiedRoleID is granted alongside any active tier and never revoked
	// by this service. Empty disables it.
	VerifiedRoleID string

	AdminDiscordIDs map[string]bool

	SweepInterval time.Duration

	// Community surfaces (channel/role names as configured in the guild).
	WeeklyChannel    string
	ArchiveChannel   string
	TrainingChannel  string
	WeeklyVideosPath string

	VisitorRoleID    string
	MemberRoleID     string
	CoachRoleID      string
	ConsistentRoleID string

	ConsistentRequired   int
	ConsistentWindowDays int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBURL:     mustEnv("DATABASE_URL"),
		JWTSecret: mustEnv("JWT_SECRET"),

		StripeSecretKey:     mustEnv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: mustEnv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  mustEnv("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   mustEnv("CHECKOUT_CANCEL_URL"),

		DiscordToken:        mustEnv("DISCORD_TOKEN"),
		DiscordGuildID:      mustEnv("DISCORD_GUILD_ID"),
		DiscordClientID:     getEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordRedirectURL:  getEnv("DISCORD_REDIRECT_URL", ""),

		VerifiedRoleID: getEnv("ROLE_ID_VERIFIED", ""),

		SweepInterval: durationEnv("SWEEP_INTERVAL_SECONDS", 30*time.Second),

		WeeklyChannel:    getEnv("CH_WEEKLY", "weekly-video"),
		ArchiveChannel:   getEnv("CH_ARCHIVE", "video-archive"),
		TrainingChannel:  getEnv("CH_DAILY", "daily-training"),
		WeeklyVideosPath: getEnv("WEEKLY_VIDEOS_PATH", "weekly_videos.json"),

		VisitorRoleID:    getEnv("ROLE_ID_VISITORS", ""),
		MemberRoleID:     getEnv("ROLE_ID_MEMBER", ""),
		CoachRoleID:      getEnv("ROLE_ID_COACH", ""),
		ConsistentRoleID: getEnv("ROLE_ID_CONSISTENT", ""),

		ConsistentRequired:   intEnv("CONSISTENT_REQUIRED", 7),
		ConsistentWindowDays: intEnv("CONSISTENT_WINDOW_DAYS", 7),
	}

	cfg.Plans = map[string]PlanSpec{}
	cfg.TierRoles = map[tiers.Tier]string{}
	for _, t := range tiers.All() {
		upper := strings.ToUpper(string(t))
		priceID := mustEnv("PRICE_ID_" + upper)
		cfg.Plans[priceID] = PlanSpec{
			PriceID:  priceID,
			Tier:     t,
			Duration: durationDaysEnv("PLAN_DAYS_"+upper, 30),
		}
		cfg.TierRoles[t] = mustEnv("ROLE_ID_" + upper)
	}

	cfg.AdminDiscordIDs = map[string]bool{}
	for _, id := range strings.Split(getEnv("ADMIN_DISCORD_IDS", ""), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminDiscordIDs[id] = true
		}
	}

	return cfg
}

// PlanForTier finds the configured plan selling the given tier.
func (c *Config) PlanForTier(t tiers.Tier) (PlanSpec, bool) {
	for _, p := range c.Plans {
		if p.Tier == t {
			return p, true
		}
	}
	return PlanSpec{}, false
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Fatalf("Invalid integer for %s: %q", key, v)
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("Invalid seconds value for %s: %q", key, v)
		}
		return time.Duration(n) * time.Second
	}
	return fallback
}

func durationDaysEnv(key string, fallbackDays int) time.Duration {
	days := intEnv(key, fallbackDays)
	return time.Duration(days) * 24 * time.Hour
}
