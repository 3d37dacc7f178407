package routes

import (
	adminapi "membership-bot/internal/api/admin"
	authapi "membership-bot/internal/api/auth"
	"membership-bot/internal/api/checkout"
	stripewebhooks "membership-bot/internal/api/stripewebhook"
	"membership-bot/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the constructed API handlers for route registration.
type Handlers struct {
	Webhook   *stripewebhooks.Handler
	Checkout  *checkout.Handler
	Auth      *authapi.Handler
	Admin     *adminapi.Handler
	JWTSecret string
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// Raw body required for signature verification; no sanitization here.
	r.POST("/webhook", h.Webhook.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeInputMiddleware())

	public.GET("/create-checkout-session", h.Checkout.Create)
	public.GET("/auth/discord", h.Auth.Start)
	public.GET("/auth/discord/callback", h.Auth.Callback)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.JWTSecret), middleware.RequireRole("admin"))
	admin.GET("/subscriptions", h.Admin.ListSubscriptions)
	admin.POST("/subscriptions", h.Admin.SetSubscription)
	admin.DELETE("/subscriptions/:member_id", h.Admin.DeleteSubscription)
	admin.GET("/payments", h.Admin.ListPayments)
	admin.GET("/plans", h.Admin.ListPlans)
	admin.POST("/sweep", h.Admin.TriggerSweep)
}
