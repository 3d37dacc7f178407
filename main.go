package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-bot/config"
	"membership-bot/database"
	adminapi "membership-bot/internal/api/admin"
	authapi "membership-bot/internal/api/auth"
	"membership-bot/internal/api/checkout"
	stripewebhooks "membership-bot/internal/api/stripewebhook"
	routes "membership-bot/internal/app/http"
	"membership-bot/internal/bot"
	"membership-bot/internal/discord"
	"membership-bot/internal/intake"
	"membership-bot/internal/reconciler"
	"membership-bot/internal/store"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := newLogger()
	defer log.Sync()

	db := database.Init(cfg.DBURL)

	ledger := store.NewLedgerStore(db)
	events := store.NewEventStore(db)
	payments := store.NewPaymentStore(db)
	training := store.NewTrainingStore(db)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal("creating discord session", zap.Error(err))
	}

	roles := discord.NewService(session, log)
	rec := reconciler.New(cfg, ledger, roles, roles, log)
	proc := intake.NewProcessor(cfg.Plans, ledger, events, payments, rec, log)
	guildBot := bot.New(session, cfg, ledger, training, roles, rec, log)

	if err := session.Open(); err != nil {
		log.Fatal("opening discord gateway", zap.Error(err))
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go rec.Run(ctx)
	go guildBot.RunTasks(ctx)

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("CORS_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Webhook:   stripewebhooks.New(cfg.StripeWebhookSecret, proc, log),
		Checkout:  checkout.NewHandler(cfg),
		Auth:      authapi.NewHandler(cfg),
		Admin:     adminapi.NewHandler(cfg, ledger, payments, rec, log),
		JWTSecret: cfg.JWTSecret,
	})

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("http server exited", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	if os.Getenv("APP_ENV") == "production" {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return log
}
