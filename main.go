package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/greg-czaplicki/parlay-picker-sub005/config"
	"github.com/greg-czaplicki/parlay-picker-sub005/db"
	"github.com/greg-czaplicki/parlay-picker-sub005/handlers"
	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/scheduler"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/extService"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/notifyService"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/parlayService"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/settleService"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Migrate(database); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}

	// Catch up parlays whose legs settled while the service was down.
	reconciled, err := parlayService.ReconcileParlayOutcomes(database)
	if err != nil {
		log.Printf("Error reconciling parlay outcomes on startup: %v", err)
	} else if reconciled > 0 {
		log.Printf("Reconciled %d parlays on startup", reconciled)
	}

	m := metrics.Default()
	gateway := extService.NewDataGolfClient(cfg.DataGolfAPIKey)

	var notifier settleService.Notifier
	if cfg.DiscordBotToken != "" && cfg.DiscordChannelID != "" {
		discordNotifier, err := notifyService.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordChannelID, database)
		if err != nil {
			log.Fatalf("Error creating Discord session: %v", err)
		}
		notifier = discordNotifier
	}

	settler := settleService.New(database, gateway, settleService.Config{
		Policy:         settleService.CompletionPolicy{Threshold: cfg.CompletionThreshold},
		Workers:        cfg.SettleWorkers,
		GatewayTimeout: cfg.GatewayTimeout,
		Metrics:        m,
		Notifier:       notifier,
	})

	cronService := scheduler.SetupCron(database, settler, m, cfg.SettleCronSpec)

	app := fiber.New(fiber.Config{
		AppName: "parlay-settlement",
	})
	app.Use(cors.New())
	handlers.SetupSettlementRoutes(app, database, settler, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Settlement service running on port %s, sweeping on %q. Press CTRL+C to exit.", cfg.Port, cfg.SettleCronSpec)

	<-ctx.Done()
	log.Println("Shutting down...")
	<-cronService.Stop().Done()
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
