package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vhenrik/postbox/internal/config"
	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/mail"
	"github.com/vhenrik/postbox/internal/smtp"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	migrationsDir, err := db.FindMigrationsDir()
	if err != nil {
		log.Fatalf("Failed to locate migrations: %v", err)
	}
	if err := db.Migrate(ctx, pool, migrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := db.NewStore(pool, cfg)
	NewMailService(cfg, store)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	sweeper := db.NewRetentionSweeper(store, time.Hour)
	go sweeper.Run(sweepCtx)

	log.Printf("Postbox engine ready (environment: %s)", cfg.Environment)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received %s, shutting down", sig)
}

// NewMailService wires the storage layer and outbound relay into a mail
// service. Callers embedding the engine use this the same way the server
// binary does.
func NewMailService(cfg *config.Config, store *db.Store) *mail.Service {
	var sender mail.Sender
	if cfg.SMTPRelayAddr != "" {
		sender = smtp.NewRelaySender(cfg.SMTPRelayAddr)
		log.Printf("Outbound relay configured at %s", cfg.SMTPRelayAddr)
	} else {
		log.Printf("No outbound relay configured, sending is disabled")
	}

	return mail.NewService(store, sender, cfg)
}
