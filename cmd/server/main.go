package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payway/config"
	"payway/internal/database"
	"payway/internal/intent"
	"payway/internal/notify"
	"payway/internal/repository"
	"payway/internal/router"
	"payway/internal/service"
	"payway/internal/status"
	"payway/internal/ws"
	"payway/pkg/cloudinary"
	"payway/pkg/payment"
)

const tokenWarnWindow = 7 * 24 * time.Hour

func main() {
	cfg := config.Load()
	provider := newProvider(cfg)

	registry := intent.NewRegistry()
	resolver := status.NewResolver(registry, provider)
	svc := service.NewPaywayService(cfg, registry, resolver, provider)

	if cfg.Database.DSN != "" {
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		svc.WithLedger(repository.NewPaymentRepository(db))
		log.Printf("[PAYWAY] payment ledger enabled")
	} else {
		log.Printf("[PAYWAY] payment ledger disabled: set DATABASE_DSN to enable")
	}

	if cfg.Cloudinary.Enabled() {
		cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
		svc.WithImageHost(cloud)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go registry.RunSweeper(ctx, cfg.Registry.SweepInterval, cfg.Registry.Grace)

	hub := ws.NewHub()
	notifier := notify.NewNotifier(svc, cfg.Notify.Interval, cfg.Notify.MaxDuration)
	engine := router.Setup(cfg, svc, notifier, hub)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	stop()
	// Hijacked WebSocket connections are not closed by Shutdown.
	if n := hub.CloseAll(); n > 0 {
		log.Printf("[WS] closed %d status streams", n)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}

// newProvider returns the Bakong client, or the in-memory stub when no token is
// configured outside production.
func newProvider(cfg *config.Config) payment.Provider {
	if cfg.Bakong.Token == "" {
		if cfg.Server.Env == "production" {
			log.Fatalf("[PAYWAY] TOKEN is required in production")
		}
		log.Printf("[PAYWAY] TOKEN not set, using stub payment provider")
		return payment.NewStubProvider()
	}
	exp, err := payment.TokenExpiry(cfg.Bakong.Token)
	switch {
	case err != nil:
		log.Printf("[PAYWAY] could not read Bakong token expiry: %v", err)
	case time.Now().After(exp):
		log.Printf("[PAYWAY] Bakong token expired at %s; renew it at the Bakong developer portal", exp.Format(time.RFC3339))
	case time.Until(exp) < tokenWarnWindow:
		log.Printf("[PAYWAY] Bakong token expires at %s", exp.Format(time.RFC3339))
	}
	return payment.NewBakongProvider(cfg.Bakong.BaseURL, cfg.Bakong.Token, cfg.Bakong.Timeout)
}
