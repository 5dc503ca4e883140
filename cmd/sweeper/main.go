// The sweeper expires stale PENDING_PAYMENT reservations so their seats
// return to the pool. It runs separately from the API so a deploy can
// scale or pause it on its own.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoconnect/internal/config"
	"geoconnect/internal/database"
	"geoconnect/internal/external"
	"geoconnect/internal/logger"
	"geoconnect/internal/messaging"
	"geoconnect/internal/repository"
	"geoconnect/internal/service"
)

func main() {
	cfg := config.Load()
	cfg.NATS.ClientID = cfg.NATS.ClientID + "-sweeper"
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	store := repository.NewStore(db)
	services := service.NewServices(store, nil, natsClient, external.NewPaymentClient(cfg.Payment), service.Options{
		ReservationTTL:      cfg.Booking.ReservationTTL,
		IdempotencyTTL:      cfg.Booking.IdempotencyTTL,
		SeatUniquenessCheck: cfg.Booking.SeatUniquenessCheck,
		CallbackBaseURL:     cfg.PublicBaseURL,
	})

	interval := cfg.Booking.ExpirySweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log.Info("starting reservation sweeper", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := services.Bookings.ExpireStale(ctx); err != nil {
				log.Error("expiry sweep failed", "error", err)
			}
			cancel()
		case <-quit:
			log.Info("sweeper stopped")
			return
		}
	}
}
