// Command sweep runs one payment expiry sweep and prints the report as JSON.
// It is meant for cron; the exit status is non-zero only when the sweep could
// not list overdue bookings.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/travel-booking/internal/config"
	"github.com/iliyamo/travel-booking/internal/database"
	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/queue"
	"github.com/iliyamo/travel-booking/internal/repository"
	"github.com/iliyamo/travel-booking/internal/service"
)

func main() {
	cfg := config.LoadDB()
	// stdout carries the report.
	logger.SetOutput(os.Stderr, cfg.LogDebug)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	tours := repository.NewTourRepo(db)
	bookings := repository.NewBookingRepo(db)
	dispatcher := service.NewDispatcher(queue.NewPublisher(cfg.Notify.URL, cfg.Notify.Queue), 5*time.Second)
	bookingSvc := service.NewBookingService(db, tours, bookings, repository.NewPaymentRepo(db),
		service.NewCapacityAccountant(tours),
		service.NewAlertService(repository.NewAlertRepo(db), nil),
		dispatcher,
		service.BookingSettings{PaymentWindow: cfg.Booking.PaymentWindow},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := service.NewSweeper(bookings, bookingSvc, cfg.Sweep.BatchSize).Sweep(ctx)
	dispatcher.Wait()
	if err != nil {
		logger.Errorf("sweep: %v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatalf("encode report: %v", err)
	}
}
