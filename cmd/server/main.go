package main // Entry point package

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/travel-booking/internal/config"
	"github.com/iliyamo/travel-booking/internal/database"
	"github.com/iliyamo/travel-booking/internal/handler"
	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/middleware"
	"github.com/iliyamo/travel-booking/internal/queue"
	"github.com/iliyamo/travel-booking/internal/repository"
	"github.com/iliyamo/travel-booking/internal/router"
	"github.com/iliyamo/travel-booking/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger.Init(cfg.LogDebug)
	logger.Infof("starting travel-booking (env=%s)", cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		logger.Info("migrations applied")
	}

	// Redis is optional: rate limiting falls back to memory, caching and the
	// sweep lock are skipped.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Info("redis unavailable, running without cache and sweep lock")
	} else {
		defer rdb.Close()
	}

	templates := service.DefaultAlertTemplates()
	if cfg.AlertTemplatesFile != "" {
		data, err := os.ReadFile(cfg.AlertTemplatesFile)
		if err != nil {
			logger.Fatalf("alert templates: %v", err)
		}
		if templates, err = service.ParseAlertTemplates(data); err != nil {
			logger.Fatalf("alert templates: %v", err)
		}
	}

	// Repositories
	tours := repository.NewTourRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)
	mileage := repository.NewMileageRepo(db)
	apps := repository.NewApplicationRepo(db)
	alertRepo := repository.NewAlertRepo(db)

	// Services
	dispatcher := service.NewDispatcher(queue.NewPublisher(cfg.Notify.URL, cfg.Notify.Queue), 5*time.Second)
	alerts := service.NewAlertService(alertRepo, templates)
	capacity := service.NewCapacityAccountant(tours)
	ledger := service.NewLedger(db, users, mileage)
	bookingSvc := service.NewBookingService(db, tours, bookings, payments, capacity, alerts, dispatcher, service.BookingSettings{
		PaymentWindow: cfg.Booking.PaymentWindow,
		BcryptCost:    cfg.BcryptCost,
	})
	appSvc := service.NewApplicationService(db, apps, users, ledger, alerts, dispatcher, service.ApplicationLimits{
		DepositMin:         cfg.Application.DepositMin,
		WithdrawalMin:      cfg.Application.WithdrawalMin,
		StrictBalanceCheck: cfg.Application.StrictBalanceCheck,
	})
	sweeper := service.NewSweeper(bookings, bookingSvc, cfg.Sweep.BatchSize)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s rid=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.Metrics())

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	bookingHandler := handler.NewBookingHandler(bookingSvc)
	mileageHandler := handler.NewMileageHandler(ledger)
	appHandler := handler.NewApplicationHandler(appSvc)

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, bookingHandler, capacity, cfg.JWTSecret, limit, cache)
	router.RegisterCustomer(e, mileageHandler, appHandler, cfg.JWTSecret, limit)
	router.RegisterAdmin(e, router.AdminHandlers{
		Bookings:     bookingHandler,
		Sweeper:      sweeper,
		Applications: appHandler,
		Alerts:       handler.NewAlertHandler(alerts),
		Mileage:      mileageHandler,
	}, cfg.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sweep.Enabled {
		var lock service.SweepLock
		if rdb != nil {
			host, _ := os.Hostname()
			lock = service.NewRedisSweepLock(rdb, "lock:sweep-expired", host+"-"+uuid.NewString(), cfg.Sweep.LockTTL)
		}
		go service.NewSweepRunner(sweeper, lock, cfg.Sweep.Interval).Run(ctx)
	}
	if cfg.Notify.ConsumerEnabled {
		go queue.NewConsumer(cfg.Notify.URL, cfg.Notify.Queue, cfg.Notify.LogDir).Run(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port // Address string with port
		logger.Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Infof("received %v, shutting down", s)
	case err := <-serverErr:
		logger.Errorf("server: %v", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	// Let in-flight notifications finish before the process exits.
	dispatcher.Wait()
	logger.Info("server stopped")
}
