package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvoronina/flightbooking/api"
	"github.com/nvoronina/flightbooking/config"
	"github.com/nvoronina/flightbooking/internal/bootstrap"
	"github.com/nvoronina/flightbooking/internal/cache"
	"github.com/nvoronina/flightbooking/internal/kafka"
	"github.com/nvoronina/flightbooking/internal/repository"
	"github.com/nvoronina/flightbooking/internal/service/auth"
	"github.com/nvoronina/flightbooking/internal/service/booking"
	"github.com/nvoronina/flightbooking/internal/service/flights"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	userRepo := repository.NewUserRepository(pool)
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	authService := auth.NewAuthService(userRepo, cfg.Auth.BcryptCost)
	flightService := flights.NewFlightService(flightRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		booking.WithSeatLockTTL(time.Duration(cfg.Booking.SeatLockTTLSeconds)*time.Second),
	)

	router := api.NewRouter(
		api.NewAuthHandler(authService),
		api.NewFlightHandler(flightService, bookingService),
		api.NewBookingHandler(bookingService),
	)

	if err := bootstrap.Run(ctx, cfg, router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
