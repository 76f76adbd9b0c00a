package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvoronina/flightbooking/config"
	"github.com/nvoronina/flightbooking/internal/email"
	"github.com/nvoronina/flightbooking/internal/kafka"
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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	if err := consumer.Consume(ctx, emailSender.Send); err != nil && ctx.Err() == nil {
		log.Printf("consumer stopped: %v", err)
	}
}
