package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/campusride/rideshare/config"
	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/kafka"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/notify"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/campusride/rideshare/internal/service/requests"
	"github.com/campusride/rideshare/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/spf13/pflag"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	cfgPath := pflag.StringP("config", "c", defaultPath, "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		logging.NewLogger("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level)
	if cfg.Database.InMemory {
		logger.Error("worker needs a shared database; database.in_memory is set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var emitter notify.Emitter = notify.NewLogEmitter(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		emitter = notify.NewKafkaEmitter(producer, cfg.Kafka.RideEventsTopic,
			notify.WithNotificationsTopic(cfg.Kafka.NotificationsTopic))
	}

	requestService := requests.NewRequestService(
		repository.NewRideRepository(pool),
		repository.NewRequestRepository(pool),
		requests.WithEmitter(emitter),
		requests.WithLogger(logger),
	)

	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()
		sender := notify.NewSender(logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				var event domain.RideEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					logger.Warn("skipping undecodable event", "offset", msg.Offset, "error", err)
					return nil
				}
				return sender.Send(ctx, event)
			})
			if err != nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("no notifications topic configured; only sweeping expired requests")
	}

	worker.NewSweeper(requestService, cfg.Worker.ExpirationSweep, logger).Run(ctx)
	logger.Info("shutting down")
	wg.Wait()
}
