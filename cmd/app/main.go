package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusride/rideshare/api"
	"github.com/campusride/rideshare/config"
	"github.com/campusride/rideshare/internal/bootstrap"
	"github.com/campusride/rideshare/internal/cache"
	"github.com/campusride/rideshare/internal/kafka"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/notify"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/campusride/rideshare/internal/repository/memory"
	"github.com/campusride/rideshare/internal/service/chat"
	"github.com/campusride/rideshare/internal/service/profiles"
	"github.com/campusride/rideshare/internal/service/requests"
	"github.com/campusride/rideshare/internal/service/rides"
	"github.com/campusride/rideshare/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

type stores struct {
	rides    repository.RideRepository
	requests repository.RequestRepository
	profiles repository.ProfileRepository
	messages repository.MessageRepository
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st stores
	if cfg.Database.InMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		st = stores{mem.Rides(), mem.Requests(), mem.Profiles(), mem.Messages()}
	} else {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.Database.Migrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				logger.Error("migrate", "error", err)
				os.Exit(1)
			}
		}
		st = stores{
			repository.NewRideRepository(pool),
			repository.NewRequestRepository(pool),
			repository.NewProfileRepository(pool),
			repository.NewMessageRepository(pool),
		}
	}

	var emitter notify.Emitter = notify.NewLogEmitter(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		emitter = notify.NewKafkaEmitter(producer, cfg.Kafka.RideEventsTopic,
			notify.WithNotificationsTopic(cfg.Kafka.NotificationsTopic))
	}

	rideOpts := []rides.RideServiceOption{
		rides.WithEmitter(emitter),
		rides.WithLogger(logger),
		rides.WithLimits(cfg.Rides.MaxSeats, cfg.Rides.DepartureGrace),
	}
	requestOpts := []requests.RequestServiceOption{
		requests.WithEmitter(emitter),
		requests.WithLogger(logger),
		requests.WithPageSize(cfg.Requests.PageSize),
		requests.WithWaitlist(cfg.Requests.AllowWaitlist),
	}
	profileOpts := []profiles.ProfileServiceOption{profiles.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Rides.SearchCacheTTL, cfg.Rides.ProfileCacheTTL)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, reads will fall through to the database", "error", err)
		}
		rideOpts = append(rideOpts, rides.WithCache(redisCache))
		requestOpts = append(requestOpts, requests.WithCache(redisCache))
		profileOpts = append(profileOpts, profiles.WithCache(redisCache))
	}

	rideService := rides.NewRideService(st.rides, rideOpts...)
	requestService := requests.NewRequestService(st.rides, st.requests, requestOpts...)
	chatService := chat.NewChatService(st.rides, st.requests, st.messages,
		chat.WithLogger(logger), chat.WithMaxLength(cfg.Chat.MaxLength))
	profileService := profiles.NewProfileService(st.profiles, profileOpts...)

	// No separate worker can reach a process-local store, so sweep here.
	if cfg.Database.InMemory {
		go worker.NewSweeper(requestService, cfg.Worker.ExpirationSweep, logger).Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(logger,
		api.NewRideHandler(rideService),
		api.NewRequestHandler(requestService),
		api.NewMessageHandler(chatService, cfg.Chat.PollInterval),
		api.NewProfileHandler(profileService),
	)

	if err := bootstrap.Run(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
