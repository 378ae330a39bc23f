package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/internal/cache"
	"github.com/dapoalex/AjoPool/internal/consumer"
	"github.com/dapoalex/AjoPool/internal/engine"
	"github.com/dapoalex/AjoPool/internal/handlers"
	"github.com/dapoalex/AjoPool/internal/ledger"
	"github.com/dapoalex/AjoPool/internal/notify"
	"github.com/dapoalex/AjoPool/internal/reminder"
	"github.com/dapoalex/AjoPool/internal/routers"
	"github.com/dapoalex/AjoPool/internal/services"
	"github.com/dapoalex/AjoPool/internal/store/gormstore"
	"github.com/dapoalex/AjoPool/internal/validation"
	"github.com/dapoalex/AjoPool/internal/ws"
	"github.com/dapoalex/AjoPool/pkg/jwt"
	"github.com/dapoalex/AjoPool/pkg/logger"
	"github.com/dapoalex/AjoPool/pkg/mq"
	"github.com/dapoalex/AjoPool/pkg/pool"
	"github.com/dapoalex/AjoPool/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLog.Close()

	dsn := gormstore.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	st, err := gormstore.Open(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		appLog.Fatal("failed to init postgres", zap.Error(err))
	}

	redisClient, err := cache.NewClient(&cfg.Redis)
	if err != nil {
		appLog.Fatal("failed to init redis", zap.Error(err))
	}
	defer redisClient.Close()

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient.Raw(), appLog.Logger, true)

	wp := pool.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	wp.Start()
	defer wp.Stop()

	// Kafka is optional: without a broker the engine logs reminders and
	// skips event emission instead of failing.
	var producer *mq.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mq.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			appLog.Warn("kafka unavailable, running degraded", zap.Error(err))
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	ldg := ledger.New(st, nil)
	validator := validation.New(cfg.Rules, nil)

	var notifier reminder.Notifier
	if producer != nil {
		notifier = notify.NewKafkaNotifier(producer, cfg.Kafka.ReminderTopic)
	} else {
		notifier = notify.NewLogNotifier(appLog)
	}
	marks := cache.NewReminderMarks(redisClient.Raw(), time.Duration(cfg.Rules.ReminderTTLHours)*time.Hour)
	scheduler := reminder.New(ldg, notifier, appLog, nil).WithMarker(marks)

	engineOpts := []engine.Option{
		engine.WithLogger(appLog),
		engine.WithReminders(scheduler),
	}
	if producer != nil {
		engineOpts = append(engineOpts, engine.WithPublisher(producer, cfg.Kafka.EventTopic))
	}
	eng := engine.New(st, ldg, validator, cfg.Rules, engineOpts...)

	userService := services.NewUserService(st, tokens)
	groupService := services.NewGroupService(st, validator, appLog)

	hub := ws.NewHub(appLog)
	go hub.Run()

	if producer != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		handler := consumer.NewEventConsumer(cfg.Kafka.ReminderTopic, cfg.Kafka.EventTopic,
			notify.NewLogPusher(appLog), hub, appLog)
		group, err := consumer.StartConsumer(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID,
			[]string{cfg.Kafka.ReminderTopic, cfg.Kafka.EventTopic}, handler, appLog)
		if err != nil {
			appLog.Warn("failed to start consumer group", zap.Error(err))
		} else {
			defer group.Close()
		}
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	routers.SetupRoutes(r, routers.Deps{
		Config:  cfg,
		Log:     appLog,
		Tokens:  tokens,
		Limiter: limiter,
		Pool:    wp,
		Store:   st,
		Hub:     hub,
		Auth:    handlers.NewAuthHandler(userService),
		Groups:  handlers.NewGroupHandler(groupService),
		Cycles:  handlers.NewCycleHandler(eng),
	})

	appLog.Info("server starting", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		appLog.Fatal("server failed", zap.Error(err))
	}
}
