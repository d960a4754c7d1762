package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"delivery-service/internal/auth"
	"delivery-service/internal/config"
	"delivery-service/internal/db"
	"delivery-service/internal/handlers"
	"delivery-service/internal/janitor"
	"delivery-service/internal/middleware"
	"delivery-service/internal/observability"
	"delivery-service/internal/rabbitmq"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
	"delivery-service/internal/telemetry"
)

const serviceName = "delivery-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.App.Env, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.Store.URI)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, janitor runs without lease: %v", err)
			redisClient = nil
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.EventsExchange)
	defer publisher.Close()
	emitter := telemetry.NewDeliveryEmitter(publisher, serviceName, cfg.App.Env)

	queueRepo := repositories.NewQueueRepo(database, cfg.Store.OpTimeout)
	sessionRepo := repositories.NewSessionRepo(database, cfg.Store.OpTimeout)

	queueManager := service.NewQueueManager(queueRepo, emitter, cfg.Janitor.MessageTTL)
	sessionTracker := service.NewSessionTracker(sessionRepo, cfg.Janitor.SessionIdleTTL, cfg.Janitor.SessionActiveWindow)

	reaper := janitor.New(queueManager, sessionTracker, cfg.Janitor.MessageInterval, cfg.Janitor.SessionInterval, redisClient)
	reaper.Start(ctx)

	if cfg.AMQP.URL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.ChatExchange, cfg.AMQP.ConsumerQueue, queueManager)
		if err != nil {
			log.Printf("rabbitmq consumer disabled: %v", err)
		} else {
			defer consumer.Close()
			if err := consumer.Start(ctx); err != nil {
				log.Printf("rabbitmq consumer failed to start: %v", err)
			}
		}
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret)
	pollHandler := handlers.NewPollHandler(queueManager, sessionTracker)
	enqueueHandler := handlers.NewEnqueueHandler(queueManager, sessionTracker)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtManager)
	internalAuth := middleware.InternalAuthMiddleware(cfg.App.InternalAPIToken)

	router.POST("/poll", authMiddleware, pollHandler.Poll)
	router.GET("/sessions", authMiddleware, pollHandler.ListSessions)

	internal := router.Group("/internal", internalAuth)
	internal.POST("/queues/:user_id/messages", enqueueHandler.EnqueueMessage)
	internal.POST("/queues/:user_id/system", enqueueHandler.EnqueueSystem)
	internal.GET("/users/:user_id/sessions", enqueueHandler.UserSessions)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	if err := router.Run(":" + cfg.App.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
