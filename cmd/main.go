/**
 * @description
 * This is the main entry point for the financing-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, external API clients, the message broker, the core coordinator
 * service, background jobs, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 * - github.com/redis/go-redis/v9: Redis client for read-path rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/authclient, pkg/custodyclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fundra/financing-service/internal/api"
	"github.com/fundra/financing-service/internal/app"
	"github.com/fundra/financing-service/internal/config"
	"github.com/fundra/financing-service/internal/store"
	"github.com/fundra/financing-service/pkg/authclient"
	"github.com/fundra/financing-service/pkg/custodyclient"
	"github.com/fundra/financing-service/pkg/rabbitmq"
)

func main() {
	// Load .env if present; real deployments inject environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	treasuryAccountID, err := uuid.Parse(cfg.PlatformTreasuryAccountID)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid platform treasury account id\" err=%v", err)
	}
	externalAgentID, err := uuid.Parse(cfg.ExternalAgentID)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid external agent id\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting financing-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish platform events. The service
	// keeps serving when the broker is unavailable; events degrade to the journal.
	var eventProducer rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer producer.Close()
		eventProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Clients for the custody ledger and the capability authority.
	custodyClient := custodyclient.NewClient(cfg.CustodyAPIBaseURL, cfg.CustodyAPIKey)
	authClient := authclient.NewClient(cfg.AuthServiceBaseURL, cfg.AuthServiceAPIKey)

	// Redis backs the public read-path rate limiter. Missing or unreachable
	// Redis disables rate limiting rather than blocking boot.
	var rateLimiter *app.RedisReadRateLimiter
	if cfg.ReadRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; read rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; read rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient := redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; read rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
				} else {
					defer redisClient.Close()
					rateLimiter = app.NewRedisReadRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	repository := store.NewPostgresRepository(dbpool)

	financingService := app.NewService(
		repository,
		eventProducer,
		custodyClient,
		authClient,
		treasuryAccountID,
		externalAgentID,
		app.VaultDefaults{
			MinimumDeposit:    cfg.DefaultMinimumDeposit,
			MaximumDeposit:    cfg.DefaultMaximumDeposit,
			ReservedFunds:     cfg.DefaultReservedFunds,
			MaxDeploymentBps:  cfg.DefaultMaxDeploymentBps,
			FundingWindowDays: cfg.DefaultFundingWindowDays,
		},
	)

	// Rehydrate the in-memory ledgers from the repository before serving traffic.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := financingService.LoadState(loadCtx); err != nil {
		cancelLoad()
		log.Fatalf("level=fatal component=bootstrap msg=\"state rehydration failed\" err=%v", err)
	}
	cancelLoad()
	log.Println("level=info component=bootstrap msg=\"ledger state rehydrated\"")

	// Background jobs: expired vault sweeps and platform metric refreshes.
	jobLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	jobs := app.NewJobs(financingService, jobLogger)
	scheduler := app.NewScheduler(jobs, jobLogger, cfg)
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	handlers := api.NewHandlers(financingService)
	router := api.FinancingRoutes(handlers, api.RouterOptions{
		JWKSURL:            cfg.JWKSURL,
		InternalAPIKey:     cfg.InternalAPIKey,
		RateLimiter:        rateLimiter,
		ReadLimitPerMinute: cfg.ReadRateLimitPerMinute,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
