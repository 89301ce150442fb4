/**
 * @description
 * This is the main entry point for the policy-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the ledger client, message broker, repository, the core application
 * service, the escrow reconciliation scheduler, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/ledgerclient: Client for the external value-transfer ledger.
 * - pkg/rabbitmq: Client for RabbitMQ.
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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/insuralink/policy-service/internal/api"
	"github.com/insuralink/policy-service/internal/app"
	"github.com/insuralink/policy-service/internal/config"
	"github.com/insuralink/policy-service/internal/store"
	"github.com/insuralink/policy-service/pkg/ledgerclient"
	rmrabbit "github.com/insuralink/policy-service/pkg/rabbitmq"
)

func main() {
	// Load .env for local development; in deployment everything comes from
	// the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if cfg.LedgerAPIBaseURL == "" || cfg.EscrowAccountID == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"ledger configuration incomplete\" env=LEDGER_API_BASE_URL,ESCROW_ACCOUNT_ID")
	}
	triggerSources := cfg.TriggerSourceList()
	if len(triggerSources) == 0 {
		log.Fatalf("level=fatal component=bootstrap msg=\"at least one trigger source must be configured\" env=TRIGGER_SOURCES")
	}

	log.Printf("level=info component=bootstrap msg=\"starting policy-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events.
	var eventProducer rmrabbit.Publisher
	producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rmrabbit.EventProducerFallback{}
	} else {
		defer producer.Close()
		eventProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the external ledger and the escrow adapter
	// bound to the custodial account.
	ledgerClient := ledgerclient.NewClient(cfg.LedgerAPIBaseURL, cfg.LedgerAPIKey)

	repository := store.NewPostgresRepository(dbpool)
	escrowAdapter := app.NewEscrowAdapter(ledgerClient, repository, cfg.EscrowAccountID)
	authorizer := app.NewAllowListAuthorizer(triggerSources)

	policyService := app.NewService(repository, escrowAdapter, eventProducer, authorizer)

	// Optional distributed rate limiting for trigger invocations.
	if cfg.TriggerRateLimitPerMinute > 0 && cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; trigger rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; trigger rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				policyService.SetTriggerRateLimiter(
					app.NewRedisTriggerRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
					cfg.TriggerRateLimitPerMinute,
				)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Escrow reconciliation runs on a schedule; it is read-only and never
	// mutates policy state.
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	jobs := app.NewJobs(repository, ledgerClient, cfg.EscrowAccountID, slogger)
	scheduler := app.NewScheduler(jobs, slogger)
	scheduler.Start(cfg.EscrowReconcileSchedule)
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	insuranceHandlers := api.NewInsuranceHandlers(policyService)
	router := chi.NewRouter()
	router.Mount("/insurance", api.InsuranceRoutes(insuranceHandlers, cfg.JWTSecret))

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
