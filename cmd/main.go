/**
 * @description
 * This is the main entry point for the remittance-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external payment gateway clients, message brokers, repositories, the core application
 * service, and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/accountclient, pkg/rabbitmq: Collaborator clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sikaremit/remittance-service/internal/api"
	"github.com/sikaremit/remittance-service/internal/app"
	"github.com/sikaremit/remittance-service/internal/compliance"
	"github.com/sikaremit/remittance-service/internal/config"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/fees"
	"github.com/sikaremit/remittance-service/internal/gateway"
	"github.com/sikaremit/remittance-service/internal/store"
	"github.com/sikaremit/remittance-service/pkg/accountclient"
	rmrabbit "github.com/sikaremit/remittance-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting remittance-service\" port=%s base_currency=%s", cfg.ServerPort, cfg.BaseCurrency)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
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

	// Initialize the RabbitMQ producer to publish status events.
	// This service only needs to publish, so we use a producer.
	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Redis backs the shared gateway health view. The service degrades to
	// per-process breaker state without it.
	var healthStore *gateway.HealthStore
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; shared gateway health disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; shared gateway health disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; shared gateway health disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				healthStore = gateway.NewHealthStore(redisClient, cfg.RedisHealthPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Build the gateway routing table. Providers without credentials are
	// replaced by the deterministic mock so lower environments still exercise
	// the full flow.
	policy := gateway.DefaultPolicy()
	router := gateway.NewRouter(healthStore)

	cardClient := pickGateway(gateway.Client(gateway.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)), cfg.PaystackSecretKey, "paystack")
	momoClient := pickGateway(gateway.Client(gateway.NewMomoClient(cfg.MomoBaseURL, cfg.MomoSubscriptionKey)), cfg.MomoSubscriptionKey, "mtn_momo")
	aggregatorClient := pickGateway(gateway.Client(gateway.NewAggregatorClient(cfg.AggregatorBaseURL, cfg.AggregatorSecretKey)), cfg.AggregatorSecretKey, "aggregator")
	bankClient := pickGateway(gateway.Client(gateway.NewBankClient(cfg.BankSwitchBaseURL, cfg.BankSwitchAPIKey)), cfg.BankSwitchAPIKey, "bank_switch")

	aggregatorWrapped := gateway.Wrap(aggregatorClient, policy, healthStore)
	router.Register(domain.CategoryCard, gateway.Wrap(cardClient, policy, healthStore))
	router.Register(domain.CategoryMobileMoney, gateway.Wrap(momoClient, policy, healthStore), aggregatorWrapped)
	router.Register(domain.CategoryBank, gateway.Wrap(bankClient, policy, healthStore))
	router.Register(domain.CategoryCashPickup, aggregatorWrapped)

	// Initialize the account-service client for KYC lookups.
	accountClient := accountclient.NewClient(cfg.AccountServiceURL, cfg.AccountServiceAPIKey)

	complianceEngine := compliance.NewEngine(repository, repository, accountClient, compliance.Limits{
		Daily:              cfg.DailyLimitMinor,
		Monthly:            cfg.MonthlyLimitMinor,
		KYCAmountThreshold: cfg.KYCThresholdMinor,
		HighValueThreshold: cfg.HighValueThresholdMinor,
	})
	feeEngine := fees.NewEngine(fees.DefaultSchedule(), repository)

	// Initialize the core application service with its dependencies.
	remittanceService := app.NewService(repository, router, complianceEngine, feeEngine, publisher, app.Config{
		BaseCurrency:  cfg.BaseCurrency,
		DailyLimit:    cfg.DailyLimitMinor,
		MonthlyLimit:  cfg.MonthlyLimitMinor,
		PickupCodeTTL: time.Duration(cfg.PickupCodeTTLHours) * time.Hour,
	})

	// Initialize the API handlers.
	webhooks := map[string]gateway.WebhookConfig{
		"paystack":    {Gateway: "paystack", SignatureHeader: "X-Paystack-Signature", Secret: cfg.PaystackWebhookSecret},
		"mtn_momo":    {Gateway: "mtn_momo", SignatureHeader: "X-Callback-Signature", Secret: cfg.MomoWebhookSecret},
		"aggregator":  {Gateway: "aggregator", SignatureHeader: "X-Aggregator-Signature", Secret: cfg.AggregatorWebhookSecret},
		"bank_switch": {Gateway: "bank_switch", SignatureHeader: "X-Switch-Signature", Secret: cfg.BankSwitchWebhookSecret},
	}
	remittanceHandlers := api.NewRemittanceHandlers(remittanceService, cfg.AdminIDSet(), webhooks)

	// Set up the HTTP router and define the API routes.
	httpRouter := chi.NewRouter()
	httpRouter.Mount("/", api.RemittanceRoutes(remittanceHandlers, api.AuthConfig{
		JWKSURL:  cfg.AuthJWKSURL,
		Audience: cfg.AuthAudience,
		Issuer:   cfg.AuthIssuer,
	}))

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: httpRouter,
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

// pickGateway substitutes the deterministic mock when a provider has no
// credentials configured.
func pickGateway(client gateway.Client, credential, name string) gateway.Client {
	if strings.TrimSpace(credential) == "" {
		log.Printf("level=warn component=bootstrap msg=\"gateway credentials missing; using mock\" gateway=%s", name)
		return gateway.NewMockClient(name)
	}
	return client
}
