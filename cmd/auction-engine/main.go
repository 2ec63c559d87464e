package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"paddock-auction-engine/internal/adapters/broadcaster"
	"paddock-auction-engine/internal/adapters/db"
	"paddock-auction-engine/internal/adapters/fraud"
	"paddock-auction-engine/internal/adapters/gateway"
	"paddock-auction-engine/internal/adapters/redis"
	"paddock-auction-engine/internal/adapters/scheduler"
	"paddock-auction-engine/internal/app"
	"paddock-auction-engine/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Paddock Auction Engine...")

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	depositRepo := repoFactory.GetDepositRepository()
	paymentRepo := repoFactory.GetPaymentRepository()
	alertRepo := repoFactory.GetAlertRepository()
	auditRepo := repoFactory.GetAuditRepository()

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	defer redisBroadcaster.Close()

	// Payment gateway; the stub honors the provider's idempotency contract
	paymentGateway := gateway.NewStubGateway(gateway.StubGatewayParams{
		Logger: log.Logger,
	})

	// Create business services
	audit := app.NewAuditWriter(app.AuditWriterParams{
		Repo:   auditRepo,
		Logger: log.Logger,
	})

	deposits := app.NewDepositManager(app.DepositManagerParams{
		DepositRepo: depositRepo,
		AuctionRepo: auctionRepo,
		Gateway:     paymentGateway,
		Audit:       audit,
		HoldAmount:  decimal.NewFromFloat(cfg.Engine.DepositAmount),
		Logger:      log.Logger,
	})

	settlement := app.NewSettlementService(app.SettlementServiceParams{
		PaymentRepo:      paymentRepo,
		AuctionRepo:      auctionRepo,
		AlertRepo:        alertRepo,
		Deposits:         deposits,
		Gateway:          paymentGateway,
		Publisher:        redisBroadcaster,
		Audit:            audit,
		FeePercent:       decimal.NewFromFloat(cfg.Engine.BuyerFeePercent),
		Deadline:         cfg.Engine.PaymentDeadline,
		OverdueBatchSize: cfg.Sweeps.BatchSize,
		Logger:           log.Logger,
	})

	payout := app.NewSellerPayoutService(app.SellerPayoutServiceParams{
		PaymentRepo: paymentRepo,
		Gateway:     paymentGateway,
		Publisher:   redisBroadcaster,
		Audit:       audit,
		Logger:      log.Logger,
	})
	settlement.SetPayout(payout)

	locks := app.NewAuctionLocks(cfg.Engine.LockTimeout)

	stateMachine := app.NewAuctionStateMachine(app.AuctionStateMachineParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Deposits:    deposits,
		Settlement:  settlement,
		Locks:       locks,
		Audit:       audit,
		Publisher:   redisBroadcaster,
		Defaults: app.AuctionDefaults{
			MinIncrementPercent: decimal.NewFromFloat(cfg.Engine.MinIncrementPercent),
			ExtensionWindow:     cfg.Engine.ExtensionWindow,
			ExtensionLength:     cfg.Engine.ExtensionLength,
			MaxExtensions:       cfg.Engine.MaxExtensions,
			AntiSnipingEnabled:  true,
		},
		Logger: log.Logger,
	})

	fraudPolicy := fraud.NewHeuristicPolicy(fraud.HeuristicPolicyParams{
		BlockEmptyUserAgent: true,
		Logger:              log.Logger,
	})

	bidAdmission := app.NewBidAdmission(app.BidAdmissionParams{
		StateMachine: stateMachine,
		BidRepo:      bidRepo,
		AuctionRepo:  auctionRepo,
		AlertRepo:    alertRepo,
		Deposits:     deposits,
		FraudPolicy:  fraudPolicy,
		Publisher:    redisBroadcaster,
		Audit:        audit,
		Logger:       log.Logger,
	})

	engine := &app.Engine{
		Auctions:   stateMachine,
		Bids:       bidAdmission,
		Settlement: settlement,
		Payouts:    payout,
	}

	log.Info().Msg("Business services initialized")

	// Create sweeper
	sweeper := scheduler.NewSweeper(scheduler.SweeperParams{
		RedisClient: redisClient,
		Auctions:    engine.Auctions,
		Settlement:  engine.Settlement,
		Config:      cfg,
		Logger:      log.Logger,
	})

	// Start sweeper
	sweeper.Start()
	log.Info().Msg("Sweeper started")

	// Update state machine with sweep registrar
	stateMachine.SetRegistrar(sweeper)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	sweeper.Stop()
	log.Info().Msg("Sweeper stopped")

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		// JSON format (default)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
