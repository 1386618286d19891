package cmd

import (
	"context"
	"fmt"
	"time"

	"parimutuel/bot"
	"parimutuel/config"
	"parimutuel/database"
	"parimutuel/events"
	"parimutuel/infrastructure"
	"parimutuel/infrastructure/observability"
	"parimutuel/models"
	"parimutuel/repository"
	"parimutuel/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// closer releases a resource on shutdown
type closer struct {
	name  string
	close func() error
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.Println("Starting parimutuel bot...")

	var closers []closer
	defer func() { closeAll(closers) }()

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	observability.GetMetrics().Attach(eventBus)
	closers = append(closers, closer{name: "metrics", close: func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return observability.ShutdownGlobalMetrics(shutdownCtx)
	}})

	// Initialize ledger backend
	log.Printf("Initializing %s ledger...", cfg.LedgerBackend)
	ledger, ledgerClosers, err := buildLedger(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	closers = append(closers, ledgerClosers...)
	log.Println("Ledger initialized successfully")

	// Forward events to NATS when configured
	if cfg.NATSServers != "" {
		log.Println("Connecting to NATS...")
		natsClient, err := connectForwarder(ctx, cfg.NATSServers, eventBus)
		if err != nil {
			return err
		}
		closers = append(closers, closer{name: "nats", close: natsClient.Close})
		log.Println("Event forwarding to NATS enabled")
	}

	// Initialize round engine
	policy, err := payoutPolicy(cfg)
	if err != nil {
		return err
	}
	scheduler := service.NewScheduler(cfg.StatusRefreshInterval.Duration, cfg.DeadlinePollInterval.Duration, time.Now)

	roundManager, err := service.NewRoundManager(ledger, scheduler, eventBus, service.RoundManagerConfig{
		Policy:                policy,
		SettlementGracePeriod: cfg.SettlementGracePeriod.Duration,
		Now:                   time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to create round manager: %w", err)
	}

	// Initialize Discord bot
	log.Println("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:           cfg.DiscordToken,
		GuildID:         cfg.GuildID,
		OperatorRoleIDs: cfg.OperatorRoleIDs,
	}, roundManager, eventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	closers = append(closers,
		closer{name: "discord", close: discordBot.Close},
		// Closed first so no render races the session shutdown
		closer{name: "scheduler", close: func() error {
			scheduler.Shutdown()
			return nil
		}},
	)
	log.Println("Discord bot initialized successfully")

	log.Printf("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	return nil
}

func configureLogging(cfg *config.Config) {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		log.SetLevel(log.InfoLevel)
	}

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func buildLedger(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (service.Ledger, []closer, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendPostgres:
		databaseURL := cfg.GetDatabaseURL()
		if err := database.RunMigrationsWithURL(databaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db, err := database.NewConnection(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
		dbCloser := closer{name: "database", close: func() error {
			db.Close()
			return nil
		}}
		return service.NewTransactionalLedger(uowFactory, cfg.StartingBalance), []closer{dbCloser}, nil

	case config.LedgerBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return repository.NewRedisLedger(rdb, eventBus, cfg.StartingBalance), []closer{{name: "redis", close: rdb.Close}}, nil

	case config.LedgerBackendMemory:
		log.Warn("Using the in-memory ledger, balances are lost on restart")
		return repository.NewMemoryLedger(eventBus, cfg.StartingBalance), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func connectForwarder(ctx context.Context, servers string, eventBus *events.Bus) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(servers)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(infrastructure.StreamName, mapper.GetAllSubjects()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	infrastructure.NewEventForwarder(client, mapper).Attach(eventBus)
	return client, nil
}

func payoutPolicy(cfg *config.Config) (service.PayoutPolicy, error) {
	bps, err := service.BasisPointsFromFraction(cfg.RetainedFraction)
	if err != nil {
		return service.PayoutPolicy{}, fmt.Errorf("invalid retained fraction: %w", err)
	}
	policy := service.PayoutPolicy{
		RetainedBasisPoints: bps,
		ZeroWinnerPolicy:    models.ZeroWinnerPolicy(cfg.ZeroWinnerPolicy),
	}
	if err := policy.Validate(); err != nil {
		return service.PayoutPolicy{}, err
	}
	return policy, nil
}

// closeAll closes resources in reverse order, bounded by shutdownTimeout
func closeAll(closers []closer) {
	if len(closers) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			if err := c.close(); err != nil {
				log.WithFields(log.Fields{
					"resource": c.name,
					"error":    err,
				}).Error("Error closing resource")
			}
		}
	}()

	select {
	case <-done:
		log.Println("Shutdown completed")
	case <-time.After(shutdownTimeout):
		log.Println("Shutdown timeout exceeded")
	}
}
