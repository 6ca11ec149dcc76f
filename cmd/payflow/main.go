package main

import (
	// Go Internal Packages
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	// Local Packages
	api "payflow/api"
	config "payflow/config"
	gateway "payflow/gateway"
	kafka "payflow/kafka"
	metrics "payflow/metrics"
	models "payflow/models"
	memory "payflow/repositories/memory"
	mongodb "payflow/repositories/mongodb"
	postgres "payflow/repositories/postgres"
	redis "payflow/repositories/redis"
	payments "payflow/services/payments"
	processors "payflow/services/processors"
	reconciler "payflow/services/reconciler"
	webhooks "payflow/services/webhooks"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
)

const callbackDedupeTTL = 24 * time.Hour

type txStore interface {
	payments.TxRepository
	reconciler.TxRepository
	GetTransactionByGatewayID(ctx context.Context, gatewayID string) (models.Transaction, error)
}

type ledgerStore interface {
	payments.Ledger
	reconciler.Ledger
}

type storage struct {
	txs      txStore
	ledger   ledgerStore
	settings gateway.SettingsStore
	close    func()
}

func newLogger(conf config.Config) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(conf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = conf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	return logger
}

func openStorage(ctx context.Context, conf config.Config, logger *zap.Logger) (*storage, error) {
	switch conf.Storage.Driver {
	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, conf.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(conf.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		txRepo := mongodb.NewTxRepository(db)
		return &storage{
			txs:      txRepo,
			ledger:   mongodb.NewUserRepository(db, txRepo),
			settings: mongodb.NewSettingsRepository(db),
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, conf.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db)
		return &storage{txs: store, ledger: store, settings: store, close: func() { _ = db.Close() }}, nil
	}

	logger.Warn("using in-memory storage, data is lost on restart")
	store := memory.NewStore()
	return &storage{txs: store, ledger: store, settings: store, close: func() {}}, nil
}

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	kingpin.Parse()

	k, appKonf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Validate the config loaded
	if err = appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !appKonf.IsProdMode {
		k.Print()
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := newLogger(appKonf)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, appKonf, logger)
	if err != nil {
		logger.Fatal("cannot open storage", zap.String("driver", appKonf.Storage.Driver), zap.Error(err))
	}
	defer store.close()

	appMetrics := metrics.New("payflow")

	// Redis Connection
	var (
		dedupe webhooks.Dedupe
		dlq    processors.DeadLetterQueue
	)
	if appKonf.Redis.Enabled {
		redisClient, err := redis.Connect(ctx, appKonf.Redis.URI, appKonf.Redis.Password)
		if err != nil {
			logger.Fatal("cannot create redis client", zap.Error(err))
		}
		defer redisClient.Close()
		dedupe = redis.NewCallbackDedupe(redisClient, callbackDedupeTTL)
		deadLetters := redis.NewDeadLetterQueue(redisClient, logger)
		appMetrics.GaugeFunc("dead_letter_callbacks", "Relayed callbacks parked on the dead-letter list.", func() float64 {
			lenCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			n, err := deadLetters.Len(lenCtx)
			if err != nil {
				logger.Warn("cannot read dead-letter list length", zap.Error(err))
			}
			return float64(n)
		})
		dlq = deadLetters
	}

	var events reconciler.EventPublisher
	if appKonf.Kafka.Enabled {
		producer, err := kafka.NewEventProducer(appKonf.Kafka.Brokers, appKonf.Kafka.EventsTopic,
			appMetrics.Kafka("payflow_producer"), logger)
		if err != nil {
			logger.Fatal("cannot create payment events producer", zap.Error(err))
		}
		defer producer.Close()
		events = producer
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:      appKonf.Gateway.BaseURL,
		Timeout:      appKonf.Gateway.Timeout,
		ClientID:     appKonf.Gateway.ClientID,
		ClientSecret: appKonf.Gateway.ClientSecret,
	}, store.settings, logger)

	minAmount, maxAmount, err := appKonf.Payments.Bounds()
	if err != nil {
		logger.Fatal("invalid payment limits", zap.Error(err))
	}
	rec := reconciler.NewReconciler(logger, store.txs, store.ledger, events)
	tracker := payments.NewTracker(logger, store.txs, store.ledger, gw, rec, payments.Limits{
		Min:         minAmount,
		Max:         maxAmount,
		CallbackURL: appKonf.Payments.CallbackURL,
	})
	receiver := webhooks.NewReceiver(logger, store.txs, rec, dedupe)

	verifier, err := webhooks.NewVerifier(appKonf.Webhook.Secret, appKonf.Webhook.AllowedIPs)
	if err != nil {
		logger.Fatal("invalid webhook configuration", zap.Error(err))
	}
	if !verifier.Enabled() {
		logger.Warn("gateway callbacks are accepted without authentication")
	}

	var wg sync.WaitGroup

	if appKonf.Reconciler.Enabled {
		sweeper := reconciler.NewSweeper(reconciler.SweeperConfig{
			Interval:   appKonf.Reconciler.Interval,
			StaleAfter: appKonf.Reconciler.StaleAfter,
			BatchSize:  appKonf.Reconciler.BatchSize,
		}, rec, gw, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	if appKonf.Kafka.Enabled && appKonf.Kafka.Consume {
		processor := processors.NewCallbackProcessor(logger, receiver, dlq)
		consumer, err := kafka.NewCallbackConsumer(&kafka.ConsumerConfig{
			Brokers:        appKonf.Kafka.Brokers,
			Name:           appKonf.Kafka.ConsumerName,
			Topic:          appKonf.Kafka.CallbackTopic,
			RecordsPerPoll: appKonf.Kafka.RecordsPerPoll,
		}, processor, appMetrics.Kafka("payflow_consumer"), logger)
		if err != nil {
			logger.Fatal("cannot create callbacks consumer", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Poll(ctx); err != nil && ctx.Err() == nil {
				logger.Error("callbacks consumer stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(api.Options{
		Addr:           appKonf.HTTP.Addr,
		ReadTimeout:    appKonf.HTTP.ReadTimeout,
		WriteTimeout:   appKonf.HTTP.WriteTimeout,
		TrustedProxies: appKonf.HTTP.TrustedProxies,
		JWTSecret:      appKonf.Auth.JWTSecret,
	}, tracker, receiver, verifier, appMetrics, logger)

	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	wg.Wait()
}
