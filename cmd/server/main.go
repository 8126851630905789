package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/infra/kafka"
	"checkout-service/internal/infra/metrics"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/postgres"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/pkg/telemetry"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const checkoutRetention = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config: load", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("telemetry: setup", "error", err)
		os.Exit(1)
	}

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("db: connect", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("db: pool", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	orderRepo := mysqlrepo.NewOrderRepository(db)
	settingsRepo := mysqlrepo.NewSettingsRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	c := cache.NewRedisCache(redisClient, cfg.ServiceName)

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		slog.Error("failed to init publisher", "broker", cfg.NotifyBroker, "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCheckoutMetrics(reg)

	notifier := services.NewNotificationService(publisher, m)
	orderSvc := services.NewOrderService(orderRepo, c, notifier)
	settingsSvc := services.NewSettingsService(settingsRepo, c, cfg.SettingsCacheTTL)

	pricing, err := services.NewPricing(cfg.TaxRate, cfg.CODFee)
	if err != nil {
		slog.Error("pricing", "error", err)
		os.Exit(1)
	}

	var gateway infra.GatewayClientInterface
	if cfg.GatewayKeyID != "" {
		gateway = infra.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)
	} else {
		slog.Warn("GATEWAY_KEY_ID not set, online payments will fail")
	}
	coordinator := services.NewPaymentCoordinator(gateway, services.PaymentConfig{
		KeySecret:      cfg.GatewayKeySecret,
		Currency:       cfg.Currency,
		MerchantName:   cfg.MerchantName,
		SessionTimeout: cfg.PaymentSessionTimeout,
	})

	workflow := services.NewCheckoutWorkflow(settingsSvc, pricing, coordinator, orderSvc, notifier, m)
	checkoutSvc := services.NewCheckoutService(workflow, coordinator, checkoutRetention)

	go func() {
		time.Sleep(2 * time.Second)
		if err := settingsSvc.Warmup(ctx); err != nil {
			slog.Warn("settings warmup failed", "error", err)
		} else {
			slog.Info("settings warmed up")
		}
	}()

	handler := http.NewHandler(checkoutSvc, orderSvc, settingsSvc, m, reg, cfg.AdminToken)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting checkout service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("server run", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	checkoutSvc.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	notifier.Wait()
	closePublisher()
	if err := redisClient.Close(); err != nil {
		slog.Warn("redis close", "error", err)
	}
	if err := sqlDB.Close(); err != nil {
		slog.Warn("db close", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown", "error", err)
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.Open(cfg.DatabaseURL)
	case "mysql":
		return mmysql.Open(cfg.DatabaseURL)
	}
	return nil, errors.New("unsupported DB_DRIVER " + cfg.DBDriver)
}

func newPublisher(cfg config.Config) (rabbitmq.PublisherInterface, func(), error) {
	switch cfg.NotifyBroker {
	case "rabbitmq":
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case "kafka":
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				slog.Warn("kafka writer close", "error", err)
			}
		}, nil
	case "none":
		return infra.LogPublisher{}, func() {}, nil
	}
	return nil, nil, errors.New("unsupported NOTIFY_BROKER " + cfg.NotifyBroker)
}
