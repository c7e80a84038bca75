// cmd/promo-service/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"promohub/internal/pkg/config"
	"promohub/internal/pkg/logger"
	"promohub/internal/pkg/mq"
	"promohub/internal/pkg/nacos"
	"promohub/internal/pkg/redis"
	"promohub/internal/pkg/tracing"
	"promohub/internal/pkg/zookeeper"
	"promohub/internal/service/promo/application"
	"promohub/internal/service/promo/domain"
	"promohub/internal/service/promo/infrastructure"
	"promohub/internal/service/promo/interfaces"
)

const serviceName = "promo-service"

// main 是应用的组装根 (Composition Root)：创建并组装所有依赖项，然后启动应用。
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = serviceName
	}

	logger.Init(cfg.Service.Name, cfg.Service.LogLevel)

	// 1. 初始化核心技术组件
	tp, err := tracing.InitTracerProvider(cfg.Service.Name, cfg.Service.JaegerEndpoint)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer tp.Shutdown(context.Background())

	tracer := otel.Tracer(cfg.Service.Name)

	db, err := infrastructure.OpenMySQL(cfg.MySQL.DSN())
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormPromoRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.L().Fatal().Err(err).Msg("failed to migrate database schema")
	}

	kafkaWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.PromoTopic)
	defer kafkaWriter.Close()
	publisher := infrastructure.NewKafkaPromoPublisher(kafkaWriter)

	// 缓存是可选组件，Redis 不可用时降级为直读存储。
	var cache domain.PromoCache
	if cfg.Redis.Addrs != "" {
		redisClient, err := redis.NewClient(cfg.Redis.Addrs)
		if err != nil {
			logger.L().Warn().Err(err).Msg("redis unavailable, promo cache disabled")
		} else {
			defer redisClient.Close()
			cache = infrastructure.NewRedisPromoCache(redisClient, cfg.Redis.CacheTTL)
		}
	}

	// 2. 组装业务层
	coordinator := application.NewTxCoordinator(repo, publisher, cfg.Kafka.PublishTimeout, tracer)
	promoService := application.NewPromoService(repo, coordinator, cache, tracer)

	// 3. 启动生命周期调度器，多副本部署时用 ZooKeeper 锁保证单点扫描
	var leaderLock application.LeaderLock
	if len(cfg.Zookeeper.Addrs) > 0 {
		zkConn, err := zookeeper.Connect(cfg.Zookeeper.Addrs, 5*time.Second)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		defer zkConn.Close()
		leaderLock = zookeeper.NewDistributedLock(zkConn, cfg.Zookeeper.LockPath)
	}

	scheduler := application.NewLifecycleScheduler(repo, coordinator, application.SchedulerOptions{
		Interval:      cfg.Scheduler.Interval,
		InitialDelay:  cfg.Scheduler.InitialDelay,
		TickTimeout:   cfg.Scheduler.TickTimeout,
		FireAndForget: cfg.Scheduler.FireAndForget,
	}, leaderLock, tracer)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	// 4. HTTP 接口
	mux := http.NewServeMux()
	interfaces.NewPromoHandler(promoService).RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: mux,
	}

	// 5. 服务注册（可选）
	if cfg.Nacos.ServerAddrs != "" {
		registerWithNacos(cfg)
	}

	go func() {
		logger.L().Info().Int("port", cfg.Service.Port).Msg("promo service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Msg("http server failed")
		}
	}()

	// 6. 优雅关停：先停接口，再停调度器，最后冲刷未发送的消息
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Error().Err(err).Msg("http server shutdown failed")
	}
	stopScheduler()
	logger.L().Info().Msg("promo service stopped")
}

// registerWithNacos 把本实例注册为临时节点，进程退出时注销。
func registerWithNacos(cfg *config.Config) {
	client, err := nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
	if err != nil {
		logger.L().Warn().Err(err).Msg("failed to create nacos client, skipping registration")
		return
	}
	ip, err := nacos.OutboundIP()
	if err != nil {
		logger.L().Warn().Err(err).Msg("failed to detect outbound ip, skipping registration")
		return
	}
	if err := client.Register(cfg.Service.Name, ip, cfg.Service.Port); err != nil {
		logger.L().Warn().Err(err).Msg("nacos registration failed")
		return
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		if err := client.Deregister(cfg.Service.Name, ip, cfg.Service.Port); err != nil {
			logger.L().Warn().Err(err).Msg("nacos deregistration failed")
		}
	}()
}
