package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taoyao-code/vss-can-bridge/internal/catalog"
	cfgpkg "github.com/taoyao-code/vss-can-bridge/internal/config"
	"github.com/taoyao-code/vss-can-bridge/internal/dispatch"
	"github.com/taoyao-code/vss-can-bridge/internal/encoder"
	"github.com/taoyao-code/vss-can-bridge/internal/framestore"
	"github.com/taoyao-code/vss-can-bridge/internal/httpserver"
	"github.com/taoyao-code/vss-can-bridge/internal/journal"
	"github.com/taoyao-code/vss-can-bridge/internal/logging"
	"github.com/taoyao-code/vss-can-bridge/internal/mapping"
	"github.com/taoyao-code/vss-can-bridge/internal/metrics"
	"github.com/taoyao-code/vss-can-bridge/internal/subscription"
	"github.com/taoyao-code/vss-can-bridge/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 加载协议信号目录与映射定义（任何模式违规都中止启动）
	cat, err := catalog.Load(cfg.Bridge.CatalogFile)
	if err != nil {
		log.Fatal("catalog load failed", zap.String("file", cfg.Bridge.CatalogFile), zap.Error(err))
	}
	log.Info("catalog loaded",
		zap.Int("frames", cat.FrameCount()),
		zap.Int("signals", cat.SignalCount()))

	table, err := mapping.Load(cfg.Bridge.MappingFile, cat)
	if err != nil {
		log.Fatal("mapping load failed", zap.String("file", cfg.Bridge.MappingFile), zap.Error(err))
	}
	log.Info("mapping loaded", zap.Int("entries", table.Len()))

	// 4) 指标注册与处理器
	reg := metrics.NewRegistry()
	appMetrics := metrics.NewAppMetrics(reg)

	// 5) 核心组件：缓存、编码器、传输
	store := framestore.New()
	enc := encoder.New(cat, store)

	var tx transport.Transport
	if cfg.CAN.Device != "" {
		tx, err = transport.DialSocketCAN(cfg.CAN.Device)
		if err != nil {
			log.Fatal("socketcan open failed", zap.String("device", cfg.CAN.Device), zap.Error(err))
		}
		log.Info("socketcan transport ready", zap.String("device", cfg.CAN.Device))
	} else {
		tx = transport.NewLoopback()
		log.Warn("no CAN device configured, using loopback transport")
	}
	tx = transport.NewLogged(tx, log.Named("transport"))

	// 6) 调度循环
	dispatcher := dispatch.New(table, store, enc, tx, dispatch.Options{
		QueueSize: cfg.Bridge.QueueSize,
		Workers:   cfg.Bridge.Workers,
		SendRate:  cfg.CAN.TxRate,
		SendBurst: cfg.CAN.TxBurst,
	}, log.Named("dispatch"))
	dispatcher.SetMetrics(appMetrics)

	if cfg.Journal.Enable {
		jrnl, err := journal.Open(cfg.Journal.DSN, log.Named("journal"))
		if err != nil {
			log.Fatal("journal open failed", zap.Error(err))
		}
		defer func() { _ = jrnl.Close() }()
		dispatcher.SetRecorder(jrnl)
		log.Info("transmit journal enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)

	// 7) 订阅信号图更新
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	source := subscription.NewRedisSource(redisClient, cfg.Redis.Channel, log.Named("subscription"))

	subDone := make(chan error, 1)
	go func() {
		subDone <- source.Run(ctx, table.SubscribedPaths(), func(path string, value any, ts time.Time) {
			_ = dispatcher.Notify(dispatch.Notification{Path: path, Value: value, Timestamp: ts})
		})
	}()

	// 8) 诊断 HTTP 服务
	var metricsHandler = metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, func() bool { return true }, httpserver.Deps{
		Catalog: cat,
		Table:   table,
		Store:   store,
		Encoder: enc,
	})
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	log.Info("bridge started",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("subscribed_paths", len(table.SubscribedPaths())))

	// 信号处理，优雅关闭：先停订阅入口，再等调度排空，最后关外围
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-subDone:
		if err != nil {
			log.Error("subscription terminated", zap.Error(err))
		}
	}

	// 先停调度入口并排空在途通知，再取消订阅与 worker 上下文
	dispatcher.Close()
	cancel()
	_ = redisClient.Close()
	_ = tx.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
