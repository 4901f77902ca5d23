package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/api/router"
	"resume-match-go/internal/config"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/metrics"
	"resume-match-go/internal/outbox"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/processor"
	"resume-match-go/internal/ratelimit"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		hlog.Fatalf("加载配置失败: %v", err)
	}

	logFile, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		hlog.Fatalf("初始化日志失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetupHertz()
	logger.Info().Str("version", version).Str("config", configPath).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	st, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer st.Close()

	registry, err := parser.BuildRegistry(ctx, cfg, logger.StdLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文档解码器失败")
	}
	logger.Info().Strs("extensions", registry.Extensions()).Msg("文档解码器初始化成功")

	extractor := extract.Default()
	if cfg.Extraction.LexiconFile != "" {
		lex, err := extract.LoadLexicon(cfg.Extraction.LexiconFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Extraction.LexiconFile).Msg("加载词表失败")
		}
		if extractor, err = extract.New(extract.WithLexicon(lex)); err != nil {
			logger.Fatal().Err(err).Msg("初始化抽取器失败")
		}
	}

	m := metrics.New()

	compOpts := []processor.ComponentOpt{
		processor.WithDecoder(registry),
		processor.WithExtractor(extractor),
		processor.WithStorage(st),
		processor.WithMetrics(m),
	}
	setOpts := processor.SettingsFromConfig(cfg)
	if st.RabbitMQ != nil {
		setOpts = append(setOpts, processor.WithOutboxTarget(cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.UploadedRoutingKey))
	}

	resumeService, err := processor.NewResumeService(compOpts, setOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历服务失败")
	}
	matchService, err := processor.NewMatchService(compOpts, setOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化匹配服务失败")
	}
	logger.Info().Bool("queue_mode", resumeService.QueueMode()).Msg("服务初始化成功")

	var relay *outbox.MessageRelay
	if st.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(st.MySQL.DB(), st.RabbitMQ,
			config.GetDuration(cfg.RabbitMQ.RelayInterval, 5*time.Second), cfg.RabbitMQ.RelayBatchSize)
		relay.Start()

		if err := st.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.ExtractQueue,
			cfg.RabbitMQ.PrefetchCount, cfg.RabbitMQ.ConsumerWorkers, resumeService.HandleUploadMessage); err != nil {
			logger.Fatal().Err(err).Msg("启动简历解析消费者失败")
		}
	}

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Server.MetricsAddress); err != nil {
				logger.Error().Err(err).Msg("指标服务异常退出")
			}
		}()
	}

	serverTracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		// upload-batch 一次携带多个文件
		server.WithMaxRequestBodySize(int(cfg.MaxFileSizeBytes())*8),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg), router.RequestLogger())

	limiter := ratelimit.NewTokenBucket(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)
	router.RegisterRoutes(h, handler.NewResumeHandler(cfg, resumeService, matchService), cfg.Server.APIKey, limiter)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()

	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP服务器关闭失败")
	}
	// 先停消费者和中继，再关闭存储连接
	cancel()
	if relay != nil {
		relay.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("关闭链路追踪失败")
	}
	logger.Info().Msg("优雅退出完成")
}
