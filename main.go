package main

import (
	"context"
	"errors"
	"flag"
	"log" // 标准库 log 用于早期启动错误
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/Xushengqwer/model_search/docs"

	"github.com/Xushengqwer/go-common/core"
	sharedTracing "github.com/Xushengqwer/go-common/core/tracing"
	"github.com/Xushengqwer/model_search/config"
	"github.com/Xushengqwer/model_search/constants"
	"github.com/Xushengqwer/model_search/internal/api"
	"github.com/Xushengqwer/model_search/internal/cache"
	coreES "github.com/Xushengqwer/model_search/internal/core/es"
	coreKafka "github.com/Xushengqwer/model_search/internal/core/kafka"
	"github.com/Xushengqwer/model_search/internal/repositories"
	"github.com/Xushengqwer/model_search/internal/service"
	"github.com/Xushengqwer/model_search/router"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// @title 机型搜索服务 API
// @version 1.0.0
// @description 这是机型搜索服务的 API 文档。提供手机机型目录的关键词搜索、精确过滤、聚合统计与更新时间查询。
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8084
// @schemes http https
func main() {
	// --- 0. 配置和基础设置 ---
	var configFile string
	flag.StringVar(&configFile, "config", "config/config.development.yaml", "指定配置文件的路径")
	flag.Parse()

	var cfg config.ModelSearchConfig
	if err := core.LoadConfig(configFile, &cfg); err != nil {
		log.Fatalf("致命错误: 加载配置文件 '%s' 失败: %v", configFile, err)
	}

	logger, loggerErr := core.NewZapLogger(cfg.ZapConfig)
	if loggerErr != nil {
		log.Fatalf("致命错误: 初始化 ZapLogger 失败: %v", loggerErr)
	}
	defer func() {
		logger.Info("正在同步所有日志条目...")
		if err := logger.Logger().Sync(); err != nil {
			log.Printf("警告: ZapLogger Sync 操作失败: %v\n", err)
		}
	}()
	logger.Info("Logger 初始化成功。")

	// --- HTTP Transport 和 Tracer 初始化 ---
	baseHttpTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	var outboundTransport http.RoundTripper = baseHttpTransport

	if cfg.TracerConfig.Enabled {
		tracerShutdown, err := sharedTracing.InitTracerProvider(
			constants.ServiceName,
			constants.ServiceVersion,
			cfg.TracerConfig,
		)
		if err != nil {
			logger.Fatal("初始化分布式追踪 TracerProvider 失败", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("正在关闭分布式追踪 TracerProvider...")
			if err := tracerShutdown(ctx); err != nil {
				logger.Error("关闭分布式追踪 TracerProvider 时发生错误", zap.Error(err))
			} else {
				logger.Info("分布式追踪 TracerProvider 已成功关闭。")
			}
		}()
		logger.Info("分布式追踪功能已初始化。")
		// 出站请求（回源拉快照、ES 查询）也纳入追踪。
		outboundTransport = otelhttp.NewTransport(outboundTransport)
		http.DefaultTransport = otelhttp.NewTransport(http.DefaultTransport)
		logger.Debug("OpenTelemetry HTTP Transport 已初始化并设置为默认值 (用于出站请求追踪)。")
	} else {
		logger.Info("分布式追踪功能已禁用 (根据配置)。")
	}

	// --- 核心组件初始化 ---

	// 快照加载器在两种存储后端下都需要：memory 后端用它加载全量目录，
	// update_time 接口在任何后端下都通过它查询目录更新时间。
	snapshotLoader := repositories.NewSnapshotLoader(cfg.SnapshotConfig, outboundTransport, logger)
	logger.Info("目录快照加载器 (SnapshotLoader) 初始化成功。")

	// 按配置选择目录存储后端。
	var catalogStore repositories.CatalogStore
	var catalogIndexer repositories.CatalogIndexer

	switch cfg.CatalogConfig.Store {
	case "memory":
		catalogStore = repositories.NewMemoryCatalog(snapshotLoader, logger)
		logger.Info("目录存储后端使用内存快照 (memory)。")
	default:
		esClientCore, err := coreES.NewESClient(cfg.ElasticsearchConfig, logger, outboundTransport)
		if err != nil {
			logger.Fatal("创建 Elasticsearch 客户端失败", zap.Error(err))
		}
		logger.Info("Elasticsearch 客户端初始化成功。")

		modelsIndexName := cfg.ElasticsearchConfig.ModelsIndex.Name
		if modelsIndexName == "" {
			logger.Fatal("机型目录索引名称 (elasticsearchConfig.modelsIndex.name) 未在配置中指定。")
		}
		esRepo := repositories.NewESCatalogRepository(esClientCore.Client, modelsIndexName, cfg.CatalogConfig.QueryTimeout, logger)
		catalogStore = esRepo
		catalogIndexer = esRepo
		logger.Info("机型目录 Elasticsearch Repository 初始化成功。", zap.String("index_name", modelsIndexName))
	}

	// 初始化业务服务层 - SearchService
	searchSvc := service.NewSearchService(catalogStore, logger)
	logger.Info("SearchService 初始化成功。")

	// --- 服务启动与优雅关闭的根上下文 ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Kafka 事件消费（仅 ES 后端且配置了 Broker 时启用）---
	// memory 后端的目录是只读快照，不接收增量事件。
	if catalogIndexer != nil && len(cfg.KafkaConfig.Brokers) > 0 {
		eventSvc := coreKafka.NewEventService(catalogIndexer, logger)
		logger.Info("EventService 初始化成功。")

		saramaCfg, err := coreKafka.ConfigureSarama(cfg.KafkaConfig, logger)
		if err != nil {
			logger.Fatal("配置 Sarama (Kafka 客户端库) 失败", zap.Error(err))
		}
		logger.Info("Sarama (Kafka 客户端库) 配置初始化成功。")

		dlqProducer, err := coreKafka.NewSyncProducer(cfg.KafkaConfig, saramaCfg, logger)
		if err != nil {
			logger.Fatal("创建 Kafka DLQ 同步生产者失败", zap.Error(err))
		}
		defer func() {
			logger.Info("正在关闭 Kafka DLQ 生产者...")
			if err := dlqProducer.Close(); err != nil {
				logger.Error("关闭 Kafka DLQ 生产者时发生错误", zap.Error(err))
			} else {
				logger.Info("Kafka DLQ 生产者已成功关闭。")
			}
		}()
		logger.Info("Kafka DLQ 同步生产者初始化成功。")

		// 主题约定：SubscribedTopics[0] 为机型变更事件，[1] 为机型删除事件。
		var upsertTopic, deleteTopic string
		if len(cfg.KafkaConfig.SubscribedTopics) >= 1 {
			upsertTopic = cfg.KafkaConfig.SubscribedTopics[0]
		} else {
			logger.Fatal("Kafka 配置错误：未找到用于机型变更事件的主题 (SubscribedTopics[0])")
		}
		if len(cfg.KafkaConfig.SubscribedTopics) >= 2 {
			deleteTopic = cfg.KafkaConfig.SubscribedTopics[1]
		} else {
			logger.Warn("Kafka 配置警告：未明确找到用于删除事件的主题 (期望在 SubscribedTopics[1])。如果服务不处理删除事件，此警告可忽略。")
		}
		if upsertTopic == "" || (deleteTopic == "" && len(cfg.KafkaConfig.SubscribedTopics) > 1) {
			logger.Fatal("Kafka 主题配置不完整：upsertTopic 或 deleteTopic 未能正确从 SubscribedTopics 中提取。")
		}

		kafkaHandler := coreKafka.NewHandler(
			eventSvc,
			dlqProducer,
			cfg.KafkaConfig.DLQTopic,
			upsertTopic,
			deleteTopic,
			logger,
			cfg.KafkaConfig.MaxRetryAttempts,
		)
		logger.Info("Kafka 消息处理器 (Handler) 初始化成功。")

		consumerGroup, err := coreKafka.NewConsumerGroup(
			cfg.KafkaConfig,
			saramaCfg,
			kafkaHandler,
			logger,
		)
		if err != nil {
			logger.Fatal("创建 Kafka 消费者组失败", zap.Error(err))
		}
		defer func() {
			logger.Info("正在关闭 Kafka 消费者组...")
			if err := consumerGroup.Close(); err != nil {
				logger.Error("关闭 Kafka 消费者组时发生错误", zap.Error(err))
			} else {
				logger.Info("Kafka 消费者组已成功关闭。")
			}
		}()
		logger.Info("Kafka 消费者组初始化成功。")

		consumerGroup.Start(ctx)
		logger.Info("Kafka 消费者组已启动，开始在后台消费消息。")
	} else {
		logger.Info("Kafka 事件消费未启用 (内存后端或未配置 Broker)。")
	}

	// --- 搜索结果缓存（未配置 Redis 地址时整体关闭）---
	var resultCache *cache.ResultCache
	if cfg.RedisConfig.Addr != "" {
		redisStore := cache.NewRedisStore(cfg.RedisConfig)
		resultCache = cache.NewResultCache(redisStore, cfg.RedisConfig.CacheTTL, cfg.RedisConfig.RevalidateWindow, logger)
		logger.Info("搜索结果缓存 (Redis) 初始化成功。",
			zap.String("addr", cfg.RedisConfig.Addr),
			zap.Duration("cache_ttl", cfg.RedisConfig.CacheTTL),
			zap.Duration("revalidate_window", cfg.RedisConfig.RevalidateWindow),
		)
	} else {
		logger.Info("未配置 Redis 地址，搜索结果缓存已关闭，所有请求直接计算。")
	}

	// 初始化 API Handler (控制器)
	searchApiHandler := api.NewSearchHandler(searchSvc, snapshotLoader, resultCache, logger)
	logger.Info("API Handler (SearchHandler) 初始化成功。")

	// 初始化并配置 Gin Web 引擎及路由
	ginRouter := router.SetupRouter(logger, &cfg, searchApiHandler)
	logger.Info("Gin Web 引擎及 API 路由初始化和注册成功。")

	// --- HTTP 服务启动 ---
	serverAddr := cfg.Server.ListenAddr
	if serverAddr == "" {
		serverAddr = ":" + cfg.Server.Port
	} else if !strings.Contains(serverAddr, ":") {
		serverAddr = serverAddr + ":" + cfg.Server.Port
	}

	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: ginRouter,
	}

	go func() {
		logger.Info("HTTP API 服务器正在启动...", zap.String("listen_address", serverAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP API 服务器启动失败或意外停止", zap.Error(err))
			cancel()
		}
	}()

	quitSignal := make(chan os.Signal, 1)
	signal.Notify(quitSignal, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("服务已成功启动。正在监听中断或终止信号以进行优雅关闭...")

	receivedSignal := <-quitSignal
	logger.Info("接收到关闭信号，开始进行服务的优雅关闭...", zap.String("signal", receivedSignal.String()))

	cancel()
	logger.Info("已发出全局上下文取消信号，通知所有组件开始关闭。")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("正在优雅地关闭 HTTP API 服务器...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭 HTTP API 服务器时发生错误", zap.Error(err))
	} else {
		logger.Info("HTTP API 服务器已成功关闭。")
	}

	logger.Info("服务所有组件已完成关闭流程，程序即将退出。")
}
