package main

import (
	"encoding/json"
	"flag"
	"log" // 标准日志库，用于早期错误输出
	"path/filepath"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/config"
	internalKafka "github.com/Xushengqwer/model_search/internal/core/kafka"
	"github.com/Xushengqwer/model_search/internal/models"
	"go.uber.org/zap"
)

func main() {
	// --- 0. 配置和基础设置 ---
	var configFile string
	defaultConfigPath := filepath.Join("..", "..", "config", "config.development.yaml")

	flag.StringVar(&configFile, "config", defaultConfigPath, "指定配置文件的路径 (相对于当前工作目录或绝对路径)")
	flag.Parse()

	if !filepath.IsAbs(configFile) {
		absPath, err := filepath.Abs(configFile)
		if err != nil {
			log.Fatalf("无法将配置文件路径 '%s' 转换为绝对路径: %v", configFile, err)
		}
		configFile = absPath
	}
	log.Printf("使用的配置文件: %s", configFile)

	// --- 1. 加载配置 ---
	var cfg config.ModelSearchConfig
	if err := core.LoadConfig(configFile, &cfg); err != nil {
		log.Fatalf("致命错误: 加载配置文件 '%s' 失败: %v", configFile, err)
	}
	log.Println("配置文件加载成功。")

	// --- 2. 初始化 Logger ---
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
	logger.Info("Kafka Seeder 的 Zap Logger 初始化成功。")

	// --- 3. 准备 Kafka 生产者 ---
	kafkaCfg := cfg.KafkaConfig
	if len(kafkaCfg.SubscribedTopics) < 2 {
		logger.Fatal("Kafka 配置错误：subscribedTopics 至少需要包含两个主题 (一个用于机型变更，一个用于机型删除)。")
	}

	upsertTopic := kafkaCfg.SubscribedTopics[0]
	deleteTopic := kafkaCfg.SubscribedTopics[1]

	logger.Info("Kafka Seeder 将使用以下主题",
		zap.String("机型变更事件主题 (ModelUpsert)", upsertTopic),
		zap.String("机型删除事件主题 (ModelDelete)", deleteTopic),
	)

	saramaConfig, err := internalKafka.ConfigureSarama(kafkaCfg, logger)
	if err != nil {
		logger.Fatal("配置 Sarama (Kafka 客户端库) 失败", zap.Error(err))
	}

	producer, err := sarama.NewSyncProducer(kafkaCfg.Brokers, saramaConfig)
	if err != nil {
		logger.Fatal("创建 Kafka 同步生产者 (SyncProducer) 失败", zap.Error(err))
	}
	defer func() {
		logger.Info("正在关闭 Kafka 同步生产者...")
		if err := producer.Close(); err != nil {
			logger.Error("关闭 Kafka 同步生产者时发生错误", zap.Error(err))
		} else {
			logger.Info("Kafka 同步生产者已成功关闭。")
		}
	}()
	logger.Info("Kafka 同步生产者 (SyncProducer) 初始化成功并已连接。", zap.Strings("Brokers地址", kafkaCfg.Brokers))

	// --- 4. 定义机型新增/更新的测试数据 (ModelUpsertEvents) ---
	testUpsertEvents := []models.ModelUpsertEvent{
		{
			EventID: "seed-upsert-901",
			Model: models.MobileModelRecord{
				ID:         901,
				Brand:      "xiaomi",
				BrandTitle: "小米",
				Model:      "2210132C",
				ModelName:  "Xiaomi 13 Pro",
				Code:       "nuwa",
				CodeAlias:  "nuwa cn",
				MarketName: "小米13 Pro",
				DType:      "手机",
				VerName:    "5G版",
				Attributes: map[string]string{"soc": "骁龙8 Gen2"},
			},
		},
		{
			EventID: "seed-upsert-902",
			Model: models.MobileModelRecord{
				ID:         902,
				Brand:      "huawei",
				BrandTitle: "华为",
				Model:      "ALN-AL00",
				ModelName:  "HUAWEI Mate 60 Pro",
				Code:       "alps",
				MarketName: "华为Mate 60 Pro",
				DType:      "手机",
			},
		},
		{
			EventID: "seed-upsert-903",
			Model: models.MobileModelRecord{
				ID:         903,
				Brand:      "apple",
				BrandTitle: "苹果",
				Model:      "A2892",
				ModelName:  "iPhone 14 Pro",
				Code:       "d73",
				DType:      "手机",
				VerName:    "国行",
			},
		},
		{
			EventID: "seed-upsert-904",
			Model: models.MobileModelRecord{
				ID:         904,
				Brand:      "xiaomi",
				BrandTitle: "小米",
				Model:      "23046RP50C",
				ModelName:  "Xiaomi Pad 6",
				Code:       "pipa",
				MarketName: "小米平板 6",
				DType:      "平板",
			},
		},
		{
			EventID: "seed-upsert-905",
			Model: models.MobileModelRecord{
				ID:         905,
				Brand:      "honor",
				BrandTitle: "荣耀",
				Model:      "BVL-AN16",
				ModelName:  "HONOR Magic6 Pro",
				Code:       "berlin",
				DType:      "手机",
				VerName:    "5G版",
			},
		},
	}

	// --- 5. 发送机型变更事件到 Kafka ---
	logger.Info("开始发送机型变更 (ModelUpsert) 事件到 Kafka...", zap.Int("消息数量", len(testUpsertEvents)))
	for _, upsertEvent := range testUpsertEvents {
		payloadBytes, err := json.Marshal(upsertEvent)
		if err != nil {
			logger.Error("序列化 ModelUpsertEvent 为 JSON 时发生错误",
				zap.Int64("机型ID", upsertEvent.Model.ID),
				zap.Error(err))
			continue
		}
		eventKey := strconv.FormatInt(upsertEvent.Model.ID, 10)
		msg := &sarama.ProducerMessage{
			Topic: upsertTopic,
			Key:   sarama.StringEncoder(eventKey),
			Value: sarama.ByteEncoder(payloadBytes),
		}
		logger.Debug("准备发送的消息详情 (ModelUpsert)",
			zap.String("消息键(Key)", eventKey),
			zap.ByteString("消息体片段(Value snippet)", payloadBytes[:min(100, len(payloadBytes))]))
		partition, offset, err := producer.SendMessage(msg)
		if err != nil {
			logger.Error("发送 ModelUpsert 事件到 Kafka 失败",
				zap.String("目标主题", upsertTopic),
				zap.Int64("机型ID", upsertEvent.Model.ID),
				zap.Error(err),
			)
		} else {
			logger.Info("ModelUpsert 事件成功发送到 Kafka",
				zap.String("目标主题", upsertTopic),
				zap.Int64("机型ID", upsertEvent.Model.ID),
				zap.Int32("分区(Partition)", partition),
				zap.Int64("偏移量(Offset)", offset),
				zap.Time("发送时间戳", time.Now()),
			)
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Info("所有 ModelUpsert 事件已发送（或已尝试发送）到 Kafka。")

	// --- 6. 定义机型删除的测试数据 (ModelDeleteEvents) ---
	// 删除刚写入的一条记录，外加一个大概率不存在的 ID，用于验证删除不存在文档的幂等行为。
	testDeleteEvents := []models.ModelDeleteEvent{
		{
			EventID:   "seed-delete-902",
			Operation: "delete",
			ModelID:   902,
		},
		{
			EventID:   "seed-delete-100099",
			Operation: "delete",
			ModelID:   100099,
		},
	}

	// --- 7. 发送机型删除事件到 Kafka ---
	logger.Info("开始发送机型删除 (ModelDelete) 事件到 Kafka...", zap.Int("消息数量", len(testDeleteEvents)))
	for _, deleteEvent := range testDeleteEvents {
		payloadBytes, err := json.Marshal(deleteEvent)
		if err != nil {
			logger.Error("序列化 ModelDeleteEvent 为 JSON 时发生错误",
				zap.Int64("机型ID", deleteEvent.ModelID),
				zap.Error(err))
			continue
		}
		eventKey := strconv.FormatInt(deleteEvent.ModelID, 10)
		msg := &sarama.ProducerMessage{
			Topic: deleteTopic,
			Key:   sarama.StringEncoder(eventKey),
			Value: sarama.ByteEncoder(payloadBytes),
		}
		logger.Debug("准备发送的消息详情 (ModelDelete)",
			zap.String("消息键(Key)", eventKey),
			zap.ByteString("消息体片段(Value snippet)", payloadBytes[:min(100, len(payloadBytes))]))
		partition, offset, err := producer.SendMessage(msg)
		if err != nil {
			logger.Error("发送 ModelDelete 事件到 Kafka 失败",
				zap.String("目标主题", deleteTopic),
				zap.Int64("机型ID", deleteEvent.ModelID),
				zap.Error(err),
			)
		} else {
			logger.Info("ModelDelete 事件成功发送到 Kafka",
				zap.String("目标主题", deleteTopic),
				zap.Int64("机型ID", deleteEvent.ModelID),
				zap.Int32("分区(Partition)", partition),
				zap.Int64("偏移量(Offset)", offset),
				zap.Time("发送时间戳", time.Now()),
			)
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Info("所有 ModelDelete 事件已发送（或已尝试发送）到 Kafka。")

	logger.Info("所有测试数据均已处理完毕。")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
