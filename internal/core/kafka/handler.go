package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"
	"go.uber.org/zap"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
)

// Handler 实现 sarama.ConsumerGroupHandler，负责处理机型目录的变更消息：
// 按主题路由到具体处理函数，调用 EventService 执行业务逻辑，
// 对可重试错误执行指数退避重试，最终失败的消息送入死信队列 (DLQ)。
type Handler struct {
	eventService   *EventService
	dlqProducer    sarama.SyncProducer
	dlqTopic       string
	maxRetry       uint64
	topicToHandler map[string]MessageHandlerFunc
	ready          chan bool // Setup 完成后关闭，向 ConsumerGroup 发出就绪信号。
	logger         *core.ZapLogger
}

// MessageHandlerFunc 是单条 Kafka 消息处理函数的签名。
type MessageHandlerFunc func(ctx context.Context, message *sarama.ConsumerMessage) error

// NewHandler 创建机型目录消息处理程序。
// upsertTopic/deleteTopic 分别对应机型变更与机型删除事件的主题。
// DLQ 生产者与主题允许只配置其一，SendToDLQ 调用时再做检查。
func NewHandler(
	eventSvc *EventService,
	producer sarama.SyncProducer,
	dlqTopic string,
	upsertTopic string,
	deleteTopic string,
	logger *core.ZapLogger,
	maxRetries uint64,
) *Handler {
	if logger == nil {
		panic("致命错误 [Kafka Handler]: Logger 实例不能为 nil")
	}
	if eventSvc == nil {
		logger.Error("创建 Kafka Handler 失败: EventService 实例不能为 nil")
		panic("致命错误 [Kafka Handler]: EventService 实例不能为 nil")
	}
	if producer == nil && dlqTopic != "" {
		logger.Warn("DLQ 主题已配置，但 DLQ 生产者未提供。DLQ 功能可能无法正常工作。", zap.String("dlq_topic", dlqTopic))
	}
	if producer != nil && dlqTopic == "" {
		logger.Warn("DLQ 生产者已提供，但 DLQ 主题未配置。DLQ 功能可能无法正常工作。")
	}

	h := &Handler{
		eventService: eventSvc,
		dlqProducer:  producer,
		dlqTopic:     dlqTopic,
		maxRetry:     maxRetries,
		ready:        make(chan bool),
		logger:       logger,
	}

	// 主题到处理函数的映射，新增主题时在此扩展。
	h.topicToHandler = map[string]MessageHandlerFunc{
		upsertTopic: h.handleModelUpsertEvent,
		deleteTopic: h.handleModelDeleteEvent,
	}
	logger.Info("Kafka Handler 初始化完成",
		zap.Strings("subscribed_topics_for_handler", []string{upsertTopic, deleteTopic}),
		zap.Uint64("max_processing_retries", maxRetries),
		zap.Bool("dlq_producer_configured", producer != nil),
		zap.String("dlq_topic_configured", dlqTopic),
	)
	return h
}

// Ready 返回就绪信号通道；Setup 成功后该通道被关闭。
func (h *Handler) Ready() <-chan bool {
	return h.ready
}

// Setup 在新的消费者会话开始时由 Sarama 调用。
// 通过关闭 ready 通道发出就绪信号；用 select 防止重平衡时重复关闭导致 panic。
func (h *Handler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka Handler 开始执行 Setup...", zap.String("member_id", session.MemberID()))
	select {
	case <-h.ready:
		h.logger.Info("Kafka Handler 的 ready 通道已被关闭，Setup 跳过关闭操作。", zap.String("member_id", session.MemberID()))
	default:
		close(h.ready)
		h.logger.Info("Kafka Handler 的 ready 通道已成功关闭。", zap.String("member_id", session.MemberID()))
	}
	h.logger.Info("Kafka Handler Setup 完成，已准备好消费消息。", zap.String("member_id", session.MemberID()))
	return nil
}

// Cleanup 在消费者会话结束时调用。当前没有会话级资源需要释放。
func (h *Handler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka Handler 执行 Cleanup 完成。", zap.String("member_id", session.MemberID()))
	return nil
}

// ConsumeClaim 是消息处理的核心循环，Sarama 为每个分配到的分区声明调用一次。
// 持续消费直到 claim.Messages() 通道关闭（会话结束或重平衡）。
func (h *Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	topic := claim.Topic()
	partition := claim.Partition()

	h.logger.Info("开始消费来自特定分区的消息",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("initial_offset", claim.InitialOffset()),
	)

	for message := range claim.Messages() {
		offset := message.Offset
		h.logger.Debug("收到 Kafka 消息",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", offset),
			zap.ByteString("key", message.Key),
			zap.Int("value_length", len(message.Value)),
			zap.Time("kafka_timestamp", message.Timestamp),
		)

		handlerFunc, ok := h.topicToHandler[message.Topic]
		if !ok {
			// 未注册处理函数的主题通常是配置错误；跳过并标记，避免重复消费。
			h.logger.Warn("未找到针对该主题注册的消息处理函数，将跳过此消息",
				zap.String("topic", message.Topic),
				zap.Int64("offset", offset),
				zap.Int32("partition", message.Partition),
			)
			session.MarkMessage(message, "")
			continue
		}

		processErr := h.processWithRetry(session.Context(), message, handlerFunc)

		if processErr != nil {
			h.logger.Error("消息在所有重试尝试后处理失败，准备发送到死信队列 (DLQ)",
				zap.String("topic", message.Topic),
				zap.Int64("offset", offset),
				zap.Int32("partition", message.Partition),
				zap.Error(processErr),
			)

			// DLQ 发送用独立的带超时上下文，避免 DLQ 阻塞拖住整个消费循环。
			dlqCtx, dlqCancel := context.WithTimeout(context.Background(), 10*time.Second)
			dlqErr := SendToDLQ(dlqCtx, h.dlqProducer, h.dlqTopic, message, processErr, h.logger)
			dlqCancel()

			if dlqErr != nil {
				// DLQ 也失败时仍标记消息，保证消费流不被单条消息卡死；
				// 丢失风险交由告警与人工介入兜底。
				h.logger.Error("发送消息到死信队列 (DLQ) 失败，可能导致消息丢失，需要人工关注！",
					zap.String("topic", message.Topic),
					zap.Int64("offset", offset),
					zap.Int32("partition", message.Partition),
					zap.NamedError("original_processing_error", processErr),
					zap.NamedError("dlq_send_error", dlqErr),
				)
				session.MarkMessage(message, "")
			} else {
				h.logger.Info("消息已成功发送到死信队列 (DLQ)",
					zap.String("original_topic", message.Topic),
					zap.Int64("original_offset", offset),
					zap.Int32("original_partition", message.Partition),
					zap.String("dlq_topic", h.dlqTopic),
				)
				session.MarkMessage(message, "")
			}
		} else {
			session.MarkMessage(message, "")
			h.logger.Debug("消息处理成功",
				zap.String("topic", message.Topic),
				zap.Int64("offset", offset),
				zap.Int32("partition", message.Partition),
			)
		}

		// 每条消息处理后检查会话上下文，让消费者能及时响应关闭信号。
		if session.Context().Err() != nil {
			h.logger.Info("会话上下文在消息处理后被取消，准备停止消费此分区",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Int64("last_processed_offset", offset),
				zap.Error(session.Context().Err()),
			)
			return session.Context().Err()
		}
	}

	h.logger.Info("已完成消费分区中的所有消息（或会话结束）",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
	)
	return nil
}

// processWithRetry 以指数退避策略执行消息处理函数。
// 永久性错误（验证失败、反序列化失败、上下文取消）立即终止重试；
// 其余错误按退避间隔重试，次数上限由 maxRetry 控制。
func (h *Handler) processWithRetry(ctx context.Context, message *sarama.ConsumerMessage, handlerFunc MessageHandlerFunc) error {
	bo := backoff.NewExponentialBackOff()
	// 重试上限由 WithMaxRetries 控制，不额外设置总时长限制。
	bo.MaxElapsedTime = 0

	retryableOperation := func() error {
		err := handlerFunc(ctx, message)
		if err != nil {
			if isPermanentError(err) {
				h.logger.Error("消息处理遇到永久性错误，将停止重试并标记为最终失败",
					zap.String("topic", message.Topic),
					zap.Int64("offset", message.Offset),
					zap.Int32("partition", message.Partition),
					zap.Error(err),
				)
				return backoff.Permanent(err)
			}
			h.logger.Warn("消息处理失败，将基于退避策略尝试重试",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Int32("partition", message.Partition),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	notifyFunc := func(err error, nextRetryDuration time.Duration) {
		h.logger.Warn("准备重试消息处理操作",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Int32("partition", message.Partition),
			zap.Duration("next_retry_in", nextRetryDuration),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(retryableOperation, backoff.WithMaxRetries(bo, h.maxRetry), notifyFunc)
}

// --- 特定主题的消息处理函数实现 ---

// handleModelUpsertEvent 处理机型变更主题的消息：
// 反序列化为 ModelUpsertEvent 后交由 EventService 处理。
func (h *Handler) handleModelUpsertEvent(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event models.ModelUpsertEvent

	if err := json.Unmarshal(message.Value, &event); err != nil {
		// 消息内容不会在重试中改变，反序列化失败是永久性错误。
		h.logger.Error("反序列化 'ModelUpsertEvent' 消息失败，数据格式可能不正确或与模型不匹配",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Int32("partition", message.Partition),
			zap.ByteString("raw_value_snippet", message.Value[:min(1024, len(message.Value))]),
			zap.Error(err),
		)
		return backoff.Permanent(fmt.Errorf("反序列化 ModelUpsertEvent 失败 (主题: %s, 偏移量: %d): %w", message.Topic, message.Offset, err))
	}

	h.logger.Debug("成功反序列化 ModelUpsertEvent，准备交由 EventService 处理",
		zap.Int64("event_model_id", event.Model.ID),
		zap.String("topic", message.Topic),
		zap.Int64("offset", message.Offset),
	)

	return h.eventService.HandleModelUpsertEvent(ctx, &event)
}

// handleModelDeleteEvent 处理机型删除主题的消息：
// 反序列化为 ModelDeleteEvent，校验操作类型后交由 EventService 处理。
func (h *Handler) handleModelDeleteEvent(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event models.ModelDeleteEvent

	if err := json.Unmarshal(message.Value, &event); err != nil {
		h.logger.Error("反序列化 'ModelDeleteEvent' 消息失败，数据格式可能不正确或与模型不匹配",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Int32("partition", message.Partition),
			zap.ByteString("raw_value_snippet", message.Value[:min(1024, len(message.Value))]),
			zap.Error(err),
		)
		return backoff.Permanent(fmt.Errorf("反序列化 ModelDeleteEvent 失败 (主题: %s, 偏移量: %d): %w", message.Topic, message.Offset, err))
	}

	// 只处理 delete 操作，其他操作类型视为不适用并跳过（不重试、不进 DLQ）。
	expectedOperation := "delete"
	if event.Operation != expectedOperation {
		h.logger.Warn("收到的 ModelDeleteEvent 操作类型与预期不符，将跳过处理此消息",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Int32("partition", message.Partition),
			zap.Int64("event_model_id", event.ModelID),
			zap.String("received_operation", event.Operation),
			zap.String("expected_operation", expectedOperation),
		)
		return nil
	}

	h.logger.Debug("成功反序列化 ModelDeleteEvent 并验证通过，准备交由 EventService 处理",
		zap.Int64("event_model_id", event.ModelID),
		zap.String("operation_type", event.Operation),
		zap.String("topic", message.Topic),
		zap.Int64("offset", message.Offset),
	)

	return h.eventService.HandleModelDeleteEvent(ctx, &event)
}

// isPermanentError 判断错误是否不应重试：
// 上下文取消/超时、EventService 的验证类哨兵错误、JSON 反序列化错误。
// 其余错误默认视为暂时性（网络波动、下游暂时过载等），允许重试。
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, ErrInvalidModelID) ||
		errors.Is(err, ErrEmptyModelName) ||
		errors.Is(err, ErrInvalidEventFormat) {
		return true
	}

	// handleXxxEvent 已用 backoff.Permanent 包装反序列化错误，
	// 这里再检查一遍，兜住未经包装就冒出来的 JSON 错误。
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	if errors.As(err, &syntaxError) || errors.As(err, &unmarshalTypeError) {
		return true
	}

	return false
}

// min 返回两个整数中较小的一个，用于截断日志中的原始消息体。
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
