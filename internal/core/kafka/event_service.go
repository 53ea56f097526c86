package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/Xushengqwer/model_search/internal/repositories"
	"go.uber.org/zap"
)

// 包级别哨兵错误，标记可预期的验证失败。
// 消息处理器用 errors.Is() 识别它们并归类为永久性错误（进 DLQ，不重试）。
var (
	ErrInvalidModelID     = errors.New("无效的机型ID")
	ErrEmptyModelName     = errors.New("机型名称不能为空")
	ErrInvalidEventFormat = errors.New("无效的事件格式或缺少关键数据")
)

// EventService 封装机型目录 Kafka 事件的业务处理逻辑。
// 它通过 CatalogIndexer 把上游的机型变更写入搜索存储。
type EventService struct {
	indexer repositories.CatalogIndexer
	logger  *core.ZapLogger
}

// NewEventService 创建 EventService 实例。
// 关键依赖缺失时 panic，阻止服务以损坏状态启动。
func NewEventService(indexer repositories.CatalogIndexer, logger *core.ZapLogger) *EventService {
	if indexer == nil {
		panic("致命错误 [事件服务]: CatalogIndexer 依赖注入失败，实例不能为 nil")
	}
	if logger == nil {
		panic("致命错误 [事件服务]: ZapLogger 依赖注入失败，实例不能为 nil")
	}
	return &EventService{
		indexer: indexer,
		logger:  logger,
	}
}

// HandleModelUpsertEvent 处理机型新增/更新事件：验证关键字段后写入索引。
// 验证失败返回包装了哨兵错误的永久性错误；索引失败原样向上传递，
// 由消息处理器判断是否重试。
func (s *EventService) HandleModelUpsertEvent(ctx context.Context, event *models.ModelUpsertEvent) error {
	record := event.Model
	s.logger.Info("开始处理机型变更事件 (ModelUpsertEvent)",
		zap.String("event_id", event.EventID),
		zap.Int64("model_id", record.ID))

	// 来自外部系统的数据先做基本验证，避免无效记录污染索引。
	if record.ID <= 0 {
		s.logger.Error("处理 ModelUpsertEvent 失败：事件中包含无效的机型 ID",
			zap.String("event_id", event.EventID),
			zap.Int64("model_id", record.ID),
			zap.String("校验规则", "ID 必须大于 0"),
		)
		return fmt.Errorf("处理机型变更事件失败，机型 ID '%d' 无效: %w", record.ID, ErrInvalidModelID)
	}
	if record.ModelName == "" {
		s.logger.Error("处理 ModelUpsertEvent 失败：事件中的机型名称为空",
			zap.String("event_id", event.EventID),
			zap.Int64("model_id", record.ID),
		)
		return fmt.Errorf("处理机型变更事件失败，机型 ID '%d' 的名称为空: %w", record.ID, ErrEmptyModelName)
	}

	if err := s.indexer.IndexModel(ctx, record); err != nil {
		s.logger.Error("调用 CatalogIndexer 的 IndexModel 操作失败",
			zap.String("event_id", event.EventID),
			zap.Int64("model_id", record.ID),
			zap.Error(err),
		)
		return fmt.Errorf("索引机型 ID '%d' 失败: %w", record.ID, err)
	}

	s.logger.Info("成功处理并索引机型变更事件",
		zap.String("event_id", event.EventID),
		zap.Int64("model_id", record.ID))
	return nil
}

// HandleModelDeleteEvent 处理机型删除事件：验证 ID 后从索引中移除文档。
// 索引层对"文档不存在"做幂等处理，这里无需区分该情况。
func (s *EventService) HandleModelDeleteEvent(ctx context.Context, event *models.ModelDeleteEvent) error {
	s.logger.Info("开始处理机型删除事件 (ModelDeleteEvent)",
		zap.String("event_id", event.EventID),
		zap.Int64("model_id", event.ModelID))

	if event.ModelID <= 0 {
		s.logger.Error("处理 ModelDeleteEvent 失败：事件中包含无效的机型 ID",
			zap.String("event_id", event.EventID),
			zap.Int64("model_id", event.ModelID),
			zap.String("校验规则", "ID 必须大于 0"),
		)
		return fmt.Errorf("处理机型删除事件失败，机型 ID '%d' 无效: %w", event.ModelID, ErrInvalidModelID)
	}

	if err := s.indexer.DeleteModel(ctx, event.ModelID); err != nil {
		s.logger.Error("调用 CatalogIndexer 的 DeleteModel 操作失败",
			zap.String("event_id", event.EventID),
			zap.Int64("model_id", event.ModelID),
			zap.Error(err),
		)
		return fmt.Errorf("从索引删除机型 ID '%d' 失败: %w", event.ModelID, err)
	}

	s.logger.Info("成功处理机型删除事件",
		zap.String("event_id", event.EventID),
		zap.Int64("model_id", event.ModelID))
	return nil
}
