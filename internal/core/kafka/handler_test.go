package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	commonconfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"

	"github.com/IBM/sarama"
)

func newTestLogger(t *testing.T) *core.ZapLogger {
	t.Helper()
	logger, err := core.NewZapLogger(commonconfig.ZapConfig{})
	if err != nil {
		t.Fatalf("初始化测试 Logger 失败: %v", err)
	}
	return logger
}

// fakeIndexer 记录写调用并可注入失败，实现 repositories.CatalogIndexer。
type fakeIndexer struct {
	indexCalls  int32
	deleteCalls int32
	lastRecord  models.MobileModelRecord
	lastDeleted int64
	err         error
}

func (f *fakeIndexer) IndexModel(_ context.Context, record models.MobileModelRecord) error {
	atomic.AddInt32(&f.indexCalls, 1)
	f.lastRecord = record
	return f.err
}

func (f *fakeIndexer) DeleteModel(_ context.Context, modelID int64) error {
	atomic.AddInt32(&f.deleteCalls, 1)
	f.lastDeleted = modelID
	return f.err
}

func newTestHandler(t *testing.T, indexer *fakeIndexer, maxRetries uint64) *Handler {
	t.Helper()
	logger := newTestLogger(t)
	eventSvc := NewEventService(indexer, logger)
	return NewHandler(eventSvc, nil, "", "model_upsert_events", "model_delete_events", logger, maxRetries)
}

func upsertMessage(t *testing.T, event models.ModelUpsertEvent) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("序列化事件失败: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "model_upsert_events", Value: payload}
}

func deleteMessage(t *testing.T, event models.ModelDeleteEvent) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("序列化事件失败: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "model_delete_events", Value: payload}
}

func TestTopicRouting(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 0)

	if _, ok := handler.topicToHandler["model_upsert_events"]; !ok {
		t.Error("变更主题未注册处理函数")
	}
	if _, ok := handler.topicToHandler["model_delete_events"]; !ok {
		t.Error("删除主题未注册处理函数")
	}
	if _, ok := handler.topicToHandler["unknown_topic"]; ok {
		t.Error("未知主题不应有处理函数")
	}
}

func TestHandleUpsertEventIndexesRecord(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 0)

	msg := upsertMessage(t, models.ModelUpsertEvent{
		EventID: "evt-1",
		Model:   models.MobileModelRecord{ID: 42, Brand: "xiaomi", ModelName: "Xiaomi 13"},
	})
	if err := handler.handleModelUpsertEvent(context.Background(), msg); err != nil {
		t.Fatalf("处理有效事件失败: %v", err)
	}
	if atomic.LoadInt32(&indexer.indexCalls) != 1 || indexer.lastRecord.ID != 42 {
		t.Errorf("事件未写入索引: calls=%d record=%+v", indexer.indexCalls, indexer.lastRecord)
	}
}

func TestHandleUpsertEventValidation(t *testing.T) {
	tests := []struct {
		name     string
		event    models.ModelUpsertEvent
		sentinel error
	}{
		{
			name:     "无效机型ID",
			event:    models.ModelUpsertEvent{EventID: "evt-2", Model: models.MobileModelRecord{ID: 0, ModelName: "X"}},
			sentinel: ErrInvalidModelID,
		},
		{
			name:     "空机型名称",
			event:    models.ModelUpsertEvent{EventID: "evt-3", Model: models.MobileModelRecord{ID: 5}},
			sentinel: ErrEmptyModelName,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			indexer := &fakeIndexer{}
			handler := newTestHandler(t, indexer, 0)

			err := handler.handleModelUpsertEvent(context.Background(), upsertMessage(t, tc.event))
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("期望哨兵错误 %v，实际 %v", tc.sentinel, err)
			}
			if !isPermanentError(err) {
				t.Error("验证失败应被判定为永久性错误")
			}
			if atomic.LoadInt32(&indexer.indexCalls) != 0 {
				t.Error("验证失败不应触发索引写入")
			}
		})
	}
}

func TestHandleUpsertEventRejectsMalformedJSON(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 0)

	msg := &sarama.ConsumerMessage{Topic: "model_upsert_events", Value: []byte(`{"model":`)}
	err := handler.handleModelUpsertEvent(context.Background(), msg)
	if err == nil {
		t.Fatal("畸形 JSON 应返回错误")
	}
	if atomic.LoadInt32(&indexer.indexCalls) != 0 {
		t.Error("畸形 JSON 不应触发索引写入")
	}
}

func TestHandleDeleteEventSkipsUnexpectedOperation(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 0)

	msg := deleteMessage(t, models.ModelDeleteEvent{EventID: "evt-4", Operation: "update", ModelID: 7})
	if err := handler.handleModelDeleteEvent(context.Background(), msg); err != nil {
		t.Fatalf("非 delete 操作应跳过而非报错: %v", err)
	}
	if atomic.LoadInt32(&indexer.deleteCalls) != 0 {
		t.Error("非 delete 操作不应触发索引删除")
	}
}

func TestHandleDeleteEventRemovesRecord(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 0)

	msg := deleteMessage(t, models.ModelDeleteEvent{EventID: "evt-5", Operation: "delete", ModelID: 7})
	if err := handler.handleModelDeleteEvent(context.Background(), msg); err != nil {
		t.Fatalf("处理有效删除事件失败: %v", err)
	}
	if atomic.LoadInt32(&indexer.deleteCalls) != 1 || indexer.lastDeleted != 7 {
		t.Errorf("删除事件未生效: calls=%d id=%d", indexer.deleteCalls, indexer.lastDeleted)
	}
}

func TestIsPermanentErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil错误", nil, false},
		{"上下文取消", context.Canceled, true},
		{"上下文超时", context.DeadlineExceeded, true},
		{"包装的无效机型ID", fmt.Errorf("外层: %w", ErrInvalidModelID), true},
		{"空机型名称哨兵", ErrEmptyModelName, true},
		{"事件格式哨兵", ErrInvalidEventFormat, true},
		{"JSON语法错误", &json.SyntaxError{}, true},
		{"普通下游错误", errors.New("连接被拒绝"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isPermanentError(tc.err); got != tc.permanent {
				t.Errorf("isPermanentError(%v) = %v, 期望 %v", tc.err, got, tc.permanent)
			}
		})
	}
}

func TestProcessWithRetryStopsOnPermanentError(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 3)

	var attempts int32
	err := handler.processWithRetry(context.Background(), &sarama.ConsumerMessage{Topic: "model_upsert_events"},
		func(context.Context, *sarama.ConsumerMessage) error {
			atomic.AddInt32(&attempts, 1)
			return ErrInvalidModelID
		})
	if !errors.Is(err, ErrInvalidModelID) {
		t.Fatalf("期望透出哨兵错误，实际 %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("永久性错误不应重试，实际尝试 %d 次", attempts)
	}
}

func TestProcessWithRetryRetriesTransientError(t *testing.T) {
	indexer := &fakeIndexer{}
	handler := newTestHandler(t, indexer, 1)

	transient := errors.New("下游暂时不可用")
	var attempts int32
	err := handler.processWithRetry(context.Background(), &sarama.ConsumerMessage{Topic: "model_upsert_events"},
		func(context.Context, *sarama.ConsumerMessage) error {
			atomic.AddInt32(&attempts, 1)
			return transient
		})
	if !errors.Is(err, transient) {
		t.Fatalf("重试耗尽后应透出最后的错误，实际 %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("maxRetry=1 应共尝试 2 次，实际 %d 次", got)
	}
}
