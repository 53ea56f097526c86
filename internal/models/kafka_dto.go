package models

// ModelUpsertEvent 镜像了目录采集作业发送的机型新增/更新事件的结构。
// Model 为完整记录，消费侧整体覆盖写入索引。
type ModelUpsertEvent struct {
	EventID string            `json:"event_id"` // 事件唯一标识，用于日志关联与 DLQ 追踪。
	Model   MobileModelRecord `json:"model"`    // 待写入的完整机型记录。
}

// ModelDeleteEvent 镜像了目录采集作业发送的机型删除事件的结构。
type ModelDeleteEvent struct {
	EventID   string `json:"event_id"`  // 事件唯一标识。
	Operation string `json:"operation"` // 操作类型，期望值为 "delete"。
	ModelID   int64  `json:"model_id"`  // 需要删除的机型记录的唯一标识符。
}
