package constants

// 服务标识，用于链路追踪与日志归属。
const (
	// ServiceName 是本服务在注册与追踪体系中的名称。
	ServiceName = "model-search-service"
	// ServiceVersion 是当前服务版本号。
	ServiceVersion = "1.0.0"
)
