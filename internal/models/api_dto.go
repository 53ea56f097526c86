package models

// 回退档位标识，出现在搜索响应的 fallbackType 字段中。
// 空字符串表示首轮检索即有结果（或查询为空），未发生回退。
const (
	// FallbackTranslatedBrand 表示首轮无结果后，把查询中的中文品牌名替换为
	// 英文品牌编码再检索并命中。
	FallbackTranslatedBrand = "translated_brand"
	// FallbackBrand 表示品牌替换仍无结果后，仅用查询中识别出的品牌词检索并命中。
	FallbackBrand = "brand_fallback"
)

// SearchRequest 定义机型搜索 API 请求的参数。
// q 为空时按精确过滤条件浏览全量目录。
type SearchRequest struct {
	Query string `form:"q"`                  // 搜索关键词，非必需
	Page  int    `form:"page,default=1"`     // 页码，可选，默认为 1，最小为 1
	Limit int    `form:"limit,default=100"`  // 每页大小，可选，默认 100

	// --- 精确过滤字段 ---
	// 这些字段按字段值精确筛选结果，不参与分词与同义词扩展。
	DType     string `form:"dtype"`      // 设备形态（手机/平板等）
	Model     string `form:"model"`      // 型号
	Brand     string `form:"brand"`      // 品牌编码
	Code      string `form:"code"`       // 代号
	CodeAlias string `form:"code_alias"` // 代号别名
	ModelName string `form:"model_name"` // 机型名称
	VerName   string `form:"ver_name"`   // 版本名
}

// SearchResult 定义机型搜索 API 的响应数据结构。
// dtypes 与 verNames 两个聚合面基于同一个基础匹配集（不含 dtype 与 ver_name
// 自身的过滤），因此切换这两个维度的筛选不会让其它可选项消失。
type SearchResult struct {
	Success       bool                `json:"success"`
	Page          int                 `json:"page"`
	Limit         int                 `json:"limit"`
	Total         int64               `json:"total"`
	DTypes        []DTypeFacet        `json:"dtypes"`
	VerNames      []VerNameFacet      `json:"verNames"`
	Results       []MobileModelRecord `json:"results"`
	OriginalQuery string              `json:"originalQuery"` // 用户原始输入
	UsedQuery     string              `json:"usedQuery"`     // 实际执行的查询（回退后可能不同）
	FallbackType  string              `json:"fallbackType"`  // ""、"translated_brand" 或 "brand_fallback"
}

// BrandStatsResult 是品牌统计 API 的响应体，支持分页。
type BrandStatsResult struct {
	Success bool        `json:"success"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int64       `json:"total"`
	Results []BrandStat `json:"results"`
}

// DTypeStatsResult 是设备形态统计 API 的响应体。
type DTypeStatsResult struct {
	Success bool         `json:"success"`
	Results []DTypeFacet `json:"results"`
}

// VerNameStatsResult 是版本名统计 API 的响应体。
type VerNameStatsResult struct {
	Success bool           `json:"success"`
	Results []VerNameFacet `json:"results"`
}

// RefreshResult 是强制刷新 API 的响应体。
type RefreshResult struct {
	Success bool `json:"success"`
}

// ErrorResponse 是所有 API 统一的失败响应体。
type ErrorResponse struct {
	Error  string `json:"error"`            // 面向调用方的错误描述
	Detail string `json:"detail,omitempty"` // 可选的底层错误细节
}
