package models

import "time"

// MobileModelRecord 是机型目录中的一条记录，对应 Elasticsearch 索引中的一个文档，
// 也是内存快照中的条目结构。除 id/brand/model/model_name 外的字段都可能缺失。
type MobileModelRecord struct {
	// ID 是记录的稳定唯一标识，作为文档 ID 与排序的最终决胜键。
	ID int64 `json:"id"`
	// Brand 是规范化后的品牌编码（小写英文，如 "xiaomi"）。
	Brand string `json:"brand"`
	// BrandTitle 是品牌的展示名（如 "小米"）。
	BrandTitle string `json:"brand_title,omitempty"`
	// Model 是机型型号（如 "2210132C"）。
	Model string `json:"model"`
	// ModelName 是机型名称（如 "Xiaomi 13 Pro"）。
	ModelName string `json:"model_name"`
	// Code 是内部代号。
	Code string `json:"code,omitempty"`
	// CodeAlias 是代号别名，多个以空格分隔。
	CodeAlias string `json:"code_alias,omitempty"`
	// MarketName 是市场宣传名。
	MarketName string `json:"market_name,omitempty"`
	// DType 是设备形态（手机/平板等），参与筛选与聚合。
	DType string `json:"dtype,omitempty"`
	// VerName 是版本名（如 "5G版"），参与筛选与聚合。
	VerName string `json:"ver_name,omitempty"`
	// Attributes 承载来源数据中的其余键值属性，原样透传。
	Attributes map[string]string `json:"attributes,omitempty"`
	// UpdatedAt 是该记录最近一次写入索引的时间。
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DTypeFacet 是设备形态聚合的一个桶。
type DTypeFacet struct {
	DType string `json:"dtype"`
	Count int64  `json:"count"`
}

// VerNameFacet 是版本名聚合的一个桶。
type VerNameFacet struct {
	VerName string `json:"ver_name"`
	Count   int64  `json:"count"`
}

// BrandStat 是品牌维度的记录数统计。
type BrandStat struct {
	Brand      string `json:"brand"`
	BrandTitle string `json:"brand_title,omitempty"`
	Count      int64  `json:"count"`
}
