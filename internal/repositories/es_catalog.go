package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// ESCatalogRepository 是 CatalogStore 与 CatalogIndexer 针对 Elasticsearch 的实现。
// 读路径（搜索/计数/聚合）服务于搜索接口，写路径服务于 Kafka 目录事件消费链路。
// 导出具体类型，便于 main 同时把它接到读接口与写接口上。
type ESCatalogRepository struct {
	client       *elasticsearch.Client // 注入的 Elasticsearch Go 客户端实例。
	indexName    string                // 机型目录索引名称。
	queryTimeout time.Duration         // 单次读查询的超时上限。
	logger       *core.ZapLogger       // 注入的 Logger 实例，用于结构化日志记录。
}

// NewESCatalogRepository 创建一个新的 ESCatalogRepository 实例。
// 返回的实现同时满足 CatalogStore 与 CatalogIndexer。
//
// 注意：此构造函数在关键依赖缺失时会 panic/Fatal，这是快速失败策略，
// 确保服务不会以不完整状态启动。
func NewESCatalogRepository(client *elasticsearch.Client, indexName string, queryTimeout time.Duration, logger *core.ZapLogger) *ESCatalogRepository {
	if logger == nil {
		panic("创建 ESCatalogRepository 失败：Logger 实例不能为 nil")
	}
	if client == nil {
		logger.Fatal("创建 ESCatalogRepository 失败：Elasticsearch 客户端实例 (client) 不能为 nil。服务将无法执行任何存储操作。")
	}
	if indexName == "" {
		logger.Fatal("创建 ESCatalogRepository 失败：Elasticsearch 索引名称 (indexName) 不能为空。无法确定操作的目标索引。")
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	logger.Info("Elasticsearch CatalogRepository 初始化成功",
		zap.String("index_name", indexName),
		zap.Duration("query_timeout", queryTimeout),
	)
	return &ESCatalogRepository{
		client:       client,
		indexName:    indexName,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// logAndWrapESError 处理并记录 Elasticsearch API 响应中的错误。
// 它会尝试读取响应体，记录详细的错误信息（包括状态码和响应体），
// 并返回一个统一的 StoreError。
func (repo *ESCatalogRepository) logAndWrapESError(res *esapi.Response, operationDesc string, contextIdentifier interface{}) error {
	var errBody strings.Builder
	var readErr error
	if res.Body != nil {
		_, readErr = io.Copy(&errBody, res.Body)
	}

	logFields := []zap.Field{
		zap.Any("context_identifier", contextIdentifier),
		zap.String("es_status", res.Status()),
	}

	responseBodyStr := errBody.String()
	if readErr != nil {
		logFields = append(logFields, zap.Error(fmt.Errorf("读取 Elasticsearch 错误响应体失败: %w", readErr)))
	} else if responseBodyStr != "" {
		logFields = append(logFields, zap.String("es_error_response_body", responseBodyStr))
	}

	repo.logger.Error(fmt.Sprintf("Elasticsearch 操作 '%s' 失败", operationDesc), logFields...)

	if responseBodyStr != "" {
		return newStoreError(operationDesc, fmt.Errorf("状态码: %s，响应: %s", res.Status(), responseBodyStr))
	}
	return newStoreError(operationDesc, fmt.Errorf("状态码: %s", res.Status()))
}

// withQueryTimeout 为读查询套上仓库级超时。
func (repo *ESCatalogRepository) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, repo.queryTimeout)
}

// SearchModels 执行分页查询并返回当前页的记录，按 id 降序排列。
func (repo *ESCatalogRepository) SearchModels(ctx context.Context, query CatalogQuery) ([]models.MobileModelRecord, error) {
	body, err := buildModelSearchBody(query)
	if err != nil {
		repo.logger.Error("构建机型搜索查询 DSL 失败", zap.Error(err))
		return nil, newStoreError("搜索机型", err)
	}

	ctx, cancel := repo.withQueryTimeout(ctx)
	defer cancel()

	req := esapi.SearchRequest{
		Index: []string{repo.indexName},
		Body:  body,
	}
	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行 Elasticsearch 搜索请求时发生连接或客户端错误", zap.Error(err))
		return nil, newStoreError("搜索机型", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, repo.logAndWrapESError(res, "搜索机型", query.Tokens)
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source models.MobileModelRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		repo.logger.Error("解码 Elasticsearch 搜索响应体失败", zap.Error(err))
		return nil, newStoreError("搜索机型", fmt.Errorf("解码响应失败: %w", err))
	}

	records := make([]models.MobileModelRecord, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}

// CountModels 返回应用全部过滤后的命中总数。
func (repo *ESCatalogRepository) CountModels(ctx context.Context, query CatalogQuery) (int64, error) {
	body, err := buildModelCountBody(query)
	if err != nil {
		return 0, newStoreError("统计机型", err)
	}

	ctx, cancel := repo.withQueryTimeout(ctx)
	defer cancel()

	req := esapi.CountRequest{
		Index: []string{repo.indexName},
		Body:  body,
	}
	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行 Elasticsearch 计数请求时发生连接或客户端错误", zap.Error(err))
		return 0, newStoreError("统计机型", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, repo.logAndWrapESError(res, "统计机型", query.Tokens)
	}

	var esResponse struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return 0, newStoreError("统计机型", fmt.Errorf("解码响应失败: %w", err))
	}
	return esResponse.Count, nil
}

// termsBuckets 是 terms 聚合响应中单个聚合的通用结构。
type termsBuckets struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	} `json:"buckets"`
}

// runTermsAgg 执行一个 size=0 的聚合查询并返回指定聚合名下的桶。
func (repo *ESCatalogRepository) runTermsAgg(ctx context.Context, body *bytes.Buffer, aggName, operationDesc string) (*termsBuckets, error) {
	ctx, cancel := repo.withQueryTimeout(ctx)
	defer cancel()

	req := esapi.SearchRequest{
		Index: []string{repo.indexName},
		Body:  body,
	}
	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行 Elasticsearch 聚合请求时发生连接或客户端错误",
			zap.String("agg_name", aggName),
			zap.Error(err),
		)
		return nil, newStoreError(operationDesc, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, repo.logAndWrapESError(res, operationDesc, aggName)
	}

	var esResponse struct {
		Aggregations map[string]termsBuckets `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, newStoreError(operationDesc, fmt.Errorf("解码响应失败: %w", err))
	}
	buckets, ok := esResponse.Aggregations[aggName]
	if !ok {
		return nil, newStoreError(operationDesc, fmt.Errorf("响应中缺少聚合 '%s'", aggName))
	}
	return &buckets, nil
}

// AggregateDTypes 返回聚合面基础集（不含 dtype 与 ver_name 过滤）上的设备形态分布。
// 设备形态为空字符串的记录不计入分布，与内存后端的口径一致。
func (repo *ESCatalogRepository) AggregateDTypes(ctx context.Context, query CatalogQuery) ([]models.DTypeFacet, error) {
	body, err := buildDTypeAggBody(query)
	if err != nil {
		return nil, newStoreError("聚合设备形态", err)
	}
	buckets, err := repo.runTermsAgg(ctx, body, "dtypes", "聚合设备形态")
	if err != nil {
		return nil, err
	}
	facets := make([]models.DTypeFacet, 0, len(buckets.Buckets))
	for _, b := range buckets.Buckets {
		if b.Key == "" {
			continue
		}
		facets = append(facets, models.DTypeFacet{DType: b.Key, Count: b.DocCount})
	}
	return facets, nil
}

// AggregateVerNames 返回同一基础集上的版本名分布，空版本名被排除。
func (repo *ESCatalogRepository) AggregateVerNames(ctx context.Context, query CatalogQuery) ([]models.VerNameFacet, error) {
	body, err := buildVerNameAggBody(query)
	if err != nil {
		return nil, newStoreError("聚合版本名", err)
	}
	buckets, err := repo.runTermsAgg(ctx, body, "ver_names", "聚合版本名")
	if err != nil {
		return nil, err
	}
	facets := make([]models.VerNameFacet, 0, len(buckets.Buckets))
	for _, b := range buckets.Buckets {
		facets = append(facets, models.VerNameFacet{VerName: b.Key, Count: b.DocCount})
	}
	return facets, nil
}

// BrandStats 返回全量目录按品牌的记录数统计，结果在内存中分页。
// 品牌桶数量有上限（几十个量级），一次取回再切页比翻页聚合简单得多。
func (repo *ESCatalogRepository) BrandStats(ctx context.Context, page, limit int) ([]models.BrandStat, int64, error) {
	body, err := buildBrandStatsBody()
	if err != nil {
		return nil, 0, newStoreError("品牌统计", err)
	}

	ctx, cancel := repo.withQueryTimeout(ctx)
	defer cancel()

	req := esapi.SearchRequest{
		Index: []string{repo.indexName},
		Body:  body,
	}
	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行品牌统计聚合请求时发生连接或客户端错误", zap.Error(err))
		return nil, 0, newStoreError("品牌统计", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, repo.logAndWrapESError(res, "品牌统计", "brands")
	}

	var esResponse struct {
		Aggregations struct {
			Brands struct {
				Buckets []struct {
					Key        string `json:"key"`
					DocCount   int64  `json:"doc_count"`
					BrandTitle struct {
						Buckets []struct {
							Key string `json:"key"`
						} `json:"buckets"`
					} `json:"brand_title"`
				} `json:"buckets"`
			} `json:"brands"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, 0, newStoreError("品牌统计", fmt.Errorf("解码响应失败: %w", err))
	}

	all := make([]models.BrandStat, 0, len(esResponse.Aggregations.Brands.Buckets))
	for _, b := range esResponse.Aggregations.Brands.Buckets {
		stat := models.BrandStat{Brand: b.Key, Count: b.DocCount}
		if len(b.BrandTitle.Buckets) > 0 {
			stat.BrandTitle = b.BrandTitle.Buckets[0].Key
		}
		all = append(all, stat)
	}

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.BrandStat{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// DTypeStats 返回全量目录的设备形态分布。
func (repo *ESCatalogRepository) DTypeStats(ctx context.Context) ([]models.DTypeFacet, error) {
	return repo.AggregateDTypes(ctx, CatalogQuery{})
}

// VerNameStats 返回全量目录的版本名分布。
func (repo *ESCatalogRepository) VerNameStats(ctx context.Context) ([]models.VerNameFacet, error) {
	return repo.AggregateVerNames(ctx, CatalogQuery{})
}

// IndexModel 在 Elasticsearch 中索引（创建或更新）一条机型记录。
// 使用记录的 ID 作为文档 _id，从而实现幂等写入：相同 ID 的事件整体覆盖旧文档。
func (repo *ESCatalogRepository) IndexModel(ctx context.Context, record models.MobileModelRecord) error {
	// 每次写入刷新 UpdatedAt，统一使用 UTC 避免时区问题。
	record.UpdatedAt = time.Now().UTC()
	docID := strconv.FormatInt(record.ID, 10)

	payload, err := json.Marshal(record)
	if err != nil {
		repo.logger.Error("序列化 MobileModelRecord 为 JSON 失败，无法发送给 Elasticsearch",
			zap.Int64("model_id", record.ID),
			zap.Error(err),
		)
		return fmt.Errorf("序列化机型记录 (ID: %d) 失败: %w", record.ID, err)
	}
	repo.logger.Debug("准备索引的文档JSON体", zap.String("document_id", docID), zap.ByteString("payload", payload))

	req := esapi.IndexRequest{
		Index:      repo.indexName,
		DocumentID: docID,
		Body:       bytes.NewReader(payload),
		// 异步刷新。写入先进内存缓冲区与事务日志，短时间内对搜索不可见，
		// 但写入吞吐高，适合 Kafka 消费这类持续写入场景。
		Refresh: "false",
	}

	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行 Elasticsearch 索引请求时发生连接或客户端错误",
			zap.Int64("model_id", record.ID),
			zap.Error(err),
		)
		return fmt.Errorf("Elasticsearch 索引请求 (ID: %d) 失败: %w", record.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return repo.logAndWrapESError(res, "索引机型", docID)
	}

	repo.logger.Info("成功发送索引/更新请求到 Elasticsearch",
		zap.Int64("model_id", record.ID),
		zap.String("es_status", res.Status()),
	)

	var resultDetails map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&resultDetails); err == nil {
		if esResult, ok := resultDetails["result"].(string); ok {
			repo.logger.Debug("Elasticsearch 索引/更新操作的详细结果",
				zap.Int64("model_id", record.ID),
				zap.String("es_operation_result", esResult), // "created", "updated", "noop"
			)
		}
	}
	return nil
}

// DeleteModel 根据记录 ID 从 Elasticsearch 中删除一条机型记录。
// 此操作是幂等的：目标文档本就不存在 (404) 时视为成功，
// 因为"文档不存在"这个目标状态已经达成。
func (repo *ESCatalogRepository) DeleteModel(ctx context.Context, modelID int64) error {
	docID := strconv.FormatInt(modelID, 10)
	repo.logger.Info("准备从 Elasticsearch 删除文档", zap.String("document_id", docID))

	req := esapi.DeleteRequest{
		Index:      repo.indexName,
		DocumentID: docID,
		Refresh:    "false",
	}

	res, err := req.Do(ctx, repo.client)
	if err != nil {
		repo.logger.Error("执行 Elasticsearch 删除请求时发生连接或客户端错误",
			zap.Int64("model_id", modelID),
			zap.Error(err),
		)
		return fmt.Errorf("Elasticsearch 删除请求 (ID: %d) 失败: %w", modelID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		repo.logger.Warn("尝试删除的文档在 Elasticsearch 中未找到，视为操作成功 (幂等性)",
			zap.Int64("model_id", modelID),
			zap.String("es_status", res.Status()),
		)
		return nil
	}

	if res.IsError() {
		return repo.logAndWrapESError(res, "删除机型", docID)
	}

	repo.logger.Info("成功发送删除请求到 Elasticsearch",
		zap.Int64("model_id", modelID),
		zap.String("es_status", res.Status()),
	)
	return nil
}
