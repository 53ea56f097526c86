package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Xushengqwer/go-common/core"

	"github.com/Xushengqwer/model_search/internal/brand"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/Xushengqwer/model_search/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 分页默认值。页码或每页数量缺失、非法时回退到这里，不报错。
const (
	defaultPage  = 1
	defaultLimit = 100
)

// ErrRefreshUnsupported 表示当前存储后端不支持强制刷新
// （Elasticsearch 部署下索引由采集链路维护，服务侧不提供整体重载）。
var ErrRefreshUnsupported = errors.New("当前存储后端不支持强制刷新")

// SearchService 封装了机型搜索的业务逻辑：查询分词与同义词扩展、
// 三档回退状态机、聚合面规则与统计操作。
// 它作为 API 处理层和存储层 (CatalogStore) 之间的中介。
type SearchService struct {
	catalog repositories.CatalogStore // 存储后端，Elasticsearch 或内存快照。
	logger  *core.ZapLogger           // ZapLogger 实例，用于结构化日志记录。
}

// NewSearchService 创建 SearchService 的一个新实例。
// 关键依赖缺失时 panic/Fatal，快速失败。
func NewSearchService(catalog repositories.CatalogStore, logger *core.ZapLogger) *SearchService {
	if logger == nil {
		panic("创建 SearchService 失败：Logger 实例不能为 nil。")
	}
	if catalog == nil {
		logger.Fatal("创建 SearchService 失败：CatalogStore 实例不能为 nil。服务将无法执行任何搜索操作。")
	}

	logger.Info("SearchService 初始化成功。")
	return &SearchService{
		catalog: catalog,
		logger:  logger,
	}
}

// tierResult 汇总一档检索的四路结果。
type tierResult struct {
	records  []models.MobileModelRecord
	total    int64
	dtypes   []models.DTypeFacet
	verNames []models.VerNameFacet
}

// normalizePaging 把分页参数规范到合法范围。
func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

// expandToken 计算一个词元的同义词扩展集，并补充各同义词的小写形式，
// 使大小写差异不影响 keyword 字段上的精确前缀匹配。
func expandToken(token string) []string {
	keywords := brand.RelatedKeywords(token)
	out := make([]string, 0, len(keywords)*2)
	seen := make(map[string]struct{}, len(keywords)*2)
	for _, kw := range keywords {
		if _, ok := seen[kw]; !ok {
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
		lower := strings.ToLower(kw)
		if _, ok := seen[lower]; !ok {
			seen[lower] = struct{}{}
			out = append(out, lower)
		}
	}
	return out
}

// buildCatalogQuery 把一条请求与给定的查询文本编译为存储层查询。
func buildCatalogQuery(req models.SearchRequest, searchQ string, page, limit int) repositories.CatalogQuery {
	query := repositories.CatalogQuery{
		Exact:   make(map[string]string, 5),
		DType:   strings.TrimSpace(req.DType),
		VerName: strings.TrimSpace(req.VerName),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}
	for field, value := range map[string]string{
		"model":      req.Model,
		"brand":      req.Brand,
		"code":       req.Code,
		"code_alias": req.CodeAlias,
		"model_name": req.ModelName,
	} {
		if v := strings.TrimSpace(value); v != "" {
			query.Exact[field] = v
		}
	}
	for _, token := range brand.Segment(searchQ) {
		query.Tokens = append(query.Tokens, expandToken(token))
	}
	return query
}

// runTier 执行一档检索：分页、计数与两个聚合并发发出，任一失败整档失败。
func (s *SearchService) runTier(ctx context.Context, req models.SearchRequest, searchQ string, page, limit int) (*tierResult, error) {
	query := buildCatalogQuery(req, searchQ, page, limit)

	var result tierResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.catalog.SearchModels(gctx, query)
		if err == nil {
			result.records = records
		}
		return err
	})
	g.Go(func() error {
		total, err := s.catalog.CountModels(gctx, query)
		if err == nil {
			result.total = total
		}
		return err
	})
	g.Go(func() error {
		dtypes, err := s.catalog.AggregateDTypes(gctx, query)
		if err == nil {
			result.dtypes = dtypes
		}
		return err
	})
	g.Go(func() error {
		verNames, err := s.catalog.AggregateVerNames(gctx, query)
		if err == nil {
			result.verNames = verNames
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("执行目录检索失败: %w", err)
	}
	return &result, nil
}

// Search 执行一次机型搜索，必要时依次尝试两档回退：
//  1. 首轮按分词 + 同义词扩展检索；
//  2. 无结果且查询非空时，把中文品牌名替换为英文编码重试；
//  3. 仍无结果且查询含多个词时，仅用识别出的品牌词重试。
//
// 任何一档出结果即停止，响应中的 usedQuery/fallbackType 标明实际生效的档位。
// 各档的聚合面都基于该档自己的查询重新计算。
func (s *SearchService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	page, limit := normalizePaging(req.Page, req.Limit)
	originalQ := req.Query
	q := strings.TrimSpace(req.Query)

	s.logger.Info("正在处理机型搜索请求",
		zap.String("搜索关键词", q),
		zap.Int("请求页码", page),
		zap.Int("每页数量", limit),
	)

	result, err := s.runTier(ctx, req, q, page, limit)
	if err != nil {
		s.logger.Error("首轮目录检索失败", zap.String("查询", q), zap.Error(err))
		return nil, err
	}
	usedQuery := q
	fallbackType := ""

	if result.total == 0 && q != "" {
		// 第一档回退：中文品牌名 -> 英文品牌编码。
		currentQ := q
		if translated, changed := brand.ReplaceChineseNames(q); changed {
			s.logger.Info("首轮无结果，尝试品牌译名回退",
				zap.String("原查询", q),
				zap.String("替换后查询", translated),
			)
			translatedResult, err := s.runTier(ctx, req, translated, page, limit)
			if err != nil {
				return nil, err
			}
			currentQ = translated
			if translatedResult.total > 0 {
				result = translatedResult
				usedQuery = translated
				fallbackType = models.FallbackTranslatedBrand
			}
		}

		// 第二档回退：仅用品牌词检索。单词查询不触发，避免把
		// "xiaomi999999" 这类未命中的整词硬降为全品牌浏览。
		if result.total == 0 {
			keywords := strings.Fields(currentQ)
			if brandKw, ok := brand.Keyword(keywords); ok && len(keywords) > 1 {
				s.logger.Info("品牌译名回退仍无结果，尝试纯品牌词回退",
					zap.String("品牌词", brandKw),
				)
				brandResult, err := s.runTier(ctx, req, brandKw, page, limit)
				if err != nil {
					return nil, err
				}
				if brandResult.total > 0 {
					result = brandResult
					usedQuery = brandKw
					fallbackType = models.FallbackBrand
				}
			}
		}
	}

	searchResult := &models.SearchResult{
		Success:       true,
		Page:          page,
		Limit:         limit,
		Total:         result.total,
		DTypes:        result.dtypes,
		VerNames:      result.verNames,
		Results:       result.records,
		OriginalQuery: originalQ,
		UsedQuery:     usedQuery,
		FallbackType:  fallbackType,
	}
	if searchResult.DTypes == nil {
		searchResult.DTypes = []models.DTypeFacet{}
	}
	if searchResult.VerNames == nil {
		searchResult.VerNames = []models.VerNameFacet{}
	}
	if searchResult.Results == nil {
		searchResult.Results = []models.MobileModelRecord{}
	}

	s.logger.Info("机型搜索成功完成",
		zap.Int64("总命中数", searchResult.Total),
		zap.Int("返回结果数", len(searchResult.Results)),
		zap.String("实际查询", usedQuery),
		zap.String("回退档位", fallbackType),
	)
	return searchResult, nil
}

// BrandStats 返回全量目录按品牌的记录数统计（分页）。
func (s *SearchService) BrandStats(ctx context.Context, page, limit int) (*models.BrandStatsResult, error) {
	page, limit = normalizePaging(page, limit)
	stats, total, err := s.catalog.BrandStats(ctx, page, limit)
	if err != nil {
		s.logger.Error("获取品牌统计失败", zap.Error(err))
		return nil, fmt.Errorf("获取品牌统计失败: %w", err)
	}
	if stats == nil {
		stats = []models.BrandStat{}
	}
	return &models.BrandStatsResult{
		Success: true,
		Page:    page,
		Limit:   limit,
		Total:   total,
		Results: stats,
	}, nil
}

// DTypeStats 返回全量目录的设备形态分布。
func (s *SearchService) DTypeStats(ctx context.Context) (*models.DTypeStatsResult, error) {
	stats, err := s.catalog.DTypeStats(ctx)
	if err != nil {
		s.logger.Error("获取设备形态统计失败", zap.Error(err))
		return nil, fmt.Errorf("获取设备形态统计失败: %w", err)
	}
	if stats == nil {
		stats = []models.DTypeFacet{}
	}
	return &models.DTypeStatsResult{Success: true, Results: stats}, nil
}

// VerNameStats 返回全量目录的版本名分布。
func (s *SearchService) VerNameStats(ctx context.Context) (*models.VerNameStatsResult, error) {
	stats, err := s.catalog.VerNameStats(ctx)
	if err != nil {
		s.logger.Error("获取版本名统计失败", zap.Error(err))
		return nil, fmt.Errorf("获取版本名统计失败: %w", err)
	}
	if stats == nil {
		stats = []models.VerNameFacet{}
	}
	return &models.VerNameStatsResult{Success: true, Results: stats}, nil
}

// RefreshCatalog 在存储后端支持时强制重载目录数据。
// Elasticsearch 后端返回 ErrRefreshUnsupported。
func (s *SearchService) RefreshCatalog(ctx context.Context) error {
	refresher, ok := s.catalog.(repositories.RefreshableStore)
	if !ok {
		s.logger.Warn("收到强制刷新请求，但当前存储后端不支持")
		return ErrRefreshUnsupported
	}
	s.logger.Info("正在强制重载目录数据")
	if err := refresher.Refresh(ctx); err != nil {
		s.logger.Error("强制重载目录数据失败", zap.Error(err))
		return fmt.Errorf("强制重载目录数据失败: %w", err)
	}
	s.logger.Info("目录数据强制重载完成")
	return nil
}
