package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	commonconfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/Xushengqwer/model_search/internal/repositories"
)

func newTestLogger(t *testing.T) *core.ZapLogger {
	t.Helper()
	logger, err := core.NewZapLogger(commonconfig.ZapConfig{})
	if err != nil {
		t.Fatalf("初始化测试 Logger 失败: %v", err)
	}
	return logger
}

// fakeCatalog 是 CatalogStore 的内存假实现：词元按大小写不敏感的
// 子串匹配，精确过滤按字段值等值匹配，语义与真实后端保持一致。
type fakeCatalog struct {
	records []models.MobileModelRecord
}

func fakeFieldValue(r *models.MobileModelRecord, field string) string {
	switch field {
	case "model":
		return r.Model
	case "brand":
		return r.Brand
	case "code":
		return r.Code
	case "code_alias":
		return r.CodeAlias
	case "model_name":
		return r.ModelName
	default:
		return ""
	}
}

func tokenHit(r *models.MobileModelRecord, expansions []string) bool {
	fields := []string{r.Model, r.ModelName, r.Code, r.CodeAlias, r.Brand}
	for _, kw := range expansions {
		if kw == "" {
			continue
		}
		for _, v := range fields {
			if v != "" && strings.Contains(strings.ToLower(v), strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// matchBase 应用词元与 Exact 过滤（聚合面基础集）。
func (f *fakeCatalog) matchBase(query repositories.CatalogQuery) []models.MobileModelRecord {
	var out []models.MobileModelRecord
	for _, r := range f.records {
		ok := true
		for field, want := range query.Exact {
			if want != "" && !strings.EqualFold(fakeFieldValue(&r, field), want) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, expansions := range query.Tokens {
			if !tokenHit(&r, expansions) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeCatalog) matchAll(query repositories.CatalogQuery) []models.MobileModelRecord {
	base := f.matchBase(query)
	var out []models.MobileModelRecord
	for _, r := range base {
		if query.DType != "" && r.DType != query.DType {
			continue
		}
		if query.VerName != "" && r.VerName != query.VerName {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeCatalog) SearchModels(_ context.Context, query repositories.CatalogQuery) ([]models.MobileModelRecord, error) {
	matched := f.matchAll(query)
	start := query.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []models.MobileModelRecord{}, nil
	}
	end := start + query.Limit
	if query.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (f *fakeCatalog) CountModels(_ context.Context, query repositories.CatalogQuery) (int64, error) {
	return int64(len(f.matchAll(query))), nil
}

func (f *fakeCatalog) AggregateDTypes(_ context.Context, query repositories.CatalogQuery) ([]models.DTypeFacet, error) {
	counts := make(map[string]int64)
	for _, r := range f.matchBase(query) {
		if r.DType != "" {
			counts[r.DType]++
		}
	}
	var out []models.DTypeFacet
	for k, v := range counts {
		out = append(out, models.DTypeFacet{DType: k, Count: v})
	}
	return out, nil
}

func (f *fakeCatalog) AggregateVerNames(_ context.Context, query repositories.CatalogQuery) ([]models.VerNameFacet, error) {
	counts := make(map[string]int64)
	for _, r := range f.matchBase(query) {
		if r.VerName != "" {
			counts[r.VerName]++
		}
	}
	var out []models.VerNameFacet
	for k, v := range counts {
		out = append(out, models.VerNameFacet{VerName: k, Count: v})
	}
	return out, nil
}

func (f *fakeCatalog) BrandStats(_ context.Context, _, _ int) ([]models.BrandStat, int64, error) {
	counts := make(map[string]int64)
	for _, r := range f.records {
		if r.Brand != "" {
			counts[r.Brand]++
		}
	}
	var out []models.BrandStat
	for k, v := range counts {
		out = append(out, models.BrandStat{Brand: k, Count: v})
	}
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) DTypeStats(ctx context.Context) ([]models.DTypeFacet, error) {
	return f.AggregateDTypes(ctx, repositories.CatalogQuery{})
}

func (f *fakeCatalog) VerNameStats(ctx context.Context) ([]models.VerNameFacet, error) {
	return f.AggregateVerNames(ctx, repositories.CatalogQuery{})
}

func testRecords() []models.MobileModelRecord {
	return []models.MobileModelRecord{
		{ID: 1, Brand: "xiaomi", BrandTitle: "小米", Model: "2210132C", ModelName: "Xiaomi 13 Pro", Code: "nuwa", DType: "手机", VerName: "5G版"},
		{ID: 2, Brand: "xiaomi", BrandTitle: "小米", Model: "23046RP50C", ModelName: "xiaomi平板 6", Code: "pipa", DType: "平板"},
		{ID: 3, Brand: "huawei", BrandTitle: "华为", Model: "ALN-AL00", ModelName: "HUAWEI Mate 60 Pro", DType: "手机"},
		{ID: 4, Brand: "samsung", BrandTitle: "三星", Model: "SM-S9280", ModelName: "Galaxy S24 Ultra", DType: "手机"},
	}
}

func newTestService(t *testing.T) *SearchService {
	t.Helper()
	return NewSearchService(&fakeCatalog{records: testRecords()}, newTestLogger(t))
}

func TestSearchPrimaryHit(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "xiaomi"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, 期望 2", result.Total)
	}
	if result.FallbackType != "" {
		t.Errorf("首轮命中不应回退，实际 fallbackType = %q", result.FallbackType)
	}
	if result.UsedQuery != "xiaomi" || result.OriginalQuery != "xiaomi" {
		t.Errorf("usedQuery/originalQuery = %q/%q, 期望均为 xiaomi", result.UsedQuery, result.OriginalQuery)
	}
	if result.Page != 1 || result.Limit != 100 {
		t.Errorf("分页默认值 = (%d, %d), 期望 (1, 100)", result.Page, result.Limit)
	}
}

func TestSearchTranslatedBrandFallback(t *testing.T) {
	svc := newTestService(t)

	// "小米平板" 整词不命中任何字段；品牌译名替换后切分为 xiaomi + 平板，
	// 命中 model_name 为 "xiaomi平板 6" 的记录。
	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "小米平板"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.FallbackType != models.FallbackTranslatedBrand {
		t.Fatalf("fallbackType = %q, 期望 %q", result.FallbackType, models.FallbackTranslatedBrand)
	}
	if result.UsedQuery != "xiaomi平板" {
		t.Errorf("usedQuery = %q, 期望 xiaomi平板", result.UsedQuery)
	}
	if result.OriginalQuery != "小米平板" {
		t.Errorf("originalQuery = %q, 期望保留原始输入", result.OriginalQuery)
	}
	if result.Total != 1 || len(result.Results) != 1 || result.Results[0].ID != 2 {
		t.Errorf("期望恰好命中 ID=2 的记录，实际 total=%d results=%v", result.Total, result.Results)
	}
}

func TestSearchBrandFallback(t *testing.T) {
	svc := newTestService(t)

	// "小米 999999" 两档检索都无结果，最终降级为纯品牌词 xiaomi。
	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "小米 999999"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.FallbackType != models.FallbackBrand {
		t.Fatalf("fallbackType = %q, 期望 %q", result.FallbackType, models.FallbackBrand)
	}
	if result.UsedQuery != "xiaomi" {
		t.Errorf("usedQuery = %q, 期望 xiaomi", result.UsedQuery)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, 期望 2", result.Total)
	}
}

func TestSearchBrandFallbackWithNickname(t *testing.T) {
	svc := newTestService(t)

	// "galaxy" 不是品牌编码，但其同义词扩展包含 samsung，
	// 因此多词查询无结果时同样能触发纯品牌词回退。
	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "galaxy 999999"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.FallbackType != models.FallbackBrand {
		t.Fatalf("fallbackType = %q, 期望 %q", result.FallbackType, models.FallbackBrand)
	}
	if result.UsedQuery != "galaxy" {
		t.Errorf("usedQuery = %q, 期望 galaxy", result.UsedQuery)
	}
	if result.Total != 1 || len(result.Results) != 1 || result.Results[0].ID != 4 {
		t.Errorf("期望命中 ID=4 的记录，实际 total=%d results=%v", result.Total, result.Results)
	}
}

func TestSearchSingleTokenNoBrandFallback(t *testing.T) {
	svc := newTestService(t)

	// 单个空白词元的查询不触发纯品牌词回退，避免把未命中的
	// 整词硬降为全品牌浏览。
	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "xiaomi999999"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, 期望 0", result.Total)
	}
	if result.FallbackType != "" {
		t.Errorf("fallbackType = %q, 期望空", result.FallbackType)
	}
	if result.Results == nil || result.DTypes == nil || result.VerNames == nil {
		t.Error("空结果的切片字段应为空切片而非 nil")
	}
}

func TestSearchEmptyQueryBrowsing(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "  ", Brand: "huawei"})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.Total != 1 || len(result.Results) != 1 || result.Results[0].ID != 3 {
		t.Errorf("期望按品牌过滤命中 ID=3，实际 total=%d results=%v", result.Total, result.Results)
	}
	if result.FallbackType != "" {
		t.Errorf("空查询不应触发回退，实际 fallbackType = %q", result.FallbackType)
	}
}

func TestSearchPagingDefaults(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Search(context.Background(), models.SearchRequest{Query: "xiaomi", Page: 0, Limit: -5})
	if err != nil {
		t.Fatalf("Search 返回错误: %v", err)
	}
	if result.Page != 1 || result.Limit != 100 {
		t.Errorf("非法分页参数应回退默认值，实际 (%d, %d)", result.Page, result.Limit)
	}
}

func TestStatsWrappers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	brandStats, err := svc.BrandStats(ctx, 0, 0)
	if err != nil {
		t.Fatalf("BrandStats 返回错误: %v", err)
	}
	if !brandStats.Success || brandStats.Results == nil {
		t.Errorf("BrandStats 结果异常: %+v", brandStats)
	}

	dtypeStats, err := svc.DTypeStats(ctx)
	if err != nil {
		t.Fatalf("DTypeStats 返回错误: %v", err)
	}
	if !dtypeStats.Success || len(dtypeStats.Results) != 2 {
		t.Errorf("DTypeStats 结果异常: %+v", dtypeStats)
	}

	verNameStats, err := svc.VerNameStats(ctx)
	if err != nil {
		t.Fatalf("VerNameStats 返回错误: %v", err)
	}
	if !verNameStats.Success || len(verNameStats.Results) != 1 {
		t.Errorf("VerNameStats 结果异常（空版本名不应计入）: %+v", verNameStats)
	}
}

func TestRefreshCatalogUnsupported(t *testing.T) {
	svc := newTestService(t)

	err := svc.RefreshCatalog(context.Background())
	if !errors.Is(err, ErrRefreshUnsupported) {
		t.Errorf("不支持刷新的后端应返回 ErrRefreshUnsupported，实际 %v", err)
	}
}
