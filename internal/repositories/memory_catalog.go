package repositories

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SnapshotSource 抽象内存后端的数据来源，便于测试注入固定快照。
// 生产实现是 *SnapshotLoader。
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// 相关性权重。命中高权重字段的记录排在前面，与前端本地检索的权重保持一致。
var scoreWeights = []struct {
	field  string
	weight int
}{
	{"model_name", 10},
	{"market_name", 5},
	{"model", 5},
	{"code", 2},
	{"code_alias", 2},
	{"brand_title", 1},
}

// MemoryCatalog 是 CatalogStore 的内存快照实现：启动时（或首次查询时）
// 通过 SnapshotSource 拉取全量目录，之后所有查询在内存中完成。
// 适合无外部存储依赖的小规模部署；不支持增量写入。
type MemoryCatalog struct {
	source SnapshotSource
	logger *core.ZapLogger
}

// NewMemoryCatalog 创建内存快照后端。
func NewMemoryCatalog(source SnapshotSource, logger *core.ZapLogger) *MemoryCatalog {
	if logger == nil {
		panic("创建 MemoryCatalog 失败：Logger 实例不能为 nil")
	}
	if source == nil {
		logger.Fatal("创建 MemoryCatalog 失败：SnapshotSource 不能为 nil。内存后端没有数据来源无法工作。")
	}
	return &MemoryCatalog{source: source, logger: logger}
}

// fieldValue 按精确过滤字段名取记录字段值。
func fieldValue(record *models.MobileModelRecord, field string) string {
	switch field {
	case "model":
		return record.Model
	case "brand":
		return record.Brand
	case "code":
		return record.Code
	case "code_alias":
		return record.CodeAlias
	case "model_name":
		return record.ModelName
	case "market_name":
		return record.MarketName
	case "brand_title":
		return record.BrandTitle
	default:
		return ""
	}
}

// tokenFields 返回词元匹配参与的字段值，与 ES 后端的 tokenSearchFields 对应。
func tokenFields(record *models.MobileModelRecord) [5]string {
	return [5]string{record.Model, record.ModelName, record.Code, record.CodeAlias, record.Brand}
}

func containsFold(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// tokenMatchesStrict 判断某个词元（任一同义词）是否子串命中记录的任一匹配字段。
func tokenMatchesStrict(record *models.MobileModelRecord, expansions []string) bool {
	fields := tokenFields(record)
	for _, keyword := range expansions {
		for _, value := range fields {
			if containsFold(value, keyword) {
				return true
			}
		}
	}
	return false
}

// tokenMatchesFuzzy 是宽松档的词元匹配：允许字符缺漏（子序列匹配），
// 用于承接拼写不完整的查询。
func tokenMatchesFuzzy(record *models.MobileModelRecord, expansions []string) bool {
	fields := tokenFields(record)
	for _, keyword := range expansions {
		for _, value := range fields {
			if value != "" && fuzzy.MatchNormalizedFold(keyword, value) {
				return true
			}
		}
	}
	return false
}

// scoreRecord 计算记录的相关性得分：每个权重字段只要被任一词元的
// 任一同义词命中，就累加该字段权重一次。
func scoreRecord(record *models.MobileModelRecord, tokens [][]string) int {
	score := 0
	for _, sw := range scoreWeights {
		value := fieldValue(record, sw.field)
		if value == "" {
			continue
		}
	match:
		for _, expansions := range tokens {
			for _, keyword := range expansions {
				if containsFold(value, keyword) {
					score += sw.weight
					break match
				}
			}
		}
	}
	return score
}

// matchBase 计算聚合面基础集：应用 Exact 过滤与全部词元，
// 忽略 DType 与 VerName。返回的顺序即最终结果顺序：
// 严格命中按得分降序（同分按 id 降序）在前，宽松命中按 id 降序补在后面。
func (m *MemoryCatalog) matchBase(ctx context.Context, query CatalogQuery) ([]models.MobileModelRecord, error) {
	snap, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, newStoreError("加载快照", err)
	}

	// 精确过滤先行，缩小词元匹配的范围。
	candidates := make([]models.MobileModelRecord, 0, len(snap.Records))
	for _, record := range snap.Records {
		ok := true
		for field, want := range query.Exact {
			if want == "" {
				continue
			}
			if !strings.EqualFold(fieldValue(&record, field), want) {
				ok = false
				break
			}
		}
		if ok {
			candidates = append(candidates, record)
		}
	}

	if len(query.Tokens) == 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].ID > candidates[j].ID
		})
		return candidates, nil
	}

	type scored struct {
		record models.MobileModelRecord
		score  int
	}
	strict := make([]scored, 0, 32)
	var rest []models.MobileModelRecord
	for _, record := range candidates {
		all := true
		for _, expansions := range query.Tokens {
			if !tokenMatchesStrict(&record, expansions) {
				all = false
				break
			}
		}
		if all {
			strict = append(strict, scored{record: record, score: scoreRecord(&record, query.Tokens)})
		} else {
			rest = append(rest, record)
		}
	}
	sort.SliceStable(strict, func(i, j int) bool {
		if strict[i].score != strict[j].score {
			return strict[i].score > strict[j].score
		}
		return strict[i].record.ID > strict[j].record.ID
	})

	// 宽松档只在严格档之外补漏，保持先严后宽的确定性顺序。
	var lenient []models.MobileModelRecord
	for _, record := range rest {
		all := true
		for _, expansions := range query.Tokens {
			if !tokenMatchesFuzzy(&record, expansions) {
				all = false
				break
			}
		}
		if all {
			lenient = append(lenient, record)
		}
	}
	sort.SliceStable(lenient, func(i, j int) bool {
		return lenient[i].ID > lenient[j].ID
	})

	merged := make([]models.MobileModelRecord, 0, len(strict)+len(lenient))
	for _, s := range strict {
		merged = append(merged, s.record)
	}
	merged = append(merged, lenient...)
	return merged, nil
}

// applyRefinements 在基础集上应用 dtype 与 ver_name 过滤，得到计数与分页用的结果集。
func applyRefinements(base []models.MobileModelRecord, query CatalogQuery) []models.MobileModelRecord {
	if query.DType == "" && query.VerName == "" {
		return base
	}
	out := make([]models.MobileModelRecord, 0, len(base))
	for _, record := range base {
		if query.DType != "" && record.DType != query.DType {
			continue
		}
		if query.VerName != "" && record.VerName != query.VerName {
			continue
		}
		out = append(out, record)
	}
	return out
}

// SearchModels 返回当前页的记录。
func (m *MemoryCatalog) SearchModels(ctx context.Context, query CatalogQuery) ([]models.MobileModelRecord, error) {
	base, err := m.matchBase(ctx, query)
	if err != nil {
		return nil, err
	}
	refined := applyRefinements(base, query)

	start := query.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(refined) {
		return []models.MobileModelRecord{}, nil
	}
	end := start + query.Limit
	if query.Limit <= 0 || end > len(refined) {
		end = len(refined)
	}
	page := make([]models.MobileModelRecord, end-start)
	copy(page, refined[start:end])
	return page, nil
}

// CountModels 返回应用全部过滤后的命中总数。
func (m *MemoryCatalog) CountModels(ctx context.Context, query CatalogQuery) (int64, error) {
	base, err := m.matchBase(ctx, query)
	if err != nil {
		return 0, err
	}
	return int64(len(applyRefinements(base, query))), nil
}

// sortFacetCounts 把计数 map 转为按 count 降序、同数按值升序的有序切片。
func sortFacetCounts(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// AggregateDTypes 统计基础集上的设备形态分布。
func (m *MemoryCatalog) AggregateDTypes(ctx context.Context, query CatalogQuery) ([]models.DTypeFacet, error) {
	base, err := m.matchBase(ctx, query)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, record := range base {
		if record.DType != "" {
			counts[record.DType]++
		}
	}
	facets := make([]models.DTypeFacet, 0, len(counts))
	for _, key := range sortFacetCounts(counts) {
		facets = append(facets, models.DTypeFacet{DType: key, Count: counts[key]})
	}
	return facets, nil
}

// AggregateVerNames 统计基础集上的版本名分布，空版本名不计入。
func (m *MemoryCatalog) AggregateVerNames(ctx context.Context, query CatalogQuery) ([]models.VerNameFacet, error) {
	base, err := m.matchBase(ctx, query)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, record := range base {
		if record.VerName != "" {
			counts[record.VerName]++
		}
	}
	facets := make([]models.VerNameFacet, 0, len(counts))
	for _, key := range sortFacetCounts(counts) {
		facets = append(facets, models.VerNameFacet{VerName: key, Count: counts[key]})
	}
	return facets, nil
}

// BrandStats 统计全量目录的品牌分布并分页。
func (m *MemoryCatalog) BrandStats(ctx context.Context, page, limit int) ([]models.BrandStat, int64, error) {
	snap, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, 0, newStoreError("品牌统计", err)
	}

	counts := make(map[string]int64)
	titles := make(map[string]string)
	for _, record := range snap.Records {
		if record.Brand == "" {
			continue
		}
		counts[record.Brand]++
		if _, ok := titles[record.Brand]; !ok && record.BrandTitle != "" {
			titles[record.Brand] = record.BrandTitle
		}
	}

	all := make([]models.BrandStat, 0, len(counts))
	for _, key := range sortFacetCounts(counts) {
		all = append(all, models.BrandStat{Brand: key, BrandTitle: titles[key], Count: counts[key]})
	}

	total := int64(len(all))
	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return []models.BrandStat{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// DTypeStats 返回全量目录的设备形态分布。
func (m *MemoryCatalog) DTypeStats(ctx context.Context) ([]models.DTypeFacet, error) {
	return m.AggregateDTypes(ctx, CatalogQuery{})
}

// VerNameStats 返回全量目录的版本名分布。
func (m *MemoryCatalog) VerNameStats(ctx context.Context) ([]models.VerNameFacet, error) {
	return m.AggregateVerNames(ctx, CatalogQuery{})
}

var errSourceNotRefreshable = errors.New("快照来源不支持强制刷新")

// Refresh 在数据来源支持时强制重载快照。
func (m *MemoryCatalog) Refresh(ctx context.Context) error {
	refresher, ok := m.source.(RefreshableStore)
	if !ok {
		m.logger.Warn("当前快照来源不支持强制刷新")
		return newStoreError("强制刷新", errSourceNotRefreshable)
	}
	return refresher.Refresh(ctx)
}
