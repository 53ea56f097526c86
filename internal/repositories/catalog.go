package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Xushengqwer/model_search/internal/models"
)

// ExactFilterFields 列出允许出现在 CatalogQuery.Exact 中的字段名。
// dtype 与 ver_name 不在其中：它们被单列，因为聚合面需要把二者排除在外。
var ExactFilterFields = []string{"model", "brand", "code", "code_alias", "model_name"}

// CatalogQuery 是存储后端无关的目录查询描述。
//
// Tokens 的外层是词元（彼此 AND），内层是该词元的同义词扩展（彼此 OR）。
// Exact 中的过滤与 DType、VerName 一样按字段值精确匹配；区别在于聚合方法
// 会把 DType 与 VerName 从匹配条件中剔除，而 Exact 始终生效。
type CatalogQuery struct {
	Tokens  [][]string
	Exact   map[string]string
	DType   string
	VerName string
	Limit   int
	Offset  int
}

// CatalogStore 定义了搜索服务对机型目录存储的全部读能力。
// 实现必须保证：
//   - SearchModels/CountModels 应用 Exact、DType、VerName 全部过滤；
//   - AggregateDTypes/AggregateVerNames 只应用 Tokens 与 Exact（聚合面基础集），
//     且 AggregateVerNames 额外排除 ver_name 为空的记录；
//   - 聚合结果按 count 降序、同数时按值升序排列；
//   - 相同查询的结果顺序确定。
type CatalogStore interface {
	SearchModels(ctx context.Context, query CatalogQuery) ([]models.MobileModelRecord, error)
	CountModels(ctx context.Context, query CatalogQuery) (int64, error)
	AggregateDTypes(ctx context.Context, query CatalogQuery) ([]models.DTypeFacet, error)
	AggregateVerNames(ctx context.Context, query CatalogQuery) ([]models.VerNameFacet, error)

	// BrandStats 返回全量目录按品牌的记录数统计（分页），以及品牌总数。
	BrandStats(ctx context.Context, page, limit int) ([]models.BrandStat, int64, error)
	// DTypeStats 返回全量目录的设备形态分布。
	DTypeStats(ctx context.Context) ([]models.DTypeFacet, error)
	// VerNameStats 返回全量目录的版本名分布（不含空版本名）。
	VerNameStats(ctx context.Context) ([]models.VerNameFacet, error)
}

// CatalogIndexer 定义了目录事件消费链路需要的写能力。
// 只有 Elasticsearch 后端实现它；内存快照后端是只读的。
type CatalogIndexer interface {
	IndexModel(ctx context.Context, record models.MobileModelRecord) error
	DeleteModel(ctx context.Context, modelID int64) error
}

// RefreshableStore 由支持整体重载数据的后端实现（内存快照后端）。
type RefreshableStore interface {
	Refresh(ctx context.Context) error
}

// StoreError 统一包装存储后端的失败，调用方据此与业务校验错误区分开。
type StoreError struct {
	Op  string // 失败的存储操作名
	Err error  // 底层错误
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("目录存储操作 '%s' 失败: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func newStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError 判断错误链上是否存在 StoreError。
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
