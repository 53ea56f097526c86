package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// tokenSearchFields 是词元匹配参与的字段集合。
// 词元在这些字段上做前缀短语匹配，任一字段命中即视为该词元命中。
var tokenSearchFields = []string{"model", "model_name", "code", "code_alias", "brand"}

// exactFieldPaths 把精确过滤字段名映射到索引中用于 term 匹配的字段路径。
// 文本字段走 .keyword 子字段，keyword 字段直接使用。
var exactFieldPaths = map[string]string{
	"model":      "model.keyword",
	"brand":      "brand",
	"code":       "code.keyword",
	"code_alias": "code_alias.keyword",
	"model_name": "model_name.keyword",
}

// boolQueryOpts 控制一次 bool 查询包含哪些维度的过滤。
// 聚合面基础集要求剔除 dtype 与 ver_name 的过滤，count/分页则全部包含。
type boolQueryOpts struct {
	includeDType   bool
	includeVerName bool
	// requireVerName 额外要求 ver_name 存在且非空（版本名聚合专用）。
	requireVerName bool
}

func termClause(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{field: value},
	}
}

// buildBoolQuery 将 CatalogQuery 编译为 ES 查询子句。
//   - 每个词元编译为一个 should-of-phrase_prefix 块（同义词之间 OR），
//     词元块之间通过 must 组合（AND）；
//   - 精确过滤编译为 filter 上下文的 term 子句，不参与评分。
//
// 没有任何条件时退化为 match_all。
func buildBoolQuery(query CatalogQuery, opts boolQueryOpts) map[string]interface{} {
	var must []map[string]interface{}
	for _, expansions := range query.Tokens {
		if len(expansions) == 0 {
			continue
		}
		should := make([]map[string]interface{}, 0, len(expansions))
		for _, keyword := range expansions {
			should = append(should, map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  keyword,
					"type":   "phrase_prefix",
					"fields": tokenSearchFields,
				},
			})
		}
		must = append(must, map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		})
	}

	var filter []map[string]interface{}
	// 按 ExactFilterFields 的固定顺序编译，保证同一查询生成的 DSL 字节级稳定。
	for _, field := range ExactFilterFields {
		if value, ok := query.Exact[field]; ok && value != "" {
			filter = append(filter, termClause(exactFieldPaths[field], value))
		}
	}
	if opts.includeDType && query.DType != "" {
		filter = append(filter, termClause("dtype", query.DType))
	}
	if opts.includeVerName && query.VerName != "" {
		filter = append(filter, termClause("ver_name", query.VerName))
	}

	var mustNot []map[string]interface{}
	if opts.requireVerName {
		filter = append(filter, map[string]interface{}{
			"exists": map[string]interface{}{"field": "ver_name"},
		})
		mustNot = append(mustNot, termClause("ver_name", ""))
	}

	boolBody := map[string]interface{}{}
	if len(must) > 0 {
		boolBody["must"] = must
	}
	if len(filter) > 0 {
		boolBody["filter"] = filter
	}
	if len(mustNot) > 0 {
		boolBody["must_not"] = mustNot
	}
	if len(boolBody) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{"bool": boolBody}
}

// buildModelSearchBody 构建分页查询体：全部过滤 + 按 id 降序的确定性排序。
func buildModelSearchBody(query CatalogQuery) (*bytes.Buffer, error) {
	from := query.Offset
	if from < 0 {
		from = 0
	}
	body := map[string]interface{}{
		"query": buildBoolQuery(query, boolQueryOpts{includeDType: true, includeVerName: true}),
		"from":  from,
		"size":  query.Limit,
		"sort": []map[string]interface{}{
			{"id": map[string]interface{}{"order": "desc"}},
		},
		"track_total_hits": true,
	}
	return encodeBody(body, "搜索")
}

// buildModelCountBody 构建计数查询体，与分页查询应用完全相同的过滤。
func buildModelCountBody(query CatalogQuery) (*bytes.Buffer, error) {
	body := map[string]interface{}{
		"query": buildBoolQuery(query, boolQueryOpts{includeDType: true, includeVerName: true}),
	}
	return encodeBody(body, "计数")
}

// buildDTypeAggBody 构建设备形态聚合体。
// 基础集剔除 dtype 与 ver_name 过滤；桶按数量降序、同数按值升序。
func buildDTypeAggBody(query CatalogQuery) (*bytes.Buffer, error) {
	body := map[string]interface{}{
		"size":  0,
		"query": buildBoolQuery(query, boolQueryOpts{}),
		"aggs": map[string]interface{}{
			"dtypes": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "dtype",
					"size":  50,
					"order": []map[string]string{
						{"_count": "desc"},
						{"_key": "asc"},
					},
				},
			},
		},
	}
	return encodeBody(body, "设备形态聚合")
}

// buildVerNameAggBody 构建版本名聚合体。
// 与设备形态聚合共用同一基础集，并额外排除空版本名。
func buildVerNameAggBody(query CatalogQuery) (*bytes.Buffer, error) {
	body := map[string]interface{}{
		"size":  0,
		"query": buildBoolQuery(query, boolQueryOpts{requireVerName: true}),
		"aggs": map[string]interface{}{
			"ver_names": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "ver_name",
					"size":  100,
					"order": []map[string]string{
						{"_count": "desc"},
						{"_key": "asc"},
					},
				},
			},
		},
	}
	return encodeBody(body, "版本名聚合")
}

// buildBrandStatsBody 构建全量目录的品牌统计聚合体。
// 品牌数量有限，一次取足；展示名通过子聚合取每个品牌桶中的首个 brand_title。
func buildBrandStatsBody() (*bytes.Buffer, error) {
	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"brands": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "brand",
					"size":  500,
					"order": []map[string]string{
						{"_count": "desc"},
						{"_key": "asc"},
					},
				},
				"aggs": map[string]interface{}{
					"brand_title": map[string]interface{}{
						"terms": map[string]interface{}{
							"field": "brand_title",
							"size":  1,
						},
					},
				},
			},
		},
	}
	return encodeBody(body, "品牌统计聚合")
}

func encodeBody(body map[string]interface{}, queryKind string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("序列化%s查询体失败: %w", queryKind, err)
	}
	return &buf, nil
}
