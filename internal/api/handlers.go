package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/internal/cache"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/Xushengqwer/model_search/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MetadataProvider 提供目录数据的元信息（最近更新时间）。
// 由快照加载器实现，两种存储后端下都可用。
type MetadataProvider interface {
	UpdateTime(ctx context.Context) (string, error)
}

// SearchHandler 封装机型搜索相关的 API 请求处理逻辑。
type SearchHandler struct {
	searchService *service.SearchService
	meta          MetadataProvider
	resultCache   *cache.ResultCache // 可为 nil，此时所有请求直接计算。
	logger        *core.ZapLogger
}

// NewSearchHandler 创建 SearchHandler 实例。
// resultCache 允许为 nil（未配置 Redis 的部署）。
func NewSearchHandler(searchSvc *service.SearchService, meta MetadataProvider, resultCache *cache.ResultCache, logger *core.ZapLogger) *SearchHandler {
	if logger == nil {
		panic("创建 SearchHandler 失败：Logger 实例不能为 nil")
	}
	if searchSvc == nil {
		logger.Fatal("NewSearchHandler: SearchService 不能为 nil")
	}
	if meta == nil {
		logger.Fatal("NewSearchHandler: MetadataProvider 不能为 nil")
	}

	return &SearchHandler{
		searchService: searchSvc,
		meta:          meta,
		resultCache:   resultCache,
		logger:        logger,
	}
}

// respondError 按统一契约返回失败响应。
func respondError(c *gin.Context, status int, message string, err error) {
	body := models.ErrorResponse{Error: message}
	if err != nil {
		body.Detail = err.Error()
	}
	c.JSON(status, body)
}

// parsePositiveInt 把查询参数解析为正整数，非法值回退默认值。
// 分页参数按契约永不报错，畸形输入一律当作默认值处理。
func parsePositiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// serveCached 通过结果缓存执行 compute 并把 JSON 负载写回响应。
func (h *SearchHandler) serveCached(c *gin.Context, failMessage string, compute func(ctx context.Context) ([]byte, error)) {
	payload, err := h.resultCache.Do(c.Request.Context(), cache.Key(c.Request), compute)
	if err != nil {
		h.logger.Error(failMessage, zap.Error(err))
		respondError(c, http.StatusInternalServerError, failMessage, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// SearchModels 处理机型搜索请求
// @Summary      搜索机型
// @Description  按关键词搜索机型目录，支持精确过滤、分页与聚合面；无结果时自动按品牌译名、纯品牌词两档回退。
// @Tags         Models
// @Produce      json
// @Param        q           query  string  false  "搜索关键词"
// @Param        page        query  int     false  "页码 (从1开始)" default(1) minimum(1)
// @Param        limit       query  int     false  "每页数量" default(100) minimum(1)
// @Param        dtype       query  string  false  "设备形态精确过滤"
// @Param        model       query  string  false  "型号精确过滤"
// @Param        brand       query  string  false  "品牌编码精确过滤"
// @Param        code        query  string  false  "代号精确过滤"
// @Param        code_alias  query  string  false  "代号别名精确过滤"
// @Param        model_name  query  string  false  "机型名称精确过滤"
// @Param        ver_name    query  string  false  "版本名精确过滤"
// @Success      200  {object}  models.SearchResult "搜索成功，返回结果、总数与聚合面。"
// @Failure      500  {object}  models.ErrorResponse "存储后端不可用或内部错误。"
// @Router       /api/v1/models/search [get]
func (h *SearchHandler) SearchModels(c *gin.Context) {
	req := models.SearchRequest{
		Query:     c.Query("q"),
		Page:      parsePositiveInt(c.DefaultQuery("page", "1"), 1),
		Limit:     parsePositiveInt(c.DefaultQuery("limit", "100"), 100),
		DType:     c.Query("dtype"),
		Model:     c.Query("model"),
		Brand:     c.Query("brand"),
		Code:      c.Query("code"),
		CodeAlias: c.Query("code_alias"),
		ModelName: c.Query("model_name"),
		VerName:   c.Query("ver_name"),
	}
	h.logger.Debug("解析后的搜索请求", zap.Any("request", req))

	h.serveCached(c, "搜索服务内部错误", func(ctx context.Context) ([]byte, error) {
		result, err := h.searchService.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// GetBrandStats 处理品牌统计请求
// @Summary      品牌统计
// @Description  返回全量目录按品牌的记录数统计，按数量降序。
// @Tags         Models
// @Produce      json
// @Param        page   query  int  false  "页码 (从1开始)" default(1) minimum(1)
// @Param        limit  query  int  false  "每页数量" default(100) minimum(1)
// @Success      200  {object}  models.BrandStatsResult
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/v1/models/brands [get]
func (h *SearchHandler) GetBrandStats(c *gin.Context) {
	page := parsePositiveInt(c.DefaultQuery("page", "1"), 1)
	limit := parsePositiveInt(c.DefaultQuery("limit", "100"), 100)

	// 统计数据只随目录更新变化，允许边缘与浏览器缓存一天。
	c.Header("Cache-Control", "public, max-age=86400")
	h.serveCached(c, "获取品牌统计失败", func(ctx context.Context) ([]byte, error) {
		result, err := h.searchService.BrandStats(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// GetDTypeStats 处理设备形态统计请求
// @Summary      设备形态统计
// @Description  返回全量目录的设备形态分布，按数量降序。
// @Tags         Models
// @Produce      json
// @Success      200  {object}  models.DTypeStatsResult
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/v1/models/dtypes [get]
func (h *SearchHandler) GetDTypeStats(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	h.serveCached(c, "获取设备形态统计失败", func(ctx context.Context) ([]byte, error) {
		result, err := h.searchService.DTypeStats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// GetVerNameStats 处理版本名统计请求
// @Summary      版本名统计
// @Description  返回全量目录的版本名分布（不含空版本名），按数量降序。
// @Tags         Models
// @Produce      json
// @Success      200  {object}  models.VerNameStatsResult
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/v1/models/ver_names [get]
func (h *SearchHandler) GetVerNameStats(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	h.serveCached(c, "获取版本名统计失败", func(ctx context.Context) ([]byte, error) {
		result, err := h.searchService.VerNameStats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// GetUpdateTime 处理目录更新时间请求
// @Summary      目录更新时间
// @Description  返回目录数据最近一次更新的时间文本 (text/plain)。
// @Tags         Models
// @Produce      plain
// @Success      200  {string}  string "更新时间文本"
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/v1/models/update_time [get]
func (h *SearchHandler) GetUpdateTime(c *gin.Context) {
	text, err := h.meta.UpdateTime(c.Request.Context())
	if err != nil {
		h.logger.Error("获取目录更新时间失败", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "获取目录更新时间失败", err)
		return
	}
	// 更新时间变化频繁度远低于一分钟，短缓存即可挡掉重复请求。
	c.Header("Cache-Control", "public, max-age=60")
	c.String(http.StatusOK, text)
}

// RefreshCatalog 处理强制刷新请求
// @Summary      强制刷新目录
// @Description  丢弃当前快照并绕过本地缓存回源重载（仅内存后端支持）。
// @Tags         Models
// @Produce      json
// @Success      200  {object}  models.RefreshResult
// @Failure      500  {object}  models.ErrorResponse
// @Failure      501  {object}  models.ErrorResponse "当前存储后端不支持强制刷新。"
// @Router       /api/v1/models/refresh [post]
func (h *SearchHandler) RefreshCatalog(c *gin.Context) {
	if err := h.searchService.RefreshCatalog(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrRefreshUnsupported) {
			respondError(c, http.StatusNotImplemented, "当前存储后端不支持强制刷新", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "强制刷新目录失败", err)
		return
	}
	c.JSON(http.StatusOK, models.RefreshResult{Success: true})
}

// HealthCheck 健康检查处理函数
func (h *SearchHandler) HealthCheck(c *gin.Context) {
	h.logger.Debug("执行存活度健康检查")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes 将机型搜索相关的路由注册到提供的 Gin 路由组 (RouterGroup) 上。
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	h.logger.Info("开始注册 SearchHandler 的路由...")

	modelsGroup := rg.Group("/models")
	modelsGroup.GET("/search", h.SearchModels)
	modelsGroup.GET("/brands", h.GetBrandStats)
	modelsGroup.GET("/dtypes", h.GetDTypeStats)
	modelsGroup.GET("/ver_names", h.GetVerNameStats)
	modelsGroup.GET("/update_time", h.GetUpdateTime)
	modelsGroup.POST("/refresh", h.RefreshCatalog)
	modelsGroup.GET("/_health", h.HealthCheck)

	h.logger.Info("SearchHandler 的所有路由已注册完成。")
}
