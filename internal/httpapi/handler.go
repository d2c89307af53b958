// Package httpapi exposes the service over HTTP with gin.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-harvest/internal/cache"
	"course-harvest/internal/domain"
	"course-harvest/internal/service"
)

type Handler struct {
	Svc *service.Service
	Log *zap.Logger
}

func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Svc: svc, Log: log}
}

// NewRouter builds the gin engine with recovery and request logging.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.Log))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scrape", h.scrape)      // POST /api/scrape
	rg.GET("/batches", h.listBatches) // GET /api/batches
	rg.GET("/batches/:n", h.getBatch) // GET /api/batches/:n
	rg.GET("/records", h.listRecords) // GET /api/records
}

func (h *Handler) scrape(c *gin.Context) {
	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		lo, hi := h.Svc.Registry.Range()
		c.JSON(http.StatusBadRequest, service.Response{
			Success: false,
			Error:   (&service.RequestError{Reason: "invalid JSON body", Min: lo, Max: hi}).Error(),
		})
		return
	}

	resp, err := h.Svc.Handle(c.Request.Context(), req)
	if err != nil {
		var rerr *service.RequestError
		if errors.As(err, &rerr) {
			c.JSON(http.StatusBadRequest, service.Response{Success: false, Error: rerr.Error()})
			return
		}
		h.Log.Error("httpapi: scrape failed", zap.Error(err))
		resp.Success = false
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listBatches(c *gin.Context) {
	batches := h.Svc.Registry.List()
	c.JSON(http.StatusOK, gin.H{
		"total": len(batches),
		"items": batches,
	})
}

func (h *Handler) getBatch(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch must be a number"})
		return
	}

	entry, err := h.Svc.Cached(c.Request.Context(), n)
	var rerr *service.RequestError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, entry)
	case errors.As(err, &rerr):
		c.JSON(http.StatusNotFound, gin.H{"error": rerr.Error()})
	case errors.Is(err, cache.ErrMiss):
		c.JSON(http.StatusNotFound, gin.H{"error": "no fresh data for batch " + strconv.Itoa(n)})
	default:
		h.Log.Error("httpapi: get batch failed", zap.Int("batch", n), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
	}
}

// listRecords serves the merged store, optionally filtered by region,
// category or provider and paged with limit/offset.
func (h *Handler) listRecords(c *gin.Context) {
	recs, err := h.Svc.Records(c.Request.Context())
	if err != nil {
		h.Log.Error("httpapi: list records failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	region := strings.TrimSpace(c.Query("region"))
	category := strings.TrimSpace(c.Query("category"))
	provider := strings.TrimSpace(c.Query("provider"))
	filtered := recs[:0:0]
	for _, r := range recs {
		if region != "" && !strings.EqualFold(r.Region, region) {
			continue
		}
		if category != "" && !strings.EqualFold(r.Category, category) {
			continue
		}
		if provider != "" && !strings.EqualFold(r.ProviderSlug, provider) {
			continue
		}
		filtered = append(filtered, r)
	}

	limit := parseInt(c.Query("limit"), 100)
	offset := parseInt(c.Query("offset"), 0)
	c.JSON(http.StatusOK, gin.H{
		"total":  len(filtered),
		"limit":  limit,
		"offset": offset,
		"items":  page(filtered, offset, limit),
	})
}

func page(recs []domain.CanonicalRecord, offset, limit int) []domain.CanonicalRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return []domain.CanonicalRecord{}
	}
	end := len(recs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return recs[offset:end]
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("httpapi: request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
