package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cdr-enrichment/internal/ingest"
	"cdr-enrichment/internal/reporting"
	"cdr-enrichment/internal/storage"
	"cdr-enrichment/pkg/logger"
)

// MaxBatchBytes bounds a single submitted payload.
const MaxBatchBytes = 10 << 20

// BatchHandler is the ingest entry point.
type BatchHandler interface {
	HandleBatch(ctx context.Context, payload string) ingest.Ack
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Ingest  BatchHandler
	Store   storage.Store
	Index   storage.SearchIndex
	Reports *reporting.Service
}

// Register mounts the CDR routes on g.
func (h Handlers) Register(g *gin.RouterGroup) {
	cdrs := g.Group("/cdrs")
	{
		cdrs.POST("/batch", h.SubmitBatch)
		cdrs.GET("", h.ListRecords)
		cdrs.GET("/:id", h.GetRecord)
	}
	g.GET("/index", h.ListIndex)
	g.GET("/reports/summary", h.Summary)
}

// --- Ingest ---

// SubmitBatch takes the raw CSV body. The response is the ack only; enrichment results are
// observable later through the read endpoints.
func (h Handlers) SubmitBatch(c *gin.Context) {
	if h.Ingest == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingest not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBatchBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ingest.Ack{Error: "Payload too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ingest.Ack{Error: "Unreadable body"})
		return
	}

	ack := h.Ingest.HandleBatch(c.Request.Context(), string(body))
	if !ack.OK {
		c.JSON(http.StatusBadRequest, ack)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// --- Records ---

func (h Handlers) GetRecord(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	rec, err := h.Store.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("find record failed", zap.String("record_id", c.Param("id")), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ListRecords(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	recs, err := h.Store.ListAll(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list records failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

func (h Handlers) ListIndex(c *gin.Context) {
	if h.Index == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "index not configured"})
		return
	}
	entries, err := h.Index.ListAll(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list index failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "index unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// --- Reporting ---

func (h Handlers) Summary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	req := reporting.SummaryRequest{Region: c.Query("region")}
	for param, dst := range map[string]*time.Time{"from": &req.Range.From, "to": &req.Range.To} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": param + " must be RFC3339"})
			return
		}
		*dst = t
	}

	out, err := h.Reports.Summary(c.Request.Context(), req)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("summary failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "index unavailable"})
		return
	}
	c.JSON(http.StatusOK, out)
}
