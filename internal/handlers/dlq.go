package handlers

import (
	"context"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
)

type deadLetters interface {
	List(ctx context.Context, count int64) ([]redis.DLQEntry, error)
	Get(ctx context.Context, messageID string) (*redis.DLQEntry, error)
	Delete(ctx context.Context, messageID string) error
	Count(ctx context.Context) (int64, error)
	Retry(ctx context.Context, messageID string, jobQueue *redis.Streams, queueName string) error
}

// DLQHandler exposes reconcile and ERP jobs that exhausted their retries.
type DLQHandler struct {
	dlq      deadLetters
	streams  *redis.Streams
	jobQueue string
	logger   ectologger.Logger
}

func NewDLQHandler(dlq deadLetters, streams *redis.Streams, jobQueue string, logger ectologger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq:      dlq,
		streams:  streams,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

type DLQListResponse struct {
	Entries []redis.DLQEntry `json:"entries"`
	Count   int              `json:"count"`
	Total   int64            `json:"total"`
}

// List handles GET /api/v1/dlq?count=&job_type=&partner_bpnl=
func (h *DLQHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	count := int64(100)
	if parsed, err := strconv.ParseInt(c.QueryParam("count"), 10, 64); err == nil && parsed > 0 {
		count = parsed
	}

	entries, err := h.dlq.List(ctx, count)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list DLQ entries")
		return err
	}

	jobType, bpnl := c.QueryParam("job_type"), c.QueryParam("partner_bpnl")
	filtered := make([]redis.DLQEntry, 0, len(entries))
	for _, entry := range entries {
		if jobType != "" && entry.JobType != jobType {
			continue
		}
		if bpnl != "" && entry.PartnerBpnl != bpnl {
			continue
		}
		filtered = append(filtered, entry)
	}

	total, _ := h.dlq.Count(ctx)
	return SuccessResponse(c, DLQListResponse{
		Entries: filtered,
		Count:   len(filtered),
		Total:   total,
	})
}

// Get handles GET /api/v1/dlq/:id
func (h *DLQHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	messageID := c.Param("id")

	entry, err := h.dlq.Get(ctx, messageID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get DLQ entry")
		return err
	}
	if entry == nil {
		return repositories.NotFound("DLQ entry %s not found", messageID)
	}
	return SuccessResponse(c, entry)
}

// Retry handles POST /api/v1/dlq/:id/retry
func (h *DLQHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	messageID := c.Param("id")

	if err := h.dlq.Retry(ctx, messageID, h.streams, h.jobQueue); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to retry DLQ entry")
		return err
	}

	h.logger.WithContext(ctx).WithField("message_id", messageID).Info("Re-enqueued dead letter")
	return SuccessResponse(c, map[string]string{"status": "retried"})
}

// Delete handles DELETE /api/v1/dlq/:id
func (h *DLQHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.dlq.Delete(ctx, c.Param("id")); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to delete DLQ entry")
		return err
	}
	return NoContentResponse(c)
}

// Stats handles GET /api/v1/dlq/stats
func (h *DLQHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.dlq.Count(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get DLQ stats")
		return err
	}
	return SuccessResponse(c, map[string]int64{"total_entries": count})
}

func (h *DLQHandler) RegisterRoutes(g *echo.Group) {
	dlq := g.Group("/dlq")
	dlq.GET("", h.List)
	dlq.GET("/stats", h.Stats)
	dlq.GET("/:id", h.Get)
	dlq.POST("/:id/retry", h.Retry)
	dlq.DELETE("/:id", h.Delete)
}
