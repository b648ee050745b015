package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
)

type reconciler interface {
	Reconcile(ctx context.Context, key models.SyncKey) error
}

type reconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, key models.SyncKey) error
}

type negotiations interface {
	Pending() []models.PendingNegotiation
}

type triggerLister interface {
	List(ctx context.Context) ([]models.ErpTriggerTuple, error)
}

type erpRequestLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.OutgoingErpRequest, error)
}

type erpScheduler interface {
	Enabled() bool
	SetEnabled(enabled bool)
	IsRunning() bool
	RunOnce(ctx context.Context) error
}

// AdminHandler exposes manual reconciliation and the state of the background machinery.
type AdminHandler struct {
	reconciler   reconciler
	jobs         reconcileEnqueuer
	negotiations negotiations
	triggers     triggerLister
	requests     erpRequestLister
	scheduler    erpScheduler
	logger       ectologger.Logger
}

func NewAdminHandler(
	reconciler reconciler,
	jobs reconcileEnqueuer,
	negotiations negotiations,
	triggers triggerLister,
	requests erpRequestLister,
	scheduler erpScheduler,
	logger ectologger.Logger,
) *AdminHandler {
	return &AdminHandler{
		reconciler:   reconciler,
		jobs:         jobs,
		negotiations: negotiations,
		triggers:     triggers,
		requests:     requests,
		scheduler:    scheduler,
		logger:       logger,
	}
}

type ReconcileRequest struct {
	OwnMaterialNumber string    `json:"own_material_number" validate:"required,novws"`
	PartnerID         uuid.UUID `json:"partner_id" validate:"required"`
	AssetType         string    `json:"asset_type" validate:"required"`
	Direction         string    `json:"direction" validate:"required"`
	// Async queues the key instead of reconciling within the request.
	Async bool `json:"async"`
}

type SchedulerState struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

type SchedulerUpdate struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *AdminHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/reconcile", h.Reconcile)
	g.GET("/negotiations", h.Negotiations)

	erp := g.Group("/erp")
	erp.GET("/triggers", h.Triggers)
	erp.GET("/requests", h.Requests)
	erp.GET("/scheduler", h.Scheduler)
	erp.PUT("/scheduler", h.UpdateScheduler)
	erp.POST("/scheduler/run", h.RunScheduler)
}

// Reconcile handles POST /api/v1/reconcile
func (h *AdminHandler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReconcileRequest
	if err := Bind(c, &req); err != nil {
		return err
	}
	assetType, err := ParseAssetType(req.AssetType)
	if err != nil {
		return err
	}
	direction, err := ParseDirection(req.Direction)
	if err != nil {
		return err
	}

	key := models.SyncKey{
		MaterialNumber: req.OwnMaterialNumber,
		PartnerID:      req.PartnerID,
		AssetType:      assetType,
		Direction:      direction,
	}
	if err := key.Validate(); err != nil {
		return BadRequest(err.Error())
	}

	logger := h.logger.WithContext(ctx).WithField("sync_key", key.String())
	if req.Async {
		if err := h.jobs.EnqueueReconcile(ctx, key); err != nil {
			return err
		}
		logger.Info("Queued manual reconciliation")
		return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	}

	if err := h.reconciler.Reconcile(ctx, key); err != nil {
		logger.WithError(err).Warn("Manual reconciliation failed")
		return err
	}
	return SuccessResponse(c, map[string]string{"status": "reconciled"})
}

// Negotiations handles GET /api/v1/negotiations
func (h *AdminHandler) Negotiations(c echo.Context) error {
	pending := h.negotiations.Pending()
	if pending == nil {
		pending = []models.PendingNegotiation{}
	}
	return SuccessResponse(c, pending)
}

// Triggers handles GET /api/v1/erp/triggers
func (h *AdminHandler) Triggers(c echo.Context) error {
	triggers, err := h.triggers.List(c.Request().Context())
	if err != nil {
		return err
	}
	if triggers == nil {
		triggers = []models.ErpTriggerTuple{}
	}
	return SuccessResponse(c, triggers)
}

// Requests handles GET /api/v1/erp/requests?limit=
func (h *AdminHandler) Requests(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return BadRequest("limit must be a positive integer")
		}
		limit = parsed
	}

	requests, err := h.requests.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if requests == nil {
		requests = []models.OutgoingErpRequest{}
	}
	return SuccessResponse(c, requests)
}

// Scheduler handles GET /api/v1/erp/scheduler
func (h *AdminHandler) Scheduler(c echo.Context) error {
	return SuccessResponse(c, SchedulerState{Enabled: h.scheduler.Enabled(), Running: h.scheduler.IsRunning()})
}

// UpdateScheduler handles PUT /api/v1/erp/scheduler
func (h *AdminHandler) UpdateScheduler(c echo.Context) error {
	var req SchedulerUpdate
	if err := Bind(c, &req); err != nil {
		return err
	}
	h.scheduler.SetEnabled(*req.Enabled)
	h.logger.WithContext(c.Request().Context()).WithField("enabled", *req.Enabled).Info("Changed ERP scheduler state")
	return h.Scheduler(c)
}

// RunScheduler handles POST /api/v1/erp/scheduler/run
func (h *AdminHandler) RunScheduler(c echo.Context) error {
	if err := h.scheduler.RunOnce(c.Request().Context()); err != nil {
		return err
	}
	return NoContentResponse(c)
}
