package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sui-invariant-monitor/internal/analysis"
	"sui-invariant-monitor/internal/model"
	"sui-invariant-monitor/internal/state"
	"sui-invariant-monitor/internal/sui"
	"sui-invariant-monitor/internal/version"
)

// Analyzer is the LLM suggestion path used by the analyze and metadata
// routes.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) analysis.Response
	Metadata(ctx context.Context, network, packageID, module string) (sui.ModuleMetadata, error)
}

type Handlers struct {
	logger    *slog.Logger
	store     *state.Store
	engine    *state.GuardedEngine
	analyzer  Analyzer
	metrics   http.Handler
	version   func() version.Info
	trigger   func()
	monitorID string

	writeTimeout time.Duration
	now          func() time.Time
}

func NewHandlers(logger *slog.Logger, store *state.Store, engine *state.GuardedEngine, monitorID string) *Handlers {
	return &Handlers{
		logger:       logger,
		store:        store,
		engine:       engine,
		monitorID:    monitorID,
		trigger:      func() {},
		writeTimeout: 5 * time.Second,
		now:          time.Now,
	}
}

func (h *Handlers) WithAnalyzer(a Analyzer) *Handlers {
	h.analyzer = a
	return h
}

func (h *Handlers) WithMetrics(m http.Handler) *Handlers {
	h.metrics = m
	return h
}

func (h *Handlers) WithVersion(f func() version.Info) *Handlers {
	h.version = f
	return h
}

// WithTrigger sets the func called after a new object is added so the next
// cycle runs early.
func (h *Handlers) WithTrigger(f func()) *Handlers {
	if f != nil {
		h.trigger = f
	}
	return h
}

func (h *Handlers) WithWriteTimeout(d time.Duration) *Handlers {
	if d > 0 {
		h.writeTimeout = d
	}
	return h
}

type HealthResponse struct {
	Status     string `json:"status"`
	UptimeSecs uint64 `json:"uptime_secs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MonitorRequest struct {
	ObjectID string `json:"object_id" validate:"sui_object_id"`
	Network  string `json:"network,omitempty"`
}

type MonitorResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	ObjectID   string  `json:"object_id"`
	ObjectType *string `json:"object_type"`
}

type AddInvariantsRequest struct {
	Invariants []analysis.SuggestedInvariant `json:"invariants" binding:"required,min=1"`
	Source     string                        `json:"source,omitempty"`
}

type AddInvariantsResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	AddedCount int    `json:"added_count"`
}

type RemoveInvariantRequest struct {
	ID string `json:"id" binding:"required"`
}

type RemoveInvariantResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		UptimeSecs: uint64(h.store.Uptime(h.now()) / time.Second),
	})
}

func (h *Handlers) HandleMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

func (h *Handlers) HandleVersion(c *gin.Context) {
	if h.version == nil {
		c.JSON(http.StatusOK, version.Info{MonitorID: h.monitorID})
		return
	}
	c.JSON(http.StatusOK, h.version())
}

func (h *Handlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Status(h.now()))
}

func (h *Handlers) HandleListInvariants(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Results())
}

func (h *Handlers) HandleGetInvariant(c *gin.Context) {
	id := c.Param("id")
	r, ok := h.store.Result(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("invariant %s not found", id)})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) HandleSnapshot(c *gin.Context) {
	snap, ok := h.store.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no evaluation cycle has completed yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleAddMonitoredObject handles POST /api/monitor. Malformed ids and
// duplicates are answered with 200 and a message, as the dashboard expects.
func (h *Handlers) HandleAddMonitoredObject(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id := strings.TrimSpace(req.ObjectID)

	if err := requestValidate.Struct(req); err != nil {
		c.JSON(http.StatusOK, MonitorResponse{Success: false, Message: invalidObjectIDMessage, ObjectID: id})
		return
	}

	if !h.store.AddObject(id) {
		c.JSON(http.StatusOK, MonitorResponse{Success: true, Message: "Object is already being monitored.", ObjectID: id})
		return
	}

	h.logger.Info("monitored object added", "object_id", id)
	h.trigger()
	c.JSON(http.StatusOK, MonitorResponse{
		Success:  true,
		Message:  fmt.Sprintf("Added object %s to monitoring. Will evaluate on next cycle.", id),
		ObjectID: id,
	})
}

// HandleAddInvariants registers suggestions as advisory entries. Their
// pending results are listed straight away.
func (h *Handlers) HandleAddInvariants(c *gin.Context) {
	var req AddInvariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AddInvariantsResponse{Message: err.Error()})
		return
	}
	source := req.Source
	if source == "" {
		source = "llm"
	}

	var (
		added   int
		skipped []string
	)
	for _, s := range req.Invariants {
		adv := s.Advisory(source)
		if err := h.engine.Register(adv); err != nil {
			h.logger.Warn("advisory invariant rejected", "invariant_id", s.ID, "error", err)
			skipped = append(skipped, s.ID)
			continue
		}
		h.store.UpsertResult(adv.Evaluate(model.Snapshot{}, nil))
		added++
	}

	msg := fmt.Sprintf("Added %d invariant(s) to monitoring", added)
	if len(skipped) > 0 {
		msg += fmt.Sprintf("; skipped %d: %s", len(skipped), strings.Join(skipped, ", "))
	}
	c.JSON(http.StatusOK, AddInvariantsResponse{Success: added > 0, Message: msg, AddedCount: added})
}

func (h *Handlers) HandleRemoveInvariant(c *gin.Context) {
	var req RemoveInvariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, RemoveInvariantResponse{Message: err.Error()})
		return
	}
	if !h.engine.Remove(req.ID) {
		c.JSON(http.StatusNotFound, RemoveInvariantResponse{Message: fmt.Sprintf("Invariant %s not found", req.ID)})
		return
	}
	h.store.RemoveResult(req.ID)
	h.logger.Info("invariant removed", "invariant_id", req.ID)
	c.JSON(http.StatusOK, RemoveInvariantResponse{Success: true, Message: fmt.Sprintf("Removed invariant %s", req.ID)})
}

func (h *Handlers) HandleAnalyze(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "analysis is not configured"})
		return
	}
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, analysis.Response{Message: err.Error()})
		return
	}
	provider, err := analysis.ParseProvider(string(req.Provider))
	if err != nil {
		c.JSON(http.StatusBadRequest, analysis.Response{Message: err.Error()})
		return
	}
	req.Provider = provider

	c.JSON(http.StatusOK, h.analyzer.Analyze(c.Request.Context(), req))
}

func (h *Handlers) HandleModuleMetadata(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "analysis is not configured"})
		return
	}
	md, err := h.analyzer.Metadata(c.Request.Context(), c.Query("network"), c.Param("package_id"), c.Param("module_name"))
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, md)
}
