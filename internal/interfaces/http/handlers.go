package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cost-approval/internal/application/service"
	"github.com/garyjia/cost-approval/internal/application/workflow"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// userHeader carries the acting user's id
const userHeader = "X-User-ID"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errMissingActor = errors.New("missing or invalid " + userHeader + " header")

// Handlers contains all HTTP request handlers
type Handlers struct {
	orchestrator workflow.Orchestrator
	costTables   service.CostTableService
	users        service.UserService
	exporter     WorkflowExporter
	health       HealthReporter
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		orchestrator: deps.Orchestrator,
		costTables:   deps.CostTables,
		users:        deps.Users,
		exporter:     deps.Exporter,
		health:       deps.Health,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string          `json:"status"`
	Timestamp  string          `json:"timestamp"`
	Version    string          `json:"version"`
	Components map[string]bool `json:"components,omitempty"`
}

// DecisionRequest is the body of approve and reject
type DecisionRequest struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

// DelegateRequest is the body of delegate
type DelegateRequest struct {
	DelegateTo int64  `json:"delegate_to" binding:"required"`
	Reason     string `json:"reason"`
}

// ExpireRequest is the body of expire
type ExpireRequest struct {
	Reason string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	if h.health != nil {
		resp.Components = h.health(c.Request.Context())
		for _, ok := range resp.Components {
			if !ok {
				resp.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if !h.bind(c, &req) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get user", "id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// ListCostTables handles GET /api/cost-tables, newest first
func (h *Handlers) ListCostTables(c *gin.Context) {
	tables, err := h.costTables.List(c.Request.Context(), 0, 0)
	if err != nil {
		h.fail(c, err, "Failed to list cost tables")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tables})
}

// SubmitCostTable handles POST /api/cost-tables
func (h *Handlers) SubmitCostTable(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req service.CreateCostTableInput
	if !h.bind(c, &req) {
		return
	}

	ct, err := h.costTables.Submit(c.Request.Context(), actorID, req)
	if err != nil {
		h.fail(c, err, "Failed to submit cost table", "actor_id", actorID)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: ct})
}

// GetCostTable handles GET /api/cost-tables/:id
func (h *Handlers) GetCostTable(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	ct, err := h.costTables.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get cost table", "id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ct})
}

// StartWorkflow handles POST /api/cost-tables/:id/start-workflow
func (h *Handlers) StartWorkflow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	view, err := h.orchestrator.StartWorkflow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to start workflow", "cost_table_id", id)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: view})
}

// GetWorkflow handles GET /api/cost-tables/:id/workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	view, err := h.orchestrator.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get workflow", "cost_table_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// ExportWorkflow handles GET /api/cost-tables/:id/workflow/export
func (h *Handlers) ExportWorkflow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	view, err := h.orchestrator.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get workflow for export", "cost_table_id", id)
		return
	}

	data, err := h.exporter.Export(view)
	if err != nil {
		h.fail(c, err, "Failed to export workflow", "cost_table_id", id)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cost-table-%d-workflow.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetHistory handles GET /api/cost-tables/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	history, err := h.orchestrator.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get workflow history", "cost_table_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// ListApprovals handles GET /api/approvals?filter=mine|overdue|needs_reminder
func (h *Handlers) ListApprovals(c *gin.Context) {
	filter, err := workflow.ParseListFilter(c.DefaultQuery("filter", string(workflow.FilterMine)))
	if err != nil {
		h.fail(c, err, "Invalid approval filter")
		return
	}

	// the acting user only matters for "mine"
	actorID, _ := parseActor(c)

	approvals, err := h.orchestrator.ListOpen(c.Request.Context(), filter, actorID)
	if err != nil {
		h.fail(c, err, "Failed to list approvals", "filter", filter, "actor_id", actorID)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: approvals})
}

// Approve handles POST /api/approvals/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.decide(c, workflow.ActionApprove)
}

// Reject handles POST /api/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.decide(c, workflow.ActionReject)
}

func (h *Handlers) decide(c *gin.Context, action workflow.Action) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if !h.bindOptional(c, &req) {
		return
	}

	result, err := h.orchestrator.Decide(c.Request.Context(), id, actorID, action, workflow.DecisionPayload{
		Comments: req.Comments,
		Reason:   req.Reason,
	})
	if err != nil {
		h.fail(c, err, "Failed to decide approval", "approval_id", id, "actor_id", actorID, "action", action)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Delegate handles POST /api/approvals/:id/delegate
func (h *Handlers) Delegate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req DelegateRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.orchestrator.Delegate(c.Request.Context(), id, actorID, req.DelegateTo, req.Reason)
	if err != nil {
		h.fail(c, err, "Failed to delegate approval", "approval_id", id, "actor_id", actorID, "delegate_to", req.DelegateTo)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Expire handles POST /api/approvals/:id/expire
func (h *Handlers) Expire(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req ExpireRequest
	if !h.bindOptional(c, &req) {
		return
	}

	result, err := h.orchestrator.Expire(c.Request.Context(), id, actorID, req.Reason)
	if err != nil {
		h.fail(c, err, "Failed to expire approval", "approval_id", id, "actor_id", actorID)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// MarkReminded handles POST /api/approvals/:id/reminded
func (h *Handlers) MarkReminded(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.orchestrator.MarkReminded(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to mark approval reminded", "approval_id", id)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"approval_id": id, "reminded": true}})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid path ID", "id", raw, "path", c.FullPath())
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
			Kind:    domainwf.KindValidation,
		})
		return 0, false
	}
	return id, true
}

func (h *Handlers) actor(c *gin.Context) (int64, bool) {
	id, err := parseActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
		return 0, false
	}
	return id, true
}

func parseActor(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.GetHeader(userHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingActor
	}
	return id, nil
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
			Kind:    domainwf.KindValidation,
		})
		return false
	}
	return true
}

// bindOptional accepts an empty body
func (h *Handlers) bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bind(c, req)
}

// fail maps an application error to its HTTP status and writes it
func (h *Handlers) fail(c *gin.Context, err error, msg string, keysAndValues ...interface{}) {
	kind := domainwf.KindOf(err)
	status := statusFor(kind)

	h.logger.Error(msg, append(keysAndValues, "kind", kind, "error", err)...)

	body := Response{Success: false, Error: err.Error(), Kind: kind}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	c.JSON(status, body)
}

func statusFor(kind string) int {
	switch kind {
	case domainwf.KindNotFound:
		return http.StatusNotFound
	case domainwf.KindForbidden:
		return http.StatusForbidden
	case domainwf.KindInvalidState, domainwf.KindAlreadyStarted:
		return http.StatusConflict
	case domainwf.KindValidation:
		return http.StatusBadRequest
	case domainwf.KindWorkflowCreationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
