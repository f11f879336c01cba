package v1

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActionHandler struct {
	workflow *service.WorkflowService
	log      *zap.Logger
}

func NewActionHandler(workflow *service.WorkflowService, log *zap.Logger) *ActionHandler {
	return &ActionHandler{workflow: workflow, log: log}
}

type createActionRequest struct {
	PatientID    uuid.UUID  `json:"patient_id" binding:"required"`
	ActionType   *string    `json:"action_type"`
	CustomTypeID *uuid.UUID `json:"custom_type_id"`
	Priority     string     `json:"priority"`
	Department   string     `json:"department"`
	Title        string     `json:"title"`
	Notes        string     `json:"notes"`
}

type transitionRequest struct {
	NewState string `json:"new_state" binding:"required"`
}

func (h *ActionHandler) Create(c *gin.Context) {
	var req createActionRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &action.CreateActionCommand{
		PatientID:    req.PatientID,
		CustomTypeID: req.CustomTypeID,
		Priority:     domain.Priority(req.Priority),
		Department:   req.Department,
		Title:        req.Title,
		Notes:        req.Notes,
	}
	if req.ActionType != nil {
		t := action.ActionType(*req.ActionType)
		cmd.Type = &t
	}
	if cmd.Priority == "" {
		cmd.Priority = domain.PriorityRoutine
	}

	claims := callerClaims(c)
	view, err := h.workflow.CreateAction(c.Request.Context(), cmd, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, view)
}

func (h *ActionHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.workflow.GetAction(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, view)
}

func (h *ActionHandler) Transition(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	view, err := h.workflow.RequestTransition(c.Request.Context(), id, req.NewState, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, view)
}

func (h *ActionHandler) List(c *gin.Context) {
	q := &action.ListActionsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, 400, "invalid patient_id")
			return
		}
		q.PatientID = &id
	}
	if raw := c.Query("action_type"); raw != "" {
		t := action.ActionType(raw)
		q.Type = &t
	}
	if raw := c.Query("priority"); raw != "" {
		p := domain.Priority(raw)
		q.Priority = &p
	}
	if raw := c.Query("department"); raw != "" {
		q.Department = &raw
	}
	if raw := c.Query("state"); raw != "" {
		q.State = &raw
	}

	views, total, err := h.workflow.ListActions(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"actions": views, "total": total, "page": q.Page, "page_size": q.PageSize})
}

// Escalations lists every currently-overdue open action, overdue status
// recomputed at request time.
func (h *ActionHandler) Escalations(c *gin.Context) {
	views, err := h.workflow.Escalations(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"escalations": views, "as_of": time.Now().UTC()})
}

func (h *ActionHandler) DepartmentQueue(c *gin.Context) {
	department := c.Param("name")
	claims := callerClaims(c)

	views, err := h.workflow.DepartmentQueue(c.Request.Context(), department, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"department": department, "queue": views})
}

func (h *ActionHandler) PatientTimeline(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	events, err := h.workflow.PatientTimeline(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, events)
}
