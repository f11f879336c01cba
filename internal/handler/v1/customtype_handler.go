package v1

import (
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CustomTypeHandler struct {
	svc *service.CustomTypeService
	log *zap.Logger
}

func NewCustomTypeHandler(svc *service.CustomTypeService, log *zap.Logger) *CustomTypeHandler {
	return &CustomTypeHandler{svc: svc, log: log}
}

type createCustomTypeRequest struct {
	Name               string   `json:"name" binding:"required"`
	Department         string   `json:"department" binding:"required"`
	States             []string `json:"states" binding:"required"`
	TerminalState      string   `json:"terminal_state" binding:"required"`
	SLARoutineMinutes  int      `json:"sla_routine_minutes"`
	SLAUrgentMinutes   int      `json:"sla_urgent_minutes"`
	SLACriticalMinutes int      `json:"sla_critical_minutes"`
}

func (h *CustomTypeHandler) Create(c *gin.Context) {
	var req createCustomTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	ct, err := h.svc.CreateCustomType(c.Request.Context(), &customtype.CreateCustomActionTypeCommand{
		Name:               req.Name,
		Department:         req.Department,
		States:             req.States,
		TerminalState:      req.TerminalState,
		SLARoutineMinutes:  req.SLARoutineMinutes,
		SLAUrgentMinutes:   req.SLAUrgentMinutes,
		SLACriticalMinutes: req.SLACriticalMinutes,
	}, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, ct)
}

func (h *CustomTypeHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req createCustomTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	ct, err := h.svc.UpdateCustomType(c.Request.Context(), id, &customtype.CreateCustomActionTypeCommand{
		Name:               req.Name,
		Department:         req.Department,
		States:             req.States,
		TerminalState:      req.TerminalState,
		SLARoutineMinutes:  req.SLARoutineMinutes,
		SLAUrgentMinutes:   req.SLAUrgentMinutes,
		SLACriticalMinutes: req.SLACriticalMinutes,
	}, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ct)
}

func (h *CustomTypeHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	ct, err := h.svc.GetCustomType(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ct)
}

func (h *CustomTypeHandler) List(c *gin.Context) {
	types, err := h.svc.ListCustomTypes(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, types)
}
