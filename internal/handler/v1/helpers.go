package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/clavis-health/clavis/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, action.ErrActionNotFound),
		errors.Is(err, customtype.ErrTypeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, customtype.ErrTypeAlreadyExists),
		errors.Is(err, customtype.ErrTypeInUse),
		errors.Is(err, action.ErrStateConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	// The distinct terminal failure comes before the generic one it wraps,
	// so callers get the clearer message.
	case errors.Is(err, action.ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "action is already in a terminal state",
			Code:  "ALREADY_TERMINAL",
		})

	case errors.Is(err, action.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TRANSITION",
		})

	case errors.Is(err, customtype.ErrInvalidDefinition):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_DEFINITION",
		})

	case errors.Is(err, action.ErrUnknownActionType),
		errors.Is(err, action.ErrInvalidPriority),
		errors.Is(err, action.ErrAmbiguousWorkflowRef),
		errors.Is(err, action.ErrMissingWorkflowRef),
		errors.Is(err, patient.ErrInvalidGender):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	case errors.Is(err, service.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "account is disabled"})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}
