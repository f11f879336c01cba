package v1

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/clavis-health/clavis/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PatientHandler struct {
	svc *service.PatientService
	log *zap.Logger
}

func NewPatientHandler(svc *service.PatientService, log *zap.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, log: log}
}

type createPatientRequest struct {
	FirstName   string    `json:"first_name" binding:"required"`
	LastName    string    `json:"last_name" binding:"required"`
	DateOfBirth time.Time `json:"date_of_birth" binding:"required"`
	Gender      string    `json:"gender" binding:"required"`
	MRN         string    `json:"mrn" binding:"required"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	p, err := h.svc.RegisterPatient(c.Request.Context(), &patient.CreatePatientCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Gender:      patient.Gender(req.Gender),
		MRN:         req.MRN,
	}, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

type createNoteRequest struct {
	NoteType string `json:"note_type"`
	Content  string `json:"content" binding:"required"`
}

func (h *PatientHandler) CreateNote(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req createNoteRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := callerClaims(c)
	n, err := h.svc.AddNote(c.Request.Context(), id, &patient.CreateNoteCommand{
		NoteType: req.NoteType,
		Content:  req.Content,
	}, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, n)
}

func (h *PatientHandler) ListNotes(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	notes, err := h.svc.ListNotes(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, notes)
}

func (h *PatientHandler) List(c *gin.Context) {
	page := parseQueryInt(c, "page", 1)
	pageSize := parseQueryInt(c, "page_size", 20)

	patients, total, err := h.svc.ListPatients(c.Request.Context(), page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"patients": patients, "total": total, "page": page, "page_size": pageSize})
}
