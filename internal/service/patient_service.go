package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PatientService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{repo: repo, auditSvc: auditSvc, log: log}
}

func (s *PatientService) RegisterPatient(ctx context.Context, cmd *patient.CreatePatientCommand, callerID uuid.UUID, callerRole domain.Role, ip string) (*patient.Patient, error) {
	var fields []string
	if cmd.FirstName == "" {
		fields = append(fields, "first_name is required")
	}
	if cmd.LastName == "" {
		fields = append(fields, "last_name is required")
	}
	if cmd.MRN == "" {
		fields = append(fields, "mrn is required")
	}
	if !cmd.Gender.IsValid() {
		fields = append(fields, "gender must be one of male, female, other, unknown")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if existing, err := s.repo.GetByMRN(ctx, cmd.MRN); err == nil && existing != nil {
		return nil, patient.ErrPatientAlreadyExists
	}

	p := &patient.Patient{
		FirstName:   cmd.FirstName,
		LastName:    cmd.LastName,
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
		MRN:         cmd.MRN,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: string(callerRole),
		Action: "create", ResourceType: "patient", ResourceID: p.ID.String(), IPAddress: ip,
	})

	return p, nil
}

// AddNote attaches a free-text note to an existing patient's chart. Any
// authenticated staff member may write one.
func (s *PatientService) AddNote(ctx context.Context, patientID uuid.UUID, cmd *patient.CreateNoteCommand, callerID uuid.UUID, callerRole domain.Role, ip string) (*patient.Note, error) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return nil, &ValidationError{Fields: []string{"content is required"}}
	}
	if len(content) > 5000 {
		return nil, &ValidationError{Fields: []string{"content must be at most 5000 characters"}}
	}
	noteType := strings.TrimSpace(cmd.NoteType)
	if noteType == "" {
		noteType = "general"
	}

	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	n := &patient.Note{
		PatientID: patientID,
		AuthorID:  callerID,
		NoteType:  noteType,
		Content:   content,
	}
	if err := s.repo.CreateNote(ctx, n); err != nil {
		s.log.Error("failed to create patient note", zap.Error(err))
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: string(callerRole),
		Action: "create", ResourceType: "patient_note", ResourceID: n.ID.String(), IPAddress: ip,
	})

	return n, nil
}

// ListNotes returns a patient's chart notes, oldest first.
func (s *PatientService) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*patient.Note, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListNotes(ctx, patientID)
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PatientService) ListPatients(ctx context.Context, page, pageSize int) ([]*patient.Patient, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.repo.List(ctx, page, pageSize)
}
