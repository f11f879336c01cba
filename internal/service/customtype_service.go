package service

import (
	"context"
	"fmt"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CustomTypeService struct {
	repo     customtype.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewCustomTypeService(repo customtype.Repository, auditSvc *AuditService, log *zap.Logger) *CustomTypeService {
	return &CustomTypeService{repo: repo, auditSvc: auditSvc, log: log}
}

// CreateCustomType validates and stores a new workflow definition. The state
// list is compiled up front so a malformed definition never reaches storage.
func (s *CustomTypeService) CreateCustomType(ctx context.Context, cmd *customtype.CreateCustomActionTypeCommand, callerID uuid.UUID, callerRole domain.Role, ip string) (*customtype.CustomActionType, error) {
	if callerRole != domain.RoleAdmin && callerRole != domain.RoleDoctor {
		return nil, fmt.Errorf("%w: %s may not define workflows", access.ErrForbidden, callerRole)
	}

	ct := &customtype.CustomActionType{
		Name:               cmd.Name,
		Department:         cmd.Department,
		States:             cmd.States,
		TerminalState:      cmd.TerminalState,
		SLARoutineMinutes:  cmd.SLARoutineMinutes,
		SLAUrgentMinutes:   cmd.SLAUrgentMinutes,
		SLACriticalMinutes: cmd.SLACriticalMinutes,
		CreatedBy:          callerID,
	}
	if ct.SLARoutineMinutes <= 0 {
		ct.SLARoutineMinutes = 120
	}
	if ct.SLAUrgentMinutes <= 0 {
		ct.SLAUrgentMinutes = 30
	}
	if ct.SLACriticalMinutes <= 0 {
		ct.SLACriticalMinutes = 10
	}

	if err := ct.Validate(); err != nil {
		return nil, err
	}
	if _, err := customtype.Compile(ct.States); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByName(ctx, ct.Name); err == nil && existing != nil {
		return nil, customtype.ErrTypeAlreadyExists
	}

	if err := s.repo.Create(ctx, ct); err != nil {
		s.log.Error("failed to create custom action type", zap.Error(err))
		return nil, fmt.Errorf("creating custom action type: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: string(callerRole),
		Action: "create", ResourceType: "custom_action_type", ResourceID: ct.ID.String(), IPAddress: ip,
	})
	s.log.Info("custom action type created",
		zap.String("name", ct.Name),
		zap.Int("states", len(ct.States)),
	)

	return ct, nil
}

// UpdateCustomType edits a definition. Definitions are immutable once any
// action references them; edits then require creating a new definition.
func (s *CustomTypeService) UpdateCustomType(ctx context.Context, id uuid.UUID, cmd *customtype.CreateCustomActionTypeCommand, callerID uuid.UUID, callerRole domain.Role, ip string) (*customtype.CustomActionType, error) {
	if callerRole != domain.RoleAdmin && callerRole != domain.RoleDoctor {
		return nil, fmt.Errorf("%w: %s may not define workflows", access.ErrForbidden, callerRole)
	}

	ct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refs, err := s.repo.CountActionsReferencing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking references: %w", err)
	}
	if refs > 0 {
		return nil, customtype.ErrTypeInUse
	}

	ct.Name = cmd.Name
	ct.Department = cmd.Department
	ct.States = cmd.States
	ct.TerminalState = cmd.TerminalState
	if cmd.SLARoutineMinutes > 0 {
		ct.SLARoutineMinutes = cmd.SLARoutineMinutes
	}
	if cmd.SLAUrgentMinutes > 0 {
		ct.SLAUrgentMinutes = cmd.SLAUrgentMinutes
	}
	if cmd.SLACriticalMinutes > 0 {
		ct.SLACriticalMinutes = cmd.SLACriticalMinutes
	}

	if err := ct.Validate(); err != nil {
		return nil, err
	}
	if _, err := customtype.Compile(ct.States); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, ct); err != nil {
		s.log.Error("failed to update custom action type", zap.Error(err))
		return nil, fmt.Errorf("updating custom action type: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: string(callerRole),
		Action: "update", ResourceType: "custom_action_type", ResourceID: ct.ID.String(), IPAddress: ip,
	})

	return ct, nil
}

func (s *CustomTypeService) GetCustomType(ctx context.Context, id uuid.UUID) (*customtype.CustomActionType, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CustomTypeService) ListCustomTypes(ctx context.Context) ([]*customtype.CustomActionType, error) {
	return s.repo.List(ctx)
}
