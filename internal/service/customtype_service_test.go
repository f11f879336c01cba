package service

import (
	"context"
	"testing"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTypeRepo struct {
	*memTypeRepo
	refs int64
}

func (r *countingTypeRepo) CountActionsReferencing(context.Context, uuid.UUID) (int64, error) {
	return r.refs, nil
}

func newCustomTypeService(t *testing.T, repo customtype.Repository) *CustomTypeService {
	t.Helper()
	auditSvc := NewAuditService(noopAuditRepo{}, zap.NewNop())
	t.Cleanup(auditSvc.Shutdown)
	return NewCustomTypeService(repo, auditSvc, zap.NewNop())
}

func definitionCommand() *customtype.CreateCustomActionTypeCommand {
	return &customtype.CreateCustomActionTypeCommand{
		Name:          "triage-review",
		Department:    "nursing",
		States:        []string{"QUEUED", "ASSESSED", "DONE"},
		TerminalState: "DONE",
	}
}

func TestCreateCustomTypeDefaultsAndGate(t *testing.T) {
	repo := &countingTypeRepo{memTypeRepo: newMemTypeRepo()}
	svc := newCustomTypeService(t, repo)
	ctx := context.Background()

	_, err := svc.CreateCustomType(ctx, definitionCommand(), uuid.New(), domain.RoleNurse, "")
	require.ErrorIs(t, err, access.ErrForbidden)

	ct, err := svc.CreateCustomType(ctx, definitionCommand(), uuid.New(), domain.RoleDoctor, "")
	require.NoError(t, err)
	require.Equal(t, 120, ct.SLARoutineMinutes)
	require.Equal(t, 30, ct.SLAUrgentMinutes)
	require.Equal(t, 10, ct.SLACriticalMinutes)

	// Duplicate name is rejected.
	_, err = svc.CreateCustomType(ctx, definitionCommand(), uuid.New(), domain.RoleDoctor, "")
	require.ErrorIs(t, err, customtype.ErrTypeAlreadyExists)
}

func TestCreateCustomTypeRejectsMalformedDefinition(t *testing.T) {
	repo := &countingTypeRepo{memTypeRepo: newMemTypeRepo()}
	svc := newCustomTypeService(t, repo)

	cmd := definitionCommand()
	cmd.States = []string{"ONLY"}
	cmd.TerminalState = "ONLY"
	_, err := svc.CreateCustomType(context.Background(), cmd, uuid.New(), domain.RoleAdmin, "")
	require.ErrorIs(t, err, customtype.ErrInvalidDefinition)
}

func TestUpdateCustomTypeImmutableOnceReferenced(t *testing.T) {
	repo := &countingTypeRepo{memTypeRepo: newMemTypeRepo()}
	svc := newCustomTypeService(t, repo)
	ctx := context.Background()

	ct, err := svc.CreateCustomType(ctx, definitionCommand(), uuid.New(), domain.RoleAdmin, "")
	require.NoError(t, err)

	// Unreferenced definitions can change.
	cmd := definitionCommand()
	cmd.States = []string{"QUEUED", "ASSESSED", "ESCALATED", "DONE"}
	updated, err := svc.UpdateCustomType(ctx, ct.ID, cmd, uuid.New(), domain.RoleAdmin, "")
	require.NoError(t, err)
	require.Len(t, updated.States, 4)

	// Once an action references the definition, edits are rejected.
	repo.refs = 1
	_, err = svc.UpdateCustomType(ctx, ct.ID, cmd, uuid.New(), domain.RoleAdmin, "")
	require.ErrorIs(t, err, customtype.ErrTypeInUse)
}
