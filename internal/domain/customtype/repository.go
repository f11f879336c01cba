package customtype

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ct *CustomActionType) error
	Update(ctx context.Context, ct *CustomActionType) error
	GetByID(ctx context.Context, id uuid.UUID) (*CustomActionType, error)
	GetByName(ctx context.Context, name string) (*CustomActionType, error)
	List(ctx context.Context) ([]*CustomActionType, error)
	// CountActionsReferencing backs the immutability rule: definitions with
	// referencing actions reject edits.
	CountActionsReferencing(ctx context.Context, id uuid.UUID) (int64, error)
}
