package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	List(ctx context.Context, page, pageSize int) ([]*Patient, int64, error)

	CreateNote(ctx context.Context, n *Note) error
	// ListNotes returns a patient's notes ordered oldest first.
	ListNotes(ctx context.Context, patientID uuid.UUID) ([]*Note, error)
}
