package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActionRepository struct {
	db *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create writes the action and its creation event in one transaction; a
// partial failure rolls back both so no action row exists without its first
// event.
func (r *ActionRepository) Create(ctx context.Context, a *action.Action, created *action.TransitionEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		created.ActionID = a.ID
		return tx.Create(created).Error
	})
}

func (r *ActionRepository) GetByID(ctx context.Context, id uuid.UUID) (*action.Action, error) {
	var a action.Action
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, action.ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TransitionState performs the compare-and-set on current_state: the update
// only lands when the row still holds fromState, and the transition event is
// appended in the same transaction.
func (r *ActionRepository) TransitionState(ctx context.Context, id uuid.UUID, fromState, toState string, e *action.TransitionEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&action.Action{}).
			Where("id = ? AND current_state = ?", id, fromState).
			Update("current_state", toState)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var a action.Action
			if err := tx.First(&a, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				return action.ErrActionNotFound
			} else if err != nil {
				return err
			}
			return action.ErrStateConflict
		}
		e.ActionID = id
		return tx.Create(e).Error
	})
}

func (r *ActionRepository) ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]*action.TransitionEvent, error) {
	var events []*action.TransitionEvent
	err := r.db.WithContext(ctx).
		Where("action_id IN (?)",
			r.db.Model(&action.Action{}).Select("id").Where("patient_id = ?", patientID),
		).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *ActionRepository) List(ctx context.Context, q *action.ListActionsQuery) (*action.PagedActions, error) {
	db := r.db.WithContext(ctx).Model(&action.Action{})

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.Type != nil {
		db = db.Where("action_type = ?", *q.Type)
	}
	if q.Priority != nil {
		db = db.Where("priority = ?", *q.Priority)
	}
	if q.Department != nil {
		db = db.Where("LOWER(department) = LOWER(?)", *q.Department)
	}
	if q.State != nil {
		db = db.Where("current_state = ?", *q.State)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting actions: %w", err)
	}

	var actions []*action.Action
	err := db.
		Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&actions).Error
	if err != nil {
		return nil, err
	}

	return &action.PagedActions{
		Actions:    actions,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

// ListNonTerminal filters out fixed-kind actions sitting in the closed
// terminal-name set and custom actions sitting in their definition's terminal
// state.
func (r *ActionRepository) ListNonTerminal(ctx context.Context) ([]*action.Action, error) {
	var actions []*action.Action
	err := r.db.WithContext(ctx).
		Where(
			"(custom_type_id IS NULL AND current_state NOT IN ?) OR "+
				"(custom_type_id IS NOT NULL AND current_state <> "+
				"(SELECT terminal_state FROM clinical.custom_action_types ct WHERE ct.id = custom_type_id))",
			action.TerminalStateNames(),
		).
		Order("sla_deadline ASC").
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}
