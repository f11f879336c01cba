package repository

import (
	"context"
	"errors"

	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomTypeRepository struct {
	db *gorm.DB
}

func NewCustomTypeRepository(db *gorm.DB) *CustomTypeRepository {
	return &CustomTypeRepository{db: db}
}

func (r *CustomTypeRepository) Create(ctx context.Context, ct *customtype.CustomActionType) error {
	return r.db.WithContext(ctx).Create(ct).Error
}

func (r *CustomTypeRepository) Update(ctx context.Context, ct *customtype.CustomActionType) error {
	return r.db.WithContext(ctx).Save(ct).Error
}

func (r *CustomTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*customtype.CustomActionType, error) {
	var ct customtype.CustomActionType
	err := r.db.WithContext(ctx).First(&ct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, customtype.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *CustomTypeRepository) GetByName(ctx context.Context, name string) (*customtype.CustomActionType, error) {
	var ct customtype.CustomActionType
	err := r.db.WithContext(ctx).First(&ct, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, customtype.ErrTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *CustomTypeRepository) List(ctx context.Context) ([]*customtype.CustomActionType, error) {
	var types []*customtype.CustomActionType
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

func (r *CustomTypeRepository) CountActionsReferencing(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&action.Action{}).
		Where("custom_type_id = ?", id).
		Count(&count).Error
	return count, err
}
