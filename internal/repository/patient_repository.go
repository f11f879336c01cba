package repository

import (
	"context"
	"errors"

	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) GetByMRN(ctx context.Context, mrn string) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).First(&p, "mrn = ?", mrn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) CreateNote(ctx context.Context, n *patient.Note) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *PatientRepository) ListNotes(ctx context.Context, patientID uuid.UUID) ([]*patient.Note, error) {
	var notes []*patient.Note
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *PatientRepository) List(ctx context.Context, page, pageSize int) ([]*patient.Patient, int64, error) {
	db := r.db.WithContext(ctx).Model(&patient.Patient{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var patients []*patient.Patient
	err := db.
		Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&patients).Error
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}
