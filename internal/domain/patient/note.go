package patient

import (
	"time"

	"github.com/google/uuid"
)

// Note is a free-text clinical note attached to a patient's chart.
type Note struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	AuthorID  uuid.UUID `gorm:"column:author_id;type:uuid;not null"`

	NoteType string `gorm:"column:note_type;type:varchar(64);not null"`
	Content  string `gorm:"column:content;type:text;not null"`
}

func (Note) TableName() string {
	return "clinical.patient_notes"
}

type CreateNoteCommand struct {
	NoteType string
	Content  string
}
