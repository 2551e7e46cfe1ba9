package model

import "time"

type Variant string

const (
	VariantPrimary Variant = "primary"
	VariantOther   Variant = "other"
)

// Answer is one attribute-value row. Value holds JSON text: a quoted string for
// scalars or an encoded array for multi-select and file answers.
type Answer struct {
	ID         int64   `json:"id" db:"id"`
	DoctorID   int64   `json:"doctor_id" db:"doctor_id"`
	SectionID  int64   `json:"section_id" db:"section_id"`
	QuestionID int64   `json:"question_id" db:"question_id"`
	PatientID  int64   `json:"patient_id" db:"patient_id"`
	Value      string  `json:"value" db:"value"`
	Variant    Variant `json:"variant" db:"variant"`
	Timestamps
}

// AnswerKey identifies an answer within one patient.
type AnswerKey struct {
	QuestionID int64   `db:"question_id"`
	Variant    Variant `db:"variant"`
}

func (a *Answer) Key() AnswerKey {
	return AnswerKey{QuestionID: a.QuestionID, Variant: a.Variant}
}

// Touch sets both timestamps for a fresh row.
func (a *Answer) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
