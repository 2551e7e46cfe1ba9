package model

import "time"

// Score history actions
const (
	ScoreActionOutcome        = "outcome_completed"
	ScoreActionPatientDeleted = "patient_deleted"
)

// Score is a doctor's running total. Threshold counts outcomes since the last milestone.
type Score struct {
	DoctorID  int64     `json:"doctor_id" db:"doctor_id"`
	Score     int       `json:"score" db:"score"`
	Threshold int       `json:"threshold" db:"threshold"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ScoreHistory is the append-only ledger; deletion compensation sums it per patient.
type ScoreHistory struct {
	ID        int64     `json:"id" db:"id"`
	DoctorID  int64     `json:"doctor_id" db:"doctor_id"`
	PatientID int64     `json:"patient_id" db:"patient_id"`
	Delta     int       `json:"delta" db:"delta"`
	Action    string    `json:"action" db:"action"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ScoreContribution is the net score one doctor earned from one patient.
type ScoreContribution struct {
	DoctorID int64 `db:"doctor_id"`
	Total    int   `db:"total"`
}

type ScoreView struct {
	Score   *Score          `json:"score"`
	History []*ScoreHistory `json:"history"`
}
