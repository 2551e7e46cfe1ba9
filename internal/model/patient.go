package model

import (
	"github.com/goccy/go-json"
)

// Patient carries no clinical data itself; everything lives in answers.
type Patient struct {
	ID       int64 `json:"id" db:"id"`
	DoctorID int64 `json:"doctor_id" db:"doctor_id"`
	Hidden   bool  `json:"hidden" db:"hidden"`
	Timestamps
}

type CreatePatientResult struct {
	PatientID    int64  `json:"id"`
	Name         string `json:"name"`
	SubmitStatus bool   `json:"submit_status"`
}

type SectionUpdateResult struct {
	PatientID  int64 `json:"patient_id"`
	SectionID  int64 `json:"section_id"`
	Inserted   int   `json:"inserted"`
	Updated    int   `json:"updated"`
	NewOutcome bool  `json:"new_outcome"`
}

type SubmitResult struct {
	PatientID int64 `json:"patient_id"`
	Changed   bool  `json:"changed"`
}

type DeleteResult struct {
	PatientID int64         `json:"patient_id"`
	Reversed  map[int64]int `json:"reversed"`
}

// AnswerView is what a client gets back when reopening a section.
type AnswerView struct {
	QuestionID int64           `json:"question_id"`
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	Other      json.RawMessage `json:"other_field,omitempty"`
}

type SectionAnswers struct {
	PatientID int64         `json:"patient_id"`
	SectionID int64         `json:"section_id"`
	Completed bool          `json:"completed"`
	Answers   []*AnswerView `json:"answers"`
}
