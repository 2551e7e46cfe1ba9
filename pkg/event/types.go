package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	PatientCreated   Type = "patient.created"
	SectionUpdated   Type = "patient.section_updated"
	PatientSubmitted Type = "patient.submitted"
	OutcomeRecorded  Type = "patient.outcome_recorded"
	MilestoneReached Type = "score.milestone_reached"
	PatientDeleted   Type = "patient.deleted"
)

// Event is a fact emitted after a successful commit.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        Type      `json:"type"`
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	OwnerID     int64     `json:"owner_id,omitempty"`
	SectionID   int64     `json:"section_id,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	Score       int       `json:"score,omitempty"`
	// Reversed holds score taken back per doctor when a patient is deleted.
	Reversed   map[int64]int `json:"reversed,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func New(t Type, patientID, doctorID int64) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		PatientID:  patientID,
		DoctorID:   doctorID,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler consumes one event. Returned errors are logged, never propagated to the emitter.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}
