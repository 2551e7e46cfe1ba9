package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotificationNewPatient = "new_patient"
	NotificationNewOutcome = "new_outcome"
	NotificationMilestone  = "score_milestone"
)

type PushStatus string

const (
	PushStatusPending PushStatus = "pending"
	PushStatusSent    PushStatus = "sent"
	PushStatusFailed  PushStatus = "failed"
	// PushStatusSkipped marks rows whose recipient has no device token.
	PushStatusSkipped PushStatus = "skipped"
)

type Notification struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	Type         string     `json:"type" db:"type"`
	Title        string     `json:"title" db:"title"`
	Body         string     `json:"body" db:"body"`
	PatientID    *int64     `json:"patient_id,omitempty" db:"patient_id"`
	PushStatus   PushStatus `json:"push_status" db:"push_status"`
	PushAttempts int        `json:"push_attempts" db:"push_attempts"`
	ReadAt       *time.Time `json:"read_at,omitempty" db:"read_at"`
	Timestamps
}

// PendingPush is a notification joined with the recipient's device token.
type PendingPush struct {
	Notification
	PushToken string `db:"push_token"`
}
