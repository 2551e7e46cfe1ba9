package model

import (
	"strconv"
	"strings"
)

// Status keys
const (
	StatusKeySubmit  = "submit_status"
	StatusKeyOutcome = "outcome_status"

	sectionKeyPrefix = "section_"
)

func SectionKey(sectionID int64) string {
	return sectionKeyPrefix + strconv.FormatInt(sectionID, 10)
}

// ParseSectionKey returns the section id of a section_<id> key.
func ParseSectionKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, sectionKeyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, sectionKeyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PatientStatus is one workflow flag. A missing row reads as unset; flags only move to true.
type PatientStatus struct {
	ID        int64  `json:"id" db:"id"`
	DoctorID  *int64 `json:"doctor_id" db:"doctor_id"`
	PatientID int64  `json:"patient_id" db:"patient_id"`
	Key       string `json:"key" db:"key"`
	Status    bool   `json:"status" db:"status"`
	Timestamps
}

// Progress is the derived workflow view of one patient.
type Progress struct {
	PatientID     int64          `json:"patientId"`
	Sections      map[int64]bool `json:"sections"`
	SubmitStatus  bool           `json:"submitStatus"`
	OutcomeStatus bool           `json:"outcomeStatus"`
	Completed     bool           `json:"completed"`
}

// NewProgress folds status rows into a Progress. Completion is derived, never stored.
func NewProgress(patientID int64, statuses []*PatientStatus) *Progress {
	p := &Progress{PatientID: patientID, Sections: make(map[int64]bool)}
	for _, s := range statuses {
		switch s.Key {
		case StatusKeySubmit:
			p.SubmitStatus = s.Status
		case StatusKeyOutcome:
			p.OutcomeStatus = s.Status
		default:
			if id, ok := ParseSectionKey(s.Key); ok {
				p.Sections[id] = s.Status
			}
		}
	}
	p.Completed = p.SubmitStatus && p.OutcomeStatus
	return p
}
