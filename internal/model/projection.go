package model

import (
	"database/sql"
	"time"
)

type Scope string

const (
	ScopeAll  Scope = "all"
	ScopeMine Scope = "mine"
)

// ListQuery is a listing request. Hidden patients are visible only to elevated actors.
type ListQuery struct {
	Actor Actor
	Scope Scope
	Pagination
	Filter PatientFilter
}

// DoctorScope returns the owning doctor to filter by, or 0 for every doctor.
func (q *ListQuery) DoctorScope() int64 {
	if q.Scope == ScopeMine {
		return q.Actor.ID
	}
	return 0
}

func (q *ListQuery) IncludeHidden() bool {
	return q.Actor.Elevated()
}

type DoctorSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Hospital string `json:"hospital"`
}

type SectionFlags struct {
	PatientID     int64 `json:"patientId"`
	SubmitStatus  bool  `json:"submitStatus"`
	OutcomeStatus bool  `json:"outcomeStatus"`
}

// PatientSummary is the flattened listing projection. Both listing strategies build it.
type PatientSummary struct {
	ID        int64         `json:"id"`
	DoctorID  int64         `json:"doctorId"`
	Name      string        `json:"name"`
	Hospital  string        `json:"hospital"`
	UpdatedAt time.Time     `json:"updatedAt"`
	IsMarked  bool          `json:"isMarked"`
	Doctor    DoctorSummary `json:"doctor"`
	Sections  SectionFlags  `json:"sections"`
}

// SummaryFields are the raw pieces a projection is assembled from.
type SummaryFields struct {
	NameValue     string
	HospitalValue string
	Doctor        *User
	SubmitStatus  bool
	OutcomeStatus bool
	IsMarked      bool
}

func NewPatientSummary(p *Patient, f SummaryFields) *PatientSummary {
	doctor := DoctorSummary{ID: p.DoctorID}
	if f.Doctor != nil {
		doctor.Name = f.Doctor.Name
		doctor.Email = f.Doctor.Email
		doctor.Hospital = f.Doctor.Hospital
	}
	return &PatientSummary{
		ID:        p.ID,
		DoctorID:  p.DoctorID,
		Name:      DisplayText(f.NameValue),
		Hospital:  DisplayText(f.HospitalValue),
		UpdatedAt: p.UpdatedAt.UTC(),
		IsMarked:  f.IsMarked,
		Doctor:    doctor,
		Sections: SectionFlags{
			PatientID:     p.ID,
			SubmitStatus:  f.SubmitStatus,
			OutcomeStatus: f.OutcomeStatus,
		},
	}
}

// SummaryRow is one row of the single-query join listing.
type SummaryRow struct {
	ID             int64          `db:"id"`
	DoctorID       int64          `db:"doctor_id"`
	Hidden         bool           `db:"hidden"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	NameValue      sql.NullString `db:"name_value"`
	HospitalValue  sql.NullString `db:"hospital_value"`
	SubmitStatus   sql.NullBool   `db:"submit_status"`
	OutcomeStatus  sql.NullBool   `db:"outcome_status"`
	DoctorName     sql.NullString `db:"doctor_name"`
	DoctorEmail    sql.NullString `db:"doctor_email"`
	DoctorHospital sql.NullString `db:"doctor_hospital"`
	IsMarked       bool           `db:"is_marked"`
}

func (r *SummaryRow) Summary() *PatientSummary {
	var doctor *User
	if r.DoctorName.Valid || r.DoctorEmail.Valid {
		doctor = &User{
			ID:       r.DoctorID,
			Name:     r.DoctorName.String,
			Email:    r.DoctorEmail.String,
			Hospital: r.DoctorHospital.String,
		}
	}
	p := &Patient{ID: r.ID, DoctorID: r.DoctorID, Hidden: r.Hidden}
	p.CreatedAt = r.CreatedAt
	p.UpdatedAt = r.UpdatedAt
	return NewPatientSummary(p, SummaryFields{
		NameValue:     r.NameValue.String,
		HospitalValue: r.HospitalValue.String,
		Doctor:        doctor,
		SubmitStatus:  r.SubmitStatus.Valid && r.SubmitStatus.Bool,
		OutcomeStatus: r.OutcomeStatus.Valid && r.OutcomeStatus.Bool,
		IsMarked:      r.IsMarked,
	})
}

// PatientCounts feeds the dashboard.
type PatientCounts struct {
	Total     int `json:"total" db:"total"`
	Submitted int `json:"submitted" db:"submitted"`
	Outcomes  int `json:"outcomes" db:"outcomes"`
	Completed int `json:"completed" db:"completed"`
}
