package memory

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
)

// flag reads a status with missing rows as false.
func (st *state) flag(patientID int64, key string) bool {
	s := st.findStatus(patientID, key)
	return s != nil && s.Status
}

func (st *state) primaryValue(patientID, questionID int64) (string, bool) {
	a := st.findAnswer(patientID, model.AnswerKey{QuestionID: questionID, Variant: model.VariantPrimary})
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// listing returns the patients a listing query matches, in listing order.
func (st *state) listing(q *model.ListQuery) []*model.Patient {
	var out []*model.Patient
	for _, p := range st.patients {
		if st.matches(p, q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (st *state) matches(p *model.Patient, q *model.ListQuery) bool {
	if p.Hidden && !q.IncludeHidden() {
		return false
	}
	if doctorID := q.DoctorScope(); doctorID > 0 && p.DoctorID != doctorID {
		return false
	}

	f := q.Filter
	for qid, want := range f.Answers {
		v, ok := st.primaryValue(p.ID, qid)
		if !ok || v != model.EncodeString(want) {
			return false
		}
	}
	if f.SubmitStatus != nil && st.flag(p.ID, model.StatusKeySubmit) != *f.SubmitStatus {
		return false
	}
	if f.OutcomeStatus != nil && st.flag(p.ID, model.StatusKeyOutcome) != *f.OutcomeStatus {
		return false
	}
	if f.RegisteredFrom != nil && p.CreatedAt.Before(*f.RegisteredFrom) {
		return false
	}
	if f.RegisteredBefore != nil && !p.CreatedAt.Before(*f.RegisteredBefore) {
		return false
	}
	if f.Age != nil {
		v, ok := st.primaryValue(p.ID, f.Age.QuestionID)
		if !ok || !f.Age.Match(v) {
			return false
		}
	}
	return true
}

type projectionRepo struct{ s *Store }

func (r *projectionRepo) ListJoined(ctx context.Context, q *model.ListQuery) ([]*model.SummaryRow, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st := r.s.st
	matched := st.listing(q)
	rows := lo.Map(page(matched, q.Pagination), func(p *model.Patient, _ int) *model.SummaryRow {
		row := &model.SummaryRow{
			ID:        p.ID,
			DoctorID:  p.DoctorID,
			Hidden:    p.Hidden,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		if v, ok := st.primaryValue(p.ID, model.QuestionIDName); ok {
			row.NameValue.String, row.NameValue.Valid = v, true
		}
		if v, ok := st.primaryValue(p.ID, model.QuestionIDHospital); ok {
			row.HospitalValue.String, row.HospitalValue.Valid = v, true
		}
		if s := st.findStatus(p.ID, model.StatusKeySubmit); s != nil {
			row.SubmitStatus.Bool, row.SubmitStatus.Valid = s.Status, true
		}
		if s := st.findStatus(p.ID, model.StatusKeyOutcome); s != nil {
			row.OutcomeStatus.Bool, row.OutcomeStatus.Valid = s.Status, true
		}
		if u, ok := st.users[p.DoctorID]; ok {
			row.DoctorName.String, row.DoctorName.Valid = u.Name, true
			row.DoctorEmail.String, row.DoctorEmail.Valid = u.Email, true
			row.DoctorHospital.String, row.DoctorHospital.Valid = u.Hospital, true
		}
		_, row.IsMarked = st.marks[markKey{userID: q.Actor.ID, patientID: p.ID}]
		return row
	})
	return rows, len(matched), nil
}
