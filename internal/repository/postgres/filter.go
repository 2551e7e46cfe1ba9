package postgres

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
)

// intPattern guards the age cast; it matches what AgeRange.Match accepts.
const intPattern = `^-?[0-9]{1,9}$`

// listingWhere renders the visibility, scope and filter predicates of a listing
// against the patients table aliased as p.
func listingWhere(q *model.ListQuery, a *args) *where {
	w := &where{}

	if !q.IncludeHidden() {
		w.and("p.hidden = FALSE")
	}
	if doctorID := q.DoctorScope(); doctorID > 0 {
		w.and("p.doctor_id = " + a.add(doctorID))
	}

	f := q.Filter
	qids := lo.Keys(f.Answers)
	sort.Slice(qids, func(i, j int) bool { return qids[i] < qids[j] })
	for _, qid := range qids {
		w.and(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM answers fa WHERE fa.patient_id = p.id AND fa.question_id = %s AND fa.variant = 'primary' AND fa.value = %s)",
			a.add(qid), a.add(model.EncodeString(f.Answers[qid])),
		))
	}

	if f.SubmitStatus != nil {
		w.and(statusPredicate(model.StatusKeySubmit, *f.SubmitStatus, a))
	}
	if f.OutcomeStatus != nil {
		w.and(statusPredicate(model.StatusKeyOutcome, *f.OutcomeStatus, a))
	}

	if f.RegisteredFrom != nil {
		w.and("p.created_at >= " + a.add(*f.RegisteredFrom))
	}
	if f.RegisteredBefore != nil {
		w.and("p.created_at < " + a.add(*f.RegisteredBefore))
	}

	if r := f.Age; r != nil {
		w.and(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM answers fa WHERE fa.patient_id = p.id AND fa.question_id = %s AND fa.variant = 'primary'"+
				" AND (CASE WHEN btrim(fa.value, '\"') ~ '%s' THEN btrim(fa.value, '\"')::int END) BETWEEN %s AND %s)",
			a.add(r.QuestionID), intPattern, a.add(r.Min), a.add(r.Max),
		))
	}

	return w
}

// statusPredicate treats a missing row as false.
func statusPredicate(key string, want bool, a *args) string {
	exists := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM patient_statuses fs WHERE fs.patient_id = p.id AND fs.key = %s AND fs.status = TRUE)",
		a.add(key),
	)
	if want {
		return exists
	}
	return "NOT " + exists
}
