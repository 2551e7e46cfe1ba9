package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	if err := r.s.injected("patients.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	patient.ID = r.s.st.nextID()
	patient.CreatedAt, patient.UpdatedAt = now, now
	cp := *patient
	r.s.st.patients[cp.ID] = &cp
	return nil
}

func (r *patientRepo) Get(ctx context.Context, id int64) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.st.patients[id]
	if !ok {
		return nil, notFound("patient")
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepo) GetMany(ctx context.Context, ids []int64) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Patient{}
	for _, id := range lo.Uniq(ids) {
		if p, ok := r.s.st.patients[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *patientRepo) Touch(ctx context.Context, id int64, at time.Time) error {
	if err := r.s.injected("patients.Touch"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.patients[id]
	if !ok {
		return notFound("patient")
	}
	p.UpdatedAt = at
	return nil
}

func (r *patientRepo) Delete(ctx context.Context, id int64) error {
	if err := r.s.injected("patients.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.patients[id]; !ok {
		return notFound("patient")
	}
	delete(r.s.st.patients, id)
	// mirror ON DELETE CASCADE
	for k, a := range r.s.st.answers {
		if a.PatientID == id {
			delete(r.s.st.answers, k)
		}
	}
	for k, st := range r.s.st.statuses {
		if st.PatientID == id {
			delete(r.s.st.statuses, k)
		}
	}
	for k := range r.s.st.marks {
		if k.patientID == id {
			delete(r.s.st.marks, k)
		}
	}
	return nil
}

func (r *patientRepo) Page(ctx context.Context, q *model.ListQuery) ([]*model.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := r.s.st.listing(q)
	total := len(matched)
	return lo.Map(page(matched, q.Pagination), func(p *model.Patient, _ int) *model.Patient {
		cp := *p
		return &cp
	}), total, nil
}

type questionRepo struct{ s *Store }

func (r *questionRepo) All(ctx context.Context) ([]*model.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Question, 0, len(r.s.st.questions))
	for _, q := range r.s.st.questions {
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type answerRepo struct{ s *Store }

func (r *answerRepo) BulkInsert(ctx context.Context, answers []*model.Answer) error {
	if err := r.s.injected("answers.BulkInsert"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range answers {
		a.Touch(now)
		if existing := r.s.st.findAnswer(a.PatientID, a.Key()); existing != nil {
			existing.Value = a.Value
			existing.DoctorID = a.DoctorID
			existing.UpdatedAt = now
			a.ID = existing.ID
			continue
		}
		a.ID = r.s.st.nextID()
		cp := *a
		r.s.st.answers[cp.ID] = &cp
	}
	return nil
}

func (st *state) findAnswer(patientID int64, key model.AnswerKey) *model.Answer {
	for _, a := range st.answers {
		if a.PatientID == patientID && a.Key() == key {
			return a
		}
	}
	return nil
}

func (r *answerRepo) ExistingKeys(ctx context.Context, patientID int64, questionIDs []int64) (map[model.AnswerKey]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := lo.SliceToMap(questionIDs, func(id int64) (int64, bool) { return id, true })
	out := make(map[model.AnswerKey]bool)
	for _, a := range r.s.st.answers {
		if a.PatientID == patientID && wanted[a.QuestionID] {
			out[a.Key()] = true
		}
	}
	return out, nil
}

func (r *answerRepo) UpdateValue(ctx context.Context, patientID int64, key model.AnswerKey, value string, at time.Time) error {
	if err := r.s.injected("answers.UpdateValue"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.st.findAnswer(patientID, key)
	if a == nil {
		return notFound("answer")
	}
	a.Value = value
	a.UpdatedAt = at
	return nil
}

func (r *answerRepo) ListByQuestions(ctx context.Context, patientIDs, questionIDs []int64) ([]*model.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pids := lo.SliceToMap(patientIDs, func(id int64) (int64, bool) { return id, true })
	qids := lo.SliceToMap(questionIDs, func(id int64) (int64, bool) { return id, true })
	out := []*model.Answer{}
	for _, a := range r.s.st.answers {
		if pids[a.PatientID] && qids[a.QuestionID] {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *answerRepo) ListBySection(ctx context.Context, patientID, sectionID int64) ([]*model.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Answer{}
	for _, a := range r.s.st.answers {
		if a.PatientID == patientID && a.SectionID == sectionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].Variant < out[j].Variant
	})
	return out, nil
}

func (r *answerRepo) DeleteVariant(ctx context.Context, patientID int64, questionIDs []int64, variant model.Variant) error {
	if err := r.s.injected("answers.DeleteVariant"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := lo.SliceToMap(questionIDs, func(id int64) (int64, bool) { return id, true })
	for k, a := range r.s.st.answers {
		if a.PatientID == patientID && a.Variant == variant && ids[a.QuestionID] {
			delete(r.s.st.answers, k)
		}
	}
	return nil
}

func (r *answerRepo) DeleteByPatient(ctx context.Context, patientID int64) error {
	if err := r.s.injected("answers.DeleteByPatient"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, a := range r.s.st.answers {
		if a.PatientID == patientID {
			delete(r.s.st.answers, k)
		}
	}
	return nil
}

type statusRepo struct{ s *Store }

func (st *state) findStatus(patientID int64, key string) *model.PatientStatus {
	for _, s := range st.statuses {
		if s.PatientID == patientID && s.Key == key {
			return s
		}
	}
	return nil
}

func (r *statusRepo) BulkInsert(ctx context.Context, statuses []*model.PatientStatus) error {
	if err := r.s.injected("statuses.BulkInsert"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range statuses {
		if r.s.st.findStatus(s.PatientID, s.Key) != nil {
			continue
		}
		s.ID = r.s.st.nextID()
		s.CreatedAt, s.UpdatedAt = now, now
		cp := *s
		r.s.st.statuses[cp.ID] = &cp
	}
	return nil
}

func (r *statusRepo) Get(ctx context.Context, patientID int64, key string) (*model.PatientStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	s := r.s.st.findStatus(patientID, key)
	if s == nil {
		return nil, notFound("patient status")
	}
	cp := *s
	return &cp, nil
}

func (r *statusRepo) Complete(ctx context.Context, patientID int64, key string, doctorID int64, at time.Time) (bool, error) {
	if err := r.s.injected("statuses.Complete"); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s := r.s.st.findStatus(patientID, key)
	if s == nil {
		doctor := doctorID
		s = &model.PatientStatus{
			ID:        r.s.st.nextID(),
			DoctorID:  &doctor,
			PatientID: patientID,
			Key:       key,
			Status:    true,
		}
		s.CreatedAt, s.UpdatedAt = at, at
		r.s.st.statuses[s.ID] = s
		return true, nil
	}
	if s.Status {
		return false, nil
	}
	doctor := doctorID
	s.Status = true
	s.DoctorID = &doctor
	s.UpdatedAt = at
	return true, nil
}

func (r *statusRepo) Touch(ctx context.Context, patientID int64, key string, at time.Time) error {
	if err := r.s.injected("statuses.Touch"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s := r.s.st.findStatus(patientID, key)
	if s == nil {
		return notFound("patient status")
	}
	s.UpdatedAt = at
	return nil
}

func (r *statusRepo) ListByKeys(ctx context.Context, patientIDs []int64, keys []string) ([]*model.PatientStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pids := lo.SliceToMap(patientIDs, func(id int64) (int64, bool) { return id, true })
	out := []*model.PatientStatus{}
	for _, s := range r.s.st.statuses {
		if pids[s.PatientID] && lo.Contains(keys, s.Key) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *statusRepo) ListByPatient(ctx context.Context, patientID int64) ([]*model.PatientStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.PatientStatus{}
	for _, s := range r.s.st.statuses {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *statusRepo) DeleteByPatient(ctx context.Context, patientID int64) error {
	if err := r.s.injected("statuses.DeleteByPatient"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, s := range r.s.st.statuses {
		if s.PatientID == patientID {
			delete(r.s.st.statuses, k)
		}
	}
	return nil
}

type scoreRepo struct{ s *Store }

func (r *scoreRepo) Increment(ctx context.Context, doctorID int64, points, step int) (*model.Score, error) {
	if err := r.s.injected("scores.Increment"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.st.scores[doctorID]
	if !ok {
		sc = &model.Score{DoctorID: doctorID}
		r.s.st.scores[doctorID] = sc
	}
	sc.Score += points
	sc.Threshold += step
	sc.UpdatedAt = time.Now().UTC()
	cp := *sc
	return &cp, nil
}

func (r *scoreRepo) ResetThreshold(ctx context.Context, doctorID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sc, ok := r.s.st.scores[doctorID]; ok {
		sc.Threshold = 0
		sc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *scoreRepo) Reverse(ctx context.Context, doctorID int64, amount int) error {
	if err := r.s.injected("scores.Reverse"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sc, ok := r.s.st.scores[doctorID]; ok {
		sc.Score = max(sc.Score-amount, 0)
		sc.Threshold = max(sc.Threshold-amount, 0)
		sc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *scoreRepo) Get(ctx context.Context, doctorID int64) (*model.Score, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sc, ok := r.s.st.scores[doctorID]
	if !ok {
		return nil, notFound("score")
	}
	cp := *sc
	return &cp, nil
}

func (r *scoreRepo) AppendHistory(ctx context.Context, entry *model.ScoreHistory) error {
	if err := r.s.injected("scores.AppendHistory"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.st.nextID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	cp := *entry
	r.s.st.history = append(r.s.st.history, &cp)
	return nil
}

func (r *scoreRepo) SumByPatient(ctx context.Context, patientID int64) ([]model.ScoreContribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	totals := make(map[int64]int)
	for _, h := range r.s.st.history {
		if h.PatientID == patientID {
			totals[h.DoctorID] += h.Delta
		}
	}
	out := []model.ScoreContribution{}
	for doctorID, total := range totals {
		if total > 0 {
			out = append(out, model.ScoreContribution{DoctorID: doctorID, Total: total})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DoctorID < out[j].DoctorID })
	return out, nil
}

func (r *scoreRepo) ListHistory(ctx context.Context, doctorID int64, limit int) ([]*model.ScoreHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.ScoreHistory{}
	for i := len(r.s.st.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if h := r.s.st.history[i]; h.DoctorID == doctorID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Get(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, notFound("user")
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetMany(ctx context.Context, ids []int64) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.User{}
	for _, id := range lo.Uniq(ids) {
		if u, ok := r.s.st.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *userRepo) ListByRole(ctx context.Context, role string) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.User{}
	for _, u := range r.s.st.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) BulkCreate(ctx context.Context, notifications []*model.Notification) error {
	if err := r.s.injected("notifications.BulkCreate"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.PushStatus == "" {
			n.PushStatus = model.PushStatusPending
		}
		n.CreatedAt, n.UpdatedAt = now, now
		cp := *n
		r.s.st.notifications[cp.ID] = &cp
	}
	return nil
}

func (r *notificationRepo) UpdatePushStatus(ctx context.Context, id uuid.UUID, status model.PushStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.st.notifications[id]
	if !ok {
		return notFound("notification")
	}
	n.PushStatus = status
	if status == model.PushStatusSent || status == model.PushStatusFailed {
		n.PushAttempts++
	}
	n.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *notificationRepo) ListPendingPush(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*model.PendingPush, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*model.Notification
	for _, n := range r.s.st.notifications {
		all = append(all, n)
	}
	sortNotifications(all)

	out := []*model.PendingPush{}
	for _, n := range all {
		if limit > 0 && len(out) >= limit {
			break
		}
		if n.PushStatus != model.PushStatusPending && n.PushStatus != model.PushStatusFailed {
			continue
		}
		if n.PushAttempts >= maxAttempts || !n.UpdatedAt.Before(olderThan) {
			continue
		}
		u, ok := r.s.st.users[n.UserID]
		if !ok || u.PushToken == "" {
			continue
		}
		out = append(out, &model.PendingPush{Notification: *n, PushToken: u.PushToken})
	}
	return out, nil
}

func (r *notificationRepo) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, note := range r.s.st.notifications {
		if note.CreatedAt.Before(cutoff) && note.PushStatus != model.PushStatusPending {
			delete(r.s.st.notifications, id)
			n++
		}
	}
	return n, nil
}

func sortNotifications(ns []*model.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.Before(ns[j].CreatedAt)
		}
		return ns[i].ID.String() < ns[j].ID.String()
	})
}

type markedRepo struct{ s *Store }

func (r *markedRepo) Mark(ctx context.Context, userID, patientID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := markKey{userID: userID, patientID: patientID}
	if _, ok := r.s.st.marks[k]; ok {
		return false, nil
	}
	r.s.st.marks[k] = mark{at: time.Now().UTC(), seq: r.s.st.nextID()}
	return true, nil
}

func (r *markedRepo) Unmark(ctx context.Context, userID, patientID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := markKey{userID: userID, patientID: patientID}
	if _, ok := r.s.st.marks[k]; !ok {
		return false, nil
	}
	delete(r.s.st.marks, k)
	return true, nil
}

func (r *markedRepo) PatientIDs(ctx context.Context, userID int64, patientIDs []int64) (map[int64]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]bool)
	for _, id := range patientIDs {
		if _, ok := r.s.st.marks[markKey{userID: userID, patientID: id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *markedRepo) Page(ctx context.Context, userID int64, p model.Pagination, includeHidden bool) ([]int64, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type entry struct {
		patientID int64
		mark
	}
	var entries []entry
	for k, m := range r.s.st.marks {
		if k.userID != userID {
			continue
		}
		patient, ok := r.s.st.patients[k.patientID]
		if !ok || (patient.Hidden && !includeHidden) {
			continue
		}
		entries = append(entries, entry{patientID: k.patientID, mark: m})
	}
	// seq breaks ties between marks made within the same clock tick
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].seq > entries[j].seq
	})

	ids := lo.Map(page(entries, p), func(e entry, _ int) int64 { return e.patientID })
	return ids, len(entries), nil
}

func (r *markedRepo) DeleteByPatient(ctx context.Context, patientID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k := range r.s.st.marks {
		if k.patientID == patientID {
			delete(r.s.st.marks, k)
		}
	}
	return nil
}

type statsRepo struct{ s *Store }

func (r *statsRepo) Counts(ctx context.Context, doctorID int64, includeHidden bool) (*model.PatientCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := &model.PatientCounts{}
	for _, p := range r.s.st.patients {
		if (p.Hidden && !includeHidden) || (doctorID > 0 && p.DoctorID != doctorID) {
			continue
		}
		counts.Total++
		submitted := r.s.st.flag(p.ID, model.StatusKeySubmit)
		outcome := r.s.st.flag(p.ID, model.StatusKeyOutcome)
		if submitted {
			counts.Submitted++
		}
		if outcome {
			counts.Outcomes++
		}
		if submitted && outcome {
			counts.Completed++
		}
	}
	return counts, nil
}

// page applies LIMIT/OFFSET semantics.
func page[T any](items []T, p model.Pagination) []T {
	offset := p.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit := p.Limit(); limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
