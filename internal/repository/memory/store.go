// Package memory is an in-process implementation of every repository. It backs
// service and handler tests. Transactions are serialized and rolled back by
// restoring a snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type txKey struct{}

type markKey struct {
	userID    int64
	patientID int64
}

type mark struct {
	at  time.Time
	seq int64
}

type state struct {
	seq           int64
	patients      map[int64]*model.Patient
	questions     map[int64]*model.Question
	answers       map[int64]*model.Answer
	statuses      map[int64]*model.PatientStatus
	scores        map[int64]*model.Score
	history       []*model.ScoreHistory
	users         map[int64]*model.User
	notifications map[uuid.UUID]*model.Notification
	marks         map[markKey]mark
}

func newState() *state {
	return &state{
		patients:      make(map[int64]*model.Patient),
		questions:     make(map[int64]*model.Question),
		answers:       make(map[int64]*model.Answer),
		statuses:      make(map[int64]*model.PatientStatus),
		scores:        make(map[int64]*model.Score),
		users:         make(map[int64]*model.User),
		notifications: make(map[uuid.UUID]*model.Notification),
		marks:         make(map[markKey]mark),
	}
}

func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.patients {
		cp := *v
		c.patients[k] = &cp
	}
	for k, v := range st.questions {
		cp := *v
		c.questions[k] = &cp
	}
	for k, v := range st.answers {
		cp := *v
		c.answers[k] = &cp
	}
	for k, v := range st.statuses {
		cp := *v
		c.statuses[k] = &cp
	}
	for k, v := range st.scores {
		cp := *v
		c.scores[k] = &cp
	}
	for _, v := range st.history {
		cp := *v
		c.history = append(c.history, &cp)
	}
	for k, v := range st.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range st.notifications {
		cp := *v
		c.notifications[k] = &cp
	}
	for k, v := range st.marks {
		c.marks[k] = v
	}
	return c
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// Store holds all rows. Returned rows are copies; callers never alias stored state.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state

	failMu sync.Mutex
	fail   map[string]error
}

func New() *Store {
	return &Store{st: newState(), fail: make(map[string]error)}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:            s,
		Patients:      &patientRepo{s},
		Questions:     &questionRepo{s},
		Answers:       &answerRepo{s},
		Statuses:      &statusRepo{s},
		Scores:        &scoreRepo{s},
		Users:         &userRepo{s},
		Notifications: &notificationRepo{s},
		Marked:        &markedRepo{s},
		Projection:    &projectionRepo{s},
		Stats:         &statsRepo{s},
	}
}

// WithinTx runs fn against a snapshot guard: any error restores the state as it was.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

// FailOn makes the named operation, e.g. "statuses.Complete", return err until cleared
// with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.fail[op]
}

// AddUser seeds a user, assigning an id when unset.
func (s *Store) AddUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	if cp.ID == 0 {
		cp.ID = s.st.nextID()
	} else if cp.ID > s.st.seq {
		s.st.seq = cp.ID
	}
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.st.users[cp.ID] = &cp
	out := cp
	return &out
}

func (s *Store) AddQuestions(questions ...*model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		cp := *q
		s.st.questions[cp.ID] = &cp
	}
}

// Notifications returns every stored notification, oldest first.
func (s *Store) Notifications() []*model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Notification, 0, len(s.st.notifications))
	for _, n := range s.st.notifications {
		cp := *n
		out = append(out, &cp)
	}
	sortNotifications(out)
	return out
}

// AnswerCount counts rows for one (patient, question, variant).
func (s *Store) AnswerCount(patientID, questionID int64, variant model.Variant) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.st.answers {
		if a.PatientID == patientID && a.QuestionID == questionID && a.Variant == variant {
			n++
		}
	}
	return n
}

// SetUpdatedAt backdates a patient, for ordering fixtures.
func (s *Store) SetUpdatedAt(patientID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.patients[patientID]; ok {
		p.UpdatedAt = at
	}
}
