package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/internal/service/catalog"
	"github.com/jwalitptl/intake-api/internal/service/scoring"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/storage"
)

const outcomeSection = 5

type fakeUploader struct {
	urls  []string
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, files []storage.File) []string {
	f.calls++
	if len(files) == 0 {
		return []string{}
	}
	return f.urls
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	repos    *repository.Repositories
	uploader *fakeUploader
	events   []event.Event
	doctor   model.Actor
	admin    model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.AddQuestions(
		&model.Question{ID: 1, SectionID: 1, Type: model.QuestionTypeText},
		&model.Question{ID: 2, SectionID: 1, Type: model.QuestionTypeText},
		&model.Question{ID: 3, SectionID: 1, Type: model.QuestionTypeNumeric},
		&model.Question{ID: 4, SectionID: 1, Type: model.QuestionTypeFiles},
		&model.Question{ID: 6, SectionID: 2, Type: model.QuestionTypeMultiChoice},
		&model.Question{ID: 7, SectionID: 2, Type: model.QuestionTypeChoice},
		&model.Question{ID: 10, SectionID: outcomeSection, Type: model.QuestionTypeChoice},
	)
	doctor := store.AddUser(&model.User{Name: "Dr Reyes", Role: model.RoleDoctor})
	admin := store.AddUser(&model.User{Name: "Ops", Role: model.RoleAdmin})

	f := &fixture{
		store:    store,
		repos:    store.Repositories(),
		uploader: &fakeUploader{urls: []string{"https://files.test/a.png"}},
		doctor:   model.Actor{ID: doctor.ID, Role: model.RoleDoctor},
		admin:    model.Actor{ID: admin.ID, Role: model.RoleAdmin},
	}

	log := logger.Nop()
	m := metrics.NewNop()
	bus := event.NewBus(log, m)
	bus.Subscribe("recorder", func(_ context.Context, e event.Event) error {
		f.events = append(f.events, e)
		return nil
	})

	scorer := scoring.NewDispatcher(f.repos, scoring.Config{PointsPerOutcome: 1, MilestoneThreshold: 2}, log)
	f.svc = NewService(f.repos, catalog.NewLoader(f.repos.Questions), scorer, f.uploader, bus,
		Config{OutcomeSectionID: outcomeSection}, log, m)
	return f
}

func (f *fixture) eventTypes() []event.Type {
	out := make([]event.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func payload(t *testing.T, values map[string]any) model.SectionPayload {
	t.Helper()
	p := model.SectionPayload{}
	for k, v := range values {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		p[k] = raw
	}
	return p
}

func (f *fixture) create(t *testing.T, actor model.Actor, name string) int64 {
	t.Helper()
	res, err := f.svc.CreatePatient(context.Background(), actor, payload(t, map[string]any{"1": name}))
	require.NoError(t, err)
	return res.PatientID
}

func TestCreatePatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePatient(ctx, f.doctor, payload(t, map[string]any{
		"1":    "Alice",
		"2":    "St. Mary",
		"3":    42,
		"6":    []string{"cough"},
		"999":  "unknown question",
		"name": "not a question id",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Name)
	assert.False(t, res.SubmitStatus)

	patient, err := f.repos.Patients.Get(ctx, res.PatientID)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, patient.DoctorID)
	assert.False(t, patient.Hidden)

	progress, err := f.svc.Progress(ctx, res.PatientID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true}, progress.Sections)
	assert.False(t, progress.SubmitStatus)
	assert.False(t, progress.OutcomeStatus)
	assert.False(t, progress.Completed)

	assert.Equal(t, 1, f.store.AnswerCount(res.PatientID, 3, model.VariantPrimary))
	assert.Equal(t, 1, f.store.AnswerCount(res.PatientID, 6, model.VariantPrimary))
	assert.Equal(t, 0, f.store.AnswerCount(res.PatientID, 999, model.VariantPrimary))

	require.Len(t, f.events, 1)
	assert.Equal(t, event.PatientCreated, f.events[0].Type)
	assert.Equal(t, "Alice", f.events[0].PatientName)
	assert.Equal(t, f.doctor.ID, f.events[0].OwnerID)
}

func TestCreatePatientNameMatchesStoredAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		res, err := f.svc.CreatePatient(ctx, f.doctor, payload(t, map[string]any{
			"1":  "Jane",
			"01": "Mallory",
			"+1": "Eve",
		}))
		require.NoError(t, err)
		assert.Equal(t, "Jane", res.Name)

		answers, err := f.repos.Answers.ListByQuestions(ctx, []int64{res.PatientID}, []int64{1})
		require.NoError(t, err)
		require.Len(t, answers, 1)
		assert.Equal(t, `"Jane"`, answers[0].Value)
	}
}

func TestCreatePatientByAdminStartsHidden(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, f.admin, "Test Patient")

	patient, err := f.repos.Patients.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, patient.Hidden)
}

func TestCreatePatientWithoutNameHasEmptyName(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreatePatient(context.Background(), f.doctor, payload(t, map[string]any{"2": "Clinic"}))
	require.NoError(t, err)
	assert.Equal(t, "", res.Name)
}

func TestCreatePatientRollsBackOnStatusFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailOn("statuses.BulkInsert", errors.New("disk full"))

	_, err := f.svc.CreatePatient(ctx, f.doctor, payload(t, map[string]any{"1": "Alice"}))
	require.Error(t, err)

	patients, total, err := f.repos.Patients.Page(ctx, &model.ListQuery{
		Actor:      f.admin,
		Scope:      model.ScopeAll,
		Pagination: model.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, patients)
	assert.Zero(t, total)
	assert.Empty(t, f.events)
}

func TestCreatePatientUploadsFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePatient(ctx, f.doctor, payload(t, map[string]any{
		"1": "Alice",
		"4": []map[string]string{{"data": "data:image/png;base64,aGVsbG8=", "name": "scan.png"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, f.uploader.calls)

	section, err := f.svc.GetSection(ctx, res.PatientID, 1)
	require.NoError(t, err)
	var files *model.AnswerView
	for _, a := range section.Answers {
		if a.QuestionID == 4 {
			files = a
		}
	}
	require.NotNil(t, files)
	assert.JSONEq(t, `["https://files.test/a.png"]`, string(files.Value))
}

func TestCreatePatientMalformedFilesStoreEmptyList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreatePatient(ctx, f.doctor, model.SectionPayload{
		"1": json.RawMessage(`"Alice"`),
		"4": json.RawMessage(`"not a file list"`),
	})
	require.NoError(t, err)
	assert.Zero(t, f.uploader.calls)

	answers, err := f.repos.Answers.ListByQuestions(ctx, []int64{res.PatientID}, []int64{4})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "[]", answers[0].Value)
}

func TestUpdateSectionOverwritesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	first, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{
		"6": []string{"fever"},
		"7": map[string]any{"answers": "other", "other_field": "rash"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Zero(t, first.Updated)

	second, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{
		"6": []string{"fever", "cough"},
	}))
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 1, second.Updated)

	assert.Equal(t, 1, f.store.AnswerCount(id, 6, model.VariantPrimary))
	assert.Equal(t, 1, f.store.AnswerCount(id, 7, model.VariantOther))

	section, err := f.svc.GetSection(ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, section.Completed)
	require.Len(t, section.Answers, 2)
	assert.Equal(t, int64(6), section.Answers[0].QuestionID)
	assert.JSONEq(t, `["fever","cough"]`, string(section.Answers[0].Value))
	assert.JSONEq(t, `"other"`, string(section.Answers[1].Value))
	assert.JSONEq(t, `"rash"`, string(section.Answers[1].Other))
}

func TestUpdateSectionPlainValueClearsOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{
		"7": map[string]any{"answers": "other", "other_field": "rash"},
	}))
	require.NoError(t, err)
	require.Equal(t, 1, f.store.AnswerCount(id, 7, model.VariantOther))

	res, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{"7": "yes"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, f.store.AnswerCount(id, 7, model.VariantOther))
	assert.Equal(t, 1, f.store.AnswerCount(id, 7, model.VariantPrimary))

	section, err := f.svc.GetSection(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, section.Answers, 1)
	assert.JSONEq(t, `"yes"`, string(section.Answers[0].Value))
	assert.Nil(t, section.Answers[0].Other)
}

func TestUpdateSectionIgnoresOtherSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	res, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{
		"1": "Mallory",
		"7": "yes",
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	answers, err := f.repos.Answers.ListByQuestions(ctx, []int64{id}, []int64{1})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, `"Alice"`, answers[0].Value)
}

func TestUpdateSectionNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 42, model.SectionPayload{})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.UpdatePatientSection(ctx, f.doctor, id+100, 2, model.SectionPayload{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateSectionRollsBackAnswersWhenStatusFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")
	f.events = nil

	f.store.FailOn("statuses.Complete", errors.New("constraint violation"))
	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{"7": "yes"}))
	require.Error(t, err)
	assert.Zero(t, f.store.AnswerCount(id, 7, model.VariantPrimary))
	assert.Empty(t, f.events)

	f.store.FailOn("statuses.Complete", nil)
	_, err = f.svc.UpdatePatientSection(ctx, f.doctor, id, 2, payload(t, map[string]any{"7": "yes"}))
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.AnswerCount(id, 7, model.VariantPrimary))
}

func TestOutcomeSectionScoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")
	f.events = nil

	first, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, outcomeSection, payload(t, map[string]any{"10": "recovered"}))
	require.NoError(t, err)
	assert.True(t, first.NewOutcome)
	assert.Equal(t, []event.Type{event.SectionUpdated, event.OutcomeRecorded}, f.eventTypes())
	assert.Equal(t, 1, f.events[1].Score)

	f.events = nil
	second, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, outcomeSection, payload(t, map[string]any{"10": "relapsed"}))
	require.NoError(t, err)
	assert.False(t, second.NewOutcome)
	assert.Equal(t, []event.Type{event.SectionUpdated}, f.eventTypes())

	view, err := f.svc.scorer.Score(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Score.Score)

	progress, err := f.svc.Progress(ctx, id)
	require.NoError(t, err)
	assert.True(t, progress.OutcomeStatus)
	assert.True(t, progress.Sections[outcomeSection])
}

func TestOutcomeMilestone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, f.doctor, "Alice")
	b := f.create(t, f.doctor, "Bob")

	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, a, outcomeSection, payload(t, map[string]any{"10": "x"}))
	require.NoError(t, err)
	f.events = nil

	_, err = f.svc.UpdatePatientSection(ctx, f.doctor, b, outcomeSection, payload(t, map[string]any{"10": "x"}))
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.SectionUpdated, event.OutcomeRecorded, event.MilestoneReached}, f.eventTypes())
	assert.Equal(t, f.doctor.ID, f.events[2].DoctorID)

	score, err := f.repos.Scores.Get(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, score.Score)
	assert.Zero(t, score.Threshold)
}

func TestOutcomeScoringFailureRollsBackSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	f.store.FailOn("scores.Increment", errors.New("deadlock"))
	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, outcomeSection, payload(t, map[string]any{"10": "x"}))
	require.Error(t, err)

	progress, err := f.svc.Progress(ctx, id)
	require.NoError(t, err)
	assert.False(t, progress.OutcomeStatus)
	assert.False(t, progress.Sections[outcomeSection])
	assert.Zero(t, f.store.AnswerCount(id, 10, model.VariantPrimary))
}

func TestSubmitPatientIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")
	f.events = nil

	first, err := f.svc.SubmitPatient(ctx, f.doctor, id)
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.svc.SubmitPatient(ctx, f.doctor, id)
	require.NoError(t, err)
	assert.False(t, second.Changed)

	assert.Equal(t, []event.Type{event.PatientSubmitted}, f.eventTypes())

	progress, err := f.svc.Progress(ctx, id)
	require.NoError(t, err)
	assert.True(t, progress.SubmitStatus)

	_, err = f.svc.SubmitPatient(ctx, f.doctor, id+100)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeletePatientReversesScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")
	keep := f.create(t, f.doctor, "Bob")

	for _, pid := range []int64{id, keep} {
		_, err := f.svc.UpdatePatientSection(ctx, f.doctor, pid, outcomeSection, payload(t, map[string]any{"10": "x"}))
		require.NoError(t, err)
	}
	_, err := f.repos.Marked.Mark(ctx, f.admin.ID, id)
	require.NoError(t, err)
	f.events = nil

	res, err := f.svc.DeletePatient(ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{f.doctor.ID: 1}, res.Reversed)

	score, err := f.repos.Scores.Get(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, score.Score)

	history, err := f.repos.Scores.ListHistory(ctx, f.doctor.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, model.ScoreActionPatientDeleted, history[0].Action)
	assert.Equal(t, -1, history[0].Delta)

	_, err = f.repos.Patients.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, f.store.AnswerCount(id, 1, model.VariantPrimary))
	marked, err := f.repos.Marked.PatientIDs(ctx, f.admin.ID, []int64{id})
	require.NoError(t, err)
	assert.Empty(t, marked)

	require.Len(t, f.events, 1)
	assert.Equal(t, event.PatientDeleted, f.events[0].Type)
	assert.Equal(t, f.doctor.ID, f.events[0].OwnerID)

	_, err = f.svc.DeletePatient(ctx, f.admin, id)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeletePatientRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")
	_, err := f.svc.UpdatePatientSection(ctx, f.doctor, id, outcomeSection, payload(t, map[string]any{"10": "x"}))
	require.NoError(t, err)

	f.store.FailOn("patients.Delete", errors.New("lock timeout"))
	_, err = f.svc.DeletePatient(ctx, f.admin, id)
	require.Error(t, err)

	score, err := f.repos.Scores.Get(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, score.Score)
	assert.Equal(t, 1, f.store.AnswerCount(id, 10, model.VariantPrimary))
}

func TestGetSectionValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.doctor, "Alice")

	_, err := f.svc.GetSection(ctx, id, 42)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.GetSection(ctx, id+100, 1)
	assert.True(t, apperrors.IsNotFound(err))

	empty, err := f.svc.GetSection(ctx, id, 2)
	require.NoError(t, err)
	assert.False(t, empty.Completed)
	assert.Empty(t, empty.Answers)
}
