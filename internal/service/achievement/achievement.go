// Package achievement forwards count and score changes to the achievement rules.
// The rules themselves live outside this service.
package achievement

import (
	"context"

	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

// Tracker is told after commit that a doctor's patient count or score moved.
type Tracker interface {
	OnPatientCountChanged(ctx context.Context, doctorID int64) error
	OnScoreChanged(ctx context.Context, doctorID int64) error
}

// LogTracker records the calls. It is the default when no rules engine is configured.
type LogTracker struct {
	logger *logger.Logger
}

func NewLogTracker(log *logger.Logger) *LogTracker {
	return &LogTracker{logger: log.With("achievement")}
}

func (t *LogTracker) OnPatientCountChanged(_ context.Context, doctorID int64) error {
	t.logger.Debug("patient count changed", "doctor_id", doctorID)
	return nil
}

func (t *LogTracker) OnScoreChanged(_ context.Context, doctorID int64) error {
	t.logger.Debug("score changed", "doctor_id", doctorID)
	return nil
}

// Subscribe routes domain events to the tracker. The owning doctor's count moves on
// create and delete; scores move on outcome and on delete compensation.
func Subscribe(bus *event.Bus, tracker Tracker) {
	bus.Subscribe("achievement", func(ctx context.Context, e event.Event) error {
		switch e.Type {
		case event.PatientCreated:
			return tracker.OnPatientCountChanged(ctx, e.OwnerID)
		case event.OutcomeRecorded:
			return tracker.OnScoreChanged(ctx, e.DoctorID)
		case event.PatientDeleted:
			if err := tracker.OnPatientCountChanged(ctx, e.OwnerID); err != nil {
				return err
			}
			for doctorID := range e.Reversed {
				if err := tracker.OnScoreChanged(ctx, doctorID); err != nil {
					return err
				}
			}
		}
		return nil
	}, event.PatientCreated, event.OutcomeRecorded, event.PatientDeleted)
}
