// Package scoring awards doctors for completed outcomes and takes the award back
// when a patient is deleted.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

type Config struct {
	PointsPerOutcome   int
	MilestoneThreshold int
	HistoryLimit       int
}

// Outcome reports what an outcome submission changed.
type Outcome struct {
	// NewOutcome is set only on the first false-to-true transition.
	NewOutcome       bool
	Points           int
	Score            *model.Score
	MilestoneReached bool
}

type Dispatcher struct {
	repos  *repository.Repositories
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

func NewDispatcher(repos *repository.Repositories, cfg Config, log *logger.Logger) *Dispatcher {
	if cfg.PointsPerOutcome <= 0 {
		cfg.PointsPerOutcome = 1
	}
	if cfg.MilestoneThreshold <= 0 {
		cfg.MilestoneThreshold = 50
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &Dispatcher{
		repos:  repos,
		cfg:    cfg,
		logger: log.With("scoring"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordOutcome flips outcome_status to true for the patient and, on the first
// transition only, awards the doctor. It must run inside the caller's transaction.
func (d *Dispatcher) RecordOutcome(ctx context.Context, patientID, doctorID int64) (*Outcome, error) {
	now := d.now()

	changed, err := d.repos.Statuses.Complete(ctx, patientID, model.StatusKeyOutcome, doctorID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to set outcome status: %w", err)
	}
	if !changed {
		return &Outcome{}, nil
	}

	score, err := d.repos.Scores.Increment(ctx, doctorID, d.cfg.PointsPerOutcome, 1)
	if err != nil {
		return nil, err
	}

	out := &Outcome{NewOutcome: true, Points: d.cfg.PointsPerOutcome, Score: score}
	if score.Threshold >= d.cfg.MilestoneThreshold {
		if err := d.repos.Scores.ResetThreshold(ctx, doctorID); err != nil {
			return nil, err
		}
		score.Threshold = 0
		out.MilestoneReached = true
	}

	err = d.repos.Scores.AppendHistory(ctx, &model.ScoreHistory{
		DoctorID:  doctorID,
		PatientID: patientID,
		Delta:     d.cfg.PointsPerOutcome,
		Action:    model.ScoreActionOutcome,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	d.logger.Debug("outcome recorded",
		"patient_id", patientID,
		"doctor_id", doctorID,
		"score", score.Score,
		"milestone", out.MilestoneReached)
	return out, nil
}

// ReversePatient subtracts every doctor's net contribution from the patient's history.
// Scores are clamped at zero. It must run inside the caller's transaction.
func (d *Dispatcher) ReversePatient(ctx context.Context, patientID int64) (map[int64]int, error) {
	sums, err := d.repos.Scores.SumByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	reversed := make(map[int64]int, len(sums))
	for _, c := range sums {
		if err := d.repos.Scores.Reverse(ctx, c.DoctorID, c.Total); err != nil {
			return nil, err
		}
		err := d.repos.Scores.AppendHistory(ctx, &model.ScoreHistory{
			DoctorID:  c.DoctorID,
			PatientID: patientID,
			Delta:     -c.Total,
			Action:    model.ScoreActionPatientDeleted,
			CreatedAt: d.now(),
		})
		if err != nil {
			return nil, err
		}
		reversed[c.DoctorID] = c.Total
	}
	return reversed, nil
}

// Score returns a doctor's running total and recent ledger entries. Doctors who
// never scored get a zero score.
func (d *Dispatcher) Score(ctx context.Context, doctorID int64) (*model.ScoreView, error) {
	score, err := d.repos.Scores.Get(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) {
		score = &model.Score{DoctorID: doctorID}
	} else if err != nil {
		return nil, err
	}

	history, err := d.repos.Scores.ListHistory(ctx, doctorID, d.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return &model.ScoreView{Score: score, History: history}, nil
}
