package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type statsRepository struct {
	BaseRepository
}

func NewStatsRepository(base BaseRepository) repository.StatsRepository {
	return &statsRepository{base}
}

// Counts aggregates dashboard numbers. doctorID 0 counts every doctor.
func (r *statsRepository) Counts(ctx context.Context, doctorID int64, includeHidden bool) (*model.PatientCounts, error) {
	a := &args{}
	joins := fmt.Sprintf(`
		LEFT JOIN patient_statuses ss ON ss.patient_id = p.id AND ss.key = %s
		LEFT JOIN patient_statuses os ON os.patient_id = p.id AND os.key = %s`,
		a.add(model.StatusKeySubmit), a.add(model.StatusKeyOutcome))

	w := &where{}
	if !includeHidden {
		w.and("p.hidden = FALSE")
	}
	if doctorID > 0 {
		w.and("p.doctor_id = " + a.add(doctorID))
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE ss.status) AS submitted,
			COUNT(*) FILTER (WHERE os.status) AS outcomes,
			COUNT(*) FILTER (WHERE ss.status AND os.status) AS completed
		FROM patients p` + joins + w.String()

	var counts model.PatientCounts
	if err := sqlx.GetContext(ctx, r.ext(ctx), &counts, query, a.values...); err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	return &counts, nil
}
