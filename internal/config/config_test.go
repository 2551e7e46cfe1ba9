package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
listing:
  strategy: join
questionnaire:
  outcome_section_id: 7
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "join", cfg.Listing.Strategy)
	assert.Equal(t, int64(7), cfg.Questionnaire.OutcomeSectionID)
	assert.Equal(t, 50, cfg.Scoring.MilestoneThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Stats.TTL)
	assert.Equal(t, "intake.events", cfg.Redis.EventChannel)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  host: db.internal\n")
	t.Setenv("INTAKE_DATABASE_HOST", "db.override")
	t.Setenv("INTAKE_JWT_SECRET", "s3cret")
	t.Setenv("INTAKE_SCORING_MILESTONE_THRESHOLD", "10")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 10, cfg.Scoring.MilestoneThreshold)
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, "listing:\n  strategy: memory\n")

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=intake sslmode=disable", cfg.Database.DSN())
}
