package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Intake workflow
	PatientsCreated  prometheus.Counter
	PatientsDeleted  prometheus.Counter
	SectionUpdates   *prometheus.CounterVec
	AnswersWritten   *prometheus.CounterVec
	OutcomesRecorded prometheus.Counter
	ScoreAwarded     prometheus.Counter
	MilestonesHit    prometheus.Counter

	// Side effects
	NotificationsCreated *prometheus.CounterVec
	PushDeliveries       *prometheus.CounterVec
	UploadFailures       prometheus.Counter
	EventHandlerFailures *prometheus.CounterVec

	// Read path
	ListingLatency *prometheus.HistogramVec
	StatsCache     *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates all application metrics and registers them on reg.
// A nil reg registers on the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PatientsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patients_created_total",
			Help:      "Total number of patients created",
		}),
		PatientsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patients_deleted_total",
			Help:      "Total number of patients deleted",
		}),
		SectionUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_updates_total",
			Help:      "Total number of section updates by result",
		}, []string{"section", "status"}),
		AnswersWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_written_total",
			Help:      "Answer rows written, split by insert and update",
		}, []string{"operation"}),
		OutcomesRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_recorded_total",
			Help:      "First-time outcome status transitions",
		}),
		ScoreAwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_awarded_total",
			Help:      "Total score points awarded to doctors",
		}),
		MilestonesHit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_milestones_total",
			Help:      "Number of threshold milestones reached",
		}),
		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications stored, by type and status",
		}, []string{"type", "status"}),
		PushDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push delivery attempts by status",
		}, []string{"status"}),
		UploadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_upload_failures_total",
			Help:      "File answer uploads that degraded to an empty result",
		}),
		EventHandlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_failures_total",
			Help:      "Domain event subscriber failures",
		}, []string{"event_type"}),
		ListingLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listing_duration_seconds",
			Help:      "Duration of patient listing projections",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"strategy"}),
		StatsCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_requests_total",
			Help:      "Dashboard count cache lookups by result",
		}, []string{"result"}),
		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return New("test", prometheus.NewRegistry())
}
