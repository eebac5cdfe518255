package health

import (
	"context"
	"sync/atomic"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates the gateway is fully operational.
	Healthy Status = "ok"
	// Degraded indicates the gateway is up but not fully serving yet.
	Degraded Status = "degraded"
	// Unhealthy indicates the storage backend is unreachable.
	Unhealthy Status = "error"
)

// Report aggregates readiness state for the health endpoint.
type Report struct {
	Status      Status
	Ready       bool
	ModelLoaded bool
	RecordCount int
}

// Service tracks warmup state and aggregates component checks.
type Service struct {
	db          DBPinger
	records     RecordCounter
	modelLoaded atomic.Bool
}

// New creates a Service. The model counts as not loaded until the warmup
// goroutine calls SetModelLoaded.
func New(db DBPinger, records RecordCounter) *Service {
	return &Service{db: db, records: records}
}

// SetModelLoaded marks the embedding model as warmed up.
func (s *Service) SetModelLoaded() {
	s.modelLoaded.Store(true)
}

// ModelLoaded reports whether the warmup embed has succeeded.
func (s *Service) ModelLoaded() bool {
	return s.modelLoaded.Load()
}

// Check runs the component checks and aggregates them into a Report.
// Ready requires a reachable database and a loaded model.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{ModelLoaded: s.modelLoaded.Load()}

	if err := s.db.Ping(ctx); err != nil {
		report.Status = Unhealthy
		return report
	}

	// Счётчик записей информационный и на готовность не влияет.
	countOK := true
	if n, err := s.records.Count(ctx); err != nil {
		countOK = false
	} else {
		report.RecordCount = n
	}

	report.Ready = report.ModelLoaded
	if report.ModelLoaded && countOK {
		report.Status = Healthy
	} else {
		report.Status = Degraded
	}
	return report
}
