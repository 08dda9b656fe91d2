package health

import "context"

// Status summarises a Report.
type Status string

// Report statuses. Degraded means the store answers but search does not.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one component check.
type CheckResult string

// Component check outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Checked component names.
const (
	ComponentDatabase = "database"
	ComponentSearch   = "search"
)

// probeIndex never exists. Looking it up exercises the search module.
const probeIndex = "rg.__health"

// Report is the health of the store and the search engine.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs the health checks.
type Service struct {
	db     DBPinger
	search IndexProber
}

// New creates a Service. A nil search skips the search check.
func New(db DBPinger, search IndexProber) *Service {
	return &Service{db: db, search: search}
}

// Check pings the store and, when it answers, probes the search module.
func (s *Service) Check(ctx context.Context) Report {
	if err := s.db.Ping(ctx); err != nil {
		return Report{Status: Unhealthy, Checks: map[string]CheckResult{ComponentDatabase: CheckError}}
	}

	r := Report{Status: Healthy, Checks: map[string]CheckResult{ComponentDatabase: CheckOK}}
	if s.search == nil {
		return r
	}
	if _, err := s.search.IndexExists(ctx, probeIndex); err != nil {
		r.Checks[ComponentSearch] = CheckError
		r.Status = Degraded
		return r
	}
	r.Checks[ComponentSearch] = CheckOK
	return r
}
