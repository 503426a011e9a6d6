package domain

import (
	"errors"
	"time"

	providerdomain "provhost/internal/modules/provider/domain"
)

var (
	ErrJobRunning    = errors.New("a test run is already active")
	ErrJobNotRunning = errors.New("no test run is active")
	ErrJobNotPaused  = errors.New("test run is not paused")
)

type StageKind int

const (
	StageIdle StageKind = iota
	StagePropertyChecks
	StageMethodChecks
	StageDone
)

func (k StageKind) String() string {
	switch k {
	case StagePropertyChecks:
		return "property-checks"
	case StageMethodChecks:
		return "method-checks"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

// Stage marks harness progress. Provider is empty only when Kind is StageIdle.
//
// Between providers the stage moves from Done(prev) straight to
// PropertyChecks(next); there is no intermediate Idle. Idle is only
// published before a run starts and after it ends or is stopped, so a
// running job always reports the provider in progress.
type Stage struct {
	Kind     StageKind
	Provider string
}

func (s Stage) IsIdle() bool {
	return s.Kind == StageIdle
}

type JobState int

const (
	JobIdle JobState = iota
	JobRunning
	JobPaused
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobPaused:
		return "paused"
	default:
		return "idle"
	}
}

type Status string

const (
	StatusRunning        Status = "running"
	StatusSuccess        Status = "success"
	StatusFailure        Status = "failure"
	StatusNotImplemented Status = "not-implemented"
)

type CaseResult struct {
	Name     string
	Status   Status
	Elapsed  time.Duration
	ShortLog string
	FullLog  string
}

// Target is a provider scheduled for testing.
type Target struct {
	ID   string
	Name string
}

type RunResult struct {
	ID        string
	Provider  Target
	Label     string
	StartedAt time.Time
	Cases     []CaseResult
}

func (r RunResult) clone() RunResult {
	r.Cases = append([]CaseResult(nil), r.Cases...)
	return r
}

type Snapshot struct {
	Stage   Stage
	State   JobState
	Results []RunResult
	Sample  *providerdomain.Film
}

// CloneResults deep-copies results so callers never share case slices.
func CloneResults(results []RunResult) []RunResult {
	out := make([]RunResult, len(results))
	for i, result := range results {
		out[i] = result.clone()
	}
	return out
}
