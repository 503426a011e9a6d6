package dto

import "time"

type CaseResult struct {
	Name     string
	Status   string
	Elapsed  time.Duration
	ShortLog string
	FullLog  string
}

type RunResult struct {
	ID         string
	ProviderID string
	Label      string
	StartedAt  time.Time
	Cases      []CaseResult
}

type Sample struct {
	ID    string
	Title string
}

type Snapshot struct {
	Stage    string
	Provider string
	State    string
	Results  []RunResult
	Sample   *Sample
}
