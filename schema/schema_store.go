package schema

import "time"

// RunRecord represents a row from the reposcore_runs table.
type RunRecord struct {
	RunID         int64
	RunUUID       string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalRepos    int32
	TotalFailed   int32
	ConfigParams  *string
}

// ResultRecord represents a row from the reposcore_results table.
type ResultRecord struct {
	RunID            int64
	RepoURL          string
	Name             string
	Language         string
	Signals          string // JSON object in canonical order
	CriticalityScore float64
	RecordedAt       time.Time
}
