// Package parquet provides row types and writers for exporting reposcore
// results to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/reposcore/schema"
	"github.com/parquet-go/parquet-go"
)

// ScoreRun represents a single batch scoring run with metadata.
// This struct maps to the reposcore_runs database table.
type ScoreRun struct {
	RunID         int64      `parquet:"run_id,snappy"`
	RunUUID       string     `parquet:"run_uuid,snappy"`
	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`
	TotalRepos    int32      `parquet:"total_repos,snappy"`
	TotalFailed   int32      `parquet:"total_failed,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// RunResult is one scored repository recorded for a run.
// This struct maps to the reposcore_results database table.
type RunResult struct {
	RunID    int64  `parquet:"run_id,snappy"`
	RepoURL  string `parquet:"repo_url,snappy"`
	Name     string `parquet:"name,snappy"`
	Language string `parquet:"language,snappy"`

	// Signals is the JSON object of all collected signals in canonical order
	Signals          string    `parquet:"signals,snappy"`
	CriticalityScore float64   `parquet:"criticality_score,snappy"`
	RecordedAt       time.Time `parquet:"recorded_at,snappy"`
}

// ScoreRow is a flat, typed rendition of a ScoreResult. Column names follow
// the canonical output header.
type ScoreRow struct {
	CreatedAt *time.Time `parquet:"created_at,optional,snappy"`
	Name      string     `parquet:"name,snappy"`
	URL       string     `parquet:"url,snappy"`
	Language  string     `parquet:"language,snappy"`

	CreatedSince        int64   `parquet:"created_since,snappy"`
	UpdatedSince        int64   `parquet:"updated_since,snappy"`
	ContributorCount    int64   `parquet:"contributor_count,snappy"`
	OrgCount            int64   `parquet:"org_count,snappy"`
	CommitFrequency     float64 `parquet:"commit_frequency,snappy"`
	RecentReleasesCount int64   `parquet:"recent_releases_count,snappy"`
	UpdatedIssuesCount  int64   `parquet:"updated_issues_count,snappy"`
	ClosedIssuesCount   int64   `parquet:"closed_issues_count,snappy"`
	CommentFrequency    float64 `parquet:"comment_frequency,snappy"`
	DependentsCount     int64   `parquet:"dependents_count,snappy"`

	CodeLineChangeRecentYear         string  `parquet:"code_line_change_recent_year,snappy"`
	CodeEffort                       float64 `parquet:"code_effort,snappy"`
	CoreLineChangeRecentYear         string  `parquet:"core_line_change_recent_year,snappy"`
	CoreEffort                       float64 `parquet:"core_effort,snappy"`
	ActiveContributorCountRecentYear int64   `parquet:"activity_contributor_count_recent_year,snappy"`

	CriticalityScore float64 `parquet:"criticality_score,snappy"`
}

// NewScoreRow flattens a result. A nil createdAt leaves the column null.
func NewScoreRow(r schema.ScoreResult, createdAt *time.Time) ScoreRow {
	num := func(name schema.SignalName) float64 {
		v, _ := r.Signals.Get(name)
		f, _ := schema.Numeric(v)
		return f
	}
	str := func(name schema.SignalName) string {
		v, _ := r.Signals.Get(name)
		return schema.FormatSignal(name, v)
	}

	return ScoreRow{
		CreatedAt: createdAt,
		Name:      r.Name,
		URL:       r.URL,
		Language:  r.Language,

		CreatedSince:        int64(num(schema.CreatedSince)),
		UpdatedSince:        int64(num(schema.UpdatedSince)),
		ContributorCount:    int64(num(schema.ContributorCount)),
		OrgCount:            int64(num(schema.OrgCount)),
		CommitFrequency:     num(schema.CommitFrequency),
		RecentReleasesCount: int64(num(schema.RecentReleasesCount)),
		UpdatedIssuesCount:  int64(num(schema.UpdatedIssuesCount)),
		ClosedIssuesCount:   int64(num(schema.ClosedIssuesCount)),
		CommentFrequency:    num(schema.CommentFrequency),
		DependentsCount:     int64(num(schema.DependentsCount)),

		CodeLineChangeRecentYear:         str(schema.CodeLineChangeRecentYear),
		CodeEffort:                       num(schema.CodeEffort),
		CoreLineChangeRecentYear:         str(schema.CoreLineChangeRecentYear),
		CoreEffort:                       num(schema.CoreEffort),
		ActiveContributorCountRecentYear: int64(num(schema.ActiveContributorCountRecentYear)),

		CriticalityScore: r.CriticalityScore,
	}
}

// ConvertScoreResults flattens results in order.
func ConvertScoreResults(results []schema.ScoreResult, createdAt *time.Time) []ScoreRow {
	rows := make([]ScoreRow, len(results))
	for i, r := range results {
		rows[i] = NewScoreRow(r, createdAt)
	}
	return rows
}

// ConvertRunRecords converts schema.RunRecord to ScoreRun for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []ScoreRun {
	result := make([]ScoreRun, len(records))
	for i, record := range records {
		result[i] = ScoreRun{
			RunID:         record.RunID,
			RunUUID:       record.RunUUID,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalRepos:    record.TotalRepos,
			TotalFailed:   record.TotalFailed,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertResultRecords converts schema.ResultRecord to RunResult for Parquet export.
func ConvertResultRecords(records []schema.ResultRecord) []RunResult {
	result := make([]RunResult, len(records))
	for i, record := range records {
		result[i] = RunResult{
			RunID:            record.RunID,
			RepoURL:          record.RepoURL,
			Name:             record.Name,
			Language:         record.Language,
			Signals:          record.Signals,
			CriticalityScore: record.CriticalityScore,
			RecordedAt:       record.RecordedAt,
		}
	}
	return result
}

// WriteRows writes rows to w. The schema is derived from the struct tags of T.
func WriteRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile creates outputPath and writes rows into it.
func WriteFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteRows(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteScoreRunsParquet writes score runs to a Parquet file.
func WriteScoreRunsParquet(data []ScoreRun, outputPath string) error {
	return WriteFile(data, outputPath)
}

// WriteRunResultsParquet writes recorded run results to a Parquet file.
func WriteRunResultsParquet(data []RunResult, outputPath string) error {
	return WriteFile(data, outputPath)
}
