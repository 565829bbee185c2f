package parquet

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/reposcore/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBack[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[T](file)
	defer func() { _ = reader.Close() }()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err)
	}
	return rows[:n]
}

func sampleResult() schema.ScoreResult {
	values := map[schema.SignalName]any{
		schema.CreatedSince:                     120,
		schema.UpdatedSince:                     0,
		schema.ContributorCount:                 250,
		schema.OrgCount:                         4,
		schema.CommitFrequency:                  12.5,
		schema.RecentReleasesCount:              6,
		schema.UpdatedIssuesCount:               80,
		schema.ClosedIssuesCount:                40,
		schema.CommentFrequency:                 2.3,
		schema.DependentsCount:                  900,
		schema.CodeLineChangeRecentYear:         "+10, -7",
		schema.CodeEffort:                       0.1,
		schema.CoreLineChangeRecentYear:         "+5, -1 (go: +5, -1)",
		schema.CoreEffort:                       0.0,
		schema.ActiveContributorCountRecentYear: 2,
	}
	record := make(schema.SignalRecord, 0, len(schema.CanonicalSignals))
	for _, name := range schema.CanonicalSignals {
		record = append(record, schema.Signal{Name: name, Value: values[name]})
	}
	return schema.ScoreResult{
		Name:             "kubernetes/kubernetes",
		URL:              "https://github.com/kubernetes/kubernetes",
		Language:         "Go",
		Signals:          record,
		CriticalityScore: 0.52591,
	}
}

func TestScoreRowColumnsFollowCanonicalHeader(t *testing.T) {
	s := parquet.SchemaOf(new(ScoreRow))
	for _, col := range append(schema.CanonicalHeader(), schema.FieldTime) {
		_, ok := s.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
}

func TestRunTablesColumns(t *testing.T) {
	runs := parquet.SchemaOf(new(ScoreRun))
	for _, col := range []string{"run_id", "run_uuid", "start_time", "end_time", "run_duration_ms", "total_repos", "total_failed", "config_params"} {
		_, ok := runs.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
	results := parquet.SchemaOf(new(RunResult))
	for _, col := range []string{"run_id", "repo_url", "name", "language", "signals", "criticality_score", "recorded_at"} {
		_, ok := results.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
}

func TestNewScoreRow(t *testing.T) {
	row := NewScoreRow(sampleResult(), nil)
	assert.Nil(t, row.CreatedAt)
	assert.Equal(t, "kubernetes/kubernetes", row.Name)
	assert.Equal(t, int64(120), row.CreatedSince)
	assert.Equal(t, 12.5, row.CommitFrequency)
	assert.Equal(t, int64(900), row.DependentsCount)
	assert.Equal(t, "+5, -1 (go: +5, -1)", row.CoreLineChangeRecentYear)
	assert.Equal(t, int64(2), row.ActiveContributorCountRecentYear)
	assert.Equal(t, 0.52591, row.CriticalityScore)
}

func TestWriteScoreRowsRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	rows := ConvertScoreResults([]schema.ScoreResult{sampleResult(), sampleResult()}, &createdAt)
	path := filepath.Join(t.TempDir(), "scores.parquet")
	require.NoError(t, WriteFile(rows, path))

	got := readBack[ScoreRow](t, path)
	require.Len(t, got, 2)
	assert.Equal(t, rows[0].URL, got[0].URL)
	assert.Equal(t, rows[0].CodeLineChangeRecentYear, got[0].CodeLineChangeRecentYear)
	assert.InDelta(t, rows[0].CriticalityScore, got[0].CriticalityScore, 1e-9)
	require.NotNil(t, got[0].CreatedAt)
	assert.True(t, createdAt.Equal(*got[0].CreatedAt))
}

func TestWriteRowsToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, ConvertScoreResults([]schema.ScoreResult{sampleResult()}, nil)))
	assert.Equal(t, "PAR1", buf.String()[:4])
}

func TestWriteScoreRunsNullableFields(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Minute)
	duration := int32(60000)
	config := `{"workers":4}`
	records := []schema.RunRecord{
		{RunID: 1, RunUUID: "a", StartTime: now, EndTime: &end, RunDurationMs: &duration, TotalRepos: 10, TotalFailed: 1, ConfigParams: &config},
		{RunID: 2, RunUUID: "b", StartTime: now},
	}
	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteScoreRunsParquet(ConvertRunRecords(records), path))

	got := readBack[ScoreRun](t, path)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].EndTime)
	assert.WithinDuration(t, end, *got[0].EndTime, time.Nanosecond)
	assert.Equal(t, duration, *got[0].RunDurationMs)
	assert.Equal(t, config, *got[0].ConfigParams)
	assert.Nil(t, got[1].EndTime)
	assert.Nil(t, got[1].RunDurationMs)
	assert.Nil(t, got[1].ConfigParams)
}

func TestWriteRunResults(t *testing.T) {
	records := []schema.ResultRecord{{
		RunID: 1, RepoURL: "https://github.com/a/b", Name: "a/b", Language: "Go",
		Signals: `{"created_since":12}`, CriticalityScore: 0.4, RecordedAt: time.Now(),
	}}
	path := filepath.Join(t.TempDir(), "results.parquet")
	require.NoError(t, WriteRunResultsParquet(ConvertResultRecords(records), path))

	got := readBack[RunResult](t, path)
	require.Len(t, got, 1)
	assert.Equal(t, records[0].Signals, got[0].Signals)
}

func TestWriteEmptyDataKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteScoreRunsParquet([]ScoreRun{}, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteFileInvalidPath(t *testing.T) {
	err := WriteFile([]ScoreRow{}, "/nonexistent/directory/output.parquet")
	require.Error(t, err)
}
