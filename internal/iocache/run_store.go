package iocache

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
)

// Table names for score run tracking.
const (
	runsTable    = "reposcore_runs"
	resultsTable = "reposcore_results"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	now     func() time.Time
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend, now: time.Now}, nil
	}

	db, err := openDB(backend, connStr, GetRunsDBFilePath())
	if err != nil {
		return nil, err
	}
	if err := applySchema(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend, now: time.Now}, nil
}

func (rs *RunStoreImpl) table(name string) string {
	return quoteTableName(name, rs.backend)
}

func (rs *RunStoreImpl) ph(n int) string {
	return placeholder(rs.backend, n)
}

// BeginRun creates a new score run and returns its ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}
	runUUID := uuid.NewString()

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, start_time, config_params) VALUES ($1, $2, $3) RETURNING run_id`, rs.table(runsTable))
		err = rs.db.QueryRow(query, runUUID, startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, start_time, config_params) VALUES (?, ?, ?)`, rs.table(runsTable))
		var result sql.Result
		result, err = rs.db.Exec(query, runUUID, formatTime(startTime, rs.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert score run: %w", err)
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, totalRepos, totalFailed int) error {
	if rs.db == nil {
		return nil
	}

	var start timeScanner
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, rs.table(runsTable), rs.ph(1))
	if err := rs.db.QueryRow(query, runID).Scan(&start); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(start.Time).Milliseconds()

	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_repos = %s, total_failed = %s WHERE run_id = %s`,
		rs.table(runsTable), rs.ph(1), rs.ph(2), rs.ph(3), rs.ph(4), rs.ph(5))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, totalRepos, totalFailed, runID); err != nil {
		return fmt.Errorf("failed to update score run: %w", err)
	}
	return nil
}

// RecordResult stores one scored repository for the run.
func (rs *RunStoreImpl) RecordResult(runID int64, result schema.ScoreResult) error {
	if rs.db == nil {
		return nil
	}

	signals, err := encodeSignals(result.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals for %s: %w", result.URL, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, repo_url, name, language, signals, criticality_score, recorded_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s)`, rs.table(resultsTable),
		rs.ph(1), rs.ph(2), rs.ph(3), rs.ph(4), rs.ph(5), rs.ph(6), rs.ph(7))
	_, err = rs.db.Exec(query, runID, result.URL, result.Name, result.Language, signals,
		result.CriticalityScore, formatTime(rs.now(), rs.backend))
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", result.URL, err)
	}
	return nil
}

// encodeSignals writes the record as a JSON object whose keys keep record order.
func encodeSignals(record schema.SignalRecord) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range record {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(s.Name))
		if err != nil {
			return "", err
		}
		value, err := json.Marshal(s.Value)
		if err != nil {
			return "", err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

const resultColumns = `run_id, repo_url, name, language, signals, criticality_score, recorded_at`

func scanResults(rows *sql.Rows) ([]schema.ResultRecord, error) {
	defer func() { _ = rows.Close() }()

	results := []schema.ResultRecord{}
	for rows.Next() {
		var r schema.ResultRecord
		var recorded timeScanner
		if err := rows.Scan(&r.RunID, &r.RepoURL, &r.Name, &r.Language, &r.Signals, &r.CriticalityScore, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.RecordedAt = recorded.Time
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

// GetHistory returns the most recent results for a repository URL, newest first.
func (rs *RunStoreImpl) GetHistory(repoURL string, limit int) ([]schema.ResultRecord, error) {
	if rs.db == nil {
		return []schema.ResultRecord{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE repo_url = %s ORDER BY run_id DESC LIMIT %d`,
		resultColumns, rs.table(resultsTable), rs.ph(1), limit)
	rows, err := rs.db.Query(query, repoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", repoURL, err)
	}
	return scanResults(rows)
}

// GetAllResults retrieves all recorded results ordered by run and URL.
func (rs *RunStoreImpl) GetAllResults() ([]schema.ResultRecord, error) {
	if rs.db == nil {
		return nil, nil
	}
	rows, err := rs.db.Query(fmt.Sprintf(`SELECT %s FROM %s ORDER BY run_id, repo_url`, resultColumns, rs.table(resultsTable)))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return scanResults(rows)
}

// GetAllRuns retrieves all score runs, oldest first.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, run_uuid, start_time, end_time, run_duration_ms, total_repos, total_failed, config_params
		FROM %s ORDER BY run_id`, rs.table(runsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query score runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []schema.RunRecord
	for rows.Next() {
		var r schema.RunRecord
		var start, end timeScanner
		if err := rows.Scan(&r.RunID, &r.RunUUID, &start, &end, &r.RunDurationMs, &r.TotalRepos, &r.TotalFailed, &r.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan score run: %w", err)
		}
		r.StartTime = start.Time
		if end.Valid {
			endTime := end.Time
			r.EndTime = &endTime
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(runsTable))).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var last, oldest timeScanner
		lastQuery := fmt.Sprintf("SELECT run_id, run_uuid, start_time FROM %s ORDER BY run_id DESC LIMIT 1", rs.table(runsTable))
		if err := rs.db.QueryRow(lastQuery).Scan(&status.LastRunID, &status.LastRunUUID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = last.Time

		oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", rs.table(runsTable))
		if err := rs.db.QueryRow(oldestQuery).Scan(&oldest); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest.Time

		reposQuery := fmt.Sprintf("SELECT COALESCE(SUM(total_repos), 0) FROM %s", rs.table(runsTable))
		if err := rs.db.QueryRow(reposQuery).Scan(&status.TotalReposScored); err != nil {
			return status, fmt.Errorf("failed to get total repos scored: %w", err)
		}
	}

	for _, table := range []string{runsTable, resultsTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}
