// Package core orchestrates repository scoring: reading the project list,
// driving the batch runner, recording runs and writing results.
package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/reposcore/core/batch"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/outwriter"
	"github.com/huangsam/reposcore/internal/remote"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is the number of recorded results shown by ExecuteHistory.
const DefaultHistoryLimit = 10

// ExecutorFunc defines the function signature for executing a scoring mode.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteScore scores every repository of the project list and prints the results.
// It serves as the main entry point for the 'score' command.
func ExecuteScore(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	urls, err := ReadProjectList(cfg.ProjectList)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no repository urls in %s", cfg.ProjectList)
	}

	now := time.Now()
	env, err := BuildEnvironment(cfg, mgr, now)
	if err != nil {
		return err
	}
	if cfg.AutoUpdate {
		syncCheckouts(ctx, env, urls)
	}

	run := &scoreRun{
		cfg:   cfg,
		mgr:   mgr,
		score: env.Scorer.Score,
		out:   outwriter.NewOutWriter(),
		since: env.Since,
		start: now,
	}
	_, err = run.execute(ctx, urls)
	return err
}

// ExecuteRepoScore scores a single repository and prints the result.
// It serves as the main entry point for the 'repo' command.
func ExecuteRepoScore(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, repoURL string) error {
	now := time.Now()
	env, err := BuildEnvironment(cfg, mgr, now)
	if err != nil {
		return err
	}
	if cfg.AutoUpdate {
		syncCheckouts(ctx, env, []string{repoURL})
	}
	run := &scoreRun{
		cfg:   cfg,
		mgr:   mgr,
		score: env.Scorer.Score,
		out:   outwriter.NewOutWriter(),
		since: env.Since,
		start: now,
	}
	report, err := run.execute(ctx, []string{repoURL})
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("failed to score %s: %s", repoURL, report.Failures[0].Message)
	}
	return nil
}

// ExecuteSignals prints the signal definitions with the configured weights.
func ExecuteSignals(cfg *contract.Config) error {
	weights := cfg.Weights
	if weights == nil {
		weights = schema.DefaultWeights()
	}
	return outwriter.NewOutWriter().WriteSignals(weights, cfg)
}

// ExecuteHistory prints the most recent recorded results for one repository.
func ExecuteHistory(cfg *contract.Config, mgr contract.CacheManager, repoURL string, limit int) error {
	store := mgr.GetRunStore()
	if store == nil {
		return errors.New("run tracking is disabled, set --runs-backend to record score runs")
	}
	ref, err := remote.ParseURL(repoURL)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	records, err := store.GetHistory(ref.URL, limit)
	if err != nil {
		return fmt.Errorf("failed to read history for %s: %w", ref.URL, err)
	}
	return outwriter.NewOutWriter().WriteHistory(ref.URL, records, cfg)
}

// ReadProjectList reads one repository URL per line. "-" reads stdin.
// Blank lines and lines starting with # are skipped; duplicates are dropped.
func ReadProjectList(path string) ([]string, error) {
	if path == "" {
		return nil, errors.New("project list path is empty")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open project list: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return parseProjectList(r)
}

func parseProjectList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project list: %w", err)
	}
	return batch.Dedupe(urls), nil
}

// syncCheckouts clones or pulls the checkouts of urls. Failures are warnings;
// the affected repositories then fail with RepositoryNotFoundLocally.
func syncCheckouts(ctx context.Context, env *Environment, urls []string) {
	refs := make([]schema.RepoRef, 0, len(urls))
	for _, u := range urls {
		ref, err := remote.ParseURL(u)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	if err := env.Checkouts.SyncAll(ctx, refs); err != nil {
		contract.LogWarn("Some checkouts could not be updated", err)
	}
}

// scoreRun is one pass of the batch runner with run tracking and output.
type scoreRun struct {
	cfg   *contract.Config
	mgr   contract.CacheManager
	score batch.ScoreFunc
	out   *outwriter.OutWriter
	since string
	start time.Time
}

// execute runs the batch and writes its output. The report is nil when a fatal error aborted the run.
func (r *scoreRun) execute(ctx context.Context, urls []string) (*batch.Report, error) {
	cfg := r.cfg
	urls = batch.Dedupe(urls)

	if !shouldSuppressHeader(ctx) {
		r.out.WriteHeader(len(urls), r.since, r.start, cfg)
	}

	var createdAt *time.Time
	if cfg.WithTime {
		stamp := r.start.UTC().Truncate(contract.CacheGranularity)
		createdAt = &stamp
	}

	// --- 0. Begin Run Tracking (if configured) ---
	var runs contract.RunStore
	if r.mgr != nil {
		runs = r.mgr.GetRunStore()
	}
	if runs != nil {
		runID, err := runs.BeginRun(r.start, r.configParams(len(urls)))
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
			runs = nil
		} else {
			ctx = withRunID(ctx, runID)
		}
	}

	// --- 1. Batch Scoring ---
	runner := batch.NewRunner(r.score, contract.Logger())
	if cfg.Workers > 0 {
		runner.Workers = cfg.Workers
	}
	if cfg.Retry > 0 {
		runner.RetryCount = cfg.Retry
	}
	runner.RetryBackoff = cfg.RetryBackoff

	if cfg.Stream {
		stream, closeStream, err := r.openStream(createdAt)
		if err != nil {
			return nil, err
		}
		defer closeStream()
		runner.OnResult = func(res schema.ScoreResult) {
			if err := stream.Write(res); err != nil {
				contract.LogWarn("Failed to stream result for "+res.URL, err)
			}
		}
	}

	report, runErr := runner.Run(ctx, urls)
	if report == nil {
		// Fatal errors abort without a partial report.
		r.endRun(ctx, runs, len(urls), len(urls))
		return nil, runErr
	}

	// --- 2. Record Results ---
	r.recordResults(ctx, runs, report.Results)
	r.endRun(ctx, runs, report.Total, len(report.Failures))

	// --- 3. Output ---
	if !cfg.Stream {
		if err := r.out.WriteScores(report.Results, cfg, createdAt, time.Since(r.start)); err != nil {
			return report, fmt.Errorf("failed to write results: %w", err)
		}
	}
	if err := r.out.WriteFailures(report.Failures); err != nil {
		return report, err
	}
	return report, runErr
}

// openStream starts the CSV stream on the output file, or stdout when none is set.
func (r *scoreRun) openStream(createdAt *time.Time) (*outwriter.StreamWriter, func(), error) {
	if r.cfg.OutputFile == "" {
		sw, err := r.out.OpenStream(createdAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start stream: %w", err)
		}
		return sw, func() {}, nil
	}
	f, err := contract.SelectOutputFile(r.cfg.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output file: %w", err)
	}
	sw, err := outwriter.NewStreamWriter(f, createdAt)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to start stream: %w", err)
	}
	return sw, func() {
		_ = f.Close()
		_, _ = fmt.Fprintf(os.Stderr, "💾 Streamed %d rows to %s\n", sw.Rows(), r.cfg.OutputFile)
	}, nil
}

func (r *scoreRun) configParams(repoCount int) map[string]any {
	return map[string]any{
		"project_list":            r.cfg.ProjectList,
		"repos":                   repoCount,
		"workers":                 r.cfg.Workers,
		"retry":                   r.cfg.Retry,
		"commit_frequency_source": string(r.cfg.CommitFrequencySource),
		"since":                   r.since,
	}
}

func (r *scoreRun) recordResults(ctx context.Context, runs contract.RunStore, results []schema.ScoreResult) {
	runID, ok := getRunID(ctx)
	if runs == nil || !ok {
		return
	}
	for _, res := range results {
		if err := runs.RecordResult(runID, res); err != nil {
			contract.Logger().Warn("run tracking failed",
				zap.String("operation", "RecordResult"), zap.String("url", res.URL), zap.Error(err))
		}
	}
}

func (r *scoreRun) endRun(ctx context.Context, runs contract.RunStore, total, failed int) {
	runID, ok := getRunID(ctx)
	if runs == nil || !ok {
		return
	}
	if err := runs.EndRun(runID, time.Now(), total, failed); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}
