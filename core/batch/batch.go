// Package batch scores many repositories with retries and ranks the results.
package batch

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
)

// ScoreFunc scores one repository URL.
type ScoreFunc func(ctx context.Context, url string) (schema.ScoreResult, error)

// Runner drives a batch of repository URLs through a ScoreFunc.
type Runner struct {
	Workers      int
	RetryCount   int           // attempts per URL, at least 1
	RetryBackoff time.Duration // base delay, doubled after each failed attempt

	Score ScoreFunc

	// OnResult receives each success as it completes. Calls are serialized.
	OnResult func(schema.ScoreResult)

	log *zap.Logger
	mu  sync.Mutex
}

// Report is the outcome of a batch run.
type Report struct {
	Results  []schema.ScoreResult // by score descending, ties in input order
	Failures []schema.Failure     // in input order
	Total    int                  // distinct URLs processed
}

// NewRunner creates a Runner with default workers and retries.
func NewRunner(score ScoreFunc, logger *zap.Logger) *Runner {
	return &Runner{
		Workers:    contract.DefaultWorkers,
		RetryCount: contract.DefaultRetry,
		Score:      score,
		log:        contract.WithComponent(logger, "batch"),
	}
}

// Dedupe trims the URLs, drops blanks and keeps the first occurrence of each.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

type job struct {
	idx int
	url string
}

type outcome struct {
	result  *schema.ScoreResult
	failure *schema.Failure
}

// Run scores every URL. A DivisionByZeroNormalization error aborts the run and is returned.
func (r *Runner) Run(ctx context.Context, urls []string) (*Report, error) {
	if r.Score == nil {
		return nil, errors.New("batch runner has no score function")
	}
	if r.log == nil {
		r.log = contract.WithComponent(nil, "batch")
	}
	urls = Dedupe(urls)
	workers := max(1, min(r.Workers, len(urls)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	outcomes := make([]outcome, len(urls))
	jobCh := make(chan job, len(urls))
	var wg sync.WaitGroup

	for range workers {
		wg.Go(func() {
			for j := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				res, attempts, err := r.scoreWithRetry(ctx, j.url)
				switch {
				case err == nil:
					// Each worker writes to a unique index.
					outcomes[j.idx].result = &res
					r.emit(res)
				case contract.IsFatal(err):
					fatalOnce.Do(func() {
						fatalErr = err
						cancel()
					})
				case ctx.Err() != nil:
				default:
					r.log.Warn("giving up on repository",
						zap.String("url", j.url), zap.Int("attempts", attempts), zap.Error(err))
					outcomes[j.idx].failure = &schema.Failure{
						URL:      j.url,
						Attempts: attempts,
						Code:     string(contract.CodeOf(err)),
						Message:  err.Error(),
					}
				}
			}
		})
	}

	for i, u := range urls {
		jobCh <- job{idx: i, url: u}
	}
	close(jobCh)
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	report := &Report{Total: len(urls)}
	for _, o := range outcomes {
		if o.result != nil {
			report.Results = append(report.Results, *o.result)
		}
		if o.failure != nil {
			report.Failures = append(report.Failures, *o.failure)
		}
	}
	SortResults(report.Results)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// SortResults orders results by score descending, keeping the order of equal scores.
func SortResults(results []schema.ScoreResult) {
	slices.SortStableFunc(results, func(a, b schema.ScoreResult) int {
		return cmp.Compare(b.CriticalityScore, a.CriticalityScore)
	})
}

func (r *Runner) emit(res schema.ScoreResult) {
	if r.OnResult == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OnResult(res)
}

// scoreWithRetry returns the result, the number of attempts made and the last error.
func (r *Runner) scoreWithRetry(ctx context.Context, url string) (schema.ScoreResult, int, error) {
	retries := max(1, r.RetryCount)
	var lastErr error
	for attempt := range retries {
		res, err := r.Score(ctx, url)
		if err == nil {
			return res, attempt + 1, nil
		}
		lastErr = err
		if !contract.IsRetryable(err) || attempt == retries-1 {
			return schema.ScoreResult{}, attempt + 1, err
		}
		r.log.Debug("retrying repository", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
		if err := sleep(ctx, r.RetryBackoff<<attempt); err != nil {
			return schema.ScoreResult{}, attempt + 1, err
		}
	}
	return schema.ScoreResult{}, retries, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
