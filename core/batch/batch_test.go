package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/reposcore/core/score"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resultFor(url string, score float64) schema.ScoreResult {
	return schema.ScoreResult{Name: url, URL: url, CriticalityScore: score}
}

func urlsOf(results []schema.ScoreResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func TestDedupe(t *testing.T) {
	in := []string{" https://github.com/a/b ", "", "https://github.com/c/d", "https://github.com/a/b", "\t"}
	assert.Equal(t, []string{"https://github.com/a/b", "https://github.com/c/d"}, Dedupe(in))
	assert.Empty(t, Dedupe(nil))
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		if calls.Add(1) < 3 {
			return schema.ScoreResult{}, errors.New("502 bad gateway")
		}
		return resultFor(url, 0.4), nil
	}, zap.NewNop())
	r.RetryCount = 3

	report, err := r.Run(context.Background(), []string{"https://github.com/a/b"})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Empty(t, report.Failures)
	assert.Equal(t, int32(3), calls.Load())

	first := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		return resultFor(url, 0.4), nil
	}, zap.NewNop())
	want, err := first.Run(context.Background(), []string{"https://github.com/a/b"})
	require.NoError(t, err)
	assert.Equal(t, want.Results, report.Results)
}

// signalRecord builds a complete record with every scored signal set to value.
func signalRecord(value int) schema.SignalRecord {
	record := make(schema.SignalRecord, 0, len(schema.CanonicalSignals))
	for _, name := range schema.CanonicalSignals {
		var v any = value
		if !schema.IsScored(name) {
			v = "+0, -0"
		}
		record = append(record, schema.Signal{Name: name, Value: v})
	}
	return record
}

func TestRunSkipsRepoWithNegativeSignal(t *testing.T) {
	engine := score.NewEngine(nil)
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		record := signalRecord(10)
		if url == "https://github.com/future/commit" {
			for i := range record {
				if record[i].Name == schema.UpdatedSince {
					record[i].Value = -1
				}
			}
		}
		return engine.Result(url, url, "Go", record)
	}, zap.NewNop())
	r.Workers = 1
	r.RetryCount = 2

	report, err := r.Run(context.Background(), []string{
		"https://github.com/future/commit",
		"https://github.com/a/b",
		"https://github.com/c/d",
	})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.ElementsMatch(t, []string{"https://github.com/a/b", "https://github.com/c/d"}, urlsOf(report.Results))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "https://github.com/future/commit", report.Failures[0].URL)
	assert.Equal(t, 2, report.Failures[0].Attempts)
	assert.Equal(t, string(contract.CodeSignalCollectionFailure), report.Failures[0].Code)
}

func TestRunRecordsFailureAfterRetries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var calls atomic.Int32
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		if url == "https://github.com/bad/repo" {
			calls.Add(1)
			return schema.ScoreResult{}, contract.NewSignalCollectionFailure(url, "org_count", errors.New("timeout"))
		}
		return resultFor(url, 0.2), nil
	}, zap.New(core))
	r.RetryCount = 2

	report, err := r.Run(context.Background(), []string{"https://github.com/bad/repo", "https://github.com/good/repo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/good/repo"}, urlsOf(report.Results))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, schema.Failure{
		URL:      "https://github.com/bad/repo",
		Attempts: 2,
		Code:     string(contract.CodeSignalCollectionFailure),
		Message:  "SIGNAL_COLLECTION_FAILURE [https://github.com/bad/repo] org_count: timeout",
	}, report.Failures[0])
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("giving up on repository").Len())
}

func TestRunDoesNotRetryUnsupportedURL(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		calls.Add(1)
		return schema.ScoreResult{}, contract.NewUnsupportedRepositoryURL(url)
	}, zap.NewNop())
	r.RetryCount = 5

	report, err := r.Run(context.Background(), []string{"https://example.org/a/b"})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunAbortsOnDivisionByZero(t *testing.T) {
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		if url == "https://github.com/zero/weights" {
			return schema.ScoreResult{}, contract.NewDivisionByZero("sum of weights is zero")
		}
		return resultFor(url, 0.5), nil
	}, zap.NewNop())
	r.Workers = 1

	report, err := r.Run(context.Background(), []string{
		"https://github.com/zero/weights",
		"https://github.com/a/b",
	})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, contract.ErrDivisionByZeroNormalization)
}

func TestRunSortsStably(t *testing.T) {
	scores := map[string]float64{
		"https://github.com/a/a": 0.3,
		"https://github.com/b/b": 0.9,
		"https://github.com/c/c": 0.3,
		"https://github.com/d/d": 0.9,
		"https://github.com/e/e": 0.1,
	}
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		// later inputs finish first
		time.Sleep(time.Duration('f'-url[len(url)-1]) * 2 * time.Millisecond)
		return resultFor(url, scores[url]), nil
	}, zap.NewNop())
	r.Workers = 5

	input := []string{
		"https://github.com/a/a",
		"https://github.com/b/b",
		"https://github.com/c/c",
		"https://github.com/d/d",
		"https://github.com/e/e",
	}
	report, err := r.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://github.com/b/b",
		"https://github.com/d/d",
		"https://github.com/a/a",
		"https://github.com/c/c",
		"https://github.com/e/e",
	}, urlsOf(report.Results))
	assert.Equal(t, 5, report.Total)
}

func TestRunStreamsEachSuccessOnce(t *testing.T) {
	var (
		mu     sync.Mutex
		seen   []string
		active atomic.Int32
	)
	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		return resultFor(url, 0.1), nil
	}, zap.NewNop())
	r.Workers = 4
	r.OnResult = func(res schema.ScoreResult) {
		if active.Add(1) > 1 {
			t.Error("OnResult called concurrently")
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, res.URL)
		mu.Unlock()
		active.Add(-1)
	}

	input := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u1"}
	report, err := r.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, report.Results, 6)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4", "u5", "u6"}, seen)
}

func TestRunBackoffRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := NewRunner(func(ctx context.Context, url string) (schema.ScoreResult, error) {
		return schema.ScoreResult{}, errors.New("flaky")
	}, zap.NewNop())
	r.RetryCount = 3
	r.RetryBackoff = time.Hour

	start := time.Now()
	report, err := r.Run(ctx, []string{"https://github.com/a/b"})
	assert.Less(t, time.Since(start), time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, report)
	assert.Empty(t, report.Results)
}

func TestRunWithoutScoreFunc(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), []string{"x"})
	assert.Error(t, err)
}
