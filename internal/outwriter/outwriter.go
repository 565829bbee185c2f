// Package outwriter has output and writer logic.
package outwriter

import (
	"io"
	"os"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct {
	stdout io.Writer
	stderr io.Writer
}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{stdout: os.Stdout, stderr: os.Stderr}
}

// NewOutWriterTo creates an output writer whose stream and summary go to the given writers.
func NewOutWriterTo(stdout, stderr io.Writer) *OutWriter {
	return &OutWriter{stdout: stdout, stderr: stderr}
}

// WriteScores prints sorted score results using the configured output format.
func (ow *OutWriter) WriteScores(results []schema.ScoreResult, cfg *contract.Config, createdAt *time.Time, duration time.Duration) error {
	return WriteScoreResults(results, cfg, createdAt, duration)
}

// OpenStream starts a CSV stream on stdout.
func (ow *OutWriter) OpenStream(createdAt *time.Time) (*StreamWriter, error) {
	return NewStreamWriter(ow.stdout, createdAt)
}

// WriteFailures prints the failure summary to stderr.
func (ow *OutWriter) WriteFailures(failures []schema.Failure) error {
	return PrintFailureSummary(ow.stderr, failures)
}

// WriteSignals prints signal definitions using the configured output format.
func (ow *OutWriter) WriteSignals(weights schema.WeightConfig, cfg *contract.Config) error {
	return PrintSignalDefinitions(weights, cfg)
}

// WriteHistory prints recorded results for one repository using the configured output format.
func (ow *OutWriter) WriteHistory(repoURL string, records []schema.ResultRecord, cfg *contract.Config) error {
	return PrintHistory(repoURL, records, cfg)
}
