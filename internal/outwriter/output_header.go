package outwriter

import (
	"fmt"
	"io"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
)

// PrintScoreHeader prints a concise, 2-line header before a scoring run.
func PrintScoreHeader(w io.Writer, repoCount int, since string, now time.Time, cfg *contract.Config) {
	// Line 1: what is being scored and how
	_, _ = fmt.Fprintf(w, "🔎 Scoring %d repositories (workers: %d, retry: %d)\n", repoCount, cfg.Workers, cfg.Retry)

	// Line 2: the local history window
	_, _ = fmt.Fprintf(w, "📅 History: %s → %s\n", since, now.Format(time.DateOnly))
}

// WriteHeader prints the scoring header to stderr.
func (ow *OutWriter) WriteHeader(repoCount int, since string, now time.Time, cfg *contract.Config) {
	PrintScoreHeader(ow.stderr, repoCount, since, now, cfg)
}
