package outwriter

import (
	"fmt"
	"io"

	"github.com/huangsam/reposcore/schema"
)

// PrintFailureSummary lists the repositories that could not be scored.
// Nothing is printed when there are no failures.
func PrintFailureSummary(w io.Writer, failures []schema.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "⚠️  %d repositories could not be scored:\n", len(failures)); err != nil {
		return err
	}
	for _, f := range failures {
		code := f.Code
		if code == "" {
			code = "UNKNOWN"
		}
		if _, err := fmt.Fprintf(w, "  - %s (attempts: %d, %s): %s\n", f.URL, f.Attempts, code, f.Message); err != nil {
			return err
		}
	}
	return nil
}
