package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/parquet"
)

// ExecuteRunsExport writes the run history held by store to two Parquet files
// next to outputFile and reports progress on w.
func ExecuteRunsExport(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is disabled; set --runs-backend to export runs")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no score runs found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total score runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total result records: %d\n", status.TableSizes[resultsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve score runs: %w", err)
	}
	results, err := store.GetAllResults()
	if err != nil {
		return fmt.Errorf("failed to retrieve run results: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteScoreRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write score runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d score runs to: %s\n", len(runs), runsFile)

	resultsFile := outputFile + ".results.parquet"
	if err := parquet.WriteRunResultsParquet(parquet.ConvertResultRecords(results), resultsFile); err != nil {
		return fmt.Errorf("failed to write run results: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d result records to: %s\n", len(results), resultsFile)
	return nil
}
