package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/parquet"
	"github.com/huangsam/reposcore/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// scorePrecision matches the rounding applied by the score engine.
const scorePrecision = 5

// WriteScoreResults outputs sorted score results, dispatching based on the output format configured.
// A non-nil createdAt adds the created_at column.
func WriteScoreResults(results []schema.ScoreResult, cfg *contract.Config, createdAt *time.Time, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresJSON(w, results, createdAt)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.ParquetOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteRows(w, parquet.ConvertScoreResults(results, createdAt))
		}, "Wrote Parquet"); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	case schema.TextOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresTable(w, results, cfg, duration)
		}, "Wrote table")
	default:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresCSV(w, results, createdAt)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	}
	return nil
}

// writeScoresCSV writes the canonical header followed by one row per result.
func writeScoresCSV(w io.Writer, results []schema.ScoreResult, createdAt *time.Time) error {
	stamp := ""
	if createdAt != nil {
		stamp = formatCreatedAt(*createdAt)
	}
	header := withCreatedAt(createdAt, schema.FieldTime, schema.CanonicalHeader())
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range results {
			if err := cw.Write(withCreatedAt(createdAt, stamp, r.Row())); err != nil {
				return err
			}
		}
		return nil
	})
}

// timedResult is a ranked result carrying the created_at field.
type timedResult struct {
	CreatedAt string
	schema.RankedResult
}

// MarshalJSON places created_at ahead of the ranked fields.
func (t timedResult) MarshalJSON() ([]byte, error) {
	inner, err := t.RankedResult.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := fmt.Appendf(nil, `{%q:%q,`, schema.FieldTime, t.CreatedAt)
	return append(out, inner[1:]...), nil
}

// writeScoresJSON writes ranked results as an indented JSON array.
func writeScoresJSON(w io.Writer, results []schema.ScoreResult, createdAt *time.Time) error {
	ranked := schema.RankResults(results)
	if createdAt == nil {
		return writeJSON(w, ranked)
	}
	stamp := formatCreatedAt(*createdAt)
	timed := make([]timedResult, len(ranked))
	for i, r := range ranked {
		timed[i] = timedResult{CreatedAt: stamp, RankedResult: r}
	}
	return writeJSON(w, timed)
}

// writeScoresTable generates and writes the human-readable table.
func writeScoresTable(w io.Writer, results []schema.ScoreResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(scorePrecision)
	table := tablewriter.NewWriter(w)

	headers := []string{"Rank", "Name", "Language", "Score", "Label"}
	if cfg.Detail {
		for _, name := range schema.ScoredSignals {
			headers = append(headers, string(name))
		}
	}
	table.Header(headers)

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := GetMaxTableNameWidth(cfg)
	var data [][]string
	for i, r := range results {
		label := schema.GetPlainLabel(r.CriticalityScore)
		if cfg.UseColors {
			label = contract.GetColorLabel(r.CriticalityScore)
		}
		row := []string{
			strconv.Itoa(i + 1),
			contract.TruncateText(r.Name, nameWidth),
			r.Language,
			fmtFloat(r.CriticalityScore),
			label,
		}
		if cfg.Detail {
			for _, name := range schema.ScoredSignals {
				v, _ := r.Signals.Get(name)
				row = append(row, schema.FormatSignal(name, v))
			}
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Showing %d repositories\n", len(results)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Scoring completed in %v with %d workers. Cache backend: %s\n", duration.Round(time.Millisecond), cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
