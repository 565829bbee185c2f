package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/olekukonko/tablewriter"
)

// HistoryEntry is the JSON shape of one recorded result.
type HistoryEntry struct {
	RunID            int64           `json:"run_id"`
	RecordedAt       time.Time       `json:"recorded_at"`
	Name             string          `json:"name"`
	Language         string          `json:"language"`
	CriticalityScore float64         `json:"criticality_score"`
	Label            string          `json:"label"`
	Signals          json.RawMessage `json:"signals"`
}

// PrintHistory displays recorded results for one repository, newest first.
func PrintHistory(repoURL string, records []schema.ResultRecord, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printHistoryJSON(w, records)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printHistoryCSV(w, records)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for run history, use runs export")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printHistoryText(w, repoURL, records, cfg.UseColors)
		}, "Wrote text")
	}
}

func printHistoryJSON(w io.Writer, records []schema.ResultRecord) error {
	return writeJSON(w, NewHistoryEntries(records))
}

// NewHistoryEntries converts recorded results to their JSON shape.
// Signals that are not valid JSON become null.
func NewHistoryEntries(records []schema.ResultRecord) []HistoryEntry {
	entries := make([]HistoryEntry, len(records))
	for i, r := range records {
		signals := json.RawMessage(r.Signals)
		if !json.Valid(signals) {
			signals = json.RawMessage("null")
		}
		entries[i] = HistoryEntry{
			RunID:            r.RunID,
			RecordedAt:       r.RecordedAt,
			Name:             r.Name,
			Language:         r.Language,
			CriticalityScore: r.CriticalityScore,
			Label:            schema.GetPlainLabel(r.CriticalityScore),
			Signals:          signals,
		}
	}
	return entries
}

func printHistoryCSV(w io.Writer, records []schema.ResultRecord) error {
	header := []string{"run_id", "recorded_at", schema.FieldName, schema.FieldLanguage, schema.FieldScore, "label", "signals"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range records {
			rec := []string{
				strconv.FormatInt(r.RunID, 10),
				r.RecordedAt.UTC().Format(time.RFC3339),
				r.Name,
				r.Language,
				strconv.FormatFloat(r.CriticalityScore, 'f', -1, 64),
				schema.GetPlainLabel(r.CriticalityScore),
				r.Signals,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func printHistoryText(w io.Writer, repoURL string, records []schema.ResultRecord, useColors bool) error {
	if len(records) == 0 {
		_, err := fmt.Fprintf(w, "No recorded runs for %s\n", repoURL)
		return err
	}
	if _, err := fmt.Fprintf(w, "📈 Score history for %s\n", repoURL); err != nil {
		return err
	}

	fmtFloat, _ := createFormatters(scorePrecision)
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Recorded", "Score", "Label"})
	var data [][]string
	for _, r := range records {
		label := schema.GetPlainLabel(r.CriticalityScore)
		if useColors {
			label = contract.GetColorLabel(r.CriticalityScore)
		}
		data = append(data, []string{
			strconv.FormatInt(r.RunID, 10),
			r.RecordedAt.Local().Format(time.DateTime),
			fmtFloat(r.CriticalityScore),
			label,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
