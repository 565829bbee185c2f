package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintSignalDefinitions displays every signal with its weight and threshold.
// This is a static display that does not require any collection.
func PrintSignalDefinitions(weights schema.WeightConfig, cfg *contract.Config) error {
	infos := schema.DescribeSignals(weights)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, infos)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printSignalsCSV(w, infos)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for signal definitions")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printSignalsText(w, infos, weights.TotalWeight())
		}, "Wrote text")
	}
}

func signalFields(info schema.SignalInfo) []string {
	weight, threshold := "", ""
	if info.Scored {
		weight = strconv.FormatFloat(info.Weight, 'f', -1, 64)
		threshold = strconv.FormatFloat(info.Threshold, 'f', -1, 64)
	}
	return []string{string(info.Name), strconv.FormatBool(info.Scored), weight, threshold, info.Description}
}

func printSignalsCSV(w io.Writer, infos []schema.SignalInfo) error {
	header := []string{"signal", "scored", "weight", "threshold", "description"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, info := range infos {
			if err := cw.Write(signalFields(info)); err != nil {
				return err
			}
		}
		return nil
	})
}

func printSignalsText(w io.Writer, infos []schema.SignalInfo, total float64) error {
	if _, err := fmt.Fprintf(w, "📊 Criticality Signals\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Score = sum(weight * log(1+value) / log(1+max(value,threshold))) / %g\n\n", total); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Signal", "Scored", "Weight", "Threshold", "Description"})
	var data [][]string
	for _, info := range infos {
		data = append(data, signalFields(info))
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
