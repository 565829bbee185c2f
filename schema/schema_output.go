package schema

import (
	"encoding/json"
	"fmt"
)

// RankedResult adds presentation data to a ScoreResult.
type RankedResult struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	ScoreResult
}

// GetPlainLabel returns a plain text label indicating the criticality level
// based on the criticality score.
func GetPlainLabel(score float64) string {
	switch {
	case score >= 0.75:
		return "Critical"
	case score >= 0.5:
		return "High"
	case score >= 0.25:
		return "Moderate"
	default:
		return "Low"
	}
}

// RankResults adds rank and label to a sorted list of score results.
func RankResults(results []ScoreResult) []RankedResult {
	output := make([]RankedResult, len(results))
	for i, r := range results {
		output[i] = RankedResult{
			Rank:        i + 1,
			Label:       GetPlainLabel(r.CriticalityScore),
			ScoreResult: r,
		}
	}
	return output
}

// Failure records a repository that could not be scored.
type Failure struct {
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// MarshalJSON places rank and label ahead of the canonical result fields.
func (r RankedResult) MarshalJSON() ([]byte, error) {
	inner, err := r.ScoreResult.MarshalJSON()
	if err != nil {
		return nil, err
	}
	label, err := json.Marshal(r.Label)
	if err != nil {
		return nil, err
	}
	out := fmt.Appendf(nil, `{"rank":%d,"label":%s,`, r.Rank, label)
	return append(out, inner[1:]...), nil
}
