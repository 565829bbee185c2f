// Package schema has signal names, records, weights and store models for all parts of reposcore.
package schema

import "fmt"

// SignalWeight is the weight and saturation threshold of one scored signal.
type SignalWeight struct {
	Weight    float64 `json:"weight"`
	Threshold float64 `json:"threshold"`
}

// WeightConfig maps every scored signal to its weight and threshold.
type WeightConfig map[SignalName]SignalWeight

// DefaultWeights returns the stock weights and thresholds for the scored signals.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		CreatedSince:        {Weight: 1, Threshold: 120},
		UpdatedSince:        {Weight: 0, Threshold: 120},
		ContributorCount:    {Weight: 1, Threshold: 5000},
		OrgCount:            {Weight: 0.5, Threshold: 10},
		CommitFrequency:     {Weight: 4, Threshold: 1000},
		RecentReleasesCount: {Weight: 0.5, Threshold: 26},
		UpdatedIssuesCount:  {Weight: 0.5, Threshold: 5000},
		ClosedIssuesCount:   {Weight: 0.5, Threshold: 5000},
		CommentFrequency:    {Weight: 0.5, Threshold: 15},
		DependentsCount:     {Weight: 1, Threshold: 500000},
	}
}

// TotalWeight sums the weights of the scored signals.
func (w WeightConfig) TotalWeight() float64 {
	var total float64
	for _, name := range ScoredSignals {
		total += w[name].Weight
	}
	return total
}

// Validate checks that every scored signal is present with a non-negative
// weight and a threshold of at least 1, and that the weights do not sum to zero.
func (w WeightConfig) Validate() error {
	for _, name := range ScoredSignals {
		sw, ok := w[name]
		if !ok {
			return fmt.Errorf("missing weight for signal %s", name)
		}
		if sw.Weight < 0 {
			return fmt.Errorf("weight for %s must be non-negative, got %g", name, sw.Weight)
		}
		if sw.Threshold < 1 {
			return fmt.Errorf("threshold for %s must be at least 1, got %g", name, sw.Threshold)
		}
	}
	if w.TotalWeight() <= 0 {
		return fmt.Errorf("weights must not sum to zero")
	}
	return nil
}

// Clone returns an independent copy of the config.
func (w WeightConfig) Clone() WeightConfig {
	out := make(WeightConfig, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// SignalInfo describes a signal for the signals command and the MCP tool.
type SignalInfo struct {
	Name        SignalName `json:"name"`
	Scored      bool       `json:"scored"`
	Weight      float64    `json:"weight,omitempty"`
	Threshold   float64    `json:"threshold,omitempty"`
	Description string     `json:"description"`
}

// SignalDescriptions explains each canonical signal.
var SignalDescriptions = map[SignalName]string{
	CreatedSince:                     "Months since the first commit",
	UpdatedSince:                     "Months since the most recent commit",
	ContributorCount:                 "Number of distinct contributors, anonymous ones included",
	OrgCount:                         "Number of distinct organizations among the top contributors",
	CommitFrequency:                  "Average commits per week over the last year",
	RecentReleasesCount:              "Releases (or tags when releases are absent) in the release lookback window",
	UpdatedIssuesCount:               "Issues updated in the issue lookback window",
	ClosedIssuesCount:                "Issues closed in the issue lookback window",
	CommentFrequency:                 "Average comments per updated issue in the issue lookback window",
	DependentsCount:                  "Number of commits mentioning the repository from other projects",
	CodeLineChangeRecentYear:         "Lines added and deleted over the last year",
	CodeEffort:                       "Person-months implied by lines added over the last year",
	CoreLineChangeRecentYear:         "Lines changed in language source files over the last year",
	CoreEffort:                       "Person-months implied by language source lines added over the last year",
	ActiveContributorCountRecentYear: "Authors with many commits over the last year",
}

// DescribeSignals lists every canonical signal with its weight when scored.
func DescribeSignals(weights WeightConfig) []SignalInfo {
	out := make([]SignalInfo, 0, len(CanonicalSignals))
	for _, name := range CanonicalSignals {
		info := SignalInfo{Name: name, Scored: IsScored(name), Description: SignalDescriptions[name]}
		if info.Scored {
			info.Weight = weights[name].Weight
			info.Threshold = weights[name].Threshold
		}
		out = append(out, info)
	}
	return out
}
