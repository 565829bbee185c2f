// Package score turns a signal record into a criticality score.
package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
)

// Precision is the number of decimals kept in a criticality score.
const Precision = 5

// ErrInvalidValue marks a signal value outside [0, +Inf).
var ErrInvalidValue = errors.New("invalid signal value")

// Normalize maps value onto [0, weight] on a logarithmic scale that saturates at threshold.
// A negative or non-finite value fails with ErrInvalidValue. A degenerate threshold or
// weight fails with DivisionByZeroNormalization.
func Normalize(value, threshold, weight float64) (float64, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	denom := math.Log1p(math.Max(value, threshold))
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return 0, contract.NewDivisionByZero(fmt.Sprintf("value %v threshold %v", value, threshold))
	}
	v := weight * math.Log1p(value) / denom
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, contract.NewDivisionByZero(fmt.Sprintf("non-finite term for threshold %v weight %v", threshold, weight))
	}
	return v, nil
}

// Engine scores records with a fixed weight configuration.
type Engine struct {
	weights schema.WeightConfig
}

// NewEngine creates an Engine. Nil weights use schema.DefaultWeights.
func NewEngine(weights schema.WeightConfig) *Engine {
	if weights == nil {
		weights = schema.DefaultWeights()
	}
	return &Engine{weights: weights.Clone()}
}

// Weights returns a copy of the engine's weights.
func (e *Engine) Weights() schema.WeightConfig {
	return e.weights.Clone()
}

// Score computes the weighted criticality score of a record.
// Only scored signals participate. The result is rounded and clamped to [0,1].
func (e *Engine) Score(record schema.SignalRecord) (float64, error) {
	total := e.weights.TotalWeight()
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, contract.NewDivisionByZero("sum of weights is zero")
	}

	var sum float64
	for _, name := range schema.ScoredSignals {
		w, ok := e.weights[name]
		if !ok {
			return 0, fmt.Errorf("no weight for signal %s", name)
		}
		raw, ok := record.Get(name)
		if !ok {
			return 0, fmt.Errorf("signal %s missing from record", name)
		}
		value, ok := schema.Numeric(raw)
		if !ok {
			return 0, fmt.Errorf("signal %s has non-numeric value %T", name, raw)
		}
		term, err := Normalize(value, w.Threshold, w.Weight)
		if errors.Is(err, ErrInvalidValue) {
			return 0, contract.NewSignalCollectionFailure("", string(name), err)
		}
		if err != nil {
			return 0, fmt.Errorf("normalize %s: %w", name, err)
		}
		sum += term
	}

	return clamp01(round(sum/total, Precision)), nil
}

// Result scores a complete record and assembles the ScoreResult.
func (e *Engine) Result(name, url, language string, record schema.SignalRecord) (schema.ScoreResult, error) {
	if !record.Complete() {
		return schema.ScoreResult{}, fmt.Errorf("incomplete signal record for %s: %d of %d signals",
			name, len(record), len(schema.CanonicalSignals))
	}
	s, err := e.Score(record)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	signals := make(schema.SignalRecord, len(record))
	copy(signals, record)
	return schema.ScoreResult{
		Name:             name,
		URL:              url,
		Language:         language,
		Signals:          signals,
		CriticalityScore: s,
	}, nil
}

func round(x float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(x*p) / p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
