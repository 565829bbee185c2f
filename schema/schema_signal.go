package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Signal is one named value collected for a repository.
// Value holds an int, a float64 or a preformatted string.
type Signal struct {
	Name  SignalName `json:"name"`
	Value any        `json:"value"`
}

// SignalRecord is an ordered set of signals. After collection it holds every
// canonical signal exactly once, in canonical order.
type SignalRecord []Signal

// Get returns the value of the named signal.
func (r SignalRecord) Get(name SignalName) (any, bool) {
	for _, s := range r {
		if s.Name == name {
			return s.Value, true
		}
	}
	return nil, false
}

// Names returns the signal names in record order.
func (r SignalRecord) Names() []SignalName {
	names := make([]SignalName, len(r))
	for i, s := range r {
		names[i] = s.Name
	}
	return names
}

// Complete reports whether the record holds all canonical signals in canonical order.
func (r SignalRecord) Complete() bool {
	if len(r) != len(CanonicalSignals) {
		return false
	}
	for i, s := range r {
		if s.Name != CanonicalSignals[i] || s.Value == nil {
			return false
		}
	}
	return true
}

// Numeric converts a signal value into a float64 for scoring.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// FormatValue renders a signal value for tabular output.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}

// oneDecimal lists the float signals always rendered with one decimal place.
var oneDecimal = map[SignalName]bool{
	CommitFrequency: true,
	CodeEffort:      true,
	CoreEffort:      true,
}

// FormatSignal renders a named signal value. Effort and commit frequency keep
// one decimal place so whole values print as "3.0".
func FormatSignal(name SignalName, v any) string {
	if f, ok := v.(float64); ok && oneDecimal[name] {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return FormatValue(v)
}

// ScoreResult is a scored repository: identity, signals and the final score.
type ScoreResult struct {
	Name             string
	URL              string
	Language         string
	Signals          SignalRecord
	CriticalityScore float64
}

// Header returns the canonical output header.
func (r ScoreResult) Header() []string {
	return CanonicalHeader()
}

// Row returns the result formatted in canonical order.
func (r ScoreResult) Row() []string {
	row := make([]string, 0, len(r.Signals)+4)
	row = append(row, r.Name, r.URL, r.Language)
	for _, s := range r.Signals {
		row = append(row, FormatSignal(s.Name, s.Value))
	}
	return append(row, strconv.FormatFloat(r.CriticalityScore, 'f', -1, 64))
}

// MarshalJSON encodes the result as a flat object whose keys follow canonical order.
func (r ScoreResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}
	if err := write(FieldName, r.Name); err != nil {
		return nil, err
	}
	if err := write(FieldURL, r.URL); err != nil {
		return nil, err
	}
	if err := write(FieldLanguage, r.Language); err != nil {
		return nil, err
	}
	for _, s := range r.Signals {
		if err := write(string(s.Name), s.Value); err != nil {
			return nil, err
		}
	}
	if err := write(FieldScore, r.CriticalityScore); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the flat object written by MarshalJSON.
// Signals are restored in canonical order; JSON numbers come back as float64.
func (r *ScoreResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Name, _ = raw[FieldName].(string)
	r.URL, _ = raw[FieldURL].(string)
	r.Language, _ = raw[FieldLanguage].(string)
	r.CriticalityScore, _ = raw[FieldScore].(float64)
	r.Signals = make(SignalRecord, 0, len(CanonicalSignals))
	for _, name := range CanonicalSignals {
		if v, ok := raw[string(name)]; ok {
			r.Signals = append(r.Signals, Signal{Name: name, Value: v})
		}
	}
	return nil
}

// RepoRef is a parsed repository URL.
type RepoRef struct {
	URL      string       // normalized URL with scheme
	Host     string       // e.g. github.com
	BaseURL  string       // scheme://host
	FullName string       // owner/name path, original case
	Provider ProviderKind // empty when the host is not recognized
}

// Owner returns the first path element of FullName.
func (r RepoRef) Owner() string {
	owner, _ := splitFullName(r.FullName)
	return owner
}

// Repo returns the last path element of FullName.
func (r RepoRef) Repo() string {
	_, repo := splitFullName(r.FullName)
	return repo
}

func splitFullName(fullName string) (string, string) {
	i := strings.LastIndexByte(fullName, '/')
	if i < 0 {
		return "", fullName
	}
	return fullName[:i], fullName[i+1:]
}
