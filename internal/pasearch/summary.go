package pasearch

import (
	"strconv"
	"strings"

	"github.com/ironsheep/pa-report/internal/errors"
)

// SummaryFile is the name of the stub summary that marks a run directory.
const SummaryFile = "Stub Summary.txt"

// Keys read from the stub summary for the report header.
const (
	KeyMagnification     = "Mag"
	KeyVoltage           = "Acc. Voltage"
	KeyParticlesCounted  = "Particles Counted"
	KeyParticlesAnalyzed = "Particles Analyzed"
)

// Entry is one key/value line of the stub summary.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Summary holds the stub summary header in file order.
type Summary struct {
	Entries []Entry `json:"entries"`
}

// ParseSummary reads colon-delimited "key: value" lines. Only the first
// colon splits, so values may contain colons (times, ratios). Lines without
// a colon are ignored; a repeated key keeps its last value.
func ParseSummary(path string) (*Summary, error) {
	text, err := readText(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, err)
	}

	s := &Summary{}
	index := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if i, dup := index[key]; dup {
			s.Entries[i].Value = value
			continue
		}
		index[key] = len(s.Entries)
		s.Entries = append(s.Entries, Entry{Key: key, Value: value})
	}
	return s, nil
}

// Get returns the value for key.
func (s *Summary) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Value returns the value for key or "" when absent.
func (s *Summary) Value(key string) string {
	v, _ := s.Get(key)
	return v
}

// Int returns the leading integer of the value for key, e.g. 412 for "412 particles".
func (s *Summary) Int(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set adds or replaces a value. The pipeline uses it to fill gaps from the
// field image data bar.
func (s *Summary) Set(key, value string) {
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			s.Entries[i].Value = value
			return
		}
	}
	s.Entries = append(s.Entries, Entry{Key: key, Value: value})
}
