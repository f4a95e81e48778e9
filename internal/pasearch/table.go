package pasearch

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/pa-report/internal/errors"
)

// deleteChars are dropped from header names, matching how the instrument
// exports are conventionally loaded ("Circ." becomes "Circ").
const deleteChars = "~!@#$%^&*()-=+|]}[{';: /?.>,<\\\""

// rawTable is a comma separated table after preamble and comment removal.
type rawTable struct {
	header []string
	rows   [][]string
	lines  []int // source line of each row, 1-based
}

// readText reads a whole file with \r\n and bare \r converted to \n.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}

// readRawTable skips skip lines, strips everything after comment (when
// non-empty), drops blank lines, and splits the rest on commas. The first
// remaining line is the header.
func readRawTable(path string, skip int, comment string) (*rawTable, error) {
	text, err := readText(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, err)
	}

	lines := strings.Split(text, "\n")
	if len(lines) <= skip {
		return nil, errors.NewParseError(path, 0, fmt.Errorf("expected more than %d preamble lines, got %d", skip, len(lines)))
	}

	t := &rawTable{}
	for i := skip; i < len(lines); i++ {
		line := lines[i]
		if comment != "" {
			if idx := strings.Index(line, comment); idx >= 0 {
				line = line[:idx]
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		r := csv.NewReader(strings.NewReader(line))
		r.TrimLeadingSpace = true
		r.LazyQuotes = true
		rec, err := r.Read()
		if err != nil && err != io.EOF {
			return nil, errors.NewParseError(path, i+1, err)
		}
		for j := range rec {
			rec[j] = strings.TrimSpace(rec[j])
		}

		if t.header == nil {
			t.header = rec
			continue
		}
		if len(rec) != len(t.header) {
			return nil, errors.NewParseError(path, i+1,
				fmt.Errorf("got %d columns, header has %d", len(rec), len(t.header)))
		}
		t.rows = append(t.rows, rec)
		t.lines = append(t.lines, i+1)
	}

	if t.header == nil {
		return nil, errors.NewParseError(path, 0, fmt.Errorf("no header row after %d preamble lines", skip))
	}
	return t, nil
}

// sanitizeName trims a header name, replaces spaces with underscores and
// drops punctuation. Empty results become f<index>.
func sanitizeName(name string, index int) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	var b strings.Builder
	for _, r := range name {
		if !strings.ContainsRune(deleteChars, r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("f%d", index)
	}
	return b.String()
}

// headerNames sanitizes every header name. A name already taken gets the
// first free _1, _2, ... suffix, so repeated columns stay distinct.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for i, h := range header {
		base := sanitizeName(h, i)
		name := base
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// parseNumber reads a numeric cell; an empty cell is NaN.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// toID converts a numeric cell to an integer id.
func toID(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not an integer id", v)
	}
	return int(v), nil
}
