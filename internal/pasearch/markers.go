package pasearch

import (
	"fmt"

	"github.com/ironsheep/pa-report/internal/errors"
)

// MarkerPreambleLines is the number of lines before the column names in marker_pos.txt.
const MarkerPreambleLines = 4

// ParseMarkers reads reference marker positions: rows of name, x, y in mm
// after a 4 line preamble and a header row. '#' starts a comment.
func ParseMarkers(path string) ([]Marker, error) {
	raw, err := readRawTable(path, MarkerPreambleLines, "#")
	if err != nil {
		return nil, err
	}
	if len(raw.header) < 3 {
		return nil, errors.NewParseError(path, 0, fmt.Errorf("expected name, x, y columns, got %d", len(raw.header)))
	}

	markers := make([]Marker, 0, len(raw.rows))
	for r, row := range raw.rows {
		x, err := parseNumber(row[1])
		if err != nil {
			return nil, errors.NewParseError(path, raw.lines[r], fmt.Errorf("x: %w", err))
		}
		y, err := parseNumber(row[2])
		if err != nil {
			return nil, errors.NewParseError(path, raw.lines[r], fmt.Errorf("y: %w", err))
		}
		markers = append(markers, Marker{Name: row[0], StageX: x, StageY: y})
	}
	return markers, nil
}
