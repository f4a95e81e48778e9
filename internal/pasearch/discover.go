package pasearch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/pa-report/internal/errors"
)

// DiscoveryKind classifies how many PA search runs were found below a root.
type DiscoveryKind int

const (
	// DiscoveredNone means no directory holds a stub summary.
	DiscoveredNone DiscoveryKind = iota
	// DiscoveredSingle means exactly one run was found.
	DiscoveredSingle
	// DiscoveredMultiple means several runs were found; callers pick one.
	DiscoveredMultiple
)

// String returns the lower-case name of the kind.
func (k DiscoveryKind) String() string {
	switch k {
	case DiscoveredNone:
		return "none"
	case DiscoveredSingle:
		return "single"
	case DiscoveredMultiple:
		return "multiple"
	default:
		return fmt.Sprintf("DiscoveryKind(%d)", int(k))
	}
}

// MarshalText lets the kind print by name in JSON and YAML output.
func (k DiscoveryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Run locates the files of one PA search. Optional files are empty when absent.
type Run struct {
	Dir         string `json:"dir"`
	SummaryPath string `json:"summary_path"`
	EDAXPath    string `json:"edax_path"`
	ImageJPath  string `json:"imagej_path,omitempty"`
	MarkersPath string `json:"markers_path,omitempty"`
}

// Name is the base name of the run directory, used to name the report.
func (r Run) Name() string {
	return filepath.Base(r.Dir)
}

// Discovery is the result of walking a data root for PA search runs.
type Discovery struct {
	Root string        `json:"root"`
	Kind DiscoveryKind `json:"kind"`
	Runs []Run         `json:"runs"`
}

// markerCandidates are tried in order relative to the run directory.
var markerCandidates = []string{
	filepath.Join("refmarkers", "marker_pos.txt"),
	filepath.Join("Reference Markers", "marker_pos.txt"),
}

// Discover walks root and returns every directory holding a stub summary,
// in lexical order. In a run, the first *stub01.csv file is the EDAX export
// and the first IJ*.csv file the ImageJ export.
func Discover(root string) (*Discovery, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("data_dir", root, "not a directory")
	}

	d := &Discovery{Root: root}
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		run, ok, err := inspectDir(path)
		if err != nil {
			return err
		}
		if ok {
			d.Runs = append(d.Runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	switch len(d.Runs) {
	case 0:
		d.Kind = DiscoveredNone
	case 1:
		d.Kind = DiscoveredSingle
	default:
		d.Kind = DiscoveredMultiple
	}
	return d, nil
}

// Select returns run i, or ErrNoSearchFound when nothing was discovered.
func (d *Discovery) Select(i int) (Run, error) {
	if d.Kind == DiscoveredNone {
		return Run{}, fmt.Errorf("%s: %w", d.Root, errors.ErrNoSearchFound)
	}
	if i < 0 || i >= len(d.Runs) {
		return Run{}, errors.NewValidationError("run_index", i,
			fmt.Sprintf("must be between 0 and %d", len(d.Runs)-1))
	}
	return d.Runs[i], nil
}

func inspectDir(dir string) (Run, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Run{}, false, err
	}

	var names []string
	hasSummary := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == SummaryFile {
			hasSummary = true
		}
		names = append(names, e.Name())
	}
	if !hasSummary {
		return Run{}, false, nil
	}
	sort.Strings(names)

	run := Run{Dir: dir, SummaryPath: filepath.Join(dir, SummaryFile)}
	for _, name := range names {
		if run.EDAXPath == "" && strings.HasSuffix(name, "stub01.csv") {
			run.EDAXPath = filepath.Join(dir, name)
		}
		if run.ImageJPath == "" && strings.HasPrefix(name, "IJ") && strings.HasSuffix(name, ".csv") {
			run.ImageJPath = filepath.Join(dir, name)
		}
	}
	for _, rel := range markerCandidates {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			run.MarkersPath = filepath.Join(dir, rel)
			break
		}
	}
	return run, true, nil
}
