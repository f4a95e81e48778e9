// Package pipeline runs a PA search reconciliation end to end: discover the
// run, parse the exports, normalize and pair the particles, crop thumbnails
// and write the HTML report. Every step reads its settings from
// config.Config and logs through the zerolog logger it is given.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/pa-report/internal/config"
	"github.com/ironsheep/pa-report/internal/errors"
	"github.com/ironsheep/pa-report/internal/imaging"
	"github.com/ironsheep/pa-report/internal/ocr"
	"github.com/ironsheep/pa-report/internal/pasearch"
	"github.com/ironsheep/pa-report/internal/reconcile"
	"github.com/ironsheep/pa-report/internal/report"
)

// WarnMultipleSearches is reported when the data root holds several runs.
const WarnMultipleSearches = "More than one PA search found"

// Dataset is a parsed PA search.
type Dataset struct {
	Discovery *pasearch.Discovery
	Run       pasearch.Run
	Summary   *pasearch.Summary
	EDAX      *pasearch.Table

	// ImageJ is empty, never nil, when the run has no ImageJ export.
	ImageJ  *pasearch.Table
	Markers []pasearch.Marker

	Warnings []string
}

// Matching is the outcome of pairing a Dataset.
type Matching struct {
	Options reconcile.MatchOptions
	Matches []reconcile.Match
	Stats   reconcile.Stats
	Rows    []reconcile.Row
}

// Result describes a completed Run.
type Result struct {
	*Dataset
	*Matching

	Thumbnails *imaging.ThumbnailSummary
	Annotated  []string
	ReportPath string
}

// FrameFor returns the ImageJ sensor frame described by cfg.
func FrameFor(cfg *config.Config) reconcile.Frame {
	return reconcile.Frame{
		Width:     cfg.Frame.Width,
		Height:    cfg.Frame.Height,
		YOffset:   cfg.Frame.YOffsetPx,
		PixelSize: cfg.Frame.PixelSizeUM,
	}
}

// Load discovers the run selected by cfg, parses its files and assigns
// stage positions to the ImageJ particles.
func Load(cfg *config.Config, log zerolog.Logger) (*Dataset, error) {
	disc, err := pasearch.Discover(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	run, err := disc.Select(cfg.RunIndex)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Discovery: disc, Run: run}
	if disc.Kind == pasearch.DiscoveredMultiple {
		log.Warn().Int("runs", len(disc.Runs)).Int("index", cfg.RunIndex).Str("run", run.Dir).Msg(WarnMultipleSearches)
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("%s; using %s", WarnMultipleSearches, run.Name()))
	}
	log.Info().Str("run", run.Dir).Msg("Selected PA search")

	if ds.Summary, err = pasearch.ParseSummary(run.SummaryPath); err != nil {
		return nil, err
	}

	if run.EDAXPath == "" {
		return nil, errors.NewNotFoundError("EDAX export in", run.Dir)
	}
	ds.EDAX, err = pasearch.ParseEDAX(run.EDAXPath, pasearch.EDAXOptions{CompositionColumn: cfg.Report.CompositionColumn})
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", run.EDAXPath).Int("particles", ds.EDAX.Len()).Int("fields", len(ds.EDAX.Fields())).Msg("Loaded EDAX export")

	if run.ImageJPath == "" {
		ds.ImageJ = &pasearch.Table{Source: pasearch.SourceImageJ}
		ds.Warnings = append(ds.Warnings, "No ImageJ export found; particles are not matched")
		log.Warn().Str("run", run.Dir).Msg("No ImageJ export found")
	} else {
		if ds.ImageJ, err = pasearch.ParseImageJ(run.ImageJPath, cfg.Frame.PixelSizeUM); err != nil {
			return nil, err
		}
		log.Info().Str("file", run.ImageJPath).Int("particles", ds.ImageJ.Len()).Msg("Loaded ImageJ export")
	}

	if run.MarkersPath != "" {
		if ds.Markers, err = pasearch.ParseMarkers(run.MarkersPath); err != nil {
			return nil, err
		}
		log.Debug().Int("markers", len(ds.Markers)).Msg("Loaded reference markers")
	}

	if missing := reconcile.NormalizeImageJ(ds.EDAX, ds.ImageJ, FrameFor(cfg)); missing > 0 {
		log.Warn().Int("particles", missing).Msg("ImageJ particles on fields without an EDAX origin")
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("%d ImageJ particles lie on fields unknown to the EDAX export", missing))
	}
	return ds, nil
}

// Match pairs the EDAX and ImageJ particles of ds and joins them onto the
// EDAX list.
func Match(ds *Dataset, cfg *config.Config, log zerolog.Logger) (*Matching, error) {
	strategy, err := reconcile.ParseStrategy(cfg.Match.Strategy)
	if err != nil {
		return nil, err
	}
	opts := reconcile.MatchOptions{Threshold: cfg.Match.ThresholdMM, Strategy: strategy}

	matches, err := reconcile.Pair(ds.EDAX, ds.ImageJ, opts)
	if err != nil {
		return nil, err
	}
	m := &Matching{
		Options: opts,
		Matches: matches,
		Stats:   reconcile.Summarize(ds.EDAX, ds.ImageJ, matches),
		Rows:    reconcile.JoinOnA(ds.EDAX, ds.ImageJ, matches),
	}
	log.Info().
		Int("matches", m.Stats.Matches).
		Int("unmatched_edax", m.Stats.UnmatchedA).
		Int("unmatched_imagej", m.Stats.UnmatchedB).
		Float64("threshold_mm", opts.Threshold).
		Str("strategy", string(opts.Strategy)).
		Msg("Paired particles")
	if m.Stats.SharedB > 0 {
		log.Debug().Int("shared", m.Stats.SharedB).Msg("ImageJ particles claimed by several EDAX particles")
	}
	return m, nil
}

// ThumbnailSource returns the table whose particles are cropped.
func ThumbnailSource(ds *Dataset, cfg *config.Config) *pasearch.Table {
	if pasearch.Source(cfg.Thumbnails.Source) == pasearch.SourceImageJ {
		return ds.ImageJ
	}
	return ds.EDAX
}

// ThumbnailOptions resolves the thumbnail settings of cfg against the run
// directory.
func ThumbnailOptions(ds *Dataset, cfg *config.Config) imaging.ThumbnailOptions {
	src := pasearch.Source(cfg.Thumbnails.Source)
	opts := imaging.OptionsFor(src,
		inRun(ds.Run, cfg.Fields.Dir), cfg.Fields.Ext,
		inRun(ds.Run, cfg.Thumbnails.Dir), cfg.Thumbnails.Ext,
		cfg.Thumbnails.Scale)
	if src == pasearch.SourceImageJ {
		opts.Size = image.Pt(cfg.Thumbnails.ImageJWidth, cfg.Thumbnails.ImageJHeight)
	}
	return opts
}

// Thumbnails crops every particle of the configured source and returns the
// written files keyed by particle.
func Thumbnails(ctx context.Context, ds *Dataset, cfg *config.Config, cache *imaging.ImageCache, log zerolog.Logger) (*imaging.ThumbnailSummary, map[report.Key]string, error) {
	table := ThumbnailSource(ds, cfg)
	opts := ThumbnailOptions(ds, cfg)

	start := time.Now()
	sum, err := imaging.WriteThumbnails(ctx, cache, table, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("thumbnails: %w", err)
	}
	log.Info().
		Str("source", string(table.Source)).
		Str("dir", opts.OutDir).
		Int("written", len(sum.Files)).
		Int("skipped", len(sum.Skipped)).
		Dur("elapsed", time.Since(start)).
		Msg("Wrote thumbnails")

	byKey := make(map[report.Key]string, len(sum.Files))
	for _, f := range sum.Files {
		p := table.Particles[f.Index]
		byKey[report.Key{Field: p.Field, Part: p.Part}] = f.Path
	}
	return sum, byKey, nil
}

// AnnotatedDir is where annotated field images go, relative to the run.
const AnnotatedDir = "annotated"

// Annotate writes each field image with both particle sets marked.
func Annotate(ctx context.Context, ds *Dataset, cfg *config.Config, cache *imaging.ImageCache, log zerolog.Logger) ([]string, error) {
	opts := ThumbnailOptions(ds, cfg)
	opts.OutDir = inRun(ds.Run, AnnotatedDir)

	written, err := imaging.WriteAnnotatedFields(ctx, cache, ds.EDAX, ds.ImageJ, opts)
	if err != nil {
		return written, fmt.Errorf("annotate fields: %w", err)
	}
	log.Info().Str("dir", opts.OutDir).Int("fields", len(written)).Msg("Wrote annotated field images")
	return written, nil
}

// FillFromDataBar reads magnification and voltage from the data bar of the
// first field image when the summary lacks them. OCR problems are returned
// as warnings since the report is complete without them.
func FillFromDataBar(ds *Dataset, cfg *config.Config, log zerolog.Logger) []string {
	if _, ok := ds.Summary.Get(pasearch.KeyMagnification); ok {
		return nil
	}
	fields := ds.EDAX.FieldsInOrder()
	if len(fields) == 0 {
		return nil
	}
	if info := ocr.Info(); !info.Available {
		log.Warn().Msg("Tesseract is not available; data bar not read")
		return []string{"Magnification unknown: OCR is not available"}
	}

	path := imaging.FieldImagePath(inRun(ds.Run, cfg.Fields.Dir), fields[0], cfg.Fields.Ext)
	bar, err := ocr.ReadDataBar(path, cfg.Report.DataBarHeight, ocr.Options{Language: ocr.DefaultLanguage})
	if err != nil {
		log.Warn().Err(err).Str("image", path).Msg("Could not read data bar")
		return []string{fmt.Sprintf("Magnification unknown: %v", err)}
	}

	if bar.Magnification > 0 {
		ds.Summary.Set(pasearch.KeyMagnification, ocr.FormatMagnification(bar.Magnification))
	}
	if _, ok := ds.Summary.Get(pasearch.KeyVoltage); !ok && bar.VoltageKV > 0 {
		ds.Summary.Set(pasearch.KeyVoltage, strconv.FormatFloat(bar.VoltageKV, 'f', 1, 64)+" kV")
	}
	log.Info().Float64("magnification", bar.Magnification).Float64("voltage_kv", bar.VoltageKV).Msg("Read data bar")
	return nil
}

// ReportPath is report.output, or <run>/<run name>.html when unset.
func ReportPath(ds *Dataset, cfg *config.Config) string {
	if cfg.Report.Output != "" {
		return cfg.Report.Output
	}
	return filepath.Join(ds.Run.Dir, ds.Run.Name()+".html")
}

// Run executes the whole pipeline. Any failure aborts it.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Result, error) {
	ds, err := Load(cfg, log)
	if err != nil {
		return nil, err
	}
	m, err := Match(ds, cfg, log)
	if err != nil {
		return nil, err
	}
	res := &Result{Dataset: ds, Matching: m}

	cache := imaging.NewImageCache()
	var thumbs map[report.Key]string
	if cfg.Thumbnails.Skip {
		log.Info().Msg("Skipping thumbnails")
	} else {
		if res.Thumbnails, thumbs, err = Thumbnails(ctx, ds, cfg, cache, log); err != nil {
			return nil, err
		}
	}
	if cfg.Thumbnails.AnnotateFields {
		if res.Annotated, err = Annotate(ctx, ds, cfg, cache, log); err != nil {
			return nil, err
		}
	}
	if cfg.Report.OCRDataBar {
		ds.Warnings = append(ds.Warnings, FillFromDataBar(ds, cfg, log)...)
	}

	res.ReportPath = ReportPath(ds, cfg)
	r, err := report.Build(report.Input{
		Title: cfg.Report.Title,
		Sample: report.Sample{
			ID:      cfg.Sample.ID,
			CRM:     cfg.Sample.CRM,
			Remarks: cfg.Sample.Remarks,
			UAmount: cfg.Sample.UAmount,
		},
		Summary:         ds.Summary,
		Rows:            m.Rows,
		Stats:           m.Stats,
		Options:         m.Options,
		Markers:         ds.Markers,
		Warnings:        ds.Warnings,
		Thumbnails:      thumbs,
		ThumbnailSource: pasearch.Source(cfg.Thumbnails.Source),
		OutputPath:      res.ReportPath,
	})
	if err != nil {
		return nil, err
	}
	if err := r.WriteFile(res.ReportPath); err != nil {
		return nil, err
	}
	log.Info().Str("report", res.ReportPath).Int("particles", len(m.Rows)).Msg("Wrote report")
	return res, nil
}

// inRun resolves a configured directory against the run directory.
func inRun(run pasearch.Run, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(run.Dir, dir)
}
