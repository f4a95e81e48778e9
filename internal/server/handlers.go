package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/pa-report/internal/config"
	"github.com/ironsheep/pa-report/internal/errors"
	"github.com/ironsheep/pa-report/internal/imaging"
	"github.com/ironsheep/pa-report/internal/ocr"
	"github.com/ironsheep/pa-report/internal/pasearch"
	"github.com/ironsheep/pa-report/internal/pipeline"
	"github.com/ironsheep/pa-report/internal/reconcile"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pa_match", "pa_report").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	out, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("Tool failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return s.errorResponse(req.ID, codeInternalError, "Internal error", err.Error())
	}

	return result(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{{"type": "text", "text": string(text)}},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "pa_discover":
		return s.handleDiscover(args)
	case "pa_match":
		return s.handleMatch(args)
	case "pa_crop_thumbnail":
		return s.handleCropThumbnail(args)
	case "pa_image_info":
		return s.handleImageInfo(args)
	case "pa_report":
		return s.handleReport(ctx, args)
	case "pa_read_databar":
		return s.handleReadDataBar(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// runArgs select a PA search; unset fields keep the server configuration.
type runArgs struct {
	DataDir  string `json:"data_dir"`
	RunIndex *int   `json:"run_index"`
}

// configFor returns a validated copy of the server configuration with the
// run selection applied.
func (s *Server) configFor(a runArgs, apply func(*config.Config)) (*config.Config, error) {
	cfg := *s.cfg
	if a.DataDir != "" {
		cfg.DataDir = a.DataDir
	}
	if a.RunIndex != nil {
		cfg.RunIndex = *a.RunIndex
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// === Discovery ===

func (s *Server) handleDiscover(args json.RawMessage) (interface{}, error) {
	var a runArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	dir := a.DataDir
	if dir == "" {
		dir = s.cfg.DataDir
	}
	return pasearch.Discover(dir)
}

// === Matching ===

type matchArgs struct {
	runArgs
	ThresholdMM *float64 `json:"threshold_mm"`
	Strategy    string   `json:"strategy"`
	IncludeRows bool     `json:"include_rows"`
	RowsBy      string   `json:"rows_by"`
}

// rowResult is one particle with its partner. Missing values are null.
type rowResult struct {
	Field       int      `json:"field"`
	PartEDAX    *int     `json:"part_edax"`
	Ordinal     int      `json:"ordinal"`
	StageX      *float64 `json:"stage_x"`
	StageY      *float64 `json:"stage_y"`
	Composition *float64 `json:"composition"`
	AvgDiam     *float64 `json:"avg_diam"`
	PartImageJ  *int     `json:"part_imagej"`
	Circ        *float64 `json:"circ"`
	DistanceMM  *float64 `json:"distance_mm"`
}

type matchResult struct {
	Run      pasearch.Run       `json:"run"`
	Options  matchOptionsResult `json:"options"`
	Stats    reconcile.Stats    `json:"stats"`
	Matches  []reconcile.Match  `json:"matches"`
	Rows     []rowResult        `json:"rows,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

type matchOptionsResult struct {
	ThresholdMM float64            `json:"threshold_mm"`
	Strategy    reconcile.Strategy `json:"strategy"`
}

func (s *Server) handleMatch(args json.RawMessage) (interface{}, error) {
	var a matchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.configFor(a.runArgs, func(c *config.Config) {
		if a.ThresholdMM != nil {
			c.Match.ThresholdMM = *a.ThresholdMM
		}
		if a.Strategy != "" {
			c.Match.Strategy = a.Strategy
		}
	})
	if err != nil {
		return nil, err
	}

	ds, err := pipeline.Load(cfg, s.log)
	if err != nil {
		return nil, err
	}
	m, err := pipeline.Match(ds, cfg, s.log)
	if err != nil {
		return nil, err
	}

	res := &matchResult{
		Run:      ds.Run,
		Options:  matchOptionsResult{ThresholdMM: m.Options.Threshold, Strategy: m.Options.Strategy},
		Stats:    m.Stats,
		Matches:  m.Matches,
		Warnings: ds.Warnings,
	}
	if res.Matches == nil {
		res.Matches = []reconcile.Match{}
	}
	if a.IncludeRows {
		switch pasearch.Source(a.RowsBy) {
		case "", pasearch.SourceEDAX:
			res.Rows = rowResults(m.Rows, false)
		case pasearch.SourceImageJ:
			res.Rows = rowResults(reconcile.JoinOnB(ds.EDAX, ds.ImageJ, m.Matches), true)
		default:
			return nil, errors.NewValidationError("rows_by", a.RowsBy, "must be edax or imagej")
		}
	}
	return res, nil
}

// rowResults flattens joined rows. byImageJ marks rows whose primary
// particle is the ImageJ one.
func rowResults(rows []reconcile.Row, byImageJ bool) []rowResult {
	out := make([]rowResult, 0, len(rows))
	for _, r := range rows {
		rr := rowResult{
			Field:       r.Primary.Field,
			Ordinal:     r.Ordinal,
			StageX:      finite(r.Primary.StageX),
			StageY:      finite(r.Primary.StageY),
			Composition: finite(r.Composition()),
			AvgDiam:     finite(r.Primary.AvgDiam),
			Circ:        finite(r.Circ()),
			DistanceMM:  finite(r.Distance),
		}
		edax, imagej := &r.Primary, r.Partner
		if byImageJ {
			edax, imagej = r.Partner, &r.Primary
		}
		if edax != nil {
			part := edax.Part
			rr.PartEDAX = &part
		}
		if imagej != nil {
			part := imagej.Part
			rr.PartImageJ = &part
		}
		out = append(out, rr)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// === Thumbnails ===

type cropThumbnailArgs struct {
	Path   string `json:"path"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FlipY  bool   `json:"flip_y"`
	Scale  int    `json:"scale"`
}

func (s *Server) handleCropThumbnail(args json.RawMessage) (interface{}, error) {
	var a cropThumbnailArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.NewValidationError("path", a.Path, "is required")
	}
	if a.Width == 0 {
		a.Width = imaging.ImageJThumbnailSize.X
	}
	if a.Height == 0 {
		a.Height = imaging.ImageJThumbnailSize.Y
	}
	if a.Scale == 0 {
		a.Scale = imaging.DefaultScale
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	center, size := image.Pt(a.X, a.Y), image.Pt(a.Width, a.Height)
	window, err := imaging.CropWindow(img.Bounds(), center, size, a.FlipY)
	if err != nil {
		return nil, err
	}
	thumb, err := imaging.Thumbnail(img, center, size, a.FlipY, a.Scale)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(thumb, window)
}

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Report ===

type reportArgs struct {
	runArgs
	Output         string `json:"output"`
	SampleID       string `json:"sample_id"`
	SkipThumbnails bool   `json:"skip_thumbnails"`
}

type reportResult struct {
	ReportPath string          `json:"report_path"`
	Run        pasearch.Run    `json:"run"`
	Stats      reconcile.Stats `json:"stats"`
	Thumbnails int             `json:"thumbnails"`
	Annotated  []string        `json:"annotated,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

func (s *Server) handleReport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a reportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.configFor(a.runArgs, func(c *config.Config) {
		if a.Output != "" {
			c.Report.Output = a.Output
		}
		if a.SampleID != "" {
			c.Sample.ID = a.SampleID
		}
		if a.SkipThumbnails {
			c.Thumbnails.Skip = true
		}
	})
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, cfg, s.log)
	if err != nil {
		return nil, err
	}
	out := &reportResult{
		ReportPath: res.ReportPath,
		Run:        res.Run,
		Stats:      res.Stats,
		Annotated:  res.Annotated,
		Warnings:   res.Warnings,
	}
	if res.Thumbnails != nil {
		out.Thumbnails = len(res.Thumbnails.Files)
	}
	return out, nil
}

// === OCR ===

type readDataBarArgs struct {
	Path       string `json:"path"`
	BandHeight int    `json:"band_height"`
}

func (s *Server) handleReadDataBar(args json.RawMessage) (interface{}, error) {
	var a readDataBarArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.NewValidationError("path", a.Path, "is required")
	}
	if a.BandHeight == 0 {
		a.BandHeight = s.cfg.Report.DataBarHeight
	}
	if info := ocr.Info(); !info.Available {
		return nil, fmt.Errorf("tesseract is not available")
	}
	return ocr.ReadDataBar(a.Path, a.BandHeight, ocr.Options{Language: ocr.DefaultLanguage})
}
