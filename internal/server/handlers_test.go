package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/pa-report/internal/config"
	"github.com/ironsheep/pa-report/internal/logging"
	"github.com/ironsheep/pa-report/internal/ocr"
	"github.com/ironsheep/pa-report/internal/pasearch/pasearchtest"
)

// writeTestRun writes a run on a 200x150 px frame at 1 µm per pixel. EDAX
// part 1 coincides with ImageJ part 1; EDAX part 2 has no partner.
func writeTestRun(t *testing.T) (root, dir string) {
	t.Helper()
	root = t.TempDir()
	dir = pasearchtest.WriteRun(t, root, pasearchtest.Run{
		Name: "S-042",
		EDAX: []pasearchtest.EDAXRow{
			{Part: 1, Field: 1, XCent: 60, YCent: 70, XStage: 1000, YStage: 2000, StgX: 0.96, StgY: 1.995, AvgDiam: 2.5, XWidth: 10, YHeight: 8, UM: 85},
			{Part: 2, Field: 1, XCent: 150, YCent: 105, XStage: 1000, YStage: 2000, StgX: 1.05, StgY: 2.03, AvgDiam: 4, XWidth: 12, YHeight: 12, UM: 40},
		},
		ImageJ: []pasearchtest.ImageJRow{
			{Part: 1, Label: "fld0001.png", X: 60, Y: 80, Major: 3, Minor: 2, Circ: 0.9},
		},
		FieldSize: image.Pt(200, 150),
	})
	return root, dir
}

func newRunServer(t *testing.T, dataDir string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Frame.Width = 200
	cfg.Frame.Height = 150
	cfg.Frame.YOffsetPx = 0
	cfg.Frame.PixelSizeUM = 1
	return New(cfg, logging.Nop())
}

// callTool runs a tools/call request and decodes the text content into out.
// It returns the JSON-RPC error, if any.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPError {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("decode result: %v", err)
		}
	}
	return nil
}

func TestHandleToolsCall_Discover(t *testing.T) {
	root, dir := writeTestRun(t)
	s := newRunServer(t, root)

	var got struct {
		Kind string `json:"kind"`
		Runs []struct {
			Dir        string `json:"dir"`
			EDAXPath   string `json:"edax_path"`
			ImageJPath string `json:"imagej_path"`
		} `json:"runs"`
	}
	if err := callTool(t, s, "pa_discover", map[string]interface{}{}, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Kind != "single" {
		t.Errorf("kind: got %s, want single", got.Kind)
	}
	if len(got.Runs) != 1 || got.Runs[0].Dir != dir {
		t.Fatalf("runs: got %+v", got.Runs)
	}
	if filepath.Base(got.Runs[0].EDAXPath) != "S-042_stub01.csv" {
		t.Errorf("edax_path: got %s", got.Runs[0].EDAXPath)
	}
	if filepath.Base(got.Runs[0].ImageJPath) != "IJ_S-042.csv" {
		t.Errorf("imagej_path: got %s", got.Runs[0].ImageJPath)
	}
}

func TestHandleToolsCall_Discover_Empty(t *testing.T) {
	s := newRunServer(t, ".")

	var got struct {
		Kind string `json:"kind"`
	}
	if err := callTool(t, s, "pa_discover", map[string]interface{}{"data_dir": t.TempDir()}, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Kind != "none" {
		t.Errorf("kind: got %s, want none", got.Kind)
	}
}

func TestHandleToolsCall_Match(t *testing.T) {
	root, _ := writeTestRun(t)
	s := newRunServer(t, root)

	var got struct {
		Options struct {
			ThresholdMM float64 `json:"threshold_mm"`
			Strategy    string  `json:"strategy"`
		} `json:"options"`
		Stats struct {
			Matches       int `json:"matches"`
			UnmatchedEDAX int `json:"unmatched_edax"`
		} `json:"stats"`
		Matches []struct {
			Field      int `json:"field"`
			PartEDAX   int `json:"part_edax"`
			PartImageJ int `json:"part_imagej"`
		} `json:"matches"`
		Rows []struct {
			PartEDAX    int      `json:"part_edax"`
			PartImageJ  *int     `json:"part_imagej"`
			Composition *float64 `json:"composition"`
			Circ        *float64 `json:"circ"`
		} `json:"rows"`
	}
	args := map[string]interface{}{"strategy": "mutual", "include_rows": true}
	if err := callTool(t, s, "pa_match", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Options.Strategy != "mutual" || got.Options.ThresholdMM != 0.005 {
		t.Errorf("options: got %+v", got.Options)
	}
	if got.Stats.Matches != 1 || got.Stats.UnmatchedEDAX != 1 {
		t.Errorf("stats: got %+v", got.Stats)
	}
	if len(got.Matches) != 1 || got.Matches[0].PartEDAX != 1 || got.Matches[0].PartImageJ != 1 {
		t.Fatalf("matches: got %+v", got.Matches)
	}

	if len(got.Rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(got.Rows))
	}
	if got.Rows[0].PartImageJ == nil || *got.Rows[0].PartImageJ != 1 {
		t.Errorf("row 0 partner: got %v", got.Rows[0].PartImageJ)
	}
	if got.Rows[0].Circ == nil || *got.Rows[0].Circ != 0.9 {
		t.Errorf("row 0 circ should come from the ImageJ partner, got %v", got.Rows[0].Circ)
	}
	if got.Rows[1].PartImageJ != nil || got.Rows[1].Circ != nil {
		t.Errorf("row 1 should be unmatched: %+v", got.Rows[1])
	}
	if got.Rows[1].Composition == nil || *got.Rows[1].Composition != 40 {
		t.Errorf("row 1 composition: got %v", got.Rows[1].Composition)
	}
}

func TestHandleToolsCall_Match_RowsByImageJ(t *testing.T) {
	root, _ := writeTestRun(t)
	s := newRunServer(t, root)

	var got struct {
		Rows []struct {
			PartEDAX   *int     `json:"part_edax"`
			PartImageJ *int     `json:"part_imagej"`
			DistanceMM *float64 `json:"distance_mm"`
		} `json:"rows"`
	}
	args := map[string]interface{}{"include_rows": true, "rows_by": "imagej"}
	if err := callTool(t, s, "pa_match", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(got.Rows) != 1 {
		t.Fatalf("rows: got %d, want one per ImageJ particle", len(got.Rows))
	}
	row := got.Rows[0]
	if row.PartImageJ == nil || *row.PartImageJ != 1 {
		t.Errorf("part_imagej: got %v", row.PartImageJ)
	}
	if row.PartEDAX == nil || *row.PartEDAX != 1 {
		t.Errorf("part_edax: got %v", row.PartEDAX)
	}
	if row.DistanceMM == nil {
		t.Error("matched row should carry its distance")
	}
}

func TestHandleToolsCall_Match_Errors(t *testing.T) {
	root, _ := writeTestRun(t)
	s := newRunServer(t, root)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{"bad strategy", map[string]interface{}{"strategy": "closest"}, "match.strategy"},
		{"bad threshold", map[string]interface{}{"threshold_mm": -1}, "threshold_mm"},
		{"run index out of range", map[string]interface{}{"run_index": 3}, "run_index"},
		{"no search", map[string]interface{}{"data_dir": t.TempDir()}, "no PA search found"},
		{"bad rows_by", map[string]interface{}{"include_rows": true, "rows_by": "both"}, "rows_by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpErr := callTool(t, s, "pa_match", tt.args, nil)
			if mcpErr == nil {
				t.Fatal("expected an error")
			}
			if mcpErr.Code != -32000 {
				t.Errorf("code: got %d, want -32000", mcpErr.Code)
			}
			if data, _ := mcpErr.Data.(string); !strings.Contains(data, tt.wantMsg) {
				t.Errorf("data: got %q, want it to mention %q", data, tt.wantMsg)
			}
		})
	}
}

func TestHandleToolsCall_CropThumbnail(t *testing.T) {
	_, dir := writeTestRun(t)
	s := newRunServer(t, dir)

	args := map[string]interface{}{
		"path":   filepath.Join(dir, "fields", "fld0001.png"),
		"x":      60,
		"y":      70,
		"width":  10,
		"height": 8,
		"flip_y": true,
		"scale":  2,
	}
	var got struct {
		X           int    `json:"x"`
		Y           int    `json:"y"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
	}
	if err := callTool(t, s, "pa_crop_thumbnail", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.X != 55 || got.Y != 76 {
		t.Errorf("window origin: got (%d,%d), want (55,76)", got.X, got.Y)
	}
	if got.Width != 20 || got.Height != 16 {
		t.Errorf("size: got %dx%d, want 20x16", got.Width, got.Height)
	}
	if got.MimeType != "image/png" {
		t.Errorf("mime type: got %s", got.MimeType)
	}

	raw, err := base64.StdEncoding.DecodeString(got.ImageBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 55 || g>>8 != 76 {
		t.Errorf("top-left pixel encodes (%d,%d), want (55,76)", r>>8, g>>8)
	}
}

func TestHandleToolsCall_CropThumbnail_Errors(t *testing.T) {
	_, dir := writeTestRun(t)
	s := newRunServer(t, dir)
	field := filepath.Join(dir, "fields", "fld0001.png")

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{"x": 1, "y": 1}},
		{"missing file", map[string]interface{}{"path": filepath.Join(dir, "nope.png"), "x": 1, "y": 1}},
		{"window too large", map[string]interface{}{"path": field, "x": 1, "y": 1, "width": 500}},
		{"negative scale", map[string]interface{}{"path": field, "x": 1, "y": 1, "scale": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mcpErr := callTool(t, s, "pa_crop_thumbnail", tt.args, nil); mcpErr == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	_, dir := writeTestRun(t)
	s := newRunServer(t, dir)

	var got struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Format     string `json:"format"`
		ColorDepth string `json:"color_depth"`
	}
	args := map[string]interface{}{"path": filepath.Join(dir, "fields", "fld0001.png")}
	if err := callTool(t, s, "pa_image_info", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Width != 200 || got.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", got.Width, got.Height)
	}
	if got.Format != "png" || got.ColorDepth != "8-bit" {
		t.Errorf("format: got %s %s", got.Format, got.ColorDepth)
	}
}

func TestHandleToolsCall_Report(t *testing.T) {
	root, dir := writeTestRun(t)
	s := newRunServer(t, root)

	var got struct {
		ReportPath string `json:"report_path"`
		Thumbnails int    `json:"thumbnails"`
		Stats      struct {
			Matches int `json:"matches"`
		} `json:"stats"`
	}
	if err := callTool(t, s, "pa_report", map[string]interface{}{"sample_id": "S-042"}, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.ReportPath != filepath.Join(dir, "S-042.html") {
		t.Errorf("report_path: got %s", got.ReportPath)
	}
	if got.Thumbnails != 2 {
		t.Errorf("thumbnails: got %d, want 2", got.Thumbnails)
	}
	if got.Stats.Matches != 1 {
		t.Errorf("matches: got %d, want 1", got.Stats.Matches)
	}
	data, err := os.ReadFile(got.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "Particle Search Results: S-042") {
		t.Error("report title should include the sample id")
	}
}

func TestHandleToolsCall_Report_SkipThumbnails(t *testing.T) {
	root, dir := writeTestRun(t)
	s := newRunServer(t, root)
	out := filepath.Join(t.TempDir(), "report.html")

	var got struct {
		ReportPath string `json:"report_path"`
		Thumbnails int    `json:"thumbnails"`
	}
	args := map[string]interface{}{"output": out, "skip_thumbnails": true}
	if err := callTool(t, s, "pa_report", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.ReportPath != out || got.Thumbnails != 0 {
		t.Errorf("got %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "cropped")); !os.IsNotExist(err) {
		t.Error("no thumbnail directory expected")
	}
	if s.cfg.Report.Output != "" || s.cfg.Thumbnails.Skip {
		t.Error("tool arguments must not leak into the server configuration")
	}
}

func TestHandleToolsCall_ReadDataBar(t *testing.T) {
	s := newTestServer()
	if mcpErr := callTool(t, s, "pa_read_databar", map[string]interface{}{}, nil); mcpErr == nil {
		t.Error("expected an error for a missing path")
	}

	if !ocr.Info().Available {
		t.Skip("tesseract not available")
	}
	if mcpErr := callTool(t, s, "pa_read_databar", map[string]interface{}{"path": "/nonexistent/fld0001.png"}, nil); mcpErr == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	mcpErr := callTool(t, newTestServer(), "image_load", map[string]interface{}{}, nil)
	if mcpErr == nil {
		t.Fatal("expected an error")
	}
	if mcpErr.Code != -32000 {
		t.Errorf("code: got %d, want -32000", mcpErr.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer()
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v, want -32602", resp.Error)
	}
}

func TestHandleToolsCall_InvalidArguments(t *testing.T) {
	s := newTestServer()
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"pa_crop_thumbnail","arguments":{"path":42}}`),
	})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("got %+v, want -32000", resp.Error)
	}
}
