package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// runProperties are the optional arguments that select a PA search. They
// default to the server configuration.
func runProperties() map[string]interface{} {
	return map[string]interface{}{
		"data_dir": map[string]interface{}{
			"type":        "string",
			"description": "Directory holding one or more PA search runs. Defaults to the configured data_dir",
		},
		"run_index": map[string]interface{}{
			"type":        "integer",
			"description": "Which run to use when several are found (0-based, lexical order). Default 0",
			"minimum":     0,
		},
	}
}

func withRunProperties(props map[string]interface{}) map[string]interface{} {
	for k, v := range runProperties() {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Discovery
		{
			Name:        "pa_discover",
			Description: "Find PA search runs (directories holding a 'Stub Summary.txt') below a data directory and list their EDAX, ImageJ and marker files.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"data_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory to search. Defaults to the configured data_dir",
					},
				},
			},
		},

		// Matching
		{
			Name:        "pa_match",
			Description: "Normalize the ImageJ particles of a run onto stage coordinates and pair them with the EDAX particles within a distance threshold. Returns match statistics and the matched pairs.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withRunProperties(map[string]interface{}{
					"threshold_mm": map[string]interface{}{
						"type":        "number",
						"description": "Match distance in mm; pairs at or beyond it do not match. Default 0.005",
					},
					"strategy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"first", "mutual"},
						"description": "first: accept the first candidate under the threshold. mutual: accept mutual nearest neighbours only",
					},
					"include_rows": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return every EDAX particle with its ImageJ partner. Default false",
						"default":     false,
					},
					"rows_by": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"edax", "imagej"},
						"description": "Particle list the rows follow: every EDAX particle (default) or every ImageJ particle with the EDAX particle that claimed it",
					},
				}),
			},
		},

		// Thumbnails
		{
			Name:        "pa_crop_thumbnail",
			Description: "Crop a particle thumbnail centred on a pixel of a field image and return it as base64-encoded PNG. The window is shifted to stay inside the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the field image",
					},
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "Centroid X coordinate in pixels",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Centroid Y coordinate in pixels",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Crop width in pixels. Default 32",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Crop height in pixels. Default 25",
					},
					"flip_y": map[string]interface{}{
						"type":        "boolean",
						"description": "Measure y from the bottom of the image, as EDAX centroids are. Default false",
						"default":     false,
					},
					"scale": map[string]interface{}{
						"type":        "integer",
						"description": "Integer magnification. Default 3",
						"default":     3,
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "pa_image_info",
			Description: "Load a field image and return its dimensions, format, color depth and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Report
		{
			Name:        "pa_report",
			Description: "Run the whole reconciliation for a PA search run: match particles, write thumbnails and write the interactive HTML report. Returns the report path and match statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withRunProperties(map[string]interface{}{
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Report file path. Defaults to <run>/<run name>.html",
					},
					"sample_id": map[string]interface{}{
						"type":        "string",
						"description": "Sample identifier shown in the report title",
					},
					"skip_thumbnails": map[string]interface{}{
						"type":        "boolean",
						"description": "Do not crop thumbnails. Default false",
						"default":     false,
					},
				}),
			},
		},

		// OCR
		{
			Name:        "pa_read_databar",
			Description: "OCR the data bar at the bottom of a field image and parse the magnification and accelerating voltage.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the field image",
					},
					"band_height": map[string]interface{}{
						"type":        "integer",
						"description": "Height of the data bar in pixels. Default 64",
						"default":     64,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return result(req.ID, map[string]interface{}{"tools": GetToolDefinitions()})
}
