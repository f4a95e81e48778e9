// Package server implements the MCP (Model Context Protocol) server for PA
// search reconciliation.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - pa_discover: List PA search runs below a data directory
//   - pa_match: Normalize and pair EDAX and ImageJ particles
//   - pa_crop_thumbnail: Crop one particle thumbnail from a field image
//   - pa_image_info: Field image dimensions and format
//   - pa_report: Run the full pipeline and write the HTML report
//   - pa_read_databar: OCR magnification and voltage from a field image
//
// Tools that operate on a run accept data_dir and run_index; everything
// else comes from the configuration the server was started with.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string as data. Logs go to stderr through
// zerolog since stdout carries the protocol.
//
// # Usage
//
//	srv := server.New(cfg, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal().Err(err).Msg("server failed")
//	}
package server
