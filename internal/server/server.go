package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ironsheep/pa-report/internal/config"
	"github.com/ironsheep/pa-report/internal/imaging"
)

// ServerName is reported to clients during the handshake.
const ServerName = "pa-report"

// Version is reported to clients; the CLI overrides it with its build version.
var Version = "0.1.0"

const (
	jsonrpcVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeToolFailed     = -32000
)

// Server handles MCP protocol communication
type Server struct {
	cfg   *config.Config
	log   zerolog.Logger
	cache *imaging.ImageCache
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server whose tools default to cfg. A nil cfg uses
// config.Default.
func New(cfg *config.Config, log zerolog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		cfg:   cfg,
		log:   log.With().Str("component", "mcp").Logger(),
		cache: imaging.NewImageCache(),
	}
}

// Run serves requests from stdin until it is closed.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to
// w. It returns when r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)
	send := func(resp *MCPResponse) {
		if err := enc.Encode(resp); err != nil {
			s.log.Error().Err(err).Msg("Failed to encode response")
		}
	}

	s.log.Info().Str("version", Version).Msg("MCP server started")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn().Err(err).Msg("Failed to parse request")
			send(s.errorResponse(nil, codeParseError, "Parse error", err.Error()))
			continue
		}
		if resp := s.handleRequest(ctx, &req); resp != nil {
			send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	s.log.Info().Msg("MCP server stopped")
	return nil
}

// handleRequest dispatches one request. Notifications get no response.
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("Request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return result(req.ID, map[string]interface{}{})
	default:
		return &MCPResponse{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return result(req.ID, map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"serverInfo":      map[string]interface{}{"name": ServerName, "version": Version},
	})
}

func result(id, v interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: jsonrpcVersion, ID: id, Result: v}
}
