package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"jaybrain/internal/logging"
	"jaybrain/internal/tools"
)

// Server serves the tool registry over line-delimited JSON-RPC 2.0.
// One goroutine reads requests; handlers run inline because the assistant
// host serialises tool calls per session.
type Server struct {
	name     string
	version  string
	registry *tools.Registry

	mu  sync.Mutex // guards writes to out
	out io.Writer
}

// NewServer builds a server around a populated registry.
func NewServer(name, version string, reg *tools.Registry) *Server {
	return &Server{name: name, version: version, registry: reg}
}

// Serve reads requests from in and writes responses to out until in closes
// or ctx is cancelled. A malformed line yields a parse error response and
// the loop continues.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	s.out = out
	s.mu.Unlock()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	logging.MCP("Server %s %s listening", s.name, s.version)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			logging.MCPError("Parse error: %v", err)
			s.writeError(json.RawMessage("null"), codeParseError, "parse error")
			continue
		}
		s.handle(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	logging.MCP("Request stream closed")
	return nil
}

func (s *Server) handle(ctx context.Context, req *request) {
	if req.JSONRPC != "2.0" {
		s.writeError(req.ID, codeInvalidRequest, "jsonrpc must be 2.0")
		return
	}

	// Notifications get no response.
	notification := len(req.ID) == 0
	logging.MCPDebug("← %s", req.Method)

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      serverInfoResult{Name: s.name, Version: s.version},
		})

	case "notifications/initialized", "notifications/cancelled":
		// Acknowledged implicitly.

	case "ping":
		s.writeResult(req.ID, struct{}{})

	case "tools/list":
		s.writeResult(req.ID, map[string]interface{}{"tools": s.descriptors()})

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.writeError(req.ID, codeInvalidParams, "bad tools/call params")
			return
		}
		s.writeResult(req.ID, s.callTool(ctx, params))

	default:
		if notification {
			logging.MCPDebug("Ignoring notification %s", req.Method)
			return
		}
		s.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// callTool dispatches to the registry. Handler errors become in-band
// isError results so the assistant sees them as tool output, not protocol
// failures.
func (s *Server) callTool(ctx context.Context, params callParams) callResult {
	result, err := s.registry.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		logging.MCPDebug("Tool %s failed: %v", params.Name, err)
		return callResult{
			Content: []contentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return callResult{
			Content: []contentBlock{{Type: "text", Text: fmt.Sprintf("failed to encode result: %v", err)}},
			IsError: true,
		}
	}
	return callResult{Content: []contentBlock{{Type: "text", Text: string(text)}}}
}

func (s *Server) descriptors() []toolDescriptor {
	all := s.registry.All()
	out := make([]toolDescriptor, 0, len(all))
	for _, t := range all {
		out = append(out, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema.MarshalInputSchema(),
		})
	}
	return out
}

func (s *Server) writeResult(id json.RawMessage, result interface{}) {
	if len(id) == 0 {
		return
	}
	s.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	s.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.MCPError("Failed to encode response: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		logging.MCPError("Failed to write response: %v", err)
	}
}
