package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"rxplan/internal/pipeline"
	"rxplan/internal/source"

	"github.com/rs/zerolog/log"
)

// ProtocolVersion is the MCP revision announced on initialize.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeToolFailed     = -32000
)

// JSONRPCRequest represents a standard MCP/JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a standard MCP/JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the error member of a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Defaults are the input files a tool call falls back to when it names none.
type Defaults struct {
	History  string
	Stock    string
	Catalog  string
	Readings string
}

// Server exposes the pipeline as MCP tools over a line-delimited JSON-RPC stream.
type Server struct {
	cfg      pipeline.Config
	defaults Defaults
	loader   *source.Loader
	version  string
}

// NewServer creates a new MCP server running the pipeline with cfg.
func NewServer(cfg pipeline.Config, defaults Defaults, version string) *Server {
	return &Server{cfg: cfg, defaults: defaults, loader: source.NewLoader(), version: version}
}

// Serve reads requests from r and writes responses to w until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.serveLine(line, w)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Server) serveLine(line []byte, w io.Writer) {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal request")
		return
	}

	resp, ok := s.handleRequest(req)
	if !ok {
		return
	}
	out, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Msg("Failed to marshal response")
		return
	}
	fmt.Fprintf(w, "%s\n", out)
}

// handleRequest answers one request. Notifications (no id) get no response.
func (s *Server) handleRequest(req JSONRPCRequest) (JSONRPCResponse, bool) {
	var result interface{}
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "rxplan",
				"version": s.version,
			},
		}
	case "ping":
		result = map[string]interface{}{}
	case "tools/list":
		result, rpcErr = s.listTools()
	case "tools/call":
		result, rpcErr = s.callTool(req.Params)
	default:
		if req.ID == nil {
			log.Debug().Str("method", req.Method).Msg("Ignoring notification")
			return JSONRPCResponse{}, false
		}
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method %s not found", req.Method)}
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}, true
}

func (s *Server) callTool(params json.RawMessage) (interface{}, *RPCError) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Invalid params"}
	}

	var args toolArgs
	if len(call.Arguments) > 0 && string(call.Arguments) != "null" {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err)}
		}
	}

	var data interface{}
	var err error

	switch call.Name {
	case toolRunPipeline:
		data, err = s.handleRunPipeline(args)
	case toolProfileRefills:
		data, err = s.handleProfileRefills(args)
	case toolDueRefills:
		data, err = s.handleDueRefills(args)
	case toolDeriveSignals:
		data, err = s.handleDeriveSignals(args)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: "Tool not found"}
	}

	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("Tool call failed")
		return nil, &RPCError{Code: codeToolFailed, Message: err.Error()}
	}

	return map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": formatResult(data),
			},
		},
	}, nil
}

func formatResult(data interface{}) string {
	out, _ := json.MarshalIndent(data, "", "  ")
	return string(out)
}
