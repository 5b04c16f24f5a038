// Package mcp implements the server side of the Model Context Protocol:
// line-delimited JSON-RPC 2.0 over stdio, exposing the tool registry to an
// assistant host.
package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// request is one inbound JSON-RPC message. Notifications carry a null ID.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is one outbound JSON-RPC message.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 error codes used by the server.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// toolDescriptor is the tools/list entry shape.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// callParams are the tools/call parameters.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// contentBlock is one element of a tools/call result.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// callResult is the tools/call result envelope. Tool-level failures set
// IsError and carry the message as text; protocol-level failures use
// rpcError instead.
type callResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// initializeResult answers the initialize handshake.
type initializeResult struct {
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    capabilitySet    `json:"capabilities"`
	ServerInfo      serverInfoResult `json:"serverInfo"`
}

type capabilitySet struct {
	Tools struct{} `json:"tools"`
}

type serverInfoResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
