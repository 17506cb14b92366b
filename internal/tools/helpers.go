// Package tools implements the MCP tool handlers for audio casts.
//
// Each tool is a struct holding its dependencies behind small interfaces,
// with Definition() returning the schema and Handle() serving calls.
// Domain failures become tool error results with a nil Go error so the
// agent sees the "[Kind] message" text.
package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// strictIntArg is intArg for required integers: a missing, non-numeric
// or fractional value is an error.
func strictIntArg(req mcp.CallToolRequest, key string) (int, error) {
	raw, present := req.GetArguments()[key]
	if !present {
		return 0, fmt.Errorf("'%s' is required", key)
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("'%s' must be a number", key)
	}
	if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("'%s' must be an integer", key)
	}
	return int(v), nil
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
