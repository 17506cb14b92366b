package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// TTSChecker probes the configured speech service.
type TTSChecker interface {
	CheckTTS(ctx context.Context) error
}

// HealthTool handles the tts_health MCP tool.
type HealthTool struct {
	checker TTSChecker
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(checker TTSChecker) *HealthTool {
	return &HealthTool{checker: checker}
}

// Definition returns the MCP tool definition for tts_health.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("tts_health",
		mcp.WithDescription("Check that the configured TTS endpoint is allowed and answering its /health path."),
	)
}

// Handle processes the tts_health tool call.
func (t *HealthTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.checker.CheckTTS(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("TTS service is healthy."), nil
}
