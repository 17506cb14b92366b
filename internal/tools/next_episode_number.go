package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// EpisodePlanner computes the next free episode of a feature.
type EpisodePlanner interface {
	NextEpisode(ctx context.Context, featureRel string) (int, error)
}

// NextEpisodeTool handles the next_episode_number MCP tool.
type NextEpisodeTool struct {
	planner EpisodePlanner
}

// NewNextEpisodeTool creates a NextEpisodeTool.
func NewNextEpisodeTool(planner EpisodePlanner) *NextEpisodeTool {
	return &NextEpisodeTool{planner: planner}
}

// Definition returns the MCP tool definition for next_episode_number.
func (t *NextEpisodeTool) Definition() mcp.Tool {
	return mcp.NewTool("next_episode_number",
		mcp.WithDescription(
			"Return the next unused episode number for a feature, based on the files in its audio_casts/ "+
				"directory and the cast registry. Call this before generate_audio_cast.",
		),
		mcp.WithString("featureContextPath",
			mcp.Required(),
			mcp.Description("Feature directory relative to the server root"),
		),
	)
}

// Handle processes the next_episode_number tool call.
func (t *NextEpisodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	feature := req.GetString("featureContextPath", "")
	if feature == "" {
		return mcp.NewToolResultError("'featureContextPath' is required"), nil
	}

	next, err := t.planner.NextEpisode(ctx, feature)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", next)), nil
}
