package tools

import (
	"context"

	"github.com/castkeeper/castkeeper/internal/cast"
	"github.com/mark3labs/mcp-go/mcp"
)

// CastGenerator produces audio casts.
type CastGenerator interface {
	Generate(ctx context.Context, req cast.Request) (*cast.Result, error)
}

// GenerateTool handles the generate_audio_cast MCP tool.
type GenerateTool struct {
	casts CastGenerator
}

// NewGenerateTool creates a GenerateTool.
func NewGenerateTool(casts CastGenerator) *GenerateTool {
	return &GenerateTool{casts: casts}
}

// generateResponse is the success payload.
type generateResponse struct {
	Status     string `json:"status"`
	ScriptPath string `json:"scriptPath"`
	AudioPath  string `json:"audioPath"`
	Message    string `json:"message"`
	ElapsedMS  int64  `json:"elapsedMs"`
}

// Definition returns the MCP tool definition for generate_audio_cast.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_audio_cast",
		mcp.WithDescription(
			"Turn a transcript into a spoken audio cast for a feature. Writes the verbatim script (.md) and a padded "+
				"WAV (.wav) into <featureContextPath>/audio_casts/, which must already exist. One cast per feature may "+
				"run at a time and each episode number can be used once; use next_episode_number to pick one.",
		),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Text to speak. Stored byte-for-byte as the script file."),
		),
		mcp.WithString("featureContextPath",
			mcp.Required(),
			mcp.Description("Feature directory relative to the server root (e.g. 'projA/feature1')"),
		),
		mcp.WithString("originalAgentName",
			mcp.Required(),
			mcp.Description("Name of the agent that wrote the transcript; letters, digits, '-' and '_' only"),
		),
		mcp.WithNumber("episodeNumber",
			mcp.Required(),
			mcp.Description("Episode number, 1 or greater"),
		),
	)
}

// Handle processes the generate_audio_cast tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	episode, err := strictIntArg(req, "episodeNumber")
	if err != nil {
		return mcp.NewToolResultError("[" + string(cast.KindInvalidInput) + "] " + err.Error()), nil
	}

	res, err := t.casts.Generate(ctx, cast.Request{
		Transcript:         req.GetString("transcript", ""),
		FeatureContextPath: req.GetString("featureContextPath", ""),
		OriginalAgentName:  req.GetString("originalAgentName", ""),
		EpisodeNumber:      episode,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(generateResponse{
		Status:     res.Status,
		ScriptPath: res.ScriptPath,
		AudioPath:  res.AudioPath,
		Message:    res.Message,
		ElapsedMS:  res.ElapsedMillis,
	})
}
