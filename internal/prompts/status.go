package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the cast-status MCP prompt.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("cast-status",
		mcp.WithPromptDescription("Check the TTS service and summarize recent audio casts."),
	)
}

// Handle processes the cast-status prompt request.
func (p *StatusPrompt) Handle(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Audio cast status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `tts_health` and then `list_audio_casts`.\n\n" +
						"Then:\n" +
						"1. Tell me whether the TTS service is reachable\n" +
						"2. Summarize the most recent casts per feature\n" +
						"3. Point out any cast still pending",
				),
			},
		},
	}, nil
}
