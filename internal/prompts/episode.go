// Package prompts implements MCP prompt handlers for audio casts.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// EpisodePrompt handles the cast-episode MCP prompt.
// It walks the AI through picking an episode number and generating a cast.
type EpisodePrompt struct{}

// NewEpisodePrompt creates an EpisodePrompt.
func NewEpisodePrompt() *EpisodePrompt {
	return &EpisodePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *EpisodePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("cast-episode",
		mcp.WithPromptDescription(
			"Record the next audio cast episode for a feature: pick the episode number, "+
				"write a short spoken summary and generate the audio.",
		),
		mcp.WithArgument("featureContextPath",
			mcp.ArgumentDescription("Feature directory relative to the server root, e.g. 'projA/feature1'"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("agent",
			mcp.ArgumentDescription("Name recorded as the author of the transcript. Default: assistant"),
		),
	)
}

// Handle processes the cast-episode prompt request.
func (p *EpisodePrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	feature := req.Params.Arguments["featureContextPath"]
	if feature == "" {
		return nil, errors.New("featureContextPath is required")
	}
	agent := "assistant"
	if a := req.Params.Arguments["agent"]; a != "" {
		agent = a
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Record an audio cast for %s", feature),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Record the next audio cast episode for the feature '%s'.\n\n"+
						"Please:\n"+
						"1. Run `next_episode_number` with featureContextPath='%s'\n"+
						"2. Write a spoken-style transcript summarizing the current state of the feature. "+
						"Plain sentences only, no markdown, code blocks or URLs\n"+
						"3. Run `generate_audio_cast` with that transcript, featureContextPath='%s', "+
						"originalAgentName='%s' and the episode number from step 1\n"+
						"4. If it fails with [ConcurrentOperationInProgress], wait and retry once. "+
						"If it fails with [DuplicateEpisode], go back to step 1\n"+
						"5. Report the script and audio paths",
					feature, feature, feature, agent,
				)),
			},
		},
	}, nil
}
