package prompts

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, res *mcp.GetPromptResult) string {
	t.Helper()
	require.Len(t, res.Messages, 1)
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestEpisodePrompt_Handle(t *testing.T) {
	p := NewEpisodePrompt()
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"featureContextPath": "projA/feature1", "agent": "engineer"}

	res, err := p.Handle(context.Background(), req)
	require.NoError(t, err)
	text := promptText(t, res)
	assert.Contains(t, text, "next_episode_number")
	assert.Contains(t, text, "generate_audio_cast")
	assert.Contains(t, text, "originalAgentName='engineer'")
	assert.Contains(t, res.Description, "projA/feature1")
}

func TestEpisodePrompt_DefaultAgent(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"featureContextPath": "projA/feature1"}

	res, err := NewEpisodePrompt().Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, promptText(t, res), "originalAgentName='assistant'")
}

func TestEpisodePrompt_RequiresFeature(t *testing.T) {
	_, err := NewEpisodePrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	require.Error(t, err)
}

func TestStatusPrompt_Handle(t *testing.T) {
	p := NewStatusPrompt()
	assert.Equal(t, "cast-status", p.Definition().Name)

	res, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	text := promptText(t, res)
	assert.Contains(t, text, "tts_health")
	assert.Contains(t, text, "list_audio_casts")
}
