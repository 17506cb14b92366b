package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/castkeeper/castkeeper/internal/cast"
	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/castkeeper/castkeeper/internal/endpoint"
	"github.com/castkeeper/castkeeper/internal/flight"
	"github.com/castkeeper/castkeeper/internal/pathguard"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

type stubSynth struct{ calls int }

func (s *stubSynth) Synthesize(context.Context, string, *url.URL, string) ([]byte, error) {
	s.calls++
	return []byte("RIFFwav"), nil
}

type echoPad struct{}

func (echoPad) Pad(_ context.Context, raw []byte, _, _ time.Duration) ([]byte, error) {
	return raw, nil
}

type env struct {
	root     string
	orch     *cast.Orchestrator
	registry *castdb.Store
	synth    *stubSynth
}

// setupEnv builds a real orchestrator over a temp root with a stubbed
// synthesizer and padder.
func setupEnv(t *testing.T) *env {
	t.Helper()
	guard, err := pathguard.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(guard.Root(), "projA", "feature1", cast.CastDirName), 0o755))

	policy, err := endpoint.NewPolicy(nil, nil)
	require.NoError(t, err)
	store, err := castdb.Open(filepath.Join(t.TempDir(), "castkeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	synth := &stubSynth{}
	orch, err := cast.New(cast.Settings{TTSURL: "http://localhost:5000"}, cast.Deps{
		Paths:     guard,
		Endpoints: policy,
		Locks:     flight.NewTable(),
		TTS:       synth,
		Audio:     echoPad{},
		Registry:  store,
		Logger:    log,
	})
	require.NoError(t, err)
	return &env{root: guard.Root(), orch: orch, registry: store, synth: synth}
}

// --- GenerateTool ---

func TestGenerateTool_Handle_Success(t *testing.T) {
	e := setupEnv(t)
	tool := NewGenerateTool(e.orch)

	result, err := tool.Handle(context.Background(), callRequest(map[string]interface{}{
		"transcript":         "Hello world.",
		"featureContextPath": "projA/feature1",
		"originalAgentName":  "engineer",
		"episodeNumber":      float64(1),
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	var resp generateResponse
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.True(t, strings.HasSuffix(resp.ScriptPath, ".md"))
	assert.True(t, strings.HasSuffix(resp.AudioPath, ".wav"))
	assert.Contains(t, filepath.Base(resp.ScriptPath), "01-engineer_audio-cast_")

	script, err := os.ReadFile(resp.ScriptPath)
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", string(script))
}

func TestGenerateTool_Handle_Errors(t *testing.T) {
	cases := []struct {
		name   string
		args   map[string]interface{}
		prefix string
	}{
		{"missing episode", map[string]interface{}{"transcript": "x", "featureContextPath": "projA/feature1", "originalAgentName": "a"}, "[InvalidInput]"},
		{"fractional episode", map[string]interface{}{"transcript": "x", "featureContextPath": "projA/feature1", "originalAgentName": "a", "episodeNumber": 1.5}, "[InvalidInput]"},
		{"string episode", map[string]interface{}{"transcript": "x", "featureContextPath": "projA/feature1", "originalAgentName": "a", "episodeNumber": "1"}, "[InvalidInput]"},
		{"empty transcript", map[string]interface{}{"transcript": "  ", "featureContextPath": "projA/feature1", "originalAgentName": "a", "episodeNumber": float64(1)}, "[InvalidInput]"},
		{"traversal", map[string]interface{}{"transcript": "x", "featureContextPath": "../../etc", "originalAgentName": "a", "episodeNumber": float64(1)}, "[PathTraversal]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := setupEnv(t)
			result, err := NewGenerateTool(e.orch).Handle(context.Background(), callRequest(tc.args))
			require.NoError(t, err, "domain errors are tool results, not Go errors")
			require.True(t, isErrorResult(result))
			assert.True(t, strings.HasPrefix(getResultText(result), tc.prefix), getResultText(result))
			assert.Zero(t, e.synth.calls)
		})
	}
}

func TestGenerateTool_Handle_Duplicate(t *testing.T) {
	e := setupEnv(t)
	tool := NewGenerateTool(e.orch)
	args := map[string]interface{}{
		"transcript":         "Hello world.",
		"featureContextPath": "projA/feature1",
		"originalAgentName":  "engineer",
		"episodeNumber":      float64(1),
	}

	_, err := tool.Handle(context.Background(), callRequest(args))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(args))
	require.NoError(t, err)
	require.True(t, isErrorResult(result))
	assert.True(t, strings.HasPrefix(getResultText(result), "[DuplicateEpisode]"))
}

func TestGenerateTool_Definition(t *testing.T) {
	def := NewGenerateTool(nil).Definition()
	assert.Equal(t, "generate_audio_cast", def.Name)
	assert.ElementsMatch(t,
		[]string{"transcript", "featureContextPath", "originalAgentName", "episodeNumber"},
		def.InputSchema.Required)
}

// --- NextEpisodeTool ---

func TestNextEpisodeTool_Handle(t *testing.T) {
	e := setupEnv(t)
	tool := NewNextEpisodeTool(e.orch)

	result, err := tool.Handle(context.Background(), callRequest(map[string]interface{}{
		"featureContextPath": "projA/feature1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "1", getResultText(result))

	_, err = NewGenerateTool(e.orch).Handle(context.Background(), callRequest(map[string]interface{}{
		"transcript": "x", "featureContextPath": "projA/feature1", "originalAgentName": "a", "episodeNumber": float64(2),
	}))
	require.NoError(t, err)

	result, err = tool.Handle(context.Background(), callRequest(map[string]interface{}{
		"featureContextPath": "projA/feature1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "3", getResultText(result))

	result, err = tool.Handle(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
}

// --- ListTool ---

func TestListTool_Handle(t *testing.T) {
	e := setupEnv(t)
	tool := NewListTool(e.orch, e.registry)

	result, err := tool.Handle(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, "No audio casts recorded.", getResultText(result))

	_, err = NewGenerateTool(e.orch).Handle(context.Background(), callRequest(map[string]interface{}{
		"transcript": "x", "featureContextPath": "projA/feature1", "originalAgentName": "engineer", "episodeNumber": float64(1),
	}))
	require.NoError(t, err)

	result, err = tool.Handle(context.Background(), callRequest(map[string]interface{}{
		"featureContextPath": "projA/./feature1",
		"limit":              float64(5),
	}))
	require.NoError(t, err)
	text := getResultText(result)
	assert.Contains(t, text, "## Audio casts (1)")
	assert.Contains(t, text, "projA/feature1 #01")
	assert.Contains(t, text, "by engineer")

	result, err = tool.Handle(context.Background(), callRequest(map[string]interface{}{
		"featureContextPath": "../x",
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
}

type failingLister struct{}

func (failingLister) List(context.Context, castdb.Filter) ([]castdb.Cast, error) {
	return nil, errors.New("database is locked")
}

func TestListTool_Handle_RegistryError(t *testing.T) {
	e := setupEnv(t)
	result, err := NewListTool(e.orch, failingLister{}).Handle(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
}

// --- HealthTool ---

type stubChecker struct{ err error }

func (s stubChecker) CheckTTS(context.Context) error { return s.err }

func TestHealthTool_Handle(t *testing.T) {
	result, err := NewHealthTool(stubChecker{}).Handle(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, isErrorResult(result))

	result, err = NewHealthTool(stubChecker{err: cast.ErrTTSUnreachable}).Handle(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
	assert.Equal(t, "[TtsUnreachable]", getResultText(result))
}

func TestHealthTool_Handle_WithoutHealthCheck(t *testing.T) {
	e := setupEnv(t)
	result, err := NewHealthTool(e.orch).Handle(context.Background(), callRequest(nil))
	require.NoError(t, err)
	// The stub synthesizer has no health endpoint, so only the URL is validated.
	assert.False(t, isErrorResult(result), getResultText(result))
}
