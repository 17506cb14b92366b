package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// FeatureResolver maps a caller path to its registry key.
type FeatureResolver interface {
	FeatureKey(featureRel string) (string, error)
}

// CastLister reads the cast registry.
type CastLister interface {
	List(ctx context.Context, f castdb.Filter) ([]castdb.Cast, error)
}

// ListTool handles the list_audio_casts MCP tool.
type ListTool struct {
	features FeatureResolver
	registry CastLister
}

// NewListTool creates a ListTool.
func NewListTool(features FeatureResolver, registry CastLister) *ListTool {
	return &ListTool{features: features, registry: registry}
}

// Definition returns the MCP tool definition for list_audio_casts.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("list_audio_casts",
		mcp.WithDescription("List recorded audio casts, newest first. Optionally restrict to one feature."),
		mcp.WithString("featureContextPath",
			mcp.Description("Feature directory relative to the server root; omit for all features"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum casts to return (default: %d, max: %d)", castdb.DefaultListLimit, castdb.MaxListLimit)),
		),
		mcp.WithBoolean("include_pending",
			mcp.Description("Include casts still being written (default: false)"),
		),
	)
}

// Handle processes the list_audio_casts tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := castdb.Filter{
		Limit:          intArg(req, "limit", castdb.DefaultListLimit),
		IncludePending: boolArg(req, "include_pending", false),
	}
	if raw := strings.TrimSpace(req.GetString("featureContextPath", "")); raw != "" {
		key, err := t.features.FeatureKey(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.FeaturePath = key
	}

	casts, err := t.registry.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list audio casts: %v", err)), nil
	}
	if len(casts) == 0 {
		return mcp.NewToolResultText("No audio casts recorded."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Audio casts (%d)\n\n", len(casts))
	for _, c := range casts {
		fmt.Fprintf(&b, "- **%s #%02d** by %s, %s", c.FeaturePath, c.EpisodeNumber, c.AgentName,
			c.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
		if c.Status == castdb.StatusComplete {
			fmt.Fprintf(&b, ", %s\n", humanize.Bytes(uint64(c.AudioBytes)))
		} else {
			fmt.Fprintf(&b, " [%s]\n", c.Status)
		}
		fmt.Fprintf(&b, "  - script: %s\n  - audio: %s\n", c.ScriptPath, c.AudioPath)
	}
	return mcp.NewToolResultText(b.String()), nil
}
