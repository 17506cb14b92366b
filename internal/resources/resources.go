// Package resources implements MCP resource handlers for audio casts.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (castkeeper://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	RecentURI = "castkeeper://casts/recent"
	StatusURI = "castkeeper://server/status"
)

// CastLister reads the cast registry.
type CastLister interface {
	List(ctx context.Context, f castdb.Filter) ([]castdb.Cast, error)
}

// FlightReporter lists features with a cast in progress.
type FlightReporter interface {
	InFlight() []string
}

// HostLister reports the TTS hosts the endpoint policy allows.
type HostLister interface {
	Hosts() []string
}

// Handler manages castkeeper resource endpoints.
type Handler struct {
	registry CastLister
	flights  FlightReporter
	policy   HostLister
	root     string
	ttsURL   string
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(registry CastLister, flights FlightReporter, policy HostLister, root, ttsURL string) *Handler {
	return &Handler{registry: registry, flights: flights, policy: policy, root: root, ttsURL: ttsURL}
}

// RecentResource returns the MCP resource definition for recent casts.
func (h *Handler) RecentResource() mcp.Resource {
	return mcp.NewResource(
		RecentURI,
		"Recent audio casts",
		mcp.WithResourceDescription("The most recently completed audio casts across all features"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRecent returns recent casts as JSON.
func (h *Handler) HandleRecent(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	casts, err := h.registry.List(ctx, castdb.Filter{Limit: castdb.DefaultListLimit})
	if err != nil {
		return errorResource(req.Params.URI, "cast registry unavailable"), nil
	}
	if casts == nil {
		casts = []castdb.Cast{}
	}
	return jsonResource(req.Params.URI, casts)
}

// serverStatus is the payload of the status resource.
type serverStatus struct {
	Root         string   `json:"root"`
	TTSHost      string   `json:"ttsHost"`
	AllowedHosts []string `json:"allowedHosts"`
	InFlight     []string `json:"inFlight"`
}

// StatusResource returns the MCP resource definition for server status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Castkeeper status",
		mcp.WithResourceDescription("Cast root, TTS host, allowed TTS hosts and features with a cast in progress"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current server status as JSON.
func (h *Handler) HandleStatus(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := serverStatus{
		Root:         h.root,
		AllowedHosts: h.policy.Hosts(),
		InFlight:     h.flights.InFlight(),
	}
	if status.InFlight == nil {
		status.InFlight = []string{}
	}
	// Only the host is shown; the full URL may carry a path or query.
	if u, err := url.Parse(h.ttsURL); err == nil {
		status.TTSHost = u.Host
	}
	return jsonResource(req.Params.URI, status)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
