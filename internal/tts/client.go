// Package tts talks to an HTTP text-to-speech service.
//
// The client makes exactly one attempt per call. Deadlines come from the
// caller's context; the client has no timeout of its own.
package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

const (
	headerContentType = "Content-Type"
	contentTypeText   = "text/plain; charset=utf-8"
	healthPath        = "/health"

	// DefaultMaxAudioBytes caps the synthesized response body.
	DefaultMaxAudioBytes = 64 << 20
)

// Sentinel errors; callers match with errors.Is.
var (
	ErrTimeout     = errors.New("tts timeout")
	ErrUnreachable = errors.New("tts unreachable")
	ErrService     = errors.New("tts service error")
)

// errorBody is the optional JSON error payload some services return.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client posts transcripts to a TTS endpoint.
type Client struct {
	httpClient    *http.Client
	maxAudioBytes int64
}

// NewClient returns a client. Redirects are never followed so a validated
// endpoint cannot bounce the request elsewhere. maxAudioBytes <= 0 uses
// DefaultMaxAudioBytes.
func NewClient(maxAudioBytes int64) *Client {
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	return &Client{
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxAudioBytes: maxAudioBytes,
	}
}

// Synthesize posts transcript to endpoint and returns the raw audio bytes.
// voice, when non-empty, is sent as the "voice" query parameter.
func (c *Client) Synthesize(ctx context.Context, transcript string, endpoint *url.URL, voice string) ([]byte, error) {
	target := *endpoint
	if voice != "" {
		q := target.Query()
		q.Set("voice", voice)
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(transcript))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrService, err)
	}
	req.Header.Set(headerContentType, contentTypeText)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceError(resp)
	}

	// One extra byte detects bodies over the cap.
	audio, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAudioBytes+1))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if int64(len(audio)) > c.maxAudioBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrService, c.maxAudioBytes)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrService)
	}
	return audio, nil
}

// HealthCheck issues GET <endpoint>/health and expects a 2xx.
func (c *Client) HealthCheck(ctx context.Context, endpoint *url.URL) error {
	target := *endpoint
	target.Path = strings.TrimSuffix(target.Path, "/") + healthPath
	target.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build health request: %v", ErrService, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health status %s", ErrService, resp.Status)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	// Only a refused connection counts as unreachable; name resolution
	// and other transport failures are service errors.
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrService, err)
}

func serviceError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return fmt.Errorf("%w: status %s: %s (code: %s)", ErrService, resp.Status, body.Detail, body.ErrorCode)
	}
	return fmt.Errorf("%w: status %s: %s", ErrService, resp.Status, strings.TrimSpace(string(raw)))
}
