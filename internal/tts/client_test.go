package tts

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSynthesize_Success(t *testing.T) {
	var gotBody, gotType, gotVoice, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		gotVoice = r.URL.Query().Get("voice")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFfakeaudio"))
	}))
	defer server.Close()

	client := NewClient(0)
	audio, err := client.Synthesize(context.Background(), "Hello world.", mustParse(t, server.URL+"/synthesize"), "alloy")
	require.NoError(t, err)

	assert.Equal(t, []byte("RIFFfakeaudio"), audio)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Hello world.", gotBody)
	assert.Equal(t, "text/plain; charset=utf-8", gotType)
	assert.Equal(t, "alloy", gotVoice)
}

func TestSynthesize_OmitsEmptyVoice(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	_, err := NewClient(0).Synthesize(context.Background(), "hi", mustParse(t, server.URL), "")
	require.NoError(t, err)
	assert.Empty(t, rawQuery)
}

func TestSynthesize_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model not loaded","error_code":"E_MODEL"}`))
	}))
	defer server.Close()

	_, err := NewClient(0).Synthesize(context.Background(), "hi", mustParse(t, server.URL), "")
	require.ErrorIs(t, err, ErrService)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestSynthesize_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewClient(0).Synthesize(context.Background(), "hi", mustParse(t, server.URL), "")
	require.ErrorIs(t, err, ErrService)
}

func TestSynthesize_OversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 128))
	}))
	defer server.Close()

	_, err := NewClient(64).Synthesize(context.Background(), "hi", mustParse(t, server.URL), "")
	require.ErrorIs(t, err, ErrService)
}

func TestSynthesize_RedirectNotFollowed(t *testing.T) {
	var followed bool
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		followed = true
		_, _ = w.Write([]byte("audio"))
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	_, err := NewClient(0).Synthesize(context.Background(), "hi", mustParse(t, server.URL), "")
	require.ErrorIs(t, err, ErrService)
	assert.False(t, followed)
}

func TestSynthesize_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(0).Synthesize(ctx, "hi", mustParse(t, server.URL), "")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSynthesize_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := mustParse(t, server.URL)
	server.Close()

	_, err := NewClient(0).Synthesize(context.Background(), "hi", endpoint, "")
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestSynthesize_UnresolvableHost(t *testing.T) {
	client := NewClient(0)
	client.httpClient.Transport = &http.Transport{
		DialContext: func(_ context.Context, _, addr string) (net.Conn, error) {
			host, _, _ := net.SplitHostPort(addr)
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		},
	}

	_, err := client.Synthesize(context.Background(), "hi", mustParse(t, "http://tts.invalid:5000/synthesize"), "")
	require.ErrorIs(t, err, ErrService)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" && r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(0)
	require.NoError(t, client.HealthCheck(context.Background(), mustParse(t, server.URL+"/api/")))

	err := client.HealthCheck(context.Background(), mustParse(t, server.URL+"/other"))
	require.ErrorIs(t, err, ErrService)
}
