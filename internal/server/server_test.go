package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/castkeeper/castkeeper/internal/config"
	"github.com/castkeeper/castkeeper/internal/events"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Root = t.TempDir()
	cfg.Paths.Database = filepath.Join(t.TempDir(), "castkeeper.db")
	return &cfg
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNew_RegistersEverything(t *testing.T) {
	s, cleanup, err := New(testConfig(t), quietLogger())
	require.NoError(t, err)
	defer cleanup()

	tools, err := json.Marshal(s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	require.NoError(t, err)
	for _, name := range []string{"generate_audio_cast", "next_episode_number", "list_audio_casts", "tts_health"} {
		assert.Contains(t, string(tools), `"`+name+`"`)
	}

	prompts, err := json.Marshal(s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`)))
	require.NoError(t, err)
	assert.Contains(t, string(prompts), "cast-episode")
	assert.Contains(t, string(prompts), "cast-status")

	resources, err := json.Marshal(s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`)))
	require.NoError(t, err)
	assert.Contains(t, string(resources), "castkeeper://casts/recent")
	assert.Contains(t, string(resources), "castkeeper://server/status")

	status, err := json.Marshal(s.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"castkeeper://server/status"}}`)))
	require.NoError(t, err)
	assert.Contains(t, string(status), "allowedHosts")
	assert.Contains(t, string(status), "localhost")
}

func TestNew_RejectsMissingRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Root = filepath.Join(cfg.Paths.Root, "missing")

	s, cleanup, err := New(cfg, quietLogger())
	require.Error(t, err)
	assert.Nil(t, s)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestNew_RejectsBadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.AllowedHosts = []string{"*"}

	_, _, err := New(cfg, quietLogger())
	require.Error(t, err)
}

func TestNew_NilConfig(t *testing.T) {
	_, cleanup, err := New(nil, nil)
	require.Error(t, err)
	cleanup()
}

func TestNew_ConnectsEvents(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	ns := natsserver.RunServer(&opts)
	defer ns.Shutdown()

	cfg := testConfig(t)
	cfg.Events.NATSURL = ns.ClientURL()

	_, cleanup, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, ns.NumClients())

	cleanup()
	assert.Eventually(t, func() bool { return ns.NumClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNew_EventsUnavailable(t *testing.T) {
	orig := connectEvents
	t.Cleanup(func() { connectEvents = orig })
	connectEvents = func(string, string) (*events.NATSPublisher, error) {
		return nil, errors.New("nats: no servers available for connection")
	}

	cfg := testConfig(t)
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	_, cleanup, err := New(cfg, quietLogger())
	require.NoError(t, err, "missing event bus must not stop the server")
	cleanup()
}
