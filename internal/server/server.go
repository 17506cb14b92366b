// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it builds the concrete path guard, endpoint
// policy, lock table, TTS client, ffmpeg runner, registry and event
// publisher from the loaded config and injects them into the tools,
// prompts and resources. No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castkeeper/castkeeper/internal/audio"
	"github.com/castkeeper/castkeeper/internal/cast"
	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/castkeeper/castkeeper/internal/config"
	"github.com/castkeeper/castkeeper/internal/endpoint"
	"github.com/castkeeper/castkeeper/internal/events"
	"github.com/castkeeper/castkeeper/internal/flight"
	"github.com/castkeeper/castkeeper/internal/pathguard"
	"github.com/castkeeper/castkeeper/internal/prompts"
	"github.com/castkeeper/castkeeper/internal/resources"
	"github.com/castkeeper/castkeeper/internal/tools"
	"github.com/castkeeper/castkeeper/internal/tts"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// Version is set at build time via ldflags.
var Version = "dev"

// connectEvents is a package-level var to allow test injection.
var connectEvents = events.Connect

const startupTimeout = 10 * time.Second

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function closes the registry and the event
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if New failed.
func New(cfg *config.Config, log logrus.FieldLogger) (*server.MCPServer, func(), error) {
	if cfg == nil {
		return nil, noop, errors.New("config is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	// --- Create shared dependencies ---

	guard, err := pathguard.New(cfg.Paths.Root)
	if err != nil {
		return nil, noop, fmt.Errorf("opening cast root: %w", err)
	}

	policy, err := endpoint.NewPolicy(cfg.TTS.AllowedHosts, cfg.TTS.AllowedPorts)
	if err != nil {
		return nil, noop, fmt.Errorf("building endpoint policy: %w", err)
	}

	registry, err := castdb.Open(cfg.Paths.Database)
	if err != nil {
		return nil, noop, fmt.Errorf("opening cast registry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if n, err := registry.DiscardStale(ctx, cfg.StaleReservationAge()); err != nil {
		log.WithError(err).Warn("stale reservations not discarded")
	} else if n > 0 {
		log.WithField("count", n).Info("discarded stale cast reservations")
	}

	// Events are optional: when NATS is unreachable, casts are still
	// produced and nothing is published.
	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		p, err := connectEvents(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			log.WithError(err).Warn("cast events disabled")
		} else {
			log.WithField("subject", p.Subject()).Info("publishing cast events")
			publisher = p
		}
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("event publisher close")
		}
		if err := registry.Close(); err != nil {
			log.WithError(err).Warn("cast registry close")
		}
	}

	ffmpeg := audio.NewFFmpeg(cfg.Audio.FFmpeg)

	orchestrator, err := cast.New(cast.Settings{
		MaxTranscriptLength: cfg.Cast.MaxTranscriptLength,
		TTSURL:              cfg.TTS.URL,
		Voice:               cfg.TTS.Voice,
		TTSTimeout:          cfg.TTSTimeout(),
		AudioTimeout:        cfg.AudioTimeout(),
		Preroll:             cfg.Preroll(),
		Postroll:            cfg.Postroll(),
		CrossProcessLock:    cfg.Cast.CrossProcessLock,
	}, cast.Deps{
		Paths:     guard,
		Endpoints: policy,
		Locks:     flight.NewTable(),
		TTS:       tts.NewClient(cfg.TTS.MaxAudioBytes),
		Audio:     ffmpeg,
		Registry:  registry,
		Events:    publisher,
		Logger:    log,
	})
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating cast orchestrator: %w", err)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"castkeeper",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	generateTool := tools.NewGenerateTool(orchestrator)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	nextTool := tools.NewNextEpisodeTool(orchestrator)
	s.AddTool(nextTool.Definition(), nextTool.Handle)

	listTool := tools.NewListTool(orchestrator, registry)
	s.AddTool(listTool.Definition(), listTool.Handle)

	healthTool := tools.NewHealthTool(orchestrator)
	s.AddTool(healthTool.Definition(), healthTool.Handle)

	// --- Register prompts ---

	episodePrompt := prompts.NewEpisodePrompt()
	s.AddPrompt(episodePrompt.Definition(), episodePrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(registry, orchestrator, policy, guard.Root(), cfg.TTS.URL)
	s.AddResource(resourceHandler.RecentResource(), resourceHandler.HandleRecent)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	log.WithFields(logrus.Fields{
		"root":     guard.Root(),
		"database": cfg.Paths.Database,
		"ffmpeg":   ffmpeg.Binary(),
		"events":   cfg.Events.NATSURL != "",
	}).Info("castkeeper ready")

	return s, cleanup, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use castkeeper.
func serverInstructions() string {
	return `You have access to castkeeper, an audio cast server.

An audio cast is a short spoken summary of a feature's progress. Each cast
is stored as a verbatim script (.md) and a WAV file (.wav) in the feature's
audio_casts/ directory.

## Workflow

1. Call next_episode_number with the feature directory.
2. Write a transcript meant to be heard: plain sentences, no markdown,
   no code, no URLs.
3. Call generate_audio_cast with the transcript, the feature directory,
   your agent name and the episode number.

## Errors

Every error starts with a bracketed kind:
- [InvalidInput]: fix the arguments. The audio_casts/ directory must exist.
- [PathTraversal]: the feature path is outside the allowed root.
- [ConcurrentOperationInProgress]: another cast for this feature is
  running. Retry later; requests are not queued.
- [DuplicateEpisode]: the episode number is taken. Ask next_episode_number.
- [TtsTimeout], [TtsUnreachable], [TtsServiceError]: the speech service
  failed. Run tts_health before retrying.
- [AudioProcessingTimeout], [AudioProcessingFailed], [PersistenceFailed]:
  server-side failures. Nothing was written.

Use list_audio_casts to see what has been recorded.`
}
