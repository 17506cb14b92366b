// Package cast turns a transcript into a stored audio cast.
//
// Generate runs one request through a fixed sequence: validate, claim the
// feature, check the episode is free, synthesize, pad, persist. Every
// failure is returned as *Error with a stable kind. The feature claim is
// released exactly once on every path out of Generate.
package cast

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/castkeeper/castkeeper/internal/events"
	"github.com/castkeeper/castkeeper/internal/flight"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

const (
	// CastDirName is the per-feature directory artifacts are written to.
	// It must exist before a cast is requested.
	CastDirName = "audio_casts"

	timestampLayout = "20060102T150405Z"
	filePerm        = 0o644
	publishTimeout  = 5 * time.Second
)

// Defaults applied by New for zero settings.
const (
	DefaultMaxTranscriptLength = 50000
	DefaultTTSTimeout          = 60 * time.Second
	DefaultAudioTimeout        = 30 * time.Second
	DefaultPreroll             = 500 * time.Millisecond
	DefaultPostroll            = time.Second
)

// ─── Collaborators ───────────────────────────────────────────────────────────

// PathResolver confines caller paths to the cast root.
type PathResolver interface {
	Resolve(rel string) (string, error)
	Confine(abs string) (string, error)
	Rel(abs string) string
}

// EndpointValidator vets the TTS URL before each call.
type EndpointValidator interface {
	Validate(raw string) (*url.URL, error)
}

// Locker is the per-feature single-flight table. Do must fail without
// calling fn when key is already held.
type Locker interface {
	Do(key string, fn func() error) error
	InFlight() []string
}

// Synthesizer turns text into raw audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript string, endpoint *url.URL, voice string) ([]byte, error)
}

// HealthChecker is implemented by synthesizers that expose a probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context, endpoint *url.URL) error
}

// Padder adds leading and trailing silence.
type Padder interface {
	Pad(ctx context.Context, raw []byte, preroll, postroll time.Duration) ([]byte, error)
}

// Registry records casts and owns the uniqueness constraint.
type Registry interface {
	Reserve(ctx context.Context, r castdb.Reservation) error
	Complete(ctx context.Context, id string, audioBytes int64) error
	Discard(ctx context.Context, id string) error
	Exists(ctx context.Context, featurePath string, episode int) (bool, error)
	NextEpisode(ctx context.Context, featurePath string) (int, error)
}

// Notifier is told about finished casts.
type Notifier interface {
	CastCreated(ctx context.Context, ev events.CastCreated) error
}

// ─── Orchestrator ────────────────────────────────────────────────────────────

// Settings are the immutable knobs of the pipeline.
type Settings struct {
	MaxTranscriptLength int
	TTSURL              string
	Voice               string
	TTSTimeout          time.Duration
	AudioTimeout        time.Duration
	Preroll             time.Duration
	Postroll            time.Duration
	CrossProcessLock    bool
}

// Deps are the orchestrator's collaborators. Registry and Events are
// optional.
type Deps struct {
	Paths     PathResolver
	Endpoints EndpointValidator
	Locks     Locker
	TTS       Synthesizer
	Audio     Padder
	Registry  Registry
	Events    Notifier
	Logger    logrus.FieldLogger
}

// Orchestrator runs cast requests.
type Orchestrator struct {
	settings Settings
	deps     Deps
	log      logrus.FieldLogger
}

// New validates deps and fills defaults into zero settings.
func New(settings Settings, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Paths == nil:
		return nil, errors.New("cast: path resolver is required")
	case deps.Endpoints == nil:
		return nil, errors.New("cast: endpoint validator is required")
	case deps.Locks == nil:
		return nil, errors.New("cast: lock table is required")
	case deps.TTS == nil:
		return nil, errors.New("cast: synthesizer is required")
	case deps.Audio == nil:
		return nil, errors.New("cast: audio processor is required")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	if settings.MaxTranscriptLength <= 0 {
		settings.MaxTranscriptLength = DefaultMaxTranscriptLength
	}
	if settings.TTSTimeout <= 0 {
		settings.TTSTimeout = DefaultTTSTimeout
	}
	if settings.AudioTimeout <= 0 {
		settings.AudioTimeout = DefaultAudioTimeout
	}
	if settings.Preroll < 0 {
		settings.Preroll = 0
	}
	if settings.Postroll < 0 {
		settings.Postroll = 0
	}

	return &Orchestrator{settings: settings, deps: deps, log: deps.Logger}, nil
}

// Generate produces one cast. The returned error is always *Error.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := timeNow()
	requestID := uuid.NewString()
	log := o.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"episode":    req.EpisodeNumber,
		"agent":      req.OriginalAgentName,
	})

	res, stored, err := o.generate(ctx, requestID, req, log)
	elapsed := timeNow().Sub(start)
	if err != nil {
		entry := log.WithField("elapsed", elapsed.String()).WithField("kind", KindOf(err))
		if cause := errors.Unwrap(err); cause != nil {
			entry = entry.WithField("cause", cause.Error())
		}
		entry.Warn("audio cast failed")
		return nil, err
	}

	res.Elapsed = elapsed
	res.ElapsedMillis = elapsed.Milliseconds()
	o.publish(ctx, stored, requestID, elapsed, log)
	log.WithFields(logrus.Fields{
		"feature": res.FeaturePath,
		"elapsed": elapsed.String(),
	}).Info("audio cast created")
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, requestID string, req Request, log logrus.FieldLogger) (*Result, *storedCast, error) {
	// Validating
	if err := req.validate(o.settings.MaxTranscriptLength); err != nil {
		return nil, nil, err
	}
	featureDir, err := o.deps.Paths.Resolve(req.FeatureContextPath)
	if err != nil {
		return nil, nil, newError(KindPathTraversal, "featureContextPath is not inside the allowed root", err)
	}
	endpoint, err := o.deps.Endpoints.Validate(o.settings.TTSURL)
	if err != nil {
		return nil, nil, newError(KindUnsafeEndpoint, "configured TTS endpoint is not allowed", err)
	}
	feature := o.deps.Paths.Rel(featureDir)
	log = log.WithField("feature", feature)

	// LockAcquired
	var (
		res    *Result
		stored *storedCast
		ran    bool
	)
	err = o.deps.Locks.Do(featureDir, func() error {
		ran = true
		var runErr error
		res, stored, runErr = o.runLocked(ctx, requestID, req, featureDir, feature, endpoint, log)
		return runErr
	})
	if err != nil && !ran {
		return nil, nil, newError(KindConcurrentOperation,
			fmt.Sprintf("another audio cast for %q is in progress; retry later", feature), err)
	}
	if err != nil {
		return nil, nil, err
	}
	return res, stored, nil
}

// runLocked is the part of generate that runs while the feature is held.
func (o *Orchestrator) runLocked(ctx context.Context, requestID string, req Request, featureDir, feature string, endpoint *url.URL, log logrus.FieldLogger) (*Result, *storedCast, error) {
	castDir, err := o.castDir(featureDir, feature)
	if err != nil {
		return nil, nil, err
	}
	if o.settings.CrossProcessLock {
		unlock, ok, err := flight.TryLockFile(filepath.Join(castDir, flight.LockFileName))
		if err != nil {
			return nil, nil, newError(KindPersistenceFailed, "could not lock the audio cast directory", err)
		}
		if !ok {
			return nil, nil, newError(KindConcurrentOperation,
				fmt.Sprintf("another process is creating an audio cast for %q; retry later", feature), nil)
		}
		defer unlock()
	}

	// UniquenessChecked
	if err := o.checkUnique(ctx, castDir, feature, req.EpisodeNumber); err != nil {
		return nil, nil, err
	}

	// Synthesizing
	log.WithField("stage", "synthesize").Debug("requesting speech")
	raw, err := o.synthesize(ctx, req.Transcript, endpoint)
	if err != nil {
		return nil, nil, err
	}

	// PostProcessing
	log.WithFields(logrus.Fields{"stage": "pad", "raw_bytes": len(raw)}).Debug("padding audio")
	padded, err := o.pad(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	// Persisting
	log.WithField("stage", "persist").Debug("writing artifacts")
	stored, err := o.persist(ctx, persistJob{
		requestID: requestID,
		castDir:   castDir,
		feature:   feature,
		req:       req,
		audio:     padded,
		log:       log,
	})
	if err != nil {
		return nil, nil, err
	}

	return &Result{
		Status:        "success",
		ScriptPath:    stored.scriptPath,
		AudioPath:     stored.audioPath,
		Message:       fmt.Sprintf("Audio cast episode %d for %s created", req.EpisodeNumber, feature),
		ID:            stored.id,
		FeaturePath:   feature,
		EpisodeNumber: req.EpisodeNumber,
	}, stored, nil
}

// castDir locates the existing audio_casts directory of a feature.
func (o *Orchestrator) castDir(featureDir, feature string) (string, error) {
	dir, err := o.deps.Paths.Confine(filepath.Join(featureDir, CastDirName))
	if err != nil {
		return "", newError(KindPathTraversal, "audio cast directory is not inside the allowed root", err)
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", newError(KindInvalidInput,
			fmt.Sprintf("%s/%s does not exist; create it before requesting a cast", feature, CastDirName), err)
	}
	if err != nil {
		return "", newError(KindPersistenceFailed, "could not inspect the audio cast directory", err)
	}
	if !info.IsDir() {
		return "", newError(KindInvalidInput,
			fmt.Sprintf("%s/%s is not a directory", feature, CastDirName), nil)
	}
	return dir, nil
}

func (o *Orchestrator) checkUnique(ctx context.Context, castDir, feature string, episode int) error {
	taken, err := episodeOnDisk(castDir, episode)
	if err != nil {
		return newError(KindPersistenceFailed, "could not list the audio cast directory", err)
	}
	if !taken && o.deps.Registry != nil {
		taken, err = o.deps.Registry.Exists(ctx, feature, episode)
		if err != nil {
			return newError(KindPersistenceFailed, "could not query the cast registry", err)
		}
	}
	if taken {
		return duplicateError(feature, episode)
	}
	return nil
}

func duplicateError(feature string, episode int) *Error {
	return newError(KindDuplicateEpisode,
		fmt.Sprintf("episode %d already exists for %s", episode, feature), nil)
}

// NextEpisode returns the lowest episode number above every episode
// recorded on disk or in the registry for featureRel.
func (o *Orchestrator) NextEpisode(ctx context.Context, featureRel string) (int, error) {
	featureDir, err := o.deps.Paths.Resolve(featureRel)
	if err != nil {
		return 0, newError(KindPathTraversal, "featureContextPath is not inside the allowed root", err)
	}
	feature := o.deps.Paths.Rel(featureDir)
	castDir, err := o.castDir(featureDir, feature)
	if err != nil {
		return 0, err
	}

	next, err := nextOnDisk(castDir)
	if err != nil {
		return 0, newError(KindPersistenceFailed, "could not list the audio cast directory", err)
	}
	if o.deps.Registry != nil {
		fromDB, err := o.deps.Registry.NextEpisode(ctx, feature)
		if err != nil {
			return 0, newError(KindPersistenceFailed, "could not query the cast registry", err)
		}
		next = max(next, fromDB)
	}
	return next, nil
}

// FeatureKey resolves featureRel and returns the key casts are
// registered under.
func (o *Orchestrator) FeatureKey(featureRel string) (string, error) {
	featureDir, err := o.deps.Paths.Resolve(featureRel)
	if err != nil {
		return "", newError(KindPathTraversal, "featureContextPath is not inside the allowed root", err)
	}
	return o.deps.Paths.Rel(featureDir), nil
}

// InFlight lists features with a cast in progress.
func (o *Orchestrator) InFlight() []string {
	keys := o.deps.Locks.InFlight()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, o.deps.Paths.Rel(k))
	}
	return out
}

// CheckTTS validates the endpoint and probes its health path.
func (o *Orchestrator) CheckTTS(ctx context.Context) error {
	endpoint, err := o.deps.Endpoints.Validate(o.settings.TTSURL)
	if err != nil {
		return newError(KindUnsafeEndpoint, "configured TTS endpoint is not allowed", err)
	}
	checker, ok := o.deps.TTS.(HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.settings.TTSTimeout)
	defer cancel()
	if err := checker.HealthCheck(ctx, endpoint); err != nil {
		return ttsError(ctx, err, o.settings.TTSTimeout)
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, stored *storedCast, requestID string, elapsed time.Duration, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := o.deps.Events.CastCreated(ctx, events.CastCreated{
		ID:            stored.id,
		RequestID:     requestID,
		FeaturePath:   stored.feature,
		EpisodeNumber: stored.episode,
		AgentName:     stored.agent,
		ScriptPath:    stored.scriptPath,
		AudioPath:     stored.audioPath,
		AudioBytes:    stored.audioBytes,
		ElapsedMillis: elapsed.Milliseconds(),
		CreatedAt:     stored.createdAt,
	})
	if err != nil {
		log.WithError(err).Warn("cast event not published")
	}
}

// ─── Directory scan ──────────────────────────────────────────────────────────

func episodeOnDisk(castDir string, episode int) (bool, error) {
	entries, err := os.ReadDir(castDir)
	if err != nil {
		return false, err
	}
	prefix := episodePrefix(episode)
	for _, e := range entries {
		if isArtifact(e.Name()) && strings.HasPrefix(e.Name(), prefix) {
			return true, nil
		}
	}
	return false, nil
}

func nextOnDisk(castDir string) (int, error) {
	entries, err := os.ReadDir(castDir)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, e := range entries {
		name := e.Name()
		if !isArtifact(name) {
			continue
		}
		num, _, ok := strings.Cut(name, "-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(num); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func isArtifact(name string) bool {
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".wav")
}
