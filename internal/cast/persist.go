package cast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/castkeeper/castkeeper/internal/fileutil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type persistJob struct {
	requestID string
	castDir   string
	feature   string
	req       Request
	audio     []byte
	log       logrus.FieldLogger
}

type storedCast struct {
	id         string
	feature    string
	episode    int
	agent      string
	scriptPath string
	audioPath  string
	audioBytes int64
	createdAt  time.Time
}

// persist reserves the episode, writes the script then the audio, and
// marks the reservation complete. On any failure everything it created
// is removed before returning.
func (o *Orchestrator) persist(ctx context.Context, job persistJob) (*storedCast, error) {
	now := timeNow()
	stem := baseName(job.req.EpisodeNumber, job.req.OriginalAgentName, now)
	stored := &storedCast{
		id:         uuid.NewString(),
		feature:    job.feature,
		episode:    job.req.EpisodeNumber,
		agent:      job.req.OriginalAgentName,
		scriptPath: filepath.Join(job.castDir, stem+".md"),
		audioPath:  filepath.Join(job.castDir, stem+".wav"),
		audioBytes: int64(len(job.audio)),
		createdAt:  now.UTC(),
	}

	var (
		reserved  bool
		committed bool
		written   []string
	)
	defer func() {
		if !committed {
			o.rollback(ctx, job.log, stored.id, reserved, written)
		}
	}()

	if o.deps.Registry != nil {
		rerr := o.deps.Registry.Reserve(ctx, castdb.Reservation{
			ID:              stored.id,
			FeaturePath:     job.feature,
			EpisodeNumber:   job.req.EpisodeNumber,
			AgentName:       job.req.OriginalAgentName,
			ScriptPath:      stored.scriptPath,
			AudioPath:       stored.audioPath,
			TranscriptChars: utf8.RuneCountInString(job.req.Transcript),
		})
		if errors.Is(rerr, castdb.ErrDuplicate) {
			return nil, duplicateError(job.feature, job.req.EpisodeNumber)
		}
		if rerr != nil {
			return nil, newError(KindPersistenceFailed, "could not reserve the episode in the cast registry", rerr)
		}
		reserved = true
	}

	// Another process may have written files while this one was
	// synthesizing.
	taken, lerr := episodeOnDisk(job.castDir, job.req.EpisodeNumber)
	if lerr != nil {
		return nil, newError(KindPersistenceFailed, "could not list the audio cast directory", lerr)
	}
	if taken {
		return nil, duplicateError(job.feature, job.req.EpisodeNumber)
	}

	if werr := writeFile(stored.scriptPath, []byte(job.req.Transcript)); werr != nil {
		return nil, writeError(job, "script", werr)
	}
	written = append(written, stored.scriptPath)

	if werr := writeFile(stored.audioPath, job.audio); werr != nil {
		return nil, writeError(job, "audio", werr)
	}
	written = append(written, stored.audioPath)

	if o.deps.Registry != nil {
		if cerr := o.deps.Registry.Complete(ctx, stored.id, stored.audioBytes); cerr != nil {
			return nil, newError(KindPersistenceFailed, "could not record the cast in the registry", cerr)
		}
	}

	committed = true
	job.log.WithFields(logrus.Fields{
		"cast_id":     stored.id,
		"audio_bytes": stored.audioBytes,
	}).Debug("artifacts stored")
	return stored, nil
}

func writeError(job persistJob, what string, err error) *Error {
	if errors.Is(err, fileutil.ErrExists) {
		return duplicateError(job.feature, job.req.EpisodeNumber)
	}
	return newError(KindPersistenceFailed, "could not write the "+what+" file", err)
}

// writeFile is swapped in tests to simulate disk failures.
var writeFile = func(path string, data []byte) error {
	return fileutil.WriteFileNew(path, data, filePerm)
}

// rollback removes partial artifacts. Failures are logged and never
// replace the error that triggered the rollback.
func (o *Orchestrator) rollback(ctx context.Context, log logrus.FieldLogger, id string, reserved bool, written []string) {
	for _, path := range written {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("file", filepath.Base(path)).Error("cleanup: could not remove partial artifact")
		}
	}
	if !reserved {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.deps.Registry.Discard(cleanupCtx, id); err != nil {
		log.WithError(err).WithField("cast_id", id).Error("cleanup: could not discard registry reservation")
	}
}
