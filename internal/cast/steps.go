package cast

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/castkeeper/castkeeper/internal/audio"
	"github.com/castkeeper/castkeeper/internal/tts"
)

func (o *Orchestrator) synthesize(ctx context.Context, transcript string, endpoint *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.TTSTimeout)
	defer cancel()

	raw, err := o.deps.TTS.Synthesize(ctx, transcript, endpoint, o.settings.Voice)
	if err != nil {
		return nil, ttsError(ctx, err, o.settings.TTSTimeout)
	}
	if len(raw) == 0 {
		return nil, newError(KindTTSServiceError, "TTS service returned no audio", nil)
	}
	return raw, nil
}

func ttsError(ctx context.Context, err error, timeout time.Duration) *Error {
	switch {
	case errors.Is(err, tts.ErrTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newError(KindTTSTimeout, fmt.Sprintf("TTS request did not finish within %s", timeout), err)
	case errors.Is(err, tts.ErrUnreachable):
		return newError(KindTTSUnreachable, "TTS service is unreachable", err)
	default:
		return newError(KindTTSServiceError, "TTS service failed to synthesize the transcript", err)
	}
}

func (o *Orchestrator) pad(ctx context.Context, raw []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.AudioTimeout)
	defer cancel()

	padded, err := o.deps.Audio.Pad(ctx, raw, o.settings.Preroll, o.settings.Postroll)
	if err != nil {
		if errors.Is(err, audio.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindAudioProcessingTimeout,
				fmt.Sprintf("audio processing did not finish within %s", o.settings.AudioTimeout), err)
		}
		return nil, newError(KindAudioProcessingFailed, "audio processing failed", err)
	}
	if len(padded) == 0 {
		return nil, newError(KindAudioProcessingFailed, "audio processing produced no output", nil)
	}
	return padded, nil
}
