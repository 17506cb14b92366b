// Package audio pads synthesized speech with leading and trailing silence
// by piping it through ffmpeg.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// waitDelay bounds how long Wait blocks on pipes after the process is
// killed.
const waitDelay = 2 * time.Second

// Sentinel errors; callers match with errors.Is.
var (
	ErrTimeout = errors.New("audio processing timeout")
	ErrFailed  = errors.New("audio processing failed")
)

// FFmpeg runs an ffmpeg binary as a stdin-to-stdout filter.
type FFmpeg struct {
	binary string
}

// NewFFmpeg returns a processor using binary, or DefaultBinary when empty.
func NewFFmpeg(binary string) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &FFmpeg{binary: binary}
}

// Binary returns the configured executable.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Pad delays the audio by preroll and appends postroll of silence,
// returning a WAV stream. The process is killed when ctx ends.
func (f *FFmpeg) Pad(ctx context.Context, raw []byte, preroll, postroll time.Duration) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrFailed)
	}

	cmd := commandContext(ctx, f.binary, padArgs(preroll, postroll)...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(raw)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, ctxErr)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("%w: %v", ErrFailed, err)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrFailed, err, detail)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no output", ErrFailed)
	}
	return stdout.Bytes(), nil
}

func padArgs(preroll, postroll time.Duration) []string {
	filter := fmt.Sprintf("adelay=delays=%d:all=1,apad=pad_dur=%.3f",
		nonNegative(preroll).Milliseconds(),
		nonNegative(postroll).Seconds(),
	)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-af", filter,
		"-f", "wav",
		"pipe:1",
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
