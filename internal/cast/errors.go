package cast

import (
	"errors"
	"fmt"
)

// Kind classifies a failed cast. The string value is the stable prefix
// callers see in every error message.
type Kind string

const (
	KindInvalidInput           Kind = "InvalidInput"
	KindPathTraversal          Kind = "PathTraversal"
	KindUnsafeEndpoint         Kind = "UnsafeEndpoint"
	KindConcurrentOperation    Kind = "ConcurrentOperationInProgress"
	KindDuplicateEpisode       Kind = "DuplicateEpisode"
	KindTTSTimeout             Kind = "TtsTimeout"
	KindTTSServiceError        Kind = "TtsServiceError"
	KindTTSUnreachable         Kind = "TtsUnreachable"
	KindAudioProcessingTimeout Kind = "AudioProcessingTimeout"
	KindAudioProcessingFailed  Kind = "AudioProcessingFailed"
	KindPersistenceFailed      Kind = "PersistenceFailed"
)

// Error is the only error type Generate returns. Message is safe to show
// to callers; Err carries the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%s]", e.Kind)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and no message, so the
// Err* sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrPathTraversal          = &Error{Kind: KindPathTraversal}
	ErrUnsafeEndpoint         = &Error{Kind: KindUnsafeEndpoint}
	ErrConcurrentOperation    = &Error{Kind: KindConcurrentOperation}
	ErrDuplicateEpisode       = &Error{Kind: KindDuplicateEpisode}
	ErrTTSTimeout             = &Error{Kind: KindTTSTimeout}
	ErrTTSServiceError        = &Error{Kind: KindTTSServiceError}
	ErrTTSUnreachable         = &Error{Kind: KindTTSUnreachable}
	ErrAudioProcessingTimeout = &Error{Kind: KindAudioProcessingTimeout}
	ErrAudioProcessingFailed  = &Error{Kind: KindAudioProcessingFailed}
	ErrPersistenceFailed      = &Error{Kind: KindPersistenceFailed}
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or "" when err is not a cast error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
