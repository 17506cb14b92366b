package cast

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// agentNamePattern keeps agent names safe to embed in a filename.
var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Request asks for one audio cast episode.
type Request struct {
	Transcript         string `json:"transcript"`
	FeatureContextPath string `json:"featureContextPath"`
	OriginalAgentName  string `json:"originalAgentName"`
	EpisodeNumber      int    `json:"episodeNumber"`
}

// Result describes a stored cast.
type Result struct {
	Status        string        `json:"status"`
	ScriptPath    string        `json:"scriptPath"`
	AudioPath     string        `json:"audioPath"`
	Message       string        `json:"message"`
	ID            string        `json:"id"`
	FeaturePath   string        `json:"featurePath"`
	EpisodeNumber int           `json:"episodeNumber"`
	Elapsed       time.Duration `json:"-"`
	ElapsedMillis int64         `json:"elapsedMs"`
}

// validate checks the parts of a request that need no filesystem or
// network access.
func (r Request) validate(maxLen int) error {
	if strings.TrimSpace(r.Transcript) == "" {
		return newError(KindInvalidInput, "transcript must not be empty", nil)
	}
	if !utf8.ValidString(r.Transcript) {
		return newError(KindInvalidInput, "transcript must be valid UTF-8", nil)
	}
	if n := utf8.RuneCountInString(r.Transcript); n > maxLen {
		return newError(KindInvalidInput,
			fmt.Sprintf("transcript is %d characters, maximum is %d", n, maxLen), nil)
	}
	if r.EpisodeNumber < 1 {
		return newError(KindInvalidInput, "episodeNumber must be 1 or greater", nil)
	}
	if !agentNamePattern.MatchString(r.OriginalAgentName) {
		return newError(KindInvalidInput,
			"originalAgentName must be 1-64 letters, digits, '-' or '_'", nil)
	}
	return nil
}

// baseName is the shared filename stem of both artifacts.
func baseName(episode int, agent string, at time.Time) string {
	return fmt.Sprintf("%02d-%s_audio-cast_%s", episode, agent, at.UTC().Format(timestampLayout))
}

// episodePrefix is the filename prefix that marks an episode as taken.
func episodePrefix(episode int) string {
	return fmt.Sprintf("%02d-", episode)
}
