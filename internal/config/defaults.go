package config

const (
	defaultRoot                    = "."
	defaultDatabase                = "~/.local/share/castkeeper/castkeeper.db"
	defaultTTSURL                  = "http://localhost:5000/synthesize"
	defaultTTSTimeoutSeconds       = 60
	defaultMaxAudioBytes           = 64 << 20
	defaultFFmpeg                  = "ffmpeg"
	defaultAudioTimeoutSeconds     = 30
	defaultPrerollMS               = 500
	defaultPostrollMS              = 1000
	defaultMaxTranscriptLength     = 50000
	defaultStaleReservationMinutes = 60
	defaultEventSubject            = "castkeeper.cast.created"
	defaultLogLevel                = "info"
	defaultLogFormat               = "text"
)

var (
	defaultAllowedHosts = []string{"localhost", "127.0.0.1", "::1", "tts"}
	defaultAllowedPorts = []int{5000, 8000, 8880}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:     defaultRoot,
			Database: defaultDatabase,
		},
		TTS: TTS{
			URL:            defaultTTSURL,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
			AllowedHosts:   append([]string(nil), defaultAllowedHosts...),
			AllowedPorts:   append([]int(nil), defaultAllowedPorts...),
			MaxAudioBytes:  defaultMaxAudioBytes,
		},
		Audio: Audio{
			FFmpeg:         defaultFFmpeg,
			TimeoutSeconds: defaultAudioTimeoutSeconds,
			PrerollMS:      defaultPrerollMS,
			PostrollMS:     defaultPostrollMS,
		},
		Cast: Cast{
			MaxTranscriptLength:     defaultMaxTranscriptLength,
			StaleReservationMinutes: defaultStaleReservationMinutes,
		},
		Events: Events{
			Subject: defaultEventSubject,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
