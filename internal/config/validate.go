package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateCast(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTTS() error {
	if c.TTS.URL == "" {
		return errors.New("tts.url is required. Set CASTKEEPER_TTS_URL or edit the config file (create with 'castkeeper config init')")
	}
	if c.TTS.TimeoutSeconds <= 0 {
		return errors.New("tts.timeout_seconds must be positive")
	}
	for _, port := range c.TTS.AllowedPorts {
		if port < 1 || port > 65535 {
			return fmt.Errorf("tts.allowed_ports: %d is not a valid port", port)
		}
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.TimeoutSeconds <= 0 {
		return errors.New("audio.timeout_seconds must be positive")
	}
	if c.Audio.PrerollMS < 0 {
		return errors.New("audio.preroll_ms must not be negative")
	}
	if c.Audio.PostrollMS < 0 {
		return errors.New("audio.postroll_ms must not be negative")
	}
	return nil
}

func (c *Config) validateCast() error {
	if c.Cast.MaxTranscriptLength <= 0 {
		return errors.New("cast.max_transcript_length must be positive")
	}
	if c.Cast.StaleReservationMinutes < 1 {
		return errors.New("cast.stale_reservation_minutes must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}
