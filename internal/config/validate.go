package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateApp(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFingerprinting(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateML(); err != nil {
		return err
	}
	if err := c.validateReview(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	return c.validateBackup()
}

func (c *Config) validateApp() error {
	if _, ok := validLogLevels[c.App.LogLevel]; !ok {
		return fmt.Errorf("app.log_level must be one of debug, info, warn, error (got %q)", c.App.LogLevel)
	}
	switch c.App.LogFormat {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("app.log_format must be console or json (got %q)", c.App.LogFormat)
	}
}

func (c *Config) validatePaths() error {
	// The sample configuration ships with placeholder folders; treat them the
	// same as unset so a copy-pasted sample fails loudly.
	for key, value := range map[string]string{
		"paths.input_folder":  c.Paths.InputFolder,
		"paths.output_folder": c.Paths.OutputFolder,
	} {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.Contains(trimmed, "/path/to/") {
			return fmt.Errorf("%s must be configured", key)
		}
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		return errors.New("paths.database must be set")
	}
	return nil
}

func (c *Config) validateFingerprinting() error {
	if n := c.Fingerprinting.Video.ThumbnailCount; n < 1 || n > 10 {
		return fmt.Errorf("fingerprinting.video.thumbnail_count must be between 1 and 10 (got %d)", n)
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if limit := c.Metadata.MusicBrainz.RateLimit; limit < 0.5 || limit > 5.0 {
		return fmt.Errorf("metadata.musicbrainz.rate_limit must be between 0.5 and 5.0 seconds (got %g)", limit)
	}
	return nil
}

func (c *Config) validateML() error {
	if err := ensureUnitRange("ml.confidence_threshold", c.ML.ConfidenceThreshold); err != nil {
		return err
	}
	if c.ML.RetrainInterval < 10 {
		return fmt.Errorf("ml.retrain_interval must be at least 10 (got %d)", c.ML.RetrainInterval)
	}
	if boost := c.ML.ItalianMusicBoost; boost < 1.0 || boost > 2.0 {
		return fmt.Errorf("ml.italian_music_boost must be between 1.0 and 2.0 (got %g)", boost)
	}
	return nil
}

func (c *Config) validateReview() error {
	if err := ensureUnitRange("review.confidence_threshold", c.Review.ConfidenceThreshold); err != nil {
		return err
	}
	return ensureUnitRange("review.auto_approve_above", c.Review.AutoApproveAbove)
}

func (c *Config) validateProcessing() error {
	if c.Processing.MaxRetries < 0 {
		return fmt.Errorf("processing.max_retries must be >= 0 (got %d)", c.Processing.MaxRetries)
	}
	if c.Processing.ScanRate < 0 {
		return fmt.Errorf("processing.scan_rate must be >= 0 files per second (got %g)", c.Processing.ScanRate)
	}
	return nil
}

func (c *Config) validateBackup() error {
	if c.Backup.CommitInterval < 1 {
		return fmt.Errorf("backup.commit_interval must be >= 1 (got %d)", c.Backup.CommitInterval)
	}
	if c.Backup.PushInterval < 1 {
		return fmt.Errorf("backup.push_interval must be >= 1 (got %d)", c.Backup.PushInterval)
	}
	return nil
}

func ensureUnitRange(key string, value float64) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("%s must be between 0.0 and 1.0 (got %g)", key, value)
	}
	return nil
}
