package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the configuration file used when no --config flag is given.
const DefaultConfigPath = "config/config.yaml"

// secretsFileName sits next to the main configuration file and may override
// selected credential fields.
const secretsFileName = "secrets.yaml"

// App contains application identity and log settings.
type App struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Paths contains the filesystem layout: watched folders, caches, and the
// catalog database location.
type Paths struct {
	InputFolder  string `yaml:"input_folder"`
	OutputFolder string `yaml:"output_folder"`
	CacheFolder  string `yaml:"cache_folder"`
	ModelsFolder string `yaml:"models_folder"`
	QueueFolder  string `yaml:"queue_folder"`
	LogFolder    string `yaml:"log_folder"`
	Database     string `yaml:"database"`
}

// AudioFingerprinting configures the (external) audio fingerprinting stage.
type AudioFingerprinting struct {
	Enabled         bool `yaml:"enabled"`
	UseChromaprint  bool `yaml:"use_chromaprint"`
	UseAcoustID     bool `yaml:"use_acoustid"`
	ExtractFeatures bool `yaml:"extract_features"`
}

// VideoFingerprinting configures the (external) video fingerprinting stage.
type VideoFingerprinting struct {
	Enabled        bool `yaml:"enabled"`
	ExtractScenes  bool `yaml:"extract_scenes"`
	ThumbnailCount int  `yaml:"thumbnail_count"`
}

// Fingerprinting groups the per-media-type fingerprinting settings.
type Fingerprinting struct {
	Audio AudioFingerprinting `yaml:"audio"`
	Video VideoFingerprinting `yaml:"video"`
}

// MusicBrainz configures the audio metadata provider.
type MusicBrainz struct {
	Enabled   bool    `yaml:"enabled"`
	RateLimit float64 `yaml:"rate_limit"`
}

// TMDB configures the video metadata provider. The API key may be supplied
// through the secrets file instead of the main configuration.
type TMDB struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

// Metadata groups the metadata provider settings.
type Metadata struct {
	MusicBrainz MusicBrainz `yaml:"musicbrainz"`
	TMDB        TMDB        `yaml:"tmdb"`
}

// ML configures confidence scoring and training cadence.
type ML struct {
	Enabled             bool    `yaml:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	RetrainInterval     int     `yaml:"retrain_interval"`
	ItalianMusicBoost   float64 `yaml:"italian_music_boost"`
}

// Review configures the human review queue thresholds.
type Review struct {
	Enabled             bool    `yaml:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	AutoApproveAbove    float64 `yaml:"auto_approve_above"`
}

// Processing contains pipeline-wide policies that are not owned by a single
// stage: the failure retry budget and the ingest scan rate limit.
type Processing struct {
	MaxRetries int     `yaml:"max_retries"`
	ScanRate   float64 `yaml:"scan_rate"`
}

// USB configures removable-storage handling.
type USB struct {
	Enabled           bool `yaml:"enabled"`
	AutoDetect        bool `yaml:"auto_detect"`
	CacheEnabled      bool `yaml:"cache_enabled"`
	ResumeOnReconnect bool `yaml:"resume_on_reconnect"`
}

// Backup configures catalog backup cadence.
type Backup struct {
	AutoCommit     bool `yaml:"auto_commit"`
	CommitInterval int  `yaml:"commit_interval"`
	AutoPush       bool `yaml:"auto_push"`
	PushInterval   int  `yaml:"push_interval"`
}

// Config encapsulates all configuration values for mediacat.
//
// Sections by subsystem:
//   - App: identity and logging level/format
//   - Paths: watched folders, caches, and database location
//   - Fingerprinting: audio/video fingerprinting toggles
//   - Metadata: MusicBrainz and TMDB provider settings
//   - ML: confidence scoring thresholds and training cadence
//   - Review: human review thresholds
//   - Processing: retry budget and ingest scan rate
//   - USB: removable-storage handling
//   - Backup: catalog backup cadence
type Config struct {
	App            App            `yaml:"app"`
	Paths          Paths          `yaml:"paths"`
	Fingerprinting Fingerprinting `yaml:"fingerprinting"`
	Metadata       Metadata       `yaml:"metadata"`
	ML             ML             `yaml:"ml"`
	Review         Review         `yaml:"review"`
	Processing     Processing     `yaml:"processing"`
	USB            USB            `yaml:"usb"`
	Backup         Backup         `yaml:"backup"`
}

// secrets mirrors the secrets file layout. Only non-empty values override the
// main configuration, never the reverse.
type secrets struct {
	TMDBAPIKey string `yaml:"tmdb_api_key"`
}

// Load reads, merges, and validates the configuration at path. A missing file
// is an error: the input and output folders have no usable defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s", resolved)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.mergeSecrets(filepath.Join(filepath.Dir(resolved), secretsFileName)); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeSecrets applies overrides from the secrets file when it exists. Absent
// or empty secret values leave the main configuration untouched.
func (c *Config) mergeSecrets(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read secrets: %w", err)
	}

	var sec secrets
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}
	if key := strings.TrimSpace(sec.TMDBAPIKey); key != "" {
		c.Metadata.TMDB.APIKey = key
	}
	return nil
}

// normalize expands and absolutizes every configured path.
func (c *Config) normalize() error {
	fields := []*string{
		&c.Paths.InputFolder,
		&c.Paths.OutputFolder,
		&c.Paths.CacheFolder,
		&c.Paths.ModelsFolder,
		&c.Paths.QueueFolder,
		&c.Paths.LogFolder,
		&c.Paths.Database,
	}
	for _, field := range fields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(c.App.LogLevel))
	c.App.LogFormat = strings.ToLower(strings.TrimSpace(c.App.LogFormat))
	return nil
}

// EnsureDirectories creates the working directories the application owns. The
// input and output folders are handled by the run command so a misconfigured
// watch folder produces a visible error instead of a silent mkdir.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.CacheFolder,
		c.Paths.ModelsFolder,
		c.Paths.QueueFolder,
		c.Paths.LogFolder,
	}
	if dbDir := filepath.Dir(c.Paths.Database); dbDir != "" && dbDir != "." {
		dirs = append(dirs, dbDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
