package config

const (
	defaultAppName             = "Media Organizer"
	defaultAppVersion          = "1.0.0"
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
	defaultCacheFolder         = "./data/cache"
	defaultModelsFolder        = "./data/models"
	defaultQueueFolder         = "./data/queue"
	defaultLogFolder           = "./logs"
	defaultDatabase            = "./data/media_organizer.db"
	defaultThumbnailCount      = 3
	defaultMusicBrainzLimit    = 1.0
	defaultConfidenceThreshold = 0.75
	defaultRetrainInterval     = 100
	defaultItalianMusicBoost   = 1.2
	defaultAutoApproveAbove    = 0.95
	defaultMaxRetries          = 3
	defaultCommitInterval      = 10
	defaultPushInterval        = 50
)

// Default returns a Config populated with repository defaults. The input and
// output folders are intentionally empty: they must come from the user.
func Default() Config {
	return Config{
		App: App{
			Name:      defaultAppName,
			Version:   defaultAppVersion,
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Paths: Paths{
			CacheFolder:  defaultCacheFolder,
			ModelsFolder: defaultModelsFolder,
			QueueFolder:  defaultQueueFolder,
			LogFolder:    defaultLogFolder,
			Database:     defaultDatabase,
		},
		Fingerprinting: Fingerprinting{
			Audio: AudioFingerprinting{
				Enabled:         true,
				UseChromaprint:  true,
				UseAcoustID:     true,
				ExtractFeatures: true,
			},
			Video: VideoFingerprinting{
				Enabled:        true,
				ExtractScenes:  true,
				ThumbnailCount: defaultThumbnailCount,
			},
		},
		Metadata: Metadata{
			MusicBrainz: MusicBrainz{
				Enabled:   true,
				RateLimit: defaultMusicBrainzLimit,
			},
			TMDB: TMDB{
				Enabled: true,
			},
		},
		ML: ML{
			Enabled:             true,
			ConfidenceThreshold: defaultConfidenceThreshold,
			RetrainInterval:     defaultRetrainInterval,
			ItalianMusicBoost:   defaultItalianMusicBoost,
		},
		Review: Review{
			Enabled:             true,
			ConfidenceThreshold: defaultConfidenceThreshold,
			AutoApproveAbove:    defaultAutoApproveAbove,
		},
		Processing: Processing{
			MaxRetries: defaultMaxRetries,
		},
		USB: USB{
			Enabled:           true,
			AutoDetect:        true,
			CacheEnabled:      true,
			ResumeOnReconnect: true,
		},
		Backup: Backup{
			AutoCommit:     true,
			CommitInterval: defaultCommitInterval,
			AutoPush:       true,
			PushInterval:   defaultPushInterval,
		},
	}
}
