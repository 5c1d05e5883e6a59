package catalog

import (
	"fmt"
	"time"
)

// Status enumerates the media file processing states.
type Status string

const (
	StatusPending        Status = "pending"
	StatusFingerprinting Status = "fingerprinting"
	StatusMetadataLookup Status = "metadata_lookup"
	StatusMLScoring      Status = "ml_scoring"
	StatusReviewNeeded   Status = "review_needed"
	StatusOrganizing     Status = "organizing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusSkipped        Status = "skipped"
)

var allStatuses = map[Status]struct{}{
	StatusPending:        {},
	StatusFingerprinting: {},
	StatusMetadataLookup: {},
	StatusMLScoring:      {},
	StatusReviewNeeded:   {},
	StatusOrganizing:     {},
	StatusCompleted:      {},
	StatusFailed:         {},
	StatusSkipped:        {},
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(value)
	if _, ok := allStatuses[status]; !ok {
		return "", Wrap(ErrValidation, "parse status", fmt.Sprintf("unknown status %q", value), nil)
	}
	return status, nil
}

// IsTerminal reports whether the status admits no further automatic transitions.
// Failed files can still be re-entered by the retry policy; completed and
// skipped cannot.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// MediaType classifies a file by coarse content kind.
type MediaType string

const (
	MediaTypeAudio   MediaType = "audio"
	MediaTypeVideo   MediaType = "video"
	MediaTypeUnknown MediaType = "unknown"
)

// ParseMediaType converts a stored string into a MediaType.
func ParseMediaType(value string) (MediaType, error) {
	switch mt := MediaType(value); mt {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeUnknown:
		return mt, nil
	default:
		return "", Wrap(ErrValidation, "parse media type", fmt.Sprintf("unknown media type %q", value), nil)
	}
}

// ReviewStatus enumerates human review decisions.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewCorrected ReviewStatus = "corrected"
)

// FeedbackType tags an ML feedback record by how the user reacted.
type FeedbackType string

const (
	FeedbackCorrection   FeedbackType = "correction"
	FeedbackConfirmation FeedbackType = "confirmation"
	FeedbackRejection    FeedbackType = "rejection"
)

// MediaFile is the aggregate root: one row per discovered file, identified by
// both its absolute source path and its content hash.
type MediaFile struct {
	ID              int64
	OriginalPath    string
	Filename        string
	FileSize        int64
	FileHash        string
	MediaType       MediaType
	Status          Status
	ConfidenceScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProcessedAt     *time.Time
	OutputPath      string
	USBDeviceID     string
	IsOnUSB         bool
	ErrorMessage    string
	RetryCount      int
}

// Fingerprint holds derived acoustic or perceptual signatures plus technical
// stream metadata. Field presence depends on media type.
type Fingerprint struct {
	ID                  int64
	MediaFileID         int64
	Chromaprint         string
	ChromaprintDuration *float64
	AcoustID            string
	AcoustIDScore       *float64
	VideoHash           string
	SceneHashes         []string
	Duration            *float64
	Bitrate             *int64
	SampleRate          *int64
	Channels            *int64
	Codec               string
	CreatedAt           time.Time
}

// MediaMetadata holds descriptive metadata enriched from external providers.
type MediaMetadata struct {
	ID                 int64
	MediaFileID        int64
	Title              string
	Artist             string
	Album              string
	Year               *int64
	Genre              string
	MusicBrainzID      string
	MusicBrainzArtist  string
	MusicBrainzAlbum   string
	TrackNumber        *int64
	DiscNumber         *int64
	TMDBID             *int64
	IMDBID             string
	Season             *int64
	Episode            *int64
	Description        string
	Language           string
	Country            string
	IsItalian          bool
	ItalianConfidence  *float64
	ArtworkURL         string
	ArtworkLocalPath   string
	MetadataSource     string
	MetadataQuality    float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MLFeatures holds numeric feature arrays extracted for scoring. Purely
// derived data; never hand-edited.
type MLFeatures struct {
	ID                      int64
	MediaFileID             int64
	MFCC                    []float64
	SpectralCentroid        []float64
	SpectralRolloff         []float64
	SpectralContrast        []float64
	ZeroCrossingRate        []float64
	Tempo                   *float64
	Chroma                  []float64
	FeatureVector           []float64
	ItalianLanguageFeatures map[string]float64
	CreatedAt               time.Time
}

// MLModel catalogs a trained model artifact. At most one model per
// (model_name, model_type) pair is active at a time.
type MLModel struct {
	ID              int64
	ModelName       string
	ModelVersion    string
	ModelType       string
	ModelPath       string
	Accuracy        *float64
	Precision       *float64
	Recall          *float64
	F1Score         *float64
	TrainingSamples int64
	FeaturesUsed    []string
	Hyperparameters map[string]any
	IsActive        bool
	CreatedAt       time.Time
	TrainedAt       *time.Time
}

// ReviewItem is a review queue entry for a low-confidence file.
type ReviewItem struct {
	ID                int64
	MediaFileID       int64
	ReviewStatus      ReviewStatus
	ConfidenceScore   float64
	Reason            string
	SuggestedMetadata map[string]any
	CorrectedMetadata map[string]any
	ReviewerNotes     string
	CreatedAt         time.Time
	ReviewedAt        *time.Time
}

// Feedback pairs an automated prediction with the user-confirmed truth. Rows
// are append-only.
type Feedback struct {
	ID                  int64
	MediaFileID         int64
	PredictedMetadata   map[string]any
	PredictedConfidence float64
	CorrectMetadata     map[string]any
	FeedbackType        FeedbackType
	UsedForTraining     bool
	TrainingWeight      float64
	CreatedAt           time.Time
}

// LogEntry is one append-only audit record, optionally tied to a file.
type LogEntry struct {
	ID               int64
	MediaFileID      *int64
	Level            string
	Module           string
	Message          string
	Context          map[string]any
	ExceptionType    string
	ExceptionMessage string
	StackTrace       string
	CreatedAt        time.Time
}
