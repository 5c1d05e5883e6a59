package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"mediacat/internal/catalog"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
	".aiff": {},
	".aif":  {},
	".wma":  {},
	".ape":  {},
	".wv":   {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".m4v":  {},
	".mpg":  {},
	".mpeg": {},
	".ts":   {},
}

// Classify determines the coarse media type of a file. Extensions decide most
// cases; ambiguous containers get a tag probe so a music file in a video
// container is still treated as audio.
func Classify(path string) catalog.MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; ok {
		return catalog.MediaTypeAudio
	}
	if _, ok := videoExtensions[ext]; ok {
		// MP4-family containers hold music too; a readable audio tag block
		// wins over the extension.
		if ext == ".mp4" || ext == ".m4v" {
			if hasAudioTags(path) {
				return catalog.MediaTypeAudio
			}
		}
		return catalog.MediaTypeVideo
	}
	return catalog.MediaTypeUnknown
}

// IsMediaCandidate reports whether the extension is worth registering at all.
func IsMediaCandidate(path string) bool {
	return Classify(path) != catalog.MediaTypeUnknown
}

func hasAudioTags(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return false
	}
	return meta.Title() != "" || meta.Artist() != "" || meta.Album() != ""
}

// ProbeTags reads embedded tags and returns a metadata seed for the catalog.
// Files without readable tags return nil without error.
func ProbeTags(path string) *catalog.MediaMetadata {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}

	md := &catalog.MediaMetadata{
		Title:          meta.Title(),
		Artist:         meta.Artist(),
		Album:          meta.Album(),
		Genre:          meta.Genre(),
		MetadataSource: "embedded",
	}
	if year := meta.Year(); year > 0 {
		y := int64(year)
		md.Year = &y
	}
	if track, _ := meta.Track(); track > 0 {
		n := int64(track)
		md.TrackNumber = &n
	}
	if disc, _ := meta.Disc(); disc > 0 {
		n := int64(disc)
		md.DiscNumber = &n
	}
	if md.Title == "" && md.Artist == "" && md.Album == "" {
		return nil
	}
	return md
}
