package organizer

import (
	"testing"

	"mediacat/internal/catalog"
)

func int64Ptr(v int64) *int64 { return &v }

func TestOutputPathForAudio(t *testing.T) {
	tests := []struct {
		name string
		file catalog.MediaFile
		meta *catalog.MediaMetadata
		want string
	}{
		{
			name: "full metadata",
			file: catalog.MediaFile{Filename: "track.mp3", MediaType: catalog.MediaTypeAudio},
			meta: &catalog.MediaMetadata{
				Title: "la canzone del sole", Artist: "lucio battisti", Album: "amore e non amore",
				TrackNumber: int64Ptr(3),
			},
			want: "Music/Lucio Battisti/Amore E Non Amore/03 - La Canzone Del Sole.mp3",
		},
		{
			name: "no track number",
			file: catalog.MediaFile{Filename: "song.flac", MediaType: catalog.MediaTypeAudio},
			meta: &catalog.MediaMetadata{Title: "Song", Artist: "Artist", Album: "Album"},
			want: "Music/Artist/Album/Song.flac",
		},
		{
			name: "missing metadata falls back to filename",
			file: catalog.MediaFile{Filename: "mystery.mp3", MediaType: catalog.MediaTypeAudio},
			meta: nil,
			want: "Music/Unknown Artist/Unknown Album/Mystery.mp3",
		},
		{
			name: "acronyms keep their capitals",
			file: catalog.MediaFile{Filename: "track.mp3", MediaType: catalog.MediaTypeAudio},
			meta: &catalog.MediaMetadata{Title: "DNA", Artist: "BTS", Album: "Love Yourself"},
			want: "Music/BTS/Love Yourself/DNA.mp3",
		},
		{
			name: "separators sanitized out of components",
			file: catalog.MediaFile{Filename: "track.mp3", MediaType: catalog.MediaTypeAudio},
			meta: &catalog.MediaMetadata{Title: "What / Why?", Artist: "AC/DC", Album: "Back In Black"},
			want: "Music/AC-DC/Back In Black/What - Why-.mp3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutputPathFor(&tc.file, tc.meta); got != tc.want {
				t.Fatalf("OutputPathFor = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOutputPathForVideo(t *testing.T) {
	tests := []struct {
		name string
		file catalog.MediaFile
		meta *catalog.MediaMetadata
		want string
	}{
		{
			name: "movie with year",
			file: catalog.MediaFile{Filename: "film.mkv", MediaType: catalog.MediaTypeVideo},
			meta: &catalog.MediaMetadata{Title: "la dolce vita", Year: int64Ptr(1960)},
			want: "Movies/La Dolce Vita (1960)/La Dolce Vita (1960).mkv",
		},
		{
			name: "movie without year",
			file: catalog.MediaFile{Filename: "film.mp4", MediaType: catalog.MediaTypeVideo},
			meta: &catalog.MediaMetadata{Title: "Untitled Project"},
			want: "Movies/Untitled Project/Untitled Project.mp4",
		},
		{
			name: "episode",
			file: catalog.MediaFile{Filename: "ep.mkv", MediaType: catalog.MediaTypeVideo},
			meta: &catalog.MediaMetadata{Title: "Il Commissario", Season: int64Ptr(2), Episode: int64Ptr(5)},
			want: "TV Shows/Il Commissario/Season 02/Il Commissario S02E05.mkv",
		},
		{
			name: "no metadata falls back to filename",
			file: catalog.MediaFile{Filename: "recording.avi", MediaType: catalog.MediaTypeVideo},
			meta: nil,
			want: "Movies/Recording/Recording.avi",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutputPathFor(&tc.file, tc.meta); got != tc.want {
				t.Fatalf("OutputPathFor = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  spaced   out  ", "Spaced Out"},
		{"trailing dots...", "Trailing Dots"},
		{"", ""},
		{"///", ""},
		{"normal", "Normal"},
	}
	for _, tc := range tests {
		if got := sanitizeComponent(tc.in); got != tc.want {
			t.Errorf("sanitizeComponent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
