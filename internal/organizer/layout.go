package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	musicDir  = "Music"
	moviesDir = "Movies"
	showsDir  = "TV Shows"

	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// sanitizeComponent makes a metadata value safe as a single path element.
// Separators and characters that upset common filesystems are replaced,
// whitespace is collapsed, and the result is title-cased without forcing
// existing capitals down (BTS stays BTS).
func sanitizeComponent(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range value {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}

// audioLayout builds Music/Artist/Album/NN - Title.ext relative to the
// library root.
func audioLayout(artist, album, title string, track *int64, ext string) string {
	artistDir := sanitizeComponent(artist)
	if artistDir == "" {
		artistDir = unknownArtist
	}
	albumDir := sanitizeComponent(album)
	if albumDir == "" {
		albumDir = unknownAlbum
	}
	name := sanitizeComponent(title)
	if track != nil && *track > 0 {
		name = fmt.Sprintf("%02d - %s", *track, name)
	}
	return filepath.Join(musicDir, artistDir, albumDir, name+ext)
}

// movieLayout builds Movies/Title (Year)/Title (Year).ext relative to the
// library root. The year segment is omitted when unknown.
func movieLayout(title string, year *int64, ext string) string {
	name := sanitizeComponent(title)
	if year != nil && *year > 0 {
		name = fmt.Sprintf("%s (%d)", name, *year)
	}
	return filepath.Join(moviesDir, name, name+ext)
}

// showLayout builds TV Shows/Title/Season NN/Title SnnEnn.ext relative to
// the library root.
func showLayout(title string, season, episode int64, ext string) string {
	show := sanitizeComponent(title)
	name := fmt.Sprintf("%s S%02dE%02d", show, season, episode)
	return filepath.Join(showsDir, show, fmt.Sprintf("Season %02d", season), name+ext)
}
