// Package mfile gives a uniform view over the physical audio files a scan
// encounters. FLAC and MP3 get their own readers; everything is surfaced
// through the MusicFile contract.
package mfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/rating"
)

// MusicFile is the read-only contract over one audio file. String getters
// return "" when the tag is absent, numeric getters return 0. Rating is the
// exception: an out-of-range value is an error, not a default.
type MusicFile interface {
	Path() string
	Folder() string
	Length() int64
	Artist() string
	Album() string
	Title() string
	Genre() string
	Track() int64
	Rating() (rating.Rating, error)
	Keywords() []string
	Size() (int64, error)
	Links() []string
}

// Open reads the file at path and returns the reader matching its actual
// container format. folder is the scan root the file was found under. The
// format is sniffed from the content; the extension only breaks ties when
// sniffing fails.
func Open(folder, path string) (MusicFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	_, fileType, err := tag.Identify(f)
	f.Close()
	if err != nil {
		// Fall back on the extension; the dedicated reader will report a
		// precise parse error if the content is broken.
		switch strings.ToLower(filepath.Ext(path)) {
		case ".flac":
			fileType = tag.FLAC
		case ".mp3":
			fileType = tag.MP3
		}
	}
	switch fileType {
	case tag.FLAC:
		return OpenFlac(folder, path)
	case tag.MP3:
		return OpenMp3(folder, path)
	}
	return nil, &errs.TagError{Path: path, Format: "unknown", Err: errors.New("unsupported container format")}
}

// splitKeywords turns a free-text keyword field into individual keywords:
// whitespace-separated, NUL padding trimmed, empties dropped.
func splitKeywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "\x00")
		if word != "" {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// fileSize stats path and returns its byte length.
func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
