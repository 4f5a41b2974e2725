// Package filter describes the predicate set applied to the music graph when
// building playlists, bests and reports.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/rating"
)

// MatchAll is the regex matching any name, including the empty one.
const MatchAll = "(.*?)"

// emptyString matches only entities whose name is unset.
const emptyString = "^$"

// noKeyword excludes musics tagged with a rejection keyword.
const noKeyword = "^((?!cutoff|bad|demo|intro).)$"

// Filter is one conjunction of predicates. Zero bounds and MatchAll regexes
// select everything.
type Filter struct {
	MinLength int64         `json:"min_length"`
	MaxLength int64         `json:"max_length"`
	MinSize   int64         `json:"min_size"`
	MaxSize   int64         `json:"max_size"`
	MinRating rating.Rating `json:"min_rating"`
	MaxRating rating.Rating `json:"max_rating"`
	Artist    string        `json:"artist"`
	Album     string        `json:"album"`
	Genre     string        `json:"genre"`
	Title     string        `json:"title"`
	Keyword   string        `json:"keyword"`
	Pattern   string        `json:"pattern"`
	Limit     int64         `json:"limit"`
}

// Default returns the filter that selects the whole collection.
func Default() Filter {
	return Filter{
		MinLength: 0,
		MaxLength: math.MaxInt64,
		MinSize:   0,
		MaxSize:   math.MaxInt64,
		MinRating: rating.Zero,
		MaxRating: rating.Five,
		Artist:    MatchAll,
		Album:     MatchAll,
		Genre:     MatchAll,
		Title:     MatchAll,
		Keyword:   MatchAll,
		Pattern:   "",
		Limit:     math.MaxInt64,
	}
}

// Validate enforces that every paired bound satisfies min <= max.
func (f *Filter) Validate() error {
	if f.MinRating > f.MaxRating {
		return &errs.InvalidMinMaxRating{Min: f.MinRating.Float(), Max: f.MaxRating.Float()}
	}
	if f.MinLength > f.MaxLength {
		return &errs.InvalidMinMaxLength{Min: f.MinLength, Max: f.MaxLength}
	}
	if f.MinSize > f.MaxSize {
		return &errs.InvalidMinMaxSize{Min: f.MinSize, Max: f.MaxSize}
	}
	return nil
}

// Parse builds a Filter from a comma-delimited key=value string, for example
// "min_rating=4.0,artist=^A$". Keys map 1:1 to the struct fields. The result
// is validated.
func Parse(s string) (Filter, error) {
	f := Default()
	if strings.TrimSpace(s) == "" {
		return f, f.Validate()
	}
	for _, kv := range strings.Split(s, ",") {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return f, fmt.Errorf("invalid filter entry %q, want key=value", kv)
		}
		key = strings.TrimSpace(key)
		if err := f.set(key, value); err != nil {
			return f, err
		}
	}
	return f, f.Validate()
}

func (f *Filter) set(key, value string) error {
	switch key {
	case "min_length", "max_length", "min_size", "max_size", "limit":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %q", key, value)
		}
		switch key {
		case "min_length":
			f.MinLength = n
		case "max_length":
			f.MaxLength = n
		case "min_size":
			f.MinSize = n
		case "max_size":
			f.MaxSize = n
		case "limit":
			f.Limit = n
		}
	case "min_rating", "max_rating":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rating for %s: %q", key, value)
		}
		r, err := rating.FromFloat("", v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "min_rating" {
			f.MinRating = r
		} else {
			f.MaxRating = r
		}
	case "artist":
		f.Artist = value
	case "album":
		f.Album = value
	case "genre":
		f.Genre = value
	case "title":
		f.Title = value
	case "keyword":
		f.Keyword = value
	case "pattern":
		f.Pattern = value
	default:
		return fmt.Errorf("unknown filter key %q", key)
	}
	return nil
}

// Defaults is the catalog of named filters selectable by name.
var Defaults = map[string]Filter{
	"no-artist": withf(func(f *Filter) { f.Artist = emptyString }),
	"no-album":  withf(func(f *Filter) { f.Album = emptyString }),
	"no-title":  withf(func(f *Filter) { f.Title = emptyString }),
	"no-genre":  withf(func(f *Filter) { f.Genre = emptyString }),
	"no-rating": withf(func(f *Filter) { f.MinRating = rating.Zero; f.MaxRating = rating.Zero }),
	"best-4.0":  withf(func(f *Filter) { f.MinRating = rating.Four; f.Keyword = noKeyword }),
	"best-4.5":  withf(func(f *Filter) { f.MinRating = rating.FourAndHalf; f.Keyword = noKeyword }),
	"best-5.0":  withf(func(f *Filter) { f.MinRating = rating.Five; f.Keyword = noKeyword }),
}

func withf(mutate func(*Filter)) Filter {
	f := Default()
	mutate(&f)
	return f
}
