package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/rating"
)

func TestDefaultSelectsEverything(t *testing.T) {
	f := Default()
	if f.MinLength != 0 || f.MaxLength != math.MaxInt64 {
		t.Errorf("length bounds = %d..%d", f.MinLength, f.MaxLength)
	}
	if f.MinRating != rating.Zero || f.MaxRating != rating.Five {
		t.Errorf("rating bounds = %v..%v", f.MinRating, f.MaxRating)
	}
	if f.Artist != MatchAll || f.Keyword != MatchAll {
		t.Errorf("regex defaults = %q/%q", f.Artist, f.Keyword)
	}
	if f.Pattern != "" || f.Limit != math.MaxInt64 {
		t.Errorf("pattern/limit defaults = %q/%d", f.Pattern, f.Limit)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseKeyValues(t *testing.T) {
	f, err := Parse("min_rating=4.0,artist=^A$,limit=10,pattern=live")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.MinRating != rating.Four {
		t.Errorf("MinRating = %v", f.MinRating)
	}
	if f.Artist != "^A$" || f.Limit != 10 || f.Pattern != "live" {
		t.Errorf("fields = %q/%d/%q", f.Artist, f.Limit, f.Pattern)
	}
	// Untouched fields keep their defaults.
	if f.Album != MatchAll || f.MaxRating != rating.Five {
		t.Errorf("defaults clobbered: %q/%v", f.Album, f.MaxRating)
	}
}

func TestParseRejectsInvalidBounds(t *testing.T) {
	_, err := Parse("min_rating=4.0,max_rating=3.0")
	var mm *errs.InvalidMinMaxRating
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want InvalidMinMaxRating", err)
	}
	if mm.Min != 4.0 || mm.Max != 3.0 {
		t.Errorf("bounds = %g/%g", mm.Min, mm.Max)
	}

	_, err = Parse("min_length=100,max_length=10")
	var ml *errs.InvalidMinMaxLength
	if !errors.As(err, &ml) {
		t.Fatalf("err = %v, want InvalidMinMaxLength", err)
	}

	_, err = Parse("min_size=5,max_size=1")
	var ms *errs.InvalidMinMaxSize
	if !errors.As(err, &ms) {
		t.Fatalf("err = %v, want InvalidMinMaxSize", err)
	}
}

func TestParseRejectsUnknownKeyAndBadRating(t *testing.T) {
	if _, err := Parse("frobnicate=1"); err == nil {
		t.Error("unknown key accepted")
	}
	if _, err := Parse("min_rating=4.2"); err == nil {
		t.Error("off-scale rating accepted")
	}
	if _, err := Parse("limit"); err == nil {
		t.Error("entry without '=' accepted")
	}
}

func TestNamedDefaults(t *testing.T) {
	for _, name := range []string{
		"no-artist", "no-album", "no-title", "no-genre",
		"no-rating", "best-4.0", "best-4.5", "best-5.0",
	} {
		if _, ok := Defaults[name]; !ok {
			t.Errorf("missing named filter %q", name)
		}
	}
	if f := Defaults["no-artist"]; f.Artist != "^$" {
		t.Errorf("no-artist regex = %q", f.Artist)
	}
	if f := Defaults["no-rating"]; f.MinRating != rating.Zero || f.MaxRating != rating.Zero {
		t.Errorf("no-rating bounds = %v..%v", f.MinRating, f.MaxRating)
	}
	if f := Defaults["best-4.5"]; f.MinRating != rating.FourAndHalf || f.Keyword == MatchAll {
		t.Errorf("best-4.5 = %v/%q", f.MinRating, f.Keyword)
	}
}
