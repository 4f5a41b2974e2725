// Package playlist shapes filtered query results into ordered, formatted
// playlists.
package playlist

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AdrienPensart/critical/internal/store"
)

// DefaultName names a playlist when the CLI gives none.
const DefaultName = "default"

// Format selects the output rendering.
type Format string

const (
	FormatM3U   Format = "m3u"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatM3U, FormatJSON, FormatTable:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Options controls ordering and link emission. Interleave and Shuffle are
// mutually exclusive; the CLI enforces that before calling Generate.
type Options struct {
	Kinds      []Kind
	Relative   bool
	Interleave bool
	Shuffle    bool
}

// OutputOptions selects the format and the optional destination file.
type OutputOptions struct {
	Format Format
	Out    string
}

// Playlist is a named, ordered set of musics.
type Playlist struct {
	Name   string
	Musics []store.MusicRow
}

// New returns a playlist over musics. Callers de-duplicate first (see Dedup).
func New(name string, musics []store.MusicRow) *Playlist {
	return &Playlist{Name: name, Musics: musics}
}

// Dedup drops duplicate musics by their (title, artist, album, genre)
// identity, keeping first occurrences in order.
func Dedup(musics []store.MusicRow) []store.MusicRow {
	seen := make(map[string]struct{}, len(musics))
	out := musics[:0:0]
	for _, m := range musics {
		if _, ok := seen[m.Key()]; ok {
			continue
		}
		seen[m.Key()] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Render produces the playlist in the requested format. The result is empty
// for an empty playlist unless the format is JSON, which still renders its
// empty array. Deterministic unless opts.Shuffle, which consumes rng.
func (p *Playlist) Render(opts Options, out OutputOptions, rng *rand.Rand) (string, error) {
	musics := append([]store.MusicRow{}, p.Musics...)

	if opts.Shuffle {
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		rng.Shuffle(len(musics), func(i, j int) {
			musics[i], musics[j] = musics[j], musics[i]
		})
	} else if opts.Interleave {
		var err error
		musics, err = interleaveByArtist(musics)
		if err != nil {
			return "", err
		}
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []Kind{KindLocal}
	}

	if len(musics) == 0 && out.Format != FormatJSON {
		return "", nil
	}

	switch out.Format {
	case FormatJSON:
		encoded, err := json.MarshalIndent(musics, "", "  ")
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case FormatTable:
		return renderTable(musics), nil
	default:
		return p.renderM3U(musics, kinds, opts.Relative, out.Out)
	}
}

func (p *Playlist) renderM3U(musics []store.MusicRow, kinds []Kind, relative bool, out string) (string, error) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXTREM:name=%s\n", p.Name)
	if out != "" {
		fmt.Fprintf(&b, "#EXTREM:path=%s\n", out)
	}
	var links []string
	for _, m := range musics {
		for _, folder := range m.Folders {
			folderLinks, err := linksFor(folder, relative, kinds)
			if err != nil {
				return "", err
			}
			links = append(links, folderLinks...)
		}
	}
	b.WriteString(strings.Join(links, "\n"))
	return b.String(), nil
}

// Generate renders the playlist and delivers it: to out.Out when set and not
// dry, to stdout otherwise.
func (p *Playlist) Generate(opts Options, out OutputOptions, dry bool, rng *rand.Rand) error {
	content, err := p.Render(opts, out, rng)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}
	if !dry && out.Out != "" {
		if err := os.MkdirAll(filepath.Dir(out.Out), 0o755); err != nil {
			return err
		}
		return os.WriteFile(out.Out, []byte(content), 0o644)
	}
	fmt.Print(content)
	return nil
}

// interleaveByArtist groups the musics by artist name and spaces the groups
// out evenly.
func interleaveByArtist(musics []store.MusicRow) ([]store.MusicRow, error) {
	byArtist := make(map[string][]store.MusicRow)
	var order []string
	for _, m := range musics {
		if _, ok := byArtist[m.Artist]; !ok {
			order = append(order, m.Artist)
		}
		byArtist[m.Artist] = append(byArtist[m.Artist], m)
	}
	groups := make([][]store.MusicRow, 0, len(order))
	for _, artist := range order {
		groups = append(groups, byArtist[artist])
	}
	return InterleaveEvenly(groups)
}
