package playlist

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/AdrienPensart/critical/internal/store"
)

// renderTable formats musics as two multi-line columns: identity (title and
// paths) and metadata (relations, size, length, track, rating, keywords).
func renderTable(musics []store.MusicRow) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Music", "Infos"})
	table.SetAutoWrapText(false)
	table.SetRowLine(true)
	for _, m := range musics {
		var paths []string
		for _, f := range m.Folders {
			paths = append(paths, f.Path)
		}
		identity := m.Title
		if len(paths) > 0 {
			identity += "\n" + strings.Join(paths, "\n")
		}
		metadata := fmt.Sprintf(
			"Artist: %s\nAlbum: %s\nGenre: %s\nSize: %d\nLength: %d\nTrack: %d\nRating: %g\nKeywords: %s",
			m.Artist, m.Album, m.Genre, m.Size, m.Length, m.Track, m.Rating,
			strings.Join(m.Keywords, " "))
		table.Append([]string{identity, metadata})
	}
	table.Render()
	return b.String()
}
