package playlist

import (
	"fmt"
	"strings"

	"github.com/AdrienPensart/critical/internal/store"
)

// Bests derives the "bests" playlists from one filtered music set: five
// groupings by rating, genre, keyword, (artist, rating) and
// (artist, keyword). Group order follows first appearance in musics so the
// output is deterministic.
func Bests(musics []store.MusicRow) []*Playlist {
	var playlists []*Playlist
	playlists = append(playlists, groupBy(musics, func(m store.MusicRow) string {
		return fmt.Sprintf("rating_%.1f", m.Rating)
	})...)
	playlists = append(playlists, groupBy(musics, func(m store.MusicRow) string {
		return "genre_" + strings.ToLower(m.Genre)
	})...)
	playlists = append(playlists, groupByKeyword(musics, func(m store.MusicRow, keyword string) string {
		return "keyword_" + strings.ToLower(keyword)
	})...)
	playlists = append(playlists, groupBy(musics, func(m store.MusicRow) string {
		return fmt.Sprintf("%s/rating_%.1f", m.Artist, m.Rating)
	})...)
	playlists = append(playlists, groupByKeyword(musics, func(m store.MusicRow, keyword string) string {
		return m.Artist + "/keyword_" + strings.ToLower(keyword)
	})...)
	return playlists
}

func groupBy(musics []store.MusicRow, name func(store.MusicRow) string) []*Playlist {
	groups := make(map[string]*Playlist)
	var order []string
	for _, m := range musics {
		n := name(m)
		p, ok := groups[n]
		if !ok {
			p = &Playlist{Name: n}
			groups[n] = p
			order = append(order, n)
		}
		p.Musics = append(p.Musics, m)
	}
	out := make([]*Playlist, 0, len(order))
	for _, n := range order {
		out = append(out, groups[n])
	}
	return out
}

// groupByKeyword fans each music out to one group per keyword it carries.
func groupByKeyword(musics []store.MusicRow, name func(store.MusicRow, string) string) []*Playlist {
	groups := make(map[string]*Playlist)
	var order []string
	for _, m := range musics {
		for _, keyword := range m.Keywords {
			n := name(m, keyword)
			p, ok := groups[n]
			if !ok {
				p = &Playlist{Name: n}
				groups[n] = p
				order = append(order, n)
			}
			p.Musics = append(p.Musics, m)
		}
	}
	out := make([]*Playlist, 0, len(order))
	for _, n := range order {
		out = append(out, groups[n])
	}
	return out
}
