package graph

import "github.com/google/uuid"

// CleanCounts reports what a soft clean removed, per entity kind.
type CleanCounts struct {
	Musics   int `json:"musics_deleted"`
	Albums   int `json:"albums_deleted"`
	Artists  int `json:"artists_deleted"`
	Genres   int `json:"genres_deleted"`
	Keywords int `json:"keywords_deleted"`
}

// SoftClean deletes orphans in dependency order: musics without folder
// links, then albums, artists, genres and keywords left without musics.
// Each step observes the result of the previous one.
func (g *Graph) SoftClean() CleanCounts {
	g.mu.Lock()
	defer g.mu.Unlock()
	var counts CleanCounts

	counts.Musics = g.deleteWhere(TypeMusic, func(id uuid.UUID) bool {
		return !g.hasEdgeFrom(id, EdgeInFolder)
	})
	counts.Albums = g.deleteWhere(TypeAlbum, func(id uuid.UUID) bool {
		return !g.hasEdgeTo(id, EdgeOnAlbum)
	})
	counts.Artists = g.deleteWhere(TypeArtist, func(id uuid.UUID) bool {
		return !g.hasEdgeTo(id, EdgeByArtist)
	})
	counts.Genres = g.deleteWhere(TypeGenre, func(id uuid.UUID) bool {
		return !g.hasEdgeTo(id, EdgeIsGenre)
	})
	counts.Keywords = g.deleteWhere(TypeKeyword, func(id uuid.UUID) bool {
		return !g.hasEdgeTo(id, EdgeTagged)
	})
	return counts
}

// HardClean deletes every artist and cascades through albums, musics and
// their edges. Genres, keywords and folders survive as orphans.
func (g *Graph) HardClean() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteWhere(TypeMusic, func(uuid.UUID) bool { return true })
	g.deleteWhere(TypeAlbum, func(uuid.UUID) bool { return true })
	g.deleteWhere(TypeArtist, func(uuid.UUID) bool { return true })
}

func (g *Graph) hasEdgeFrom(id uuid.UUID, edgeType string) bool {
	for _, e := range g.edges {
		if e.Type == edgeType && e.Out == id {
			return true
		}
	}
	return false
}

func (g *Graph) hasEdgeTo(id uuid.UUID, edgeType string) bool {
	for _, e := range g.edges {
		if e.Type == edgeType && e.In == id {
			return true
		}
	}
	return false
}

// deleteWhere removes every vertex of the type matching cond, along with its
// incident edges and index entries. Returns the number deleted.
func (g *Graph) deleteWhere(vertexType string, cond func(uuid.UUID) bool) int {
	var doomed []uuid.UUID
	for id, v := range g.vertices {
		if v.Type == vertexType && cond(id) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		delete(g.vertices, id)
		for k, e := range g.edges {
			if e.Out == id || e.In == id {
				delete(g.edges, k)
			}
		}
		for k, indexed := range g.index {
			if indexed == id {
				delete(g.index, k)
			}
		}
	}
	return len(doomed)
}
