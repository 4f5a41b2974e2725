// Package graph is the embedded music graph store. It keeps the whole graph
// in memory, serializes its own mutations behind one lock, and persists via
// snapshot (see snapshot.go). Vertex and edge identifiers are owned here and
// never shared with the external store.
package graph

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Vertex types.
const (
	TypeFolder  = "folder"
	TypeArtist  = "artist"
	TypeAlbum   = "album"
	TypeGenre   = "genre"
	TypeKeyword = "keyword"
	TypeMusic   = "music"
)

// Edge types.
const (
	EdgeByArtist = "by"     // album -> artist
	EdgeOnAlbum  = "on"     // music -> album
	EdgeIsGenre  = "is"     // music -> genre
	EdgeTagged   = "tagged" // music -> keyword
	EdgeInFolder = "in"     // music -> folder, carries the path attribute
)

// Vertex is one node of the graph.
type Vertex struct {
	ID    uuid.UUID      `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// Edge is one directed, typed edge. Props holds per-edge attributes; folder
// links carry "path".
type Edge struct {
	Out   uuid.UUID         `json:"out"`
	Type  string            `json:"type"`
	In    uuid.UUID         `json:"in"`
	Props map[string]string `json:"props,omitempty"`
}

// Graph is the in-memory store. The zero value is not usable; call New.
type Graph struct {
	mu       sync.RWMutex
	vertices map[uuid.UUID]*Vertex
	edges    map[string]*Edge
	index    map[string]uuid.UUID
	declared map[string]bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[uuid.UUID]*Vertex),
		edges:    make(map[string]*Edge),
		index:    make(map[string]uuid.UUID),
		declared: make(map[string]bool),
	}
}

// DeclareIndexes registers the unique property index of every entity type.
// Idempotent; a scan calls it before the first upsert.
func (g *Graph) DeclareIndexes() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range []string{TypeFolder, TypeArtist, TypeAlbum, TypeGenre, TypeKeyword, TypeMusic} {
		g.declared[t] = true
	}
}

// key builds the composite natural-identity index key for a vertex type.
func key(vertexType string, parts ...string) string {
	return vertexType + "\x00" + strings.Join(parts, "\x00")
}

func edgeKey(out uuid.UUID, edgeType string, in uuid.UUID, path string) string {
	return out.String() + "\x00" + edgeType + "\x00" + in.String() + "\x00" + path
}

// upsert returns the id indexed under k, inserting a fresh vertex with props
// when absent. The second return reports whether the vertex was created.
func (g *Graph) upsert(vertexType, k string, props map[string]any) (uuid.UUID, bool) {
	if id, ok := g.index[k]; ok {
		return id, false
	}
	id := uuid.New()
	g.vertices[id] = &Vertex{ID: id, Type: vertexType, Props: props}
	g.index[k] = id
	return id, true
}

func (g *Graph) addEdge(out uuid.UUID, edgeType string, in uuid.UUID, props map[string]string) {
	k := edgeKey(out, edgeType, in, props["path"])
	if _, ok := g.edges[k]; ok {
		return
	}
	g.edges[k] = &Edge{Out: out, Type: edgeType, In: in, Props: props}
}

// UpsertFolder indexes folders by their (name, username, ipv4) triple.
func (g *Graph) UpsertFolder(name, username, ipv4 string) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, _ := g.upsert(TypeFolder, key(TypeFolder, name, username, ipv4), map[string]any{
		"name": name, "username": username, "ipv4": ipv4,
	})
	return id
}

// UpsertArtist indexes artists by name.
func (g *Graph) UpsertArtist(name string) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, _ := g.upsert(TypeArtist, key(TypeArtist, name), map[string]any{"name": name})
	return id
}

// UpsertAlbum indexes albums by (name, artist). A fresh album gets its edge
// to the artist.
func (g *Graph) UpsertAlbum(name string, artist uuid.UUID) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, created := g.upsert(TypeAlbum, key(TypeAlbum, name, artist.String()), map[string]any{"name": name})
	if created {
		g.addEdge(id, EdgeByArtist, artist, nil)
	}
	return id
}

// UpsertGenre indexes genres by name.
func (g *Graph) UpsertGenre(name string) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, _ := g.upsert(TypeGenre, key(TypeGenre, name), map[string]any{"name": name})
	return id
}

// UpsertKeyword indexes keywords by name.
func (g *Graph) UpsertKeyword(name string) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, _ := g.upsert(TypeKeyword, key(TypeKeyword, name), map[string]any{"name": name})
	return id
}

// MusicParams carries one music upsert: the vertex properties plus the ids
// of the already-upserted related vertices.
type MusicParams struct {
	Title  string
	Size   int64
	Length int64
	Track  int64
	Rating float64
	Path   string

	Album    uuid.UUID
	Genre    uuid.UUID
	Folder   uuid.UUID
	Keywords []uuid.UUID
}

// UpsertMusic indexes musics by (title, album). Non-identifying properties
// are refreshed; the folder and keyword edge sets are union-added, never
// replaced.
func (g *Graph) UpsertMusic(p MusicParams) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	props := map[string]any{
		"title":  p.Title,
		"size":   p.Size,
		"length": p.Length,
		"track":  p.Track,
		"rating": p.Rating,
	}
	id, created := g.upsert(TypeMusic, key(TypeMusic, p.Title, p.Album.String()), props)
	if !created {
		g.vertices[id].Props = props
	}
	g.addEdge(id, EdgeOnAlbum, p.Album, nil)
	g.addEdge(id, EdgeIsGenre, p.Genre, nil)
	for _, kw := range p.Keywords {
		g.addEdge(id, EdgeTagged, kw, nil)
	}
	g.addEdge(id, EdgeInFolder, p.Folder, map[string]string{"path": p.Path})
	return id
}

// RemovePath drops every folder link whose path attribute equals path. The
// musics left without links become orphans for soft clean to sweep.
func (g *Graph) RemovePath(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for k, e := range g.edges {
		if e.Type == EdgeInFolder && e.Props["path"] == path {
			delete(g.edges, k)
			removed++
		}
	}
	return removed
}

// Count returns the number of vertices of the given type.
func (g *Graph) Count(vertexType string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, v := range g.vertices {
		if v.Type == vertexType {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of edges of the given type.
func (g *Graph) EdgeCount(edgeType string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, e := range g.edges {
		if e.Type == edgeType {
			n++
		}
	}
	return n
}
