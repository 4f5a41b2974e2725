package scan

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Cache memoizes external-store ids by natural identity for the duration of
// one scan, so a folder, artist, album, genre or keyword already seen skips
// the store round-trip; musics are not cached. One mutex per entity family;
// every lookup and write-back happens under it. Two workers that miss at the
// same time both upsert, and the first write-back wins the id. The error
// counter tallies transient store failures across all workers.
type Cache struct {
	Errors atomic.Uint64

	foldersMu sync.Mutex
	folders   map[string]uuid.UUID

	artistsMu sync.Mutex
	artists   map[string]uuid.UUID

	albumsMu sync.Mutex
	albums   map[uuid.UUID]map[string]uuid.UUID

	genresMu sync.Mutex
	genres   map[string]uuid.UUID

	keywordsMu sync.Mutex
	keywords   map[string]uuid.UUID
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		folders:  make(map[string]uuid.UUID),
		artists:  make(map[string]uuid.UUID),
		albums:   make(map[uuid.UUID]map[string]uuid.UUID),
		genres:   make(map[string]uuid.UUID),
		keywords: make(map[string]uuid.UUID),
	}
}

func (c *Cache) Folder(name string) (uuid.UUID, bool) {
	c.foldersMu.Lock()
	defer c.foldersMu.Unlock()
	id, ok := c.folders[name]
	return id, ok
}

// StoreFolder records id for name and returns the canonical id: the stored
// one if another worker won the race.
func (c *Cache) StoreFolder(name string, id uuid.UUID) uuid.UUID {
	c.foldersMu.Lock()
	defer c.foldersMu.Unlock()
	if existing, ok := c.folders[name]; ok {
		return existing
	}
	c.folders[name] = id
	return id
}

func (c *Cache) Artist(name string) (uuid.UUID, bool) {
	c.artistsMu.Lock()
	defer c.artistsMu.Unlock()
	id, ok := c.artists[name]
	return id, ok
}

// StoreArtist records id for name. A freshly inserted artist gets an empty
// album sub-map allocated under its id.
func (c *Cache) StoreArtist(name string, id uuid.UUID) uuid.UUID {
	c.artistsMu.Lock()
	if existing, ok := c.artists[name]; ok {
		c.artistsMu.Unlock()
		return existing
	}
	c.artists[name] = id
	c.artistsMu.Unlock()

	c.albumsMu.Lock()
	if _, ok := c.albums[id]; !ok {
		c.albums[id] = make(map[string]uuid.UUID)
	}
	c.albumsMu.Unlock()
	return id
}

func (c *Cache) Album(artist uuid.UUID, name string) (uuid.UUID, bool) {
	c.albumsMu.Lock()
	defer c.albumsMu.Unlock()
	albums, ok := c.albums[artist]
	if !ok {
		return uuid.Nil, false
	}
	id, ok := albums[name]
	return id, ok
}

func (c *Cache) StoreAlbum(artist uuid.UUID, name string, id uuid.UUID) uuid.UUID {
	c.albumsMu.Lock()
	defer c.albumsMu.Unlock()
	albums, ok := c.albums[artist]
	if !ok {
		albums = make(map[string]uuid.UUID)
		c.albums[artist] = albums
	}
	if existing, ok := albums[name]; ok {
		return existing
	}
	albums[name] = id
	return id
}

func (c *Cache) Genre(name string) (uuid.UUID, bool) {
	c.genresMu.Lock()
	defer c.genresMu.Unlock()
	id, ok := c.genres[name]
	return id, ok
}

func (c *Cache) StoreGenre(name string, id uuid.UUID) uuid.UUID {
	c.genresMu.Lock()
	defer c.genresMu.Unlock()
	if existing, ok := c.genres[name]; ok {
		return existing
	}
	c.genres[name] = id
	return id
}

func (c *Cache) Keyword(name string) (uuid.UUID, bool) {
	c.keywordsMu.Lock()
	defer c.keywordsMu.Unlock()
	id, ok := c.keywords[name]
	return id, ok
}

func (c *Cache) StoreKeyword(name string, id uuid.UUID) uuid.UUID {
	c.keywordsMu.Lock()
	defer c.keywordsMu.Unlock()
	if existing, ok := c.keywords[name]; ok {
		return existing
	}
	c.keywords[name] = id
	return id
}
