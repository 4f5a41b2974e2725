package scan

import (
	"context"

	"github.com/google/uuid"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/graph"
	"github.com/AdrienPensart/critical/internal/rating"
	"github.com/AdrienPensart/critical/internal/store"
)

// External is the slice of the external store the scan engine drives. Tests
// substitute a stub.
type External interface {
	UpsertFolder(ctx context.Context, name, username, ipv4 string) (uuid.UUID, error)
	UpsertArtist(ctx context.Context, name string) (uuid.UUID, error)
	UpsertAlbum(ctx context.Context, name string, artist uuid.UUID) (uuid.UUID, error)
	UpsertGenre(ctx context.Context, name string) (uuid.UUID, error)
	UpsertKeyword(ctx context.Context, name string) (uuid.UUID, error)
	UpsertMusic(ctx context.Context, p store.UpsertMusicParams) (uuid.UUID, error)
	HardClean(ctx context.Context) error
}

// retryUpsert drives one upsert closure under the transient-retry contract:
// only serialization conflicts are retried, each one bumps the shared error
// counter, and exhausting the budget yields UpsertError. Any other store
// failure is fatal.
func (sc *Context) retryUpsert(ctx context.Context, path, object string, fn func(context.Context) (uuid.UUID, error)) (uuid.UUID, error) {
	for attempt := 0; attempt < sc.Retries; attempt++ {
		id, err := fn(ctx)
		if err == nil {
			return id, nil
		}
		if !store.IsTransient(err) {
			return uuid.Nil, &errs.StoreError{Object: object, Err: err}
		}
		sc.Cache.Errors.Add(1)
	}
	return uuid.Nil, &errs.UpsertError{Path: path, Object: object}
}

// Folder is one scan root plus the origin machine identity.
type Folder struct {
	Name     string
	Username string
	IPv4     string
}

func (f *Folder) UpsertExternal(ctx context.Context, sc *Context) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	if id, ok := sc.Cache.Folder(f.Name); ok {
		return id, nil
	}
	id, err := sc.retryUpsert(ctx, f.Name, f.Name, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertFolder(ctx, f.Name, f.Username, f.IPv4)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sc.Cache.StoreFolder(f.Name, id), nil
}

func (f *Folder) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertFolder(f.Name, f.Username, f.IPv4)
}

type Artist struct {
	Name string
}

func (a *Artist) UpsertExternal(ctx context.Context, sc *Context, path string) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	if id, ok := sc.Cache.Artist(a.Name); ok {
		return id, nil
	}
	id, err := sc.retryUpsert(ctx, path, a.Name, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertArtist(ctx, a.Name)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sc.Cache.StoreArtist(a.Name, id), nil
}

func (a *Artist) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertArtist(a.Name)
}

// Album is keyed by (name, artist); it carries the artist ids of both
// stores so each side links to its own parent.
type Album struct {
	Name      string
	ArtistExt uuid.UUID
	ArtistEmb uuid.UUID
}

func (a *Album) UpsertExternal(ctx context.Context, sc *Context, path string) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	if id, ok := sc.Cache.Album(a.ArtistExt, a.Name); ok {
		return id, nil
	}
	id, err := sc.retryUpsert(ctx, path, a.Name, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertAlbum(ctx, a.Name, a.ArtistExt)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sc.Cache.StoreAlbum(a.ArtistExt, a.Name, id), nil
}

func (a *Album) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertAlbum(a.Name, a.ArtistEmb)
}

type Genre struct {
	Name string
}

func (g *Genre) UpsertExternal(ctx context.Context, sc *Context, path string) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	if id, ok := sc.Cache.Genre(g.Name); ok {
		return id, nil
	}
	id, err := sc.retryUpsert(ctx, path, g.Name, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertGenre(ctx, g.Name)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sc.Cache.StoreGenre(g.Name, id), nil
}

func (g *Genre) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertGenre(g.Name)
}

type Keyword struct {
	Name string
}

func (k *Keyword) UpsertExternal(ctx context.Context, sc *Context, path string) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	if id, ok := sc.Cache.Keyword(k.Name); ok {
		return id, nil
	}
	id, err := sc.retryUpsert(ctx, path, k.Name, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertKeyword(ctx, k.Name)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sc.Cache.StoreKeyword(k.Name, id), nil
}

func (k *Keyword) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertKeyword(k.Name)
}

// Music holds the parsed file fields plus the parent ids of both stores, so
// it can produce its edges in each one.
type Music struct {
	Title  string
	Path   string
	Size   int64
	Length int64
	Track  int64
	Rating rating.Rating

	FolderExt   uuid.UUID
	AlbumExt    uuid.UUID
	GenreExt    uuid.UUID
	KeywordsExt []uuid.UUID

	FolderEmb   uuid.UUID
	AlbumEmb    uuid.UUID
	GenreEmb    uuid.UUID
	KeywordsEmb []uuid.UUID
}

func (m *Music) UpsertExternal(ctx context.Context, sc *Context) (uuid.UUID, error) {
	if sc.Ext == nil {
		return uuid.New(), nil
	}
	return sc.retryUpsert(ctx, m.Path, m.Path, func(ctx context.Context) (uuid.UUID, error) {
		return sc.Ext.UpsertMusic(ctx, store.UpsertMusicParams{
			Title:    m.Title,
			Album:    m.AlbumExt,
			Genre:    m.GenreExt,
			Size:     m.Size,
			Length:   m.Length,
			Track:    m.Track,
			Rating:   m.Rating.Float(),
			Keywords: m.KeywordsExt,
			Folder:   m.FolderExt,
			Path:     m.Path,
		})
	})
}

func (m *Music) UpsertEmbedded(sc *Context) uuid.UUID {
	if sc.Emb == nil {
		return uuid.New()
	}
	return sc.Emb.UpsertMusic(graph.MusicParams{
		Title:    m.Title,
		Size:     m.Size,
		Length:   m.Length,
		Track:    m.Track,
		Rating:   m.Rating.Float(),
		Path:     m.Path,
		Album:    m.AlbumEmb,
		Genre:    m.GenreEmb,
		Folder:   m.FolderEmb,
		Keywords: m.KeywordsEmb,
	})
}
