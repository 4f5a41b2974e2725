package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/graph"
	"github.com/AdrienPensart/critical/internal/store"
)

// stubStore implements External in memory with natural-key semantics, and
// can be armed to fail with transient serialization errors.
type stubStore struct {
	mu        sync.Mutex
	transient int // upsert calls to fail before succeeding

	folders  map[string]uuid.UUID
	artists  map[string]uuid.UUID
	albums   map[string]uuid.UUID
	genres   map[string]uuid.UUID
	keywords map[string]uuid.UUID
	musics   map[string]*stubMusic
}

type stubMusic struct {
	id       uuid.UUID
	links    map[string]bool
	keywords map[uuid.UUID]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		folders:  make(map[string]uuid.UUID),
		artists:  make(map[string]uuid.UUID),
		albums:   make(map[string]uuid.UUID),
		genres:   make(map[string]uuid.UUID),
		keywords: make(map[string]uuid.UUID),
		musics:   make(map[string]*stubMusic),
	}
}

func (s *stubStore) maybeFail() error {
	if s.transient > 0 {
		s.transient--
		return &pgconn.PgError{Code: "40001"}
	}
	return nil
}

func (s *stubStore) upsertNamed(m map[string]uuid.UUID, key string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return uuid.Nil, err
	}
	if id, ok := m[key]; ok {
		return id, nil
	}
	id := uuid.New()
	m[key] = id
	return id, nil
}

func (s *stubStore) UpsertFolder(_ context.Context, name, username, ipv4 string) (uuid.UUID, error) {
	return s.upsertNamed(s.folders, name+"\x00"+username+"\x00"+ipv4)
}

func (s *stubStore) UpsertArtist(_ context.Context, name string) (uuid.UUID, error) {
	return s.upsertNamed(s.artists, name)
}

func (s *stubStore) UpsertAlbum(_ context.Context, name string, artist uuid.UUID) (uuid.UUID, error) {
	return s.upsertNamed(s.albums, name+"\x00"+artist.String())
}

func (s *stubStore) UpsertGenre(_ context.Context, name string) (uuid.UUID, error) {
	return s.upsertNamed(s.genres, name)
}

func (s *stubStore) UpsertKeyword(_ context.Context, name string) (uuid.UUID, error) {
	return s.upsertNamed(s.keywords, name)
}

func (s *stubStore) UpsertMusic(_ context.Context, p store.UpsertMusicParams) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return uuid.Nil, err
	}
	key := p.Title + "\x00" + p.Album.String()
	m, ok := s.musics[key]
	if !ok {
		m = &stubMusic{id: uuid.New(), links: make(map[string]bool), keywords: make(map[uuid.UUID]bool)}
		s.musics[key] = m
	}
	m.links[p.Path] = true
	for _, k := range p.Keywords {
		m.keywords[k] = true
	}
	return m.id, nil
}

func (s *stubStore) HardClean(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artists = make(map[string]uuid.UUID)
	s.albums = make(map[string]uuid.UUID)
	s.musics = make(map[string]*stubMusic)
	return nil
}

func newTestContext(ext External, datastore string) *Context {
	return &Context{
		Ext:           ext,
		Emb:           graph.New(),
		Cache:         NewCache(),
		Retries:       3,
		Workers:       2,
		DatastorePath: datastore,
		Username:      "u",
		IPv4:          "1.2.3.4",
	}
}

// writeMp3 drops an MP3 with the given tags under dir and returns its path.
func writeMp3(t *testing.T, dir, name, artist, album, title, genre, fmpsRating, comment string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	tag.SetArtist(artist)
	tag.SetAlbum(album)
	tag.SetTitle(title)
	tag.SetGenre(genre)
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, "3")
	if fmpsRating != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: "FMPS_Rating",
			Value:       fmpsRating,
		})
	}
	if comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     comment,
		})
	}
	if err := tag.Save(); err != nil {
		t.Fatal(err)
	}
	tag.Close()
	return path
}

func TestRetryOnTransient(t *testing.T) {
	ext := newStubStore()
	ext.transient = 2 // fail twice, succeed on the third of three attempts
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))

	artist := &Artist{Name: "A"}
	id, err := artist.UpsertExternal(context.Background(), sc, "/r/a.mp3")
	if err != nil {
		t.Fatalf("UpsertExternal: %v", err)
	}
	if id == uuid.Nil {
		t.Error("nil id on success")
	}
	if got := sc.Cache.Errors.Load(); got != 2 {
		t.Errorf("error counter = %d, want 2", got)
	}
}

func TestRetryExhaustion(t *testing.T) {
	ext := newStubStore()
	ext.transient = 5 // more failures than the budget of 3
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))

	artist := &Artist{Name: "A"}
	_, err := artist.UpsertExternal(context.Background(), sc, "/r/a.mp3")
	var upsert *errs.UpsertError
	if !errors.As(err, &upsert) {
		t.Fatalf("err = %v, want UpsertError", err)
	}
	if upsert.Path != "/r/a.mp3" || upsert.Object != "A" {
		t.Errorf("UpsertError fields = %q/%q", upsert.Path, upsert.Object)
	}
	if got := sc.Cache.Errors.Load(); got != 3 {
		t.Errorf("error counter = %d, want 3", got)
	}
}

func TestNonTransientIsFatal(t *testing.T) {
	ext := newStubStore()
	sc := newTestContext(failingStore{ext}, filepath.Join(t.TempDir(), "ds"))

	artist := &Artist{Name: "A"}
	_, err := artist.UpsertExternal(context.Background(), sc, "/r/a.mp3")
	var storeErr *errs.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if got := sc.Cache.Errors.Load(); got != 0 {
		t.Errorf("error counter = %d, want 0", got)
	}
}

// failingStore returns a permanent error from every artist upsert.
type failingStore struct{ *stubStore }

func (failingStore) UpsertArtist(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, &pgconn.PgError{Code: "23505"}
}

func TestScanIdempotence(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "song.mp3", "A", "B", "T", "G", "0.9", "live bootleg")

	ext := newStubStore()
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))
	opts := Options{Roots: []string{root}}

	if err := Run(context.Background(), sc, opts); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if len(ext.musics) != 1 || len(ext.artists) != 1 || len(ext.albums) != 1 ||
		len(ext.genres) != 1 || len(ext.keywords) != 2 || len(ext.folders) != 1 {
		t.Fatalf("counts after first scan: %d musics, %d artists, %d albums, %d genres, %d keywords, %d folders",
			len(ext.musics), len(ext.artists), len(ext.albums), len(ext.genres), len(ext.keywords), len(ext.folders))
	}

	// Second scan with a fresh cache against the same stores.
	sc2 := newTestContext(ext, sc.DatastorePath)
	sc2.Emb = sc.Emb
	if err := Run(context.Background(), sc2, opts); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(ext.musics) != 1 || len(ext.artists) != 1 {
		t.Errorf("counts changed on rescan: %d musics, %d artists", len(ext.musics), len(ext.artists))
	}
	for _, m := range ext.musics {
		if len(m.links) != 1 {
			t.Errorf("folder links = %d, want 1", len(m.links))
		}
	}
	if n := sc.Emb.Count(graph.TypeMusic); n != 1 {
		t.Errorf("embedded musics = %d", n)
	}
	if n := sc.Emb.EdgeCount(graph.EdgeInFolder); n != 1 {
		t.Errorf("embedded folder links = %d", n)
	}
}

func TestScanCrossRootLinkUnion(t *testing.T) {
	r1, r2 := t.TempDir(), t.TempDir()
	writeMp3(t, r1, "a.mp3", "A", "B", "T", "G", "", "")
	writeMp3(t, r2, "a.mp3", "A", "B", "T", "G", "", "")

	ext := newStubStore()
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))
	if err := Run(context.Background(), sc, Options{Roots: []string{r1, r2}}); err != nil {
		t.Fatal(err)
	}
	if len(ext.musics) != 1 {
		t.Fatalf("musics = %d, want 1", len(ext.musics))
	}
	for _, m := range ext.musics {
		if len(m.links) != 2 {
			t.Errorf("folder links = %d, want 2", len(m.links))
		}
	}
	if len(ext.folders) != 2 {
		t.Errorf("folders = %d, want 2", len(ext.folders))
	}
	if n := sc.Emb.EdgeCount(graph.EdgeInFolder); n != 2 {
		t.Errorf("embedded links = %d, want 2", n)
	}
}

func TestScanSkipsDuplicateKeywords(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "dup.mp3", "A", "B", "T", "G", "", "live live")

	ext := newStubStore()
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))
	if err := Run(context.Background(), sc, Options{Roots: []string{root}}); err != nil {
		t.Fatal(err)
	}
	if len(ext.musics) != 0 {
		t.Errorf("musics = %d, want 0 (duplicate keywords rejected)", len(ext.musics))
	}
}

func TestScanSkipsInvalidRating(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "bad.mp3", "A", "B", "T", "G", "0.7", "")
	writeMp3(t, root, "good.mp3", "A", "B", "T2", "G", "0.8", "")

	ext := newStubStore()
	sc := newTestContext(ext, filepath.Join(t.TempDir(), "ds"))
	if err := Run(context.Background(), sc, Options{Roots: []string{root}}); err != nil {
		t.Fatal(err)
	}
	if len(ext.musics) != 1 {
		t.Errorf("musics = %d, want only the valid one", len(ext.musics))
	}
}

func TestDryScanDoesNotSnapshot(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "song.mp3", "A", "B", "T", "G", "", "")

	datastore := filepath.Join(t.TempDir(), "ds")
	ext := newStubStore()
	sc := newTestContext(ext, datastore)
	sc.Dry = true
	if err := Run(context.Background(), sc, Options{Roots: []string{root}}); err != nil {
		t.Fatal(err)
	}
	// Upserts still ran against the live stores...
	if len(ext.musics) != 1 {
		t.Errorf("musics = %d, want 1", len(ext.musics))
	}
	// ...but nothing was synced to disk.
	if _, err := os.Stat(datastore); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("snapshot written in dry mode: %v", err)
	}
}

func TestScanSnapshotWritten(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "song.mp3", "A", "B", "T", "G", "", "")

	datastore := filepath.Join(t.TempDir(), "ds")
	sc := newTestContext(newStubStore(), datastore)
	if err := Run(context.Background(), sc, Options{Roots: []string{root}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(datastore); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}

	loaded := graph.New()
	if err := loaded.Load(datastore); err != nil {
		t.Fatal(err)
	}
	if n := loaded.Count(graph.TypeMusic); n != 1 {
		t.Errorf("loaded musics = %d", n)
	}
}

func TestEnumerateSkipsHiddenAndForeign(t *testing.T) {
	root := t.TempDir()
	writeMp3(t, root, "keep.mp3", "A", "B", "T", "G", "", "")
	if err := os.WriteFile(filepath.Join(root, ".hidden.mp3"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "cover.jpg"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".git", "x.mp3"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := enumerate(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "keep.mp3" {
		t.Errorf("files = %v", files)
	}

	if _, err := enumerate(files[0]); err == nil {
		t.Error("non-directory root accepted")
	}
}

func TestNoExternalSynthesizesIDs(t *testing.T) {
	sc := newTestContext(nil, filepath.Join(t.TempDir(), "ds"))
	artist := &Artist{Name: "A"}
	a, err := artist.UpsertExternal(context.Background(), sc, "p")
	if err != nil {
		t.Fatal(err)
	}
	b, err := artist.UpsertExternal(context.Background(), sc, "p")
	if err != nil {
		t.Fatal(err)
	}
	if a == uuid.Nil || b == uuid.Nil {
		t.Error("synthetic id is nil")
	}
	if a == b {
		t.Error("synthetic ids should be fresh per call")
	}
}
