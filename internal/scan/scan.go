// Package scan walks directory trees, parses audio tags and feeds the
// resulting entities into both stores.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/graph"
	"github.com/AdrienPensart/critical/internal/mfile"
	"github.com/AdrienPensart/critical/internal/probe"
)

// Context carries the shared state of one scan: the two store handles, the
// upsert cache and the origin identity. Ext and Emb may be nil when the
// matching back-end is disabled.
type Context struct {
	Ext   External
	Emb   *graph.Graph
	Cache *Cache

	Retries       int
	Workers       int
	Dry           bool
	DatastorePath string

	// ProbeEndpoint overrides the public-IP probe target; tests point it at
	// a local server. Username and IPv4 are resolved by Run when empty.
	ProbeEndpoint string
	Username      string
	IPv4          string
}

// Options are the per-invocation scan arguments.
type Options struct {
	Roots []string
	Clean bool
	Watch bool
}

// Run executes one full scan over opts.Roots. Per-file failures are logged
// and skipped; store failures other than transient serialization conflicts
// abort the run.
func Run(ctx context.Context, sc *Context, opts Options) error {
	if opts.Clean && !sc.Dry {
		if sc.Ext != nil {
			if err := sc.Ext.HardClean(ctx); err != nil {
				return fmt.Errorf("hard clean: %w", err)
			}
		}
		if sc.Emb != nil {
			sc.Emb.HardClean()
		}
	}

	if sc.Emb != nil {
		sc.Emb.DeclareIndexes()
	}

	if sc.IPv4 == "" {
		ip, err := probe.PublicIP(ctx, sc.ProbeEndpoint)
		if err != nil {
			return err
		}
		sc.IPv4 = ip
	}
	if sc.Username == "" {
		sc.Username = probe.Username()
	}

	// Enumerate everything up front so progress has a stable denominator.
	paths := make(map[string][]string)
	total := 0
	for _, root := range opts.Roots {
		files, err := enumerate(root)
		if err != nil {
			slog.Error("enumerate failed", "folder", root, "err", err)
			continue
		}
		paths[root] = files
		total += len(files)
	}
	slog.Info("scan starting", "folders", len(paths), "files", total)

	var seen atomic.Uint64
	for _, root := range opts.Roots {
		files, ok := paths[root]
		if !ok {
			continue
		}
		folder := &Folder{Name: root, Username: sc.Username, IPv4: sc.IPv4}
		folderEmb := folder.UpsertEmbedded(sc)
		folderExt, err := folder.UpsertExternal(ctx, sc)
		if err != nil {
			return err
		}
		if err := scanFolder(ctx, sc, folder, folderExt, folderEmb, files, &seen, total); err != nil {
			return err
		}
	}

	slog.Info("scan complete",
		"files", seen.Load(),
		"transient_errors", sc.Cache.Errors.Load())

	if !sc.Dry && sc.Emb != nil {
		if err := sc.Emb.Sync(sc.DatastorePath); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}

	if opts.Watch {
		return watch(ctx, sc, opts.Roots)
	}
	return nil
}

// scanFolder fans the folder's files out to a bounded worker pool. Within a
// file the six upserts stay strictly sequential; across files only the
// caches order anything.
func scanFolder(ctx context.Context, sc *Context, folder *Folder, folderExt, folderEmb uuid.UUID, files []string, seen *atomic.Uint64, total int) error {
	workers := sc.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatal error
	var fatalOnce sync.Once
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	pathCh := make(chan string, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathCh {
				count := seen.Add(1)
				if err := processFile(ctx, sc, folder, folderExt, folderEmb, path); err != nil {
					fail(err)
					return
				}
				slog.Debug("progress", "done", count, "total", total)
			}
		}()
	}

feed:
	for _, path := range files {
		select {
		case pathCh <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(pathCh)
	wg.Wait()
	return fatal
}

// processFile runs one file through parse, canonicalize and the six ordered
// upserts. A nil return covers both success and a logged per-file skip; a
// non-nil return aborts the whole scan.
func processFile(ctx context.Context, sc *Context, folder *Folder, folderExt, folderEmb uuid.UUID, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".jpg":
		return nil
	case ".flac", ".mp3":
	default:
		slog.Warn("unsupported format", "path", path)
		return nil
	}

	music, err := mfile.Open(folder.Name, path)
	if err != nil {
		slog.Warn("tag parse failed", "path", path, "err", err)
		return nil
	}

	keywords := music.Keywords()
	if !uniqueStrings(keywords) {
		slog.Warn("music has duplicated keywords", "path", path, "keywords", strings.Join(keywords, ", "))
		return nil
	}

	musicRating, err := music.Rating()
	if err != nil {
		slog.Warn("invalid rating", "path", path, "err", err)
		return nil
	}
	size, err := music.Size()
	if err != nil {
		slog.Warn("stat failed", "path", path, "err", err)
		return nil
	}

	artist := &Artist{Name: music.Artist()}
	artistEmb := artist.UpsertEmbedded(sc)
	artistExt, err := artist.UpsertExternal(ctx, sc, path)
	if err != nil {
		return skipOrAbort(err, path)
	}

	album := &Album{Name: music.Album(), ArtistExt: artistExt, ArtistEmb: artistEmb}
	albumEmb := album.UpsertEmbedded(sc)
	albumExt, err := album.UpsertExternal(ctx, sc, path)
	if err != nil {
		return skipOrAbort(err, path)
	}

	genre := &Genre{Name: music.Genre()}
	genreEmb := genre.UpsertEmbedded(sc)
	genreExt, err := genre.UpsertExternal(ctx, sc, path)
	if err != nil {
		return skipOrAbort(err, path)
	}

	var keywordsExt, keywordsEmb []uuid.UUID
	for _, name := range keywords {
		keyword := &Keyword{Name: name}
		keywordsEmb = append(keywordsEmb, keyword.UpsertEmbedded(sc))
		id, err := keyword.UpsertExternal(ctx, sc, path)
		if err != nil {
			return skipOrAbort(err, path)
		}
		keywordsExt = append(keywordsExt, id)
	}

	record := &Music{
		Title:  music.Title(),
		Path:   path,
		Size:   size,
		Length: music.Length(),
		Track:  music.Track(),
		Rating: musicRating,

		FolderExt:   folderExt,
		AlbumExt:    albumExt,
		GenreExt:    genreExt,
		KeywordsExt: keywordsExt,

		FolderEmb:   folderEmb,
		AlbumEmb:    albumEmb,
		GenreEmb:    genreEmb,
		KeywordsEmb: keywordsEmb,
	}
	record.UpsertEmbedded(sc)
	if _, err := record.UpsertExternal(ctx, sc); err != nil {
		return skipOrAbort(err, path)
	}
	return nil
}

// skipOrAbort keeps retry exhaustion local to the file and escalates
// everything else.
func skipOrAbort(err error, path string) error {
	var upsert *errs.UpsertError
	if errors.As(err, &upsert) {
		slog.Warn("upsert retries exhausted", "path", path, "object", upsert.Object)
		return nil
	}
	return err
}

// enumerate walks root without following symlinks, skipping dotfiles and
// dot-directories, and returns the regular .flac/.mp3 files found.
func enumerate(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s : path is not a directory", root)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("walk error", "path", path, "err", walkErr)
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".flac", ".mp3":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// uniqueStrings reports whether every element occurs once.
func uniqueStrings(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}
