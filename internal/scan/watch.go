package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/google/uuid"
)

// watch keeps the scan alive after the initial pass, re-processing files as
// they appear or change under the roots. New directories are added to the
// watcher as they show up.
func watch(ctx context.Context, sc *Context, roots []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	folders := make(map[string]watchedFolder, len(roots))
	for _, root := range roots {
		folder := &Folder{Name: root, Username: sc.Username, IPv4: sc.IPv4}
		folderEmb := folder.UpsertEmbedded(sc)
		folderExt, err := folder.UpsertExternal(ctx, sc)
		if err != nil {
			return err
		}
		folders[root] = watchedFolder{folder: folder, ext: folderExt, emb: folderEmb}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr == nil && d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
				_ = watcher.Add(path)
			}
			return nil
		})
	}
	slog.Info("watching", "folders", len(folders))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := handleEvent(ctx, sc, watcher, folders, event.Name); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "err", err)
		}
	}
}

type watchedFolder struct {
	folder *Folder
	ext    uuid.UUID
	emb    uuid.UUID
}

func handleEvent(ctx context.Context, sc *Context, watcher *fsnotify.Watcher, folders map[string]watchedFolder, path string) error {
	root, ok := rootOf(folders, path)
	if !ok {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac", ".mp3":
	default:
		// Could be a fresh directory: start watching it.
		_ = watcher.Add(path)
		return nil
	}
	wf := folders[root]
	if err := processFile(ctx, sc, wf.folder, wf.ext, wf.emb, path); err != nil {
		return err
	}
	if !sc.Dry && sc.Emb != nil {
		if err := sc.Emb.Sync(sc.DatastorePath); err != nil {
			slog.Warn("snapshot failed", "err", err)
		}
	}
	return nil
}

func rootOf(folders map[string]watchedFolder, path string) (string, bool) {
	for root := range folders {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return root, true
		}
	}
	return "", false
}
