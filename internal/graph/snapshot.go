package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// Snapshot framing: an 8-byte magic, then a gzip stream holding one JSON
// document. The magic keeps us from feeding an arbitrary file to the loader.
var snapshotMagic = []byte("CRITGRPH")

const snapshotVersion = 1

type snapshot struct {
	Version  int               `json:"version"`
	Vertices []*Vertex         `json:"vertices"`
	Edges    []*Edge           `json:"edges"`
	Index    map[string]string `json:"index"`
}

// Sync writes the whole graph to path, overwriting any prior snapshot. The
// write goes through a temp file and rename so a crash never truncates the
// previous snapshot.
func (g *Graph) Sync(path string) error {
	g.mu.RLock()
	snap := snapshot{
		Version: snapshotVersion,
		Index:   make(map[string]string, len(g.index)),
	}
	for _, v := range g.vertices {
		snap.Vertices = append(snap.Vertices, v)
	}
	for _, e := range g.edges {
		snap.Edges = append(snap.Edges, e)
	}
	for k, id := range g.index {
		snap.Index[k] = id.String()
	}
	g.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create datastore dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".datastore-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(snapshotMagic); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load replaces the graph content with the snapshot at path. A missing file
// is not an error: the graph starts empty.
func (g *Graph) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open datastore %q: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("read datastore %q: %w", path, err)
	}
	if !bytes.Equal(magic, snapshotMagic) {
		return fmt.Errorf("datastore %q: not a graph snapshot", path)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompress datastore %q: %w", path, err)
	}
	defer zr.Close()

	var snap snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return fmt.Errorf("decode datastore %q: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("datastore %q: unsupported snapshot version %d", path, snap.Version)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.vertices = make(map[uuid.UUID]*Vertex, len(snap.Vertices))
	for _, v := range snap.Vertices {
		g.vertices[v.ID] = v
	}
	g.edges = make(map[string]*Edge, len(snap.Edges))
	for _, e := range snap.Edges {
		g.edges[edgeKey(e.Out, e.Type, e.In, e.Props["path"])] = e
	}
	g.index = make(map[string]uuid.UUID, len(snap.Index))
	for k, raw := range snap.Index {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("datastore %q: bad index id %q: %w", path, raw, err)
		}
		g.index[k] = id
	}
	return nil
}
