// Package store is the external graph database client. Entities are written
// through server-side upsert_* procedures that insert-or-select by natural
// identity, so re-running a scan never duplicates rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the connection pool. The handle is clone-safe and shared by
// all scan workers.
type Store struct {
	pool *pgxpool.Pool
}

// Connect connects to the database behind dsn and returns a Store. The
// musicdb:// scheme of the default DSN is accepted and normalized.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, NormalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect %q: %w", dsn, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %q: %w", dsn, err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// NormalizeDSN rewrites the CLI's musicdb:// DSN form into the driver's
// native one.
func NormalizeDSN(dsn string) string {
	dsn = strings.Replace(dsn, "musicdb://", "postgres://", 1)
	dsn = strings.Replace(dsn, "tls_security=insecure", "sslmode=disable", 1)
	return dsn
}

// IsTransient reports whether err is a serialization conflict that is safe
// to retry. Nothing else qualifies.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	// SQLSTATE 40001 = serialization_failure.
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// UpsertFolder inserts-or-selects a folder by its (name, username, ipv4)
// identity and returns its id.
func (s *Store) UpsertFolder(ctx context.Context, name, username, ipv4 string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT upsert_folder($1, $2, $3)`, name, username, ipv4).Scan(&id)
	return id, err
}

// UpsertArtist inserts-or-selects an artist by name.
func (s *Store) UpsertArtist(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT upsert_artist($1)`, name).Scan(&id)
	return id, err
}

// UpsertAlbum inserts-or-selects an album by (name, artist).
func (s *Store) UpsertAlbum(ctx context.Context, name string, artist uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT upsert_album($1, $2)`, name, artist).Scan(&id)
	return id, err
}

// UpsertGenre inserts-or-selects a genre by name.
func (s *Store) UpsertGenre(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT upsert_genre($1)`, name).Scan(&id)
	return id, err
}

// UpsertKeyword inserts-or-selects a keyword by name.
func (s *Store) UpsertKeyword(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT upsert_keyword($1)`, name).Scan(&id)
	return id, err
}

// UpsertMusic inserts-or-selects a music by (title, album), refreshes its
// non-identifying fields and union-adds the folder link and keywords.
func (s *Store) UpsertMusic(ctx context.Context, p UpsertMusicParams) (uuid.UUID, error) {
	keywords := make([]string, len(p.Keywords))
	for i, k := range p.Keywords {
		keywords[i] = k.String()
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT upsert_music($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.Title, p.Album, p.Genre, p.Size, p.Length, p.Track, p.Rating, keywords, p.Folder, p.Path,
	).Scan(&id)
	return id, err
}

// RemovePath deletes the folder links carrying exactly this path. Musics
// left without links stay behind as orphans for soft clean.
func (s *Store) RemovePath(ctx context.Context, path string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM music_folders WHERE path = $1`, path)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
