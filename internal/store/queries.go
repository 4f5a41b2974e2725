package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AdrienPensart/critical/internal/filter"
)

// musicSelect resolves one music row with its related names, aggregated
// keywords and folder links. The two aggregations run as subselects so they
// cannot multiply each other's rows.
const musicSelect = `
SELECT m.title, ar.name AS artist, al.name AS album, g.name AS genre,
       m.length, m.size, m.track, m.rating,
       (SELECT COALESCE(array_agg(k.name ORDER BY k.name), '{}')
          FROM music_keywords mk JOIN keywords k ON k.id = mk.keyword_id
         WHERE mk.music_id = m.id) AS keywords,
       (SELECT COALESCE(json_agg(json_build_object(
               'name', f.name, 'username', f.username, 'ipv4', f.ipv4, 'path', mf.path)
               ORDER BY mf.path), '[]')
          FROM music_folders mf JOIN folders f ON f.id = mf.folder_id
         WHERE mf.music_id = m.id) AS folders
FROM musics m
JOIN albums al ON al.id = m.album_id
JOIN artists ar ON ar.id = al.artist_id
JOIN genres g ON g.id = m.genre_id
`

// SelectMusics runs one filter against the graph: numeric bounds, the five
// regexes, the trigram pattern and the limit, ordered by artist, album,
// track, title.
func (s *Store) SelectMusics(ctx context.Context, f filter.Filter) ([]MusicRow, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, musicSelect+`
WHERE m.length BETWEEN $1 AND $2
  AND m.size BETWEEN $3 AND $4
  AND m.rating BETWEEN $5 AND $6
  AND ar.name ~ $7
  AND al.name ~ $8
  AND g.name ~ $9
  AND m.title ~ $10
  AND (SELECT COALESCE(string_agg(k.name, ' '), '')
         FROM music_keywords mk JOIN keywords k ON k.id = mk.keyword_id
        WHERE mk.music_id = m.id) ~ $11
  AND ($12 = '' OR m.title % $12)
ORDER BY ar.name, al.name, m.track, m.title
LIMIT $13`,
		f.MinLength, f.MaxLength, f.MinSize, f.MaxSize,
		f.MinRating.Float(), f.MaxRating.Float(),
		f.Artist, f.Album, f.Genre, f.Title, f.Keyword,
		f.Pattern, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMusics(rows)
}

// Search OR-matches one pattern case-insensitively against title, genre,
// album, artist and keywords.
func (s *Store) Search(ctx context.Context, pattern string) ([]MusicRow, error) {
	like := "%" + pattern + "%"
	rows, err := s.pool.Query(ctx, musicSelect+`
WHERE m.title ILIKE $1
   OR g.name ILIKE $1
   OR al.name ILIKE $1
   OR ar.name ILIKE $1
   OR EXISTS (SELECT 1 FROM music_keywords mk JOIN keywords k ON k.id = mk.keyword_id
               WHERE mk.music_id = m.id AND k.name ILIKE $1)
ORDER BY ar.name, al.name, m.track, m.title`,
		like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMusics(rows)
}

// Folders lists the scanned folders with their music counts.
func (s *Store) Folders(ctx context.Context) ([]FolderRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT f.name, f.username, f.ipv4,
       (SELECT COUNT(DISTINCT mf.music_id) FROM music_folders mf WHERE mf.folder_id = f.id)
FROM folders f
ORDER BY f.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FolderRow
	for rows.Next() {
		var r FolderRow
		if err := rows.Scan(&r.Name, &r.Username, &r.IPv4, &r.Musics); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats aggregates each folder's content.
func (s *Store) Stats(ctx context.Context) ([]StatsRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT f.name, f.username, f.ipv4,
       COUNT(DISTINCT m.id),
       COUNT(DISTINCT al.artist_id),
       COUNT(DISTINCT m.album_id),
       COUNT(DISTINCT m.genre_id),
       (SELECT COUNT(DISTINCT mk.keyword_id)
          FROM music_folders mf2
          JOIN music_keywords mk ON mk.music_id = mf2.music_id
         WHERE mf2.folder_id = f.id),
       COALESCE(SUM(m.size), 0),
       COALESCE(SUM(m.length), 0)
FROM folders f
LEFT JOIN music_folders mf ON mf.folder_id = f.id
LEFT JOIN musics m ON m.id = mf.music_id
LEFT JOIN albums al ON al.id = m.album_id
GROUP BY f.id, f.name, f.username, f.ipv4
ORDER BY f.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatsRow
	for rows.Next() {
		var r StatsRow
		if err := rows.Scan(&r.Name, &r.Username, &r.IPv4,
			&r.Musics, &r.Artists, &r.Albums, &r.Genres, &r.Keywords,
			&r.Size, &r.Length); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMusics(rows pgx.Rows) ([]MusicRow, error) {
	var out []MusicRow
	for rows.Next() {
		var m MusicRow
		var folders []byte
		if err := rows.Scan(&m.Title, &m.Artist, &m.Album, &m.Genre,
			&m.Length, &m.Size, &m.Track, &m.Rating, &m.Keywords, &folders); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(folders, &m.Folders); err != nil {
			return nil, fmt.Errorf("decode folder links: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
