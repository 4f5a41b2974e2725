package store

import "context"

// SoftClean deletes orphans in dependency order. Each step runs in its own
// transaction, so later steps see the previous step's result.
func (s *Store) SoftClean(ctx context.Context) (CleanCounts, error) {
	var counts CleanCounts
	steps := []struct {
		out   *int64
		query string
	}{
		{&counts.Musics, `DELETE FROM musics m
			WHERE NOT EXISTS (SELECT 1 FROM music_folders mf WHERE mf.music_id = m.id)`},
		{&counts.Albums, `DELETE FROM albums al
			WHERE NOT EXISTS (SELECT 1 FROM musics m WHERE m.album_id = al.id)`},
		{&counts.Artists, `DELETE FROM artists ar
			WHERE NOT EXISTS (SELECT 1 FROM albums al WHERE al.artist_id = ar.id)`},
		{&counts.Genres, `DELETE FROM genres g
			WHERE NOT EXISTS (SELECT 1 FROM musics m WHERE m.genre_id = g.id)`},
		{&counts.Keywords, `DELETE FROM keywords k
			WHERE NOT EXISTS (SELECT 1 FROM music_keywords mk WHERE mk.keyword_id = k.id)`},
	}
	for _, step := range steps {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return counts, err
		}
		tag, err := tx.Exec(ctx, step.query)
		if err != nil {
			tx.Rollback(ctx)
			return counts, err
		}
		if err := tx.Commit(ctx); err != nil {
			return counts, err
		}
		*step.out = tag.RowsAffected()
	}
	return counts, nil
}

// HardClean deletes every artist; the schema cascades through albums,
// musics and their links.
func (s *Store) HardClean(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM artists`)
	return err
}
