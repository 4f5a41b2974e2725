package store

import "github.com/google/uuid"

// FolderLink is one playable copy of a music: the folder it lives under plus
// the absolute file path carried on the link itself.
type FolderLink struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	IPv4     string `json:"ipv4"`
	Path     string `json:"path"`
}

// MusicRow is the music shape returned by the query layer, with its related
// names resolved and its folder links attached.
type MusicRow struct {
	Title    string       `json:"name"`
	Artist   string       `json:"artist_name"`
	Album    string       `json:"album_name"`
	Genre    string       `json:"genre_name"`
	Length   int64        `json:"length"`
	Size     int64        `json:"size"`
	Track    int64        `json:"track"`
	Rating   float64      `json:"rating"`
	Keywords []string     `json:"keywords_names"`
	Folders  []FolderLink `json:"folders"`
}

// Key is the playlist de-duplication identity.
func (m *MusicRow) Key() string {
	return m.Title + "\x00" + m.Artist + "\x00" + m.Album + "\x00" + m.Genre
}

// UpsertMusicParams feeds the upsert_music server-side procedure. All the
// referenced ids must already exist in this store.
type UpsertMusicParams struct {
	Title    string
	Album    uuid.UUID
	Genre    uuid.UUID
	Size     int64
	Length   int64
	Track    int64
	Rating   float64
	Keywords []uuid.UUID
	Folder   uuid.UUID
	Path     string
}

// FolderRow is one line of the folders listing.
type FolderRow struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	IPv4     string `json:"ipv4"`
	Musics   int64  `json:"n_musics"`
}

// StatsRow aggregates one folder's content.
type StatsRow struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	IPv4     string `json:"ipv4"`
	Musics   int64  `json:"n_musics"`
	Artists  int64  `json:"n_artists"`
	Albums   int64  `json:"n_albums"`
	Genres   int64  `json:"n_genres"`
	Keywords int64  `json:"n_keywords"`
	Size     int64  `json:"size"`
	Length   int64  `json:"length"`
}

// CleanCounts reports what a soft clean removed.
type CleanCounts struct {
	Musics   int64 `json:"musics_deleted"`
	Albums   int64 `json:"albums_deleted"`
	Artists  int64 `json:"artists_deleted"`
	Genres   int64 `json:"genres_deleted"`
	Keywords int64 `json:"keywords_deleted"`
}
