package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AdrienPensart/critical/internal/config"
	"github.com/AdrienPensart/critical/internal/filter"
	"github.com/AdrienPensart/critical/internal/playlist"
	"github.com/AdrienPensart/critical/internal/rating"
	"github.com/AdrienPensart/critical/internal/scan"
	"github.com/AdrienPensart/critical/internal/shazam"
	"github.com/AdrienPensart/critical/internal/store"
)

// filterFlags binds one Filter to a command's flag set, plus the repeatable
// --filter key=value strings for independent extra filters. A --filter value
// matching a named default (best-4.0, no-artist, ...) selects that filter.
type filterFlags struct {
	base      filter.Filter
	minRating float64
	maxRating float64
	extra     []string
}

func (ff *filterFlags) register(flags *pflag.FlagSet) {
	ff.base = filter.Default()
	flags.Int64Var(&ff.base.MinLength, "min-length", ff.base.MinLength, "Minimum length in seconds")
	flags.Int64Var(&ff.base.MaxLength, "max-length", ff.base.MaxLength, "Maximum length in seconds")
	flags.Int64Var(&ff.base.MinSize, "min-size", ff.base.MinSize, "Minimum size in bytes")
	flags.Int64Var(&ff.base.MaxSize, "max-size", ff.base.MaxSize, "Maximum size in bytes")
	flags.Float64Var(&ff.minRating, "min-rating", 0.0, "Minimum rating")
	flags.Float64Var(&ff.maxRating, "max-rating", 5.0, "Maximum rating")
	flags.StringVar(&ff.base.Artist, "artist", ff.base.Artist, "Artist regex")
	flags.StringVar(&ff.base.Album, "album", ff.base.Album, "Album regex")
	flags.StringVar(&ff.base.Genre, "genre", ff.base.Genre, "Genre regex")
	flags.StringVar(&ff.base.Title, "title", ff.base.Title, "Title regex")
	flags.StringVar(&ff.base.Keyword, "keyword", ff.base.Keyword, "Keyword regex")
	flags.StringVar(&ff.base.Pattern, "pattern", ff.base.Pattern, "Trigram pattern on title")
	flags.Int64Var(&ff.base.Limit, "limit", ff.base.Limit, "Result limit")
	flags.StringArrayVar(&ff.extra, "filter", nil, "Extra filter (key=value,... or a named filter); repeatable")
}

// all resolves the flag values into the list of independent filters to run.
func (ff *filterFlags) all() ([]filter.Filter, error) {
	minR, err := rating.FromFloat("", ff.minRating)
	if err != nil {
		return nil, err
	}
	maxR, err := rating.FromFloat("", ff.maxRating)
	if err != nil {
		return nil, err
	}
	ff.base.MinRating = minR
	ff.base.MaxRating = maxR
	if err := ff.base.Validate(); err != nil {
		return nil, err
	}

	var filters []filter.Filter
	for _, raw := range ff.extra {
		if named, ok := filter.Defaults[raw]; ok {
			filters = append(filters, named)
			continue
		}
		f, err := filter.Parse(raw)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(filters) == 0 || ff.base != filter.Default() {
		filters = append(filters, ff.base)
	}
	return filters, nil
}

// playlistFlags binds the ordering, link and output options.
type playlistFlags struct {
	kinds      []string
	relative   bool
	interleave bool
	shuffle    bool
	output     string
	out        string
}

func (pf *playlistFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&pf.kinds, "kind", nil, "Link kinds: local, remote, local-ssh, remote-ssh, local-http, remote-http, all")
	flags.BoolVar(&pf.relative, "relative", false, "Relativize paths against the folder root")
	flags.BoolVar(&pf.interleave, "interleave", false, "Space same-artist musics out evenly")
	flags.BoolVar(&pf.shuffle, "shuffle", false, "Shuffle the playlist")
	flags.StringVar(&pf.output, "output", string(playlist.FormatM3U), "Output format: m3u, json or table")
	flags.StringVar(&pf.out, "out", "", "Write to this path instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("interleave", "shuffle")
}

func (pf *playlistFlags) options() (playlist.Options, playlist.OutputOptions, error) {
	var kinds []playlist.Kind
	for _, raw := range pf.kinds {
		kind, err := playlist.ParseKind(raw)
		if err != nil {
			return playlist.Options{}, playlist.OutputOptions{}, err
		}
		kinds = append(kinds, kind)
	}
	format, err := playlist.ParseFormat(pf.output)
	if err != nil {
		return playlist.Options{}, playlist.OutputOptions{}, err
	}
	opts := playlist.Options{
		Kinds:      kinds,
		Relative:   pf.relative,
		Interleave: pf.interleave,
		Shuffle:    pf.shuffle,
	}
	return opts, playlist.OutputOptions{Format: format, Out: pf.out}, nil
}

// selectMusics unions the results of every filter and de-duplicates them.
func selectMusics(ctx context.Context, cfg *config.Config, filters []filter.Filter) ([]store.MusicRow, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("this command requires the external store (drop --no-external)")
	}
	var musics []store.MusicRow
	for _, f := range filters {
		rows, err := cfg.Store.SelectMusics(ctx, f)
		if err != nil {
			return nil, err
		}
		musics = append(musics, rows...)
	}
	return playlist.Dedup(musics), nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func scanCmd() *cobra.Command {
	var clean, watch bool
	retries := config.DefaultRetries
	workers := config.DefaultWorkers
	cmd := &cobra.Command{
		Use:   "scan <folders...>",
		Short: "Scan folders and save musics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newConfig()
			cfg.Retries = retries
			cfg.Workers = workers
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()

			sc := &scan.Context{
				Emb:           cfg.Graph,
				Cache:         scan.NewCache(),
				Retries:       cfg.Retries,
				Workers:       cfg.Workers,
				Dry:           cfg.Dry,
				DatastorePath: cfg.DatastorePath,
			}
			if cfg.Store != nil {
				sc.Ext = cfg.Store
			}
			return scan.Run(cmd.Context(), sc, scan.Options{
				Roots: args,
				Clean: clean,
				Watch: watch,
			})
		},
	}
	cmd.Flags().BoolVarP(&clean, "clean", "c", false, "Clean musics before scanning")
	cmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "Retries in case of failed transaction")
	cmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "Concurrency")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep watching the folders for changes")
	return cmd
}

func cleanCmd() *cobra.Command {
	var soft bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean musics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()
			if cfg.Dry {
				return nil
			}

			if soft {
				if cfg.Store != nil {
					counts, err := cfg.Store.SoftClean(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Printf("musics_deleted=%d albums_deleted=%d artists_deleted=%d genres_deleted=%d keywords_deleted=%d\n",
						counts.Musics, counts.Albums, counts.Artists, counts.Genres, counts.Keywords)
				}
				if cfg.Graph != nil {
					cfg.Graph.SoftClean()
				}
			} else {
				if cfg.Store != nil {
					if err := cfg.Store.HardClean(cmd.Context()); err != nil {
						return err
					}
				}
				if cfg.Graph != nil {
					cfg.Graph.HardClean()
				}
			}
			if cfg.Graph != nil {
				return cfg.Graph.Sync(cfg.DatastorePath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&soft, "soft", "s", false, "Delete only orphan objects")
	return cmd
}

func playlistCmd() *cobra.Command {
	var name string
	var ff filterFlags
	var pf playlistFlags
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Create playlist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := ff.all()
			if err != nil {
				return err
			}
			opts, outOpts, err := pf.options()
			if err != nil {
				return err
			}
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()

			musics, err := selectMusics(cmd.Context(), cfg, filters)
			if err != nil {
				return err
			}
			return playlist.New(name, musics).Generate(opts, outOpts, cfg.Dry, newRand())
		},
	}
	cmd.Flags().StringVar(&name, "name", playlist.DefaultName, "Playlist name")
	ff.register(cmd.Flags())
	pf.register(cmd)
	return cmd
}

func bestsCmd() *cobra.Command {
	var minPlaylistSize int
	var ff filterFlags
	var pf playlistFlags
	cmd := &cobra.Command{
		Use:   "bests",
		Short: "Generate bests playlists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := ff.all()
			if err != nil {
				return err
			}
			opts, outOpts, err := pf.options()
			if err != nil {
				return err
			}
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()

			musics, err := selectMusics(cmd.Context(), cfg, filters)
			if err != nil {
				return err
			}
			rng := newRand()
			for _, p := range playlist.Bests(musics) {
				if len(p.Musics) < minPlaylistSize {
					fmt.Fprintf(os.Stderr, "%s: size %d < %d, skipped\n", p.Name, len(p.Musics), minPlaylistSize)
					continue
				}
				perPlaylist := outOpts
				if outOpts.Out != "" {
					perPlaylist.Out = filepath.Join(outOpts.Out, p.Name+".m3u")
				}
				if err := p.Generate(opts, perPlaylist, cfg.Dry, rng); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minPlaylistSize, "min-playlist-size", 1, "Minimum playlist size")
	ff.register(cmd.Flags())
	pf.register(cmd)
	return cmd
}

func searchCmd() *cobra.Command {
	var pf playlistFlags
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search musics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, outOpts, err := pf.options()
			if err != nil {
				return err
			}
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()
			if cfg.Store == nil {
				return fmt.Errorf("search requires the external store (drop --no-external)")
			}

			musics, err := cfg.Store.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			musics = playlist.Dedup(musics)
			return playlist.New(args[0], musics).Generate(opts, outOpts, cfg.Dry, newRand())
		},
	}
	pf.register(cmd)
	return cmd
}

func foldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List folders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()
			if cfg.Store == nil {
				return fmt.Errorf("folders requires the external store (drop --no-external)")
			}
			rows, err := cfg.Store.Folders(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Printf("%s\t%s@%s\t%d musics\n", r.Name, r.Username, r.IPv4, r.Musics)
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Get statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()
			if cfg.Store == nil {
				return fmt.Errorf("stats requires the external store (drop --no-external)")
			}
			rows, err := cfg.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Printf("%s\t%s@%s\tmusics=%d artists=%d albums=%d genres=%d keywords=%d size=%s duration=%s\n",
					r.Name, r.Username, r.IPv4,
					r.Musics, r.Artists, r.Albums, r.Genres, r.Keywords,
					humanSize(r.Size), humanDuration(r.Length))
			}
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <paths...>",
		Short: "Remove musics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newConfig()
			if err := cfg.Open(cmd.Context()); err != nil {
				return err
			}
			defer cfg.Close()
			if cfg.Dry {
				return nil
			}
			for _, path := range args {
				if cfg.Store != nil {
					if _, err := cfg.Store.RemovePath(cmd.Context(), path); err != nil {
						return err
					}
				}
				if cfg.Graph != nil {
					cfg.Graph.RemovePath(path)
				}
			}
			if cfg.Graph != nil {
				return cfg.Graph.Sync(cfg.DatastorePath)
			}
			return nil
		},
	}
}

func shazamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shazam <file>",
		Short: "Detect song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sig, err := shazam.Decode(raw)
			if err != nil {
				// Signatures travel as data URIs too.
				sig, err = shazam.DecodeString(string(raw))
				if err != nil {
					return err
				}
			}
			song, err := shazam.Recognize(cmd.Context(), "", args[0], sig)
			if err != nil {
				return err
			}
			fmt.Printf("artist: %s\n", song.Artist)
			if song.Album != "" {
				fmt.Printf("album: %s\n", song.Album)
			}
			fmt.Printf("title: %s\n", song.Title)
			return nil
		},
	}
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func humanDuration(seconds int64) string {
	if seconds == 0 {
		return "0s"
	}
	d := time.Duration(seconds) * time.Second
	return strings.TrimSuffix(d.String(), "0s")
}
