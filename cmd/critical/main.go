// Command critical catalogs a music collection into a graph store and
// produces playlists and reports from it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AdrienPensart/critical/internal/config"
)

var (
	flagDSN        string
	flagDatastore  string
	flagDry        bool
	flagNoExternal bool
	flagNoEmbedded bool
)

var rootCmd = &cobra.Command{
	Use:           "critical",
	Short:         "Catalog a music collection and generate playlists from it",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDSN, "dsn", config.DefaultDSN, "External store DSN")
	pf.StringVar(&flagDatastore, "datastore", config.DefaultDatastorePath(), "Embedded store snapshot path")
	pf.BoolVar(&flagDry, "dry", false, "Do not persist anything")
	pf.BoolVar(&flagNoExternal, "no-external", false, "Disable the external store")
	pf.BoolVar(&flagNoEmbedded, "no-embedded", false, "Disable the embedded store")

	rootCmd.AddCommand(
		scanCmd(),
		cleanCmd(),
		playlistCmd(),
		bestsCmd(),
		searchCmd(),
		foldersCmd(),
		statsCmd(),
		removeCmd(),
		shazamCmd(),
	)
}

// newConfig builds the runtime config from the global flags. Callers Open it
// themselves so commands that touch no store stay connection-free.
func newConfig() *config.Config {
	return &config.Config{
		DSN:           flagDSN,
		DatastorePath: flagDatastore,
		Dry:           flagDry,
		NoExternal:    flagNoExternal,
		NoEmbedded:    flagNoEmbedded,
		Retries:       config.DefaultRetries,
		Workers:       config.DefaultWorkers,
	}
}

func main() {
	// Best effort: load a .env file, if present, into the process
	// environment. The DSN still comes from --dsn only.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
