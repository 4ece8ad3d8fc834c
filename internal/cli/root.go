// Package cli provides the command-line interface for gogdl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/config"
	"github.com/cmykflutterby/GogDownloader/internal/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Global logger, initialized before any command runs
	logger *logging.Logger
)

// Version information - set by the main package at startup.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gogdl",
		Short: "Mirror your GOG library to local disk",
		Long: `gogdl ` + Version + ` - Built: ` + BuildTime + `
Download and keep a local mirror of the games you own on GOG.

Typical flow:
  gogdl login              authenticate in the browser, paste the code
  gogdl refresh            fetch the library catalog into a local database
  gogdl download           download everything (resumable, verified)

Filters (platform, language, fallback) can be set on the command line
or persisted in the config file.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	rootCmd.AddCommand(
		newLoginCmd(),
		newRefreshCmd(),
		newListCmd(),
		newExportCmd(),
		newDownloadCmd(),
	)

	return rootCmd
}

// Execute runs the root command with a context that is cancelled on
// SIGINT/SIGTERM so an in-flight download stops cleanly.
func Execute() error {
	logger = logging.NewDefaultLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn().Msg("Interrupted, cancelling...")
		cancel()
	}()

	return NewRootCmd().ExecuteContext(ctx)
}

// loadSettings reads the config file named by --config, or the default
// location when the flag is unset. A missing file yields defaults.
func loadSettings() (*config.Settings, error) {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".config", "gogdownloader", "config.json")
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		settings.Verbose = true
	}
	return settings, nil
}
