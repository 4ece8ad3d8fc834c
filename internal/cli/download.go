package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/api"
	"github.com/cmykflutterby/GogDownloader/internal/auth"
	"github.com/cmykflutterby/GogDownloader/internal/catalog"
	"github.com/cmykflutterby/GogDownloader/internal/download"
	"github.com/cmykflutterby/GogDownloader/internal/model"
	"github.com/cmykflutterby/GogDownloader/internal/progress"
)

func newDownloadCmd() *cobra.Command {
	var (
		output          string
		platform        string
		language        string
		englishFallback bool
		excludeLanguage string
		retries         int
		retryDelay      int
		idleTimeout     int
		workers         int
		skipErrors      bool
		dryRun          bool
		sidecar         bool
		noVerify        bool
		fresh           bool
	)

	cmd := &cobra.Command{
		Use:   "download [game-id...]",
		Short: "Download the library (or the given games) to disk",
		Long: `Download every file the configured filters select, resuming
partial files and verifying checksums. Without arguments the whole
catalog is processed; game IDs restrict the run to those games.

Reads from the local catalog by default; --fresh streams the library
from the API instead, downloading each game as soon as its details
arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			// Flags the user set override the config file.
			flags := cmd.Flags()
			if flags.Changed("output") {
				settings.DownloadsPath = output
			}
			if flags.Changed("platform") {
				settings.Platform = platform
			}
			if flags.Changed("language") {
				settings.Language = language
			}
			if flags.Changed("english-fallback") {
				settings.EnglishFallback = englishFallback
			}
			if flags.Changed("exclude-language") {
				settings.ExcludeLanguage = excludeLanguage
			}
			if flags.Changed("retries") {
				settings.RetryCount = retries
			}
			if flags.Changed("retry-delay") {
				settings.RetryDelaySeconds = retryDelay
			}
			if flags.Changed("timeout") {
				settings.IdleTimeoutSeconds = idleTimeout
			}
			if flags.Changed("workers") {
				settings.Workers = workers
			}
			if flags.Changed("skip-errors") {
				settings.SkipErrors = skipErrors
			}
			if flags.Changed("dry-run") {
				settings.DryRun = dryRun
			}
			if flags.Changed("md5") {
				settings.CreateSidecar = sidecar
			}
			if flags.Changed("no-verify") {
				settings.NoVerify = noVerify
			}

			wanted, err := parseGameIDs(args)
			if err != nil {
				return err
			}

			session := auth.NewSession(settings.TokenPath)

			var source download.Source
			if fresh {
				source = api.NewClient(session)
			} else {
				db, err := catalog.Open(settings.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()

				games, _, _, err := db.Stats(ctx)
				if err != nil {
					return err
				}
				if games == 0 {
					return fmt.Errorf("catalog is empty: run \"gogdl refresh\" first, or pass --fresh")
				}
				source = db
			}
			if len(wanted) > 0 {
				source = filteredSource{inner: source, wanted: wanted}
			}

			manager, err := download.NewManager(settings, session, logProgress(settings.Verbose))
			if err != nil {
				return err
			}

			// Live byte-level bars only make sense for strictly sequential
			// transfers; concurrent runs fall back to log lines.
			if settings.Workers <= 1 && !settings.DryRun {
				attachProgressBar(manager)
			}

			start := time.Now()
			if err := manager.Run(ctx, source); err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("download cancelled")
				}
				return err
			}
			elapsed := time.Since(start)

			received, completed, skipped, failed, total := manager.GetProgress()
			summary := logger.Info().
				Int32("completed", completed).
				Int32("skipped", skipped).
				Int32("failed", failed).
				Int32("total", total).
				Str("received", progress.FormatBytes(received)).
				Str("elapsed", progress.FormatDuration(elapsed))
			if received > 0 && elapsed > 0 {
				summary = summary.Str("rate", progress.FormatRate(float64(received)/elapsed.Seconds()))
			}
			summary.Msg("Run finished")
			if failed > 0 {
				return fmt.Errorf("%d file(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Download directory (overrides config)")
	cmd.Flags().StringVar(&platform, "platform", "", "Only download for this OS: windows, mac or linux")
	cmd.Flags().StringVar(&language, "language", "", "Only download this language")
	cmd.Flags().BoolVar(&englishFallback, "english-fallback", false, "Fall back to English when the requested language is missing")
	cmd.Flags().StringVar(&excludeLanguage, "exclude-language", "", "Skip whole games containing this language")
	cmd.Flags().IntVar(&retries, "retries", 0, "Transfer attempts per file (overrides config)")
	cmd.Flags().IntVar(&retryDelay, "retry-delay", 0, "Seconds to wait between attempts (overrides config)")
	cmd.Flags().IntVar(&idleTimeout, "timeout", 0, "Seconds without data before a transfer is aborted (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent file transfers per game (overrides config)")
	cmd.Flags().BoolVar(&skipErrors, "skip-errors", false, "Continue past failed files instead of halting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be downloaded without transferring")
	cmd.Flags().BoolVar(&sidecar, "md5", false, "Write a {filename}.md5 sidecar next to each file")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip checksum verification (existing files are kept as-is)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Stream the library from the API instead of the local catalog")

	return cmd
}

func parseGameIDs(args []string) (map[int64]bool, error) {
	if len(args) == 0 {
		return nil, nil
	}
	wanted := make(map[int64]bool, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid game id %q", a)
		}
		wanted[id] = true
	}
	return wanted, nil
}

// filteredSource restricts an inner source to a set of game IDs.
type filteredSource struct {
	inner  download.Source
	wanted map[int64]bool
}

func (s filteredSource) Games(ctx context.Context, fn func(model.Game) error) error {
	return s.inner.Games(ctx, func(g model.Game) error {
		if !s.wanted[g.ID] {
			return nil
		}
		return fn(g)
	})
}

// logProgress maps orchestrator events onto logger levels. Verbose
// events only surface in verbose mode.
func logProgress(verbose bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		switch event.Level {
		case download.LevelError:
			logger.Error().Msg(event.Message)
		case download.LevelWarning:
			logger.Warn().Msg(event.Message)
		case download.LevelVerbose:
			if verbose {
				logger.Debug().Msg(event.Message)
			}
		default:
			logger.Info().Msg(event.Message)
		}
	}
}

// attachProgressBar renders one byte-level bar per transferred file.
func attachProgressBar(manager *download.Manager) {
	var bar *progressbar.ProgressBar
	manager.SetTransferHooks(
		func(game model.Game, file model.Download) {
			if bar != nil {
				bar.Finish()
			}
			bar = progressbar.DefaultBytes(file.Size, file.Filename())
		},
		func(current, total int64) {
			if bar != nil {
				bar.Set64(current)
			}
		},
	)
}
