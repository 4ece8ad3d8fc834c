package cli

import (
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/api"
	"github.com/cmykflutterby/GogDownloader/internal/auth"
	"github.com/cmykflutterby/GogDownloader/internal/catalog"
	"github.com/cmykflutterby/GogDownloader/internal/model"
	"github.com/cmykflutterby/GogDownloader/internal/progress"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the owned-games catalog into the local database",
		Long: `Fetch the list of owned games and every game's download
descriptors from the GOG embed API, and store them in the local
catalog database. Later list, export and download runs read from
this catalog without hitting the API again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			session := auth.NewSession(settings.TokenPath)
			client := api.NewClient(session)

			db, err := catalog.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			ids, err := client.OwnedGames(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("games", len(ids)).Msg("Fetching game details")

			bar := progressbar.Default(int64(len(ids)), "refreshing catalog")
			games := 0
			err = client.Games(ctx, func(g model.Game) error {
				if err := db.UpsertGame(ctx, g); err != nil {
					return err
				}
				games++
				return bar.Add(1)
			})
			if err != nil {
				return err
			}

			_, files, bytes, err := db.Stats(ctx)
			if err != nil {
				return err
			}
			logger.Info().
				Int("games", games).
				Int("files", files).
				Str("size", progress.FormatBytes(bytes)).
				Msg("Catalog refreshed")
			return nil
		},
	}
}
