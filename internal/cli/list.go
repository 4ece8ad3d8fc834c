package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/catalog"
	"github.com/cmykflutterby/GogDownloader/internal/model"
	"github.com/cmykflutterby/GogDownloader/internal/progress"
)

func newListCmd() *cobra.Command {
	var filtered bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the games in the local catalog",
		Long: `List every game in the local catalog with its file count and
total download size. With --filtered, the configured platform and
language filters are applied first, previewing exactly what a
download run would select.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			var filter model.Filter
			if filtered {
				if filter, err = settings.Filter(); err != nil {
					return err
				}
			}

			db, err := catalog.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			games := 0
			var files int
			var bytes int64
			err = db.Games(ctx, func(g model.Game) error {
				downloads := g.Downloads
				if filtered {
					selected, vetoed := filter.Resolve(g)
					if vetoed {
						fmt.Printf("%-50s  (skipped: excluded language)\n", g.Title)
						return nil
					}
					downloads = selected
				}
				if filtered && len(downloads) == 0 {
					return nil
				}

				var size int64
				for _, d := range downloads {
					size += d.Size
				}
				fmt.Printf("%-50s  %3d files  %10s\n", g.Title, len(downloads), progress.FormatBytes(size))

				games++
				files += len(downloads)
				bytes += size
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n%d games, %d files, %s\n", games, files, progress.FormatBytes(bytes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&filtered, "filtered", false, "Apply the configured platform/language filters")

	return cmd
}
