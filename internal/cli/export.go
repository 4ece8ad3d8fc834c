package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/catalog"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local catalog as CSV",
		Long: `Write the whole catalog as CSV, one row per downloadable file,
to stdout or to the file named by --output. The md5 column carries the
catalog's declared hash and is empty for files without one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			db, err := catalog.Open(settings.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := db.ExportCSV(cmd.Context(), w); err != nil {
				return err
			}
			if output != "" {
				logger.Info().Str("file", output).Msg("Catalog exported")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write CSV to this file instead of stdout")

	return cmd
}
