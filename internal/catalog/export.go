package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/cmykflutterby/GogDownloader/internal/model"
)

// csvHeader is the column layout of a catalog export.
var csvHeader = []string{"game_id", "title", "file", "language", "platform", "size", "md5"}

// ExportCSV writes the whole catalog to w as CSV, one row per
// downloadable file, in the same order Games iterates.
func (d *DB) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	err := d.Games(ctx, func(g model.Game) error {
		for _, dl := range g.Downloads {
			row := []string{
				strconv.FormatInt(g.ID, 10),
				g.Title,
				dl.Name,
				dl.Language,
				string(dl.Platform),
				strconv.FormatInt(dl.Size, 10),
				dl.MD5,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
