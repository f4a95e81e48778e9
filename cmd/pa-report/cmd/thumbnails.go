package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pa-report/internal/imaging"
	"github.com/ironsheep/pa-report/internal/pipeline"
)

func (a *App) thumbnailsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "Crop a magnified thumbnail of every particle",
		Long: `thumbnails crops every particle of the chosen source from its field image
and writes the magnified crops as <field><ordinal> image files, e.g.
cropped/00030012.png for the twelfth particle on field 3.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := pipeline.Load(a.cfg, a.log)
			if err != nil {
				return err
			}

			cache := imaging.NewImageCache()
			sum, _, err := pipeline.Thumbnails(cmd.Context(), ds, a.cfg, cache, a.log)
			if err != nil {
				return err
			}
			opts := pipeline.ThumbnailOptions(ds, a.cfg)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d thumbnails to %s", len(sum.Files), opts.OutDir)
			if n := len(sum.Skipped); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d without a centroid skipped)", n)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if a.cfg.Thumbnails.AnnotateFields {
				written, err := pipeline.Annotate(cmd.Context(), ds, a.cfg, cache, a.log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d annotated field images\n", len(written))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	bindString(flags, "source", "thumbnails.source", "", "particles to crop: edax or imagej")
	bindInt(flags, "scale", "thumbnails.scale", 0, "thumbnail magnification")
	bindString(flags, "thumbnail-dir", "thumbnails.dir", "", "thumbnail directory, relative to the run")
	bindString(flags, "ext", "thumbnails.ext", "", "thumbnail format: .png, .jpg or .bmp")
	bindBool(flags, "annotate", "thumbnails.annotate_fields", "also write field images with the particles marked")
	return cmd
}
