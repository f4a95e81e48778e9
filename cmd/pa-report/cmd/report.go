package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pa-report/internal/pipeline"
)

func (a *App) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Match particles, crop thumbnails and write the HTML report",
		Long: `report runs the whole reconciliation for one PA search: it normalizes the
ImageJ particles onto stage coordinates, pairs them with the EDAX particles,
crops a thumbnail per particle from the field images and writes the report
to <run>/<run name>.html unless --output is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := pipeline.Run(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.ReportPath)
			fmt.Fprintf(cmd.OutOrStdout(), "  %d EDAX, %d ImageJ, %d matched\n",
				res.Stats.EDAX, res.Stats.ImageJ, res.Stats.Matches)
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	bindStringP(flags, "output", "o", "report.output", "", "report file (default <run>/<run name>.html)")
	bindString(flags, "title", "report.title", "", "report title")
	bindString(flags, "composition-column", "report.composition_column", "", "EDAX column holding the composition")
	bindBool(flags, "ocr-databar", "report.ocr_databar", "read magnification from the field image data bar when the summary lacks it")
	bindString(flags, "sample-id", "sample.id", "", "sample identifier")
	bindString(flags, "crm", "sample.crm", "", "certified reference material")
	bindString(flags, "remarks", "sample.remarks", "", "remarks shown in the report")
	bindString(flags, "u-amount", "sample.u_amount", "", "uranium amount shown in the report")
	matchFlags(cmd)
	thumbnailFlags(cmd)
	return cmd
}

// matchFlags are shared by the commands that pair particles.
func matchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	bindFloat(flags, "threshold", "match.threshold_mm", 0, "match distance in mm")
	bindString(flags, "strategy", "match.strategy", "", "match strategy: first or mutual")
}

// thumbnailFlags are shared by the commands that crop thumbnails.
func thumbnailFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	bindString(flags, "source", "thumbnails.source", "", "particles to crop: edax or imagej")
	bindInt(flags, "scale", "thumbnails.scale", 0, "thumbnail magnification")
	bindString(flags, "thumbnail-dir", "thumbnails.dir", "", "thumbnail directory, relative to the run")
	bindBool(flags, "skip-thumbnails", "thumbnails.skip", "do not crop thumbnails")
	bindBool(flags, "annotate", "thumbnails.annotate_fields", "also write field images with the particles marked")
}
