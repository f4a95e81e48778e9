package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pa-report/internal/pasearch"
	"github.com/ironsheep/pa-report/internal/pipeline"
	"github.com/ironsheep/pa-report/internal/reconcile"
)

// matchOutput is what match prints in json and yaml.
type matchOutput struct {
	Run         pasearch.Run       `json:"run" yaml:"run"`
	ThresholdMM float64            `json:"threshold_mm" yaml:"threshold_mm"`
	Strategy    reconcile.Strategy `json:"strategy" yaml:"strategy"`
	Stats       reconcile.Stats    `json:"stats" yaml:"stats"`
	Matches     []reconcile.Match  `json:"matches" yaml:"matches"`
	Warnings    []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (a *App) matchCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Pair EDAX and ImageJ particles and print the matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ParseFormat(format)
			if err != nil {
				return err
			}
			ds, err := pipeline.Load(a.cfg, a.log)
			if err != nil {
				return err
			}
			m, err := pipeline.Match(ds, a.cfg, a.log)
			if err != nil {
				return err
			}

			out := matchOutput{
				Run:         ds.Run,
				ThresholdMM: m.Options.Threshold,
				Strategy:    m.Options.Strategy,
				Stats:       m.Stats,
				Matches:     m.Matches,
				Warnings:    ds.Warnings,
			}
			if out.Matches == nil {
				out.Matches = []reconcile.Match{}
			}

			w := cmd.OutOrStdout()
			switch f {
			case FormatJSON:
				return writeJSON(w, out)
			case FormatYAML:
				return writeYAML(w, out)
			default:
				if err := writeTable(w, matchTable(m.Matches)); err != nil {
					return err
				}
				fmt.Fprintf(w, "%d of %d EDAX particles matched (%d ImageJ particles, threshold %g mm, %s)\n",
					m.Stats.Matches, m.Stats.EDAX, m.Stats.ImageJ, m.Options.Threshold, m.Options.Strategy)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	matchFlags(cmd)
	return cmd
}

func matchTable(matches []reconcile.Match) tableData {
	t := tableData{Headers: []string{"Field", "EDAX part", "ImageJ part", "Distance (µm)"}}
	for _, m := range matches {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(m.Field),
			strconv.Itoa(m.PartA),
			strconv.Itoa(m.PartB),
			strconv.FormatFloat(m.Distance*1000, 'f', 3, 64),
		})
	}
	return t
}
