package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vltavalabs/leadscout/internal/export"
	"github.com/vltavalabs/leadscout/internal/store"
)

var (
	exportNiche     string
	exportCity      string
	exportMinScore  int
	exportNoWebOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.Filter{
			Niche:    exportNiche,
			City:     exportCity,
			MinScore: exportMinScore,
			Limit:    10000,
		}
		if exportNoWebOnly {
			noWebsite := false
			filter.HasWebsite = &noWebsite
		}

		leads, err := st.ListBusinesses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list businesses")
		}

		location := exportCity
		if location == "" {
			location = "cz"
		}
		niche := exportNiche
		if niche == "" {
			niche = "leads"
		}

		path, err := export.New(cfg.Export.OutputDir).Export(leads, niche, location)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d leads to %s\n", len(leads), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportNiche, "niche", "", "filter by niche")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "filter by city")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "minimum priority score")
	exportCmd.Flags().BoolVar(&exportNoWebOnly, "no-website", false, "only leads without a website")
	rootCmd.AddCommand(exportCmd)
}
