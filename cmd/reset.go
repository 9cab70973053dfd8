package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	resetNiche string
	resetCity  string
	resetArea  string
	resetAll   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear area progress so areas get rescraped",
	Long:  "Clears progress rows only. Stored businesses and session history are never touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if resetAll {
			if err := st.ResetAllProgress(ctx); err != nil {
				return eris.Wrap(err, "reset all progress")
			}
			fmt.Println("All area progress cleared")
			return nil
		}

		if resetNiche == "" || resetCity == "" {
			return eris.New("either --all or both --niche and --city are required")
		}
		if err := st.ResetArea(ctx, resetNiche, resetCity, resetArea); err != nil {
			return eris.Wrap(err, "reset area")
		}
		if resetArea != "" {
			fmt.Printf("Progress cleared for %s / %s / %s\n", resetNiche, resetCity, resetArea)
		} else {
			fmt.Printf("Progress cleared for %s / %s\n", resetNiche, resetCity)
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetNiche, "niche", "", "niche to reset")
	resetCmd.Flags().StringVar(&resetCity, "city", "", "city to reset")
	resetCmd.Flags().StringVar(&resetArea, "area", "", "single area to reset (optional)")
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "clear progress for everything")
	rootCmd.AddCommand(resetCmd)
}
