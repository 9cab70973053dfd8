package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vltavalabs/leadscout/internal/geo"
)

var areasCmd = &cobra.Command{
	Use:   "areas [city]",
	Short: "List known cities, or the search areas of one city",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, city := range geo.Cities() {
				fmt.Printf("%-20s %d areas\n", city, len(geo.SearchAreas(city)))
			}
			return nil
		}

		city := args[0]
		for _, area := range geo.SearchAreas(city) {
			fmt.Println(area)
		}

		est := geo.EstimateSearches(city, cfg.Maps.MaxResults)
		fmt.Printf("\n%d areas; ~%d results for %s need %d searches (about %d min)\n",
			est.TotalAreas, cfg.Maps.MaxResults, city, est.AreasToSearch, est.EstimatedMinute)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(areasCmd)
}
