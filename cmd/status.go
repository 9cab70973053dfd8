package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vltavalabs/leadscout/internal/geo"
)

var (
	statusNiche string
	statusCity  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scrape progress and database totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.ProgressStats(ctx, statusNiche, statusCity)
		if err != nil {
			return eris.Wrap(err, "progress stats")
		}

		fmt.Printf("Businesses stored: %d\n", stats.TotalBusinesses)
		if len(stats.ByCity) > 0 {
			fmt.Println("\nTop cities:")
			for _, cc := range stats.ByCity {
				fmt.Printf("  %-20s %d\n", cc.City, cc.Count)
			}
		}

		progress, err := st.ListAreaProgress(ctx, statusNiche, statusCity)
		if err != nil {
			return eris.Wrap(err, "list area progress")
		}
		if len(progress) > 0 {
			fmt.Println("\nArea progress:")
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CITY\tAREA\tKEYWORD\tFOUND\tQUALITY\tDONE\tLAST SCRAPED")
			for _, p := range progress {
				done := ""
				if p.Completed {
					done = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					p.City, p.Area, p.Keyword, p.BusinessesFound,
					p.QualityScore, done, p.LastScrapedAt.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		if statusCity != "" {
			covered := map[string]bool{}
			for _, p := range progress {
				covered[p.Area] = true
			}
			var missing []string
			for _, area := range geo.SearchAreas(statusCity) {
				if !covered[area] {
					missing = append(missing, area)
				}
			}
			if len(missing) > 0 {
				fmt.Printf("\nAreas never scraped in %s: %d of %d\n",
					statusCity, len(missing), len(geo.SearchAreas(statusCity)))
			}
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusNiche, "niche", "", "filter by niche")
	statusCmd.Flags().StringVar(&statusCity, "city", "", "filter by city")
	rootCmd.AddCommand(statusCmd)
}
