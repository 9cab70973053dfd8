package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vltavalabs/leadscout/internal/store"
)

var (
	leadsNiche    string
	leadsCity     string
	leadsMinScore int
	leadsLimit    int
	leadsJSON     bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads, best first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListBusinesses(ctx, store.Filter{
			Niche:    leadsNiche,
			City:     leadsCity,
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list businesses")
		}

		if leadsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tCATEGORY\tNAME\tCITY\tPHONE\tEMAIL\tWEBSITE")
		for _, l := range leads {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				l.PriorityScore, l.PriorityCategory, l.BusinessName,
				l.City, l.Phone, l.Email, l.Website)
		}
		return w.Flush()
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsNiche, "niche", "", "filter by niche")
	leadsCmd.Flags().StringVar(&leadsCity, "city", "", "filter by city")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "minimum priority score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum leads to show")
	leadsCmd.Flags().BoolVar(&leadsJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(leadsCmd)
}
