package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recent scraping sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.RecentSessions(ctx, sessionsLimit)
		if err != nil {
			return eris.Wrap(err, "recent sessions")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATUS\tNICHE\tLOCATION\tAREA\tFOUND\tNOTES")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				s.StartedAt.Format("2006-01-02 15:04"), s.Status,
				s.Niche, s.Location, s.Area, s.BusinessesFound, s.Notes)
		}
		return w.Flush()
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}
