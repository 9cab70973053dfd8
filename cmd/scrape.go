package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vltavalabs/leadscout/internal/dedupe"
	"github.com/vltavalabs/leadscout/internal/geo"
	"github.com/vltavalabs/leadscout/internal/pipeline"
	"github.com/vltavalabs/leadscout/internal/priority"
	"github.com/vltavalabs/leadscout/pkg/maps"
	"github.com/vltavalabs/leadscout/pkg/website"
)

var (
	scrapeNiche   string
	scrapeCity    string
	scrapeAreas   []string
	scrapeForce   bool
	scrapeNoVisit bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape business listings for a niche in a city",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		areas := scrapeAreas
		if len(areas) == 0 {
			areas = geo.SearchAreas(scrapeCity)
		}
		if !geo.Known(scrapeCity) {
			zap.L().Warn("city not in catalogue, scraping as a single area",
				zap.String("city", scrapeCity))
		}

		searcher := maps.NewScraper(maps.Options{
			Headless:     cfg.Maps.Headless,
			Timeout:      time.Duration(cfg.Maps.TimeoutSecs) * time.Second,
			MaxResults:   cfg.Maps.MaxResults,
			ScrollRounds: cfg.Maps.ScrollRounds,
			ScrollDelay:  time.Duration(cfg.Maps.ScrollDelayMs) * time.Millisecond,
		})
		defer searcher.Close()

		var enricher pipeline.Enricher
		if cfg.Website.Enabled && !scrapeNoVisit {
			enricher = website.NewScraper(website.Options{
				Timeout:        time.Duration(cfg.Website.TimeoutSecs) * time.Second,
				RequestsPerSec: cfg.Website.RequestsPerSec,
				MaxBodyKB:      cfg.Website.MaxBodyKB,
			})
		}

		runner := pipeline.NewRunner(st, searcher, enricher,
			dedupe.New(cfg.Dedupe.SimilarityThreshold),
			priority.New(cfg.Scoring))

		summary, err := runner.Run(ctx, pipeline.Request{
			Niche: scrapeNiche,
			City:  scrapeCity,
			Areas: areas,
			Force: scrapeForce,
		})
		if err != nil && !errors.Is(err, pipeline.ErrNoResults) {
			return eris.Wrap(err, "scrape run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encodeErr := enc.Encode(summary); encodeErr != nil {
			return encodeErr
		}

		// Zero leads is not a crash, but the caller should see it fail.
		if err != nil {
			return eris.Wrapf(err, "no results: no leads found for %q in %s", scrapeNiche, scrapeCity)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeNiche, "niche", "", "business niche, e.g. restaurace (required)")
	scrapeCmd.Flags().StringVar(&scrapeCity, "city", "", "city to scrape (required)")
	scrapeCmd.Flags().StringSliceVar(&scrapeAreas, "areas", nil, "override the district list for the city")
	scrapeCmd.Flags().BoolVar(&scrapeForce, "force", false, "rescrape areas already marked done")
	scrapeCmd.Flags().BoolVar(&scrapeNoVisit, "skip-websites", false, "skip visiting business websites")
	_ = scrapeCmd.MarkFlagRequired("niche")
	_ = scrapeCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(scrapeCmd)
}
