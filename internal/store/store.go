// Package store persists businesses, scraping sessions and per-area
// completion state. It is the single source of truth for what has been
// scraped and to what quality.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/vltavalabs/leadscout/internal/config"
	"github.com/vltavalabs/leadscout/internal/model"
)

// Filter specifies criteria for listing businesses.
type Filter struct {
	Niche      string `json:"niche,omitempty"`
	City       string `json:"city,omitempty"`
	HasWebsite *bool  `json:"has_website,omitempty"`
	MinScore   int    `json:"min_score,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// CityCount is one row of the per-city business totals.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// Stats summarizes scraping progress.
type Stats struct {
	TotalBusinesses int                     `json:"total_businesses"`
	ByCity          []CityCount             `json:"by_city"`
	RecentSessions  []model.ScrapingSession `json:"recent_sessions"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Businesses
	BusinessExists(ctx context.Context, name, address, placeID string) (int64, bool, error)
	AddBusiness(ctx context.Context, rec *model.BusinessRecord) (int64, error)
	ListBusinesses(ctx context.Context, filter Filter) ([]model.BusinessRecord, error)

	// Sessions (append-only audit log)
	StartSession(ctx context.Context, niche, location, area, keyword string) (int64, error)
	EndSession(ctx context.Context, sessionID int64, found int, status, notes string) error
	RecentSessions(ctx context.Context, limit int) ([]model.ScrapingSession, error)

	// Area progress
	MarkAreaScraped(ctx context.Context, niche, city, area, keyword string, found int) error
	IsAreaScraped(ctx context.Context, niche, city, area, keyword string) (bool, error)
	ListAreaProgress(ctx context.Context, niche, city string) ([]model.AreaProgress, error)
	ResetArea(ctx context.Context, niche, city, area string) error
	ResetAllProgress(ctx context.Context) error

	// Reporting
	ProgressStats(ctx context.Context, niche, city string) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Options holds the completion-policy knobs shared by all backends.
type Options struct {
	MinResultsForCompletion int
	RescrapeWindow          time.Duration
	QualitySteps            []config.QualityStep
}

// OptionsFromConfig builds Options from the progress configuration,
// falling back to stock values for anything unset.
func OptionsFromConfig(cfg config.ProgressConfig) Options {
	opts := Options{
		MinResultsForCompletion: cfg.MinResultsForCompletion,
		RescrapeWindow:          time.Duration(cfg.RescrapeWindowDays) * 24 * time.Hour,
		QualitySteps:            cfg.QualitySteps,
	}
	if opts.MinResultsForCompletion <= 0 {
		opts.MinResultsForCompletion = 50
	}
	if opts.RescrapeWindow <= 0 {
		opts.RescrapeWindow = 7 * 24 * time.Hour
	}
	if len(opts.QualitySteps) == 0 {
		opts.QualitySteps = config.DefaultQualitySteps()
	}
	sort.Slice(opts.QualitySteps, func(i, j int) bool {
		return opts.QualitySteps[i].MinFound > opts.QualitySteps[j].MinFound
	})
	return opts
}

// qualityScore maps a result count to a 0-100 scrape quality via the
// configured step function.
func (o Options) qualityScore(found int) int {
	for _, step := range o.QualitySteps {
		if found >= step.MinFound {
			return step.Score
		}
	}
	return 0
}

// areaScraped applies the triple guard on one progress row: completed,
// enough results, and recent enough. Any failing condition means the area
// must be re-scraped; recency always reopens an area, so there is no
// terminal "done" state.
func (o Options) areaScraped(completed bool, found int, lastScraped time.Time, now time.Time) bool {
	if !completed {
		return false
	}
	if found < o.MinResultsForCompletion {
		// A prior low-yield scrape must not suppress a productive area.
		return false
	}
	if now.Sub(lastScraped) >= o.RescrapeWindow {
		return false
	}
	return true
}
