// Package pipeline runs the scrape flow for a niche and city: walk the
// city's areas, collect listings, enrich, dedupe, score and persist.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vltavalabs/leadscout/internal/dedupe"
	"github.com/vltavalabs/leadscout/internal/model"
	"github.com/vltavalabs/leadscout/internal/normalize"
	"github.com/vltavalabs/leadscout/internal/priority"
	"github.com/vltavalabs/leadscout/internal/store"
	"github.com/vltavalabs/leadscout/pkg/maps"
	"github.com/vltavalabs/leadscout/pkg/website"
)

// ErrNoResults marks a search that came back empty. For a single area it
// is a soft failure and the run continues; a whole run that stores no
// leads (and skipped nothing) returns it to the caller, who reports it
// apart from hard errors.
var ErrNoResults = eris.New("pipeline: no results")

// Searcher produces raw listings for a keyword in an area.
type Searcher interface {
	Search(ctx context.Context, keyword, area string) ([]maps.Listing, error)
}

// Enricher visits a business website and extracts contacts and quality.
type Enricher interface {
	Scrape(ctx context.Context, url string) (*website.Result, error)
}

// Runner wires the scrape stages together. Enricher may be nil to skip
// website visits.
type Runner struct {
	store    store.Store
	searcher Searcher
	enricher Enricher
	deduper  *dedupe.Deduplicator
	scorer   *priority.Prioritizer
}

func NewRunner(st store.Store, searcher Searcher, enricher Enricher, deduper *dedupe.Deduplicator, scorer *priority.Prioritizer) *Runner {
	return &Runner{
		store:    st,
		searcher: searcher,
		enricher: enricher,
		deduper:  deduper,
		scorer:   scorer,
	}
}

// Request describes one scrape run.
type Request struct {
	Niche string
	City  string
	Areas []string
	Force bool // rescrape areas even when marked done
}

// Summary aggregates what a run did across its areas.
type Summary struct {
	AreasScraped int
	AreasSkipped int
	AreasEmpty   int
	AreasFailed  int
	LeadsStored  int
}

// Run scrapes every area in the request sequentially. Search failures
// and empty areas are recorded and skipped; store failures abort the
// run, since continuing would silently lose progress tracking.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("niche", req.Niche),
		zap.String("city", req.City))

	summary := &Summary{}
	for _, area := range req.Areas {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "pipeline: run cancelled")
		}

		keyword := maps.SearchQuery(req.Niche, area)

		if !req.Force {
			done, err := r.store.IsAreaScraped(ctx, req.Niche, req.City, area, keyword)
			if err != nil {
				return summary, err
			}
			if done {
				log.Info("area already scraped, skipping", zap.String("area", area))
				summary.AreasSkipped++
				continue
			}
		}

		stored, err := r.scrapeArea(ctx, log, req.Niche, req.City, area, keyword)
		switch {
		case errors.Is(err, ErrNoResults):
			summary.AreasEmpty++
		case err != nil && isStoreFailure(err):
			return summary, err
		case err != nil:
			log.Warn("area scrape failed", zap.String("area", area), zap.Error(err))
			summary.AreasFailed++
		default:
			summary.AreasScraped++
			summary.LeadsStored += stored
		}
	}

	log.Info("run finished",
		zap.Int("scraped", summary.AreasScraped),
		zap.Int("skipped", summary.AreasSkipped),
		zap.Int("empty", summary.AreasEmpty),
		zap.Int("failed", summary.AreasFailed),
		zap.Int("leads", summary.LeadsStored))

	// A run that stored nothing and skipped nothing found no leads at
	// all; skipped areas mean earlier runs already covered the city.
	if summary.LeadsStored == 0 && summary.AreasSkipped == 0 {
		return summary, eris.Wrapf(ErrNoResults, "run %s/%s", req.Niche, req.City)
	}
	return summary, nil
}

// scrapeArea handles a single area end to end under one session.
func (r *Runner) scrapeArea(ctx context.Context, log *zap.Logger, niche, city, area, keyword string) (int, error) {
	sessionID, err := r.store.StartSession(ctx, niche, city, area, keyword)
	if err != nil {
		return 0, storeFailure(err)
	}

	listings, err := r.searcher.Search(ctx, niche, area)
	if err != nil {
		if endErr := r.store.EndSession(ctx, sessionID, 0, model.SessionFailed, err.Error()); endErr != nil {
			return 0, storeFailure(endErr)
		}
		return 0, eris.Wrapf(err, "pipeline: search %s", area)
	}

	records := r.toRecords(listings, niche, city)
	records = r.deduper.RemoveInvalid(records)

	if len(records) == 0 {
		if err := r.store.MarkAreaScraped(ctx, niche, city, area, keyword, 0); err != nil {
			return 0, storeFailure(err)
		}
		if err := r.store.EndSession(ctx, sessionID, 0, model.SessionNoResults, ""); err != nil {
			return 0, storeFailure(err)
		}
		return 0, eris.Wrapf(ErrNoResults, "area %s", area)
	}

	r.enrichRecords(ctx, log, records)
	records = r.deduper.Deduplicate(records)
	records = r.scorer.ScoreLeads(records)

	for i := range records {
		if _, err := r.store.AddBusiness(ctx, &records[i]); err != nil {
			return 0, storeFailure(err)
		}
	}

	if err := r.store.MarkAreaScraped(ctx, niche, city, area, keyword, len(records)); err != nil {
		return 0, storeFailure(err)
	}
	if err := r.store.EndSession(ctx, sessionID, len(records), model.SessionCompleted, ""); err != nil {
		return 0, storeFailure(err)
	}

	log.Info("area scraped",
		zap.String("area", area),
		zap.Int("listings", len(listings)),
		zap.Int("leads", len(records)))
	return len(records), nil
}

// toRecords converts raw listings into business records with normalized
// contact fields.
func (r *Runner) toRecords(listings []maps.Listing, niche, city string) []model.BusinessRecord {
	records := make([]model.BusinessRecord, 0, len(listings))
	for _, l := range listings {
		rec := model.BusinessRecord{
			BusinessName:  l.Name,
			Address:       l.Address,
			City:          city,
			GooglePlaceID: l.PlaceID,
			GoogleRating:  l.Rating,
			ReviewCount:   l.ReviewCount,
			Niche:         niche,
			Source:        "google_maps",
		}
		if phone, ok := normalize.Phone(l.Phone); ok {
			rec.Phone = phone
		}
		if u, ok := normalize.URL(l.Website); ok {
			rec.Website = u
		}
		records = append(records, rec)
	}
	return records
}

// enrichRecords visits each record's website, filling contact fields
// the listing did not carry. Enrichment failures only log; a dead
// website is itself a signal the scorer uses.
func (r *Runner) enrichRecords(ctx context.Context, log *zap.Logger, records []model.BusinessRecord) {
	if r.enricher == nil {
		return
	}
	for i := range records {
		rec := &records[i]
		if rec.Website == "" {
			continue
		}

		result, err := r.enricher.Scrape(ctx, rec.Website)
		if err != nil {
			log.Debug("website enrichment failed",
				zap.String("business", rec.BusinessName),
				zap.String("website", rec.Website),
				zap.Error(err))
			continue
		}

		if rec.Email == "" {
			rec.Email = result.Email
		}
		if rec.Instagram == "" {
			rec.Instagram = result.Instagram
		}
		if rec.Facebook == "" {
			rec.Facebook = result.Facebook
		}
		if result.QualityScore > rec.WebsiteQualityScore {
			rec.WebsiteQualityScore = result.QualityScore
		}
	}
}

// storeFailure tags persistence errors so Run can tell them apart from
// recoverable scrape errors.

type taggedStoreErr struct{ err error }

func (e *taggedStoreErr) Error() string { return e.err.Error() }
func (e *taggedStoreErr) Unwrap() error { return e.err }

func storeFailure(err error) error {
	return &taggedStoreErr{err: err}
}

func isStoreFailure(err error) bool {
	var tagged *taggedStoreErr
	return errors.As(err, &tagged)
}
