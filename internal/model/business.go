// Package model defines the record types shared across the scraping pipeline.
package model

import "time"

// Priority categories assigned by the prioritizer. Boundaries are exact:
// IMMEDIATE at score >= 90, HIGH at >= 75, MEDIUM at >= 50.
const (
	PriorityImmediate = "IMMEDIATE OPPORTUNITY"
	PriorityHigh      = "HIGH PRIORITY"
	PriorityMedium    = "MEDIUM PRIORITY"
	PriorityLow       = "LOW PRIORITY"
)

// Session statuses recorded in the scraping_sessions audit log.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
	SessionNoResults = "no_results"
)

// BusinessRecord is one scraped business. Records flow through the pipeline
// in memory and are persisted by the store; NormalizedName is always derived
// from BusinessName and recomputed on every store write.
type BusinessRecord struct {
	ID             int64  `json:"id,omitempty"`
	BusinessName   string `json:"business_name"`
	NormalizedName string `json:"normalized_name,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`

	// ICO is the Czech company identification number, the strongest
	// identifier when present.
	ICO string `json:"ico,omitempty"`

	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Website   string `json:"website,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`

	GoogleRating  *float64 `json:"google_rating,omitempty"`
	ReviewCount   int      `json:"review_count,omitempty"`
	GooglePlaceID string   `json:"google_place_id,omitempty"`

	Niche  string `json:"niche,omitempty"`
	Source string `json:"source,omitempty"`
	Notes  string `json:"notes,omitempty"`

	BusinessActivities []string `json:"business_activities,omitempty"`

	WebsiteQualityScore int    `json:"website_quality_score,omitempty"`
	PriorityScore       int    `json:"priority_score,omitempty"`
	PriorityCategory    string `json:"priority_category,omitempty"`

	FirstScrapedAt time.Time `json:"first_scraped_at,omitempty"`
	LastUpdatedAt  time.Time `json:"last_updated_at,omitempty"`
	ScrapeCount    int       `json:"scrape_count,omitempty"`
}

// HasContact reports whether the record carries at least one way to reach
// the business. Records without any contact method are dropped by the
// deduplicator's validity filter.
func (r *BusinessRecord) HasContact() bool {
	return r.Phone != "" || r.Email != "" || r.Website != "" || r.Address != ""
}

// FieldCount returns the number of non-empty fields, used to pick the merge
// base when two duplicate records are combined.
func (r *BusinessRecord) FieldCount() int {
	n := 0
	for _, s := range []string{
		r.BusinessName, r.Address, r.City, r.PostalCode, r.ICO,
		r.Phone, r.Email, r.Website, r.Instagram, r.Facebook,
		r.GooglePlaceID, r.Niche, r.Source, r.Notes,
	} {
		if s != "" {
			n++
		}
	}
	if r.GoogleRating != nil {
		n++
	}
	if r.ReviewCount > 0 {
		n++
	}
	if r.WebsiteQualityScore > 0 {
		n++
	}
	if len(r.BusinessActivities) > 0 {
		n++
	}
	return n
}

// ScrapingSession is one append-only audit row for a scraping run. Completion
// fields are set exactly once by EndSession.
type ScrapingSession struct {
	ID              int64      `json:"id"`
	RunID           string     `json:"run_id"`
	Niche           string     `json:"niche"`
	Location        string     `json:"location"`
	Area            string     `json:"area,omitempty"`
	Keyword         string     `json:"keyword,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	BusinessesFound int        `json:"businesses_found"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
}

// AreaProgress tracks scrape coverage for one (niche, city, area, keyword)
// tuple. Rows are replaced on re-scrape, never accumulated.
type AreaProgress struct {
	ID              int64     `json:"id"`
	Niche           string    `json:"niche"`
	City            string    `json:"city"`
	Area            string    `json:"area"`
	Keyword         string    `json:"keyword"`
	LastScrapedAt   time.Time `json:"last_scraped_at"`
	BusinessesFound int       `json:"businesses_found"`
	Completed       bool      `json:"completed"`
	QualityScore    int       `json:"quality_score"`
}
