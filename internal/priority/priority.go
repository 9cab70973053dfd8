// Package priority assigns opportunity scores to scraped leads. The core
// business rule: a business with no website, no email, no social presence
// and no reviews is the best lead.
package priority

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vltavalabs/leadscout/internal/model"
)

// Weights holds the configurable scoring deltas for the additive scheme.
type Weights struct {
	NoWebsite   int `yaml:"no_website" mapstructure:"no_website"`
	PoorWebsite int `yaml:"poor_website" mapstructure:"poor_website"`
	NoEmail     int `yaml:"no_email" mapstructure:"no_email"`
	NoSocial    int `yaml:"no_social" mapstructure:"no_social"`
}

// DefaultWeights are the stock scoring deltas.
var DefaultWeights = Weights{
	NoWebsite:   100,
	PoorWebsite: 75,
	NoEmail:     50,
	NoSocial:    25,
}

const (
	maxScore = 200

	// poorWebsiteQuality is the quality score below which an existing
	// website counts as a replacement opportunity.
	poorWebsiteQuality = 50

	// lowRating marks a weak business, lowering the lead's value.
	lowRating = 3.5
)

// Prioritizer scores and orders business leads.
type Prioritizer struct {
	weights Weights
}

// New creates a Prioritizer. Zero-valued weights fall back to the defaults
// individually, so a config may override just one delta.
func New(w Weights) *Prioritizer {
	if w.NoWebsite == 0 {
		w.NoWebsite = DefaultWeights.NoWebsite
	}
	if w.PoorWebsite == 0 {
		w.PoorWebsite = DefaultWeights.PoorWebsite
	}
	if w.NoEmail == 0 {
		w.NoEmail = DefaultWeights.NoEmail
	}
	if w.NoSocial == 0 {
		w.NoSocial = DefaultWeights.NoSocial
	}
	return &Prioritizer{weights: w}
}

// ScoreLeads assigns PriorityScore and PriorityCategory to every record and
// returns the list sorted by score descending. Each triggered rule appends a
// note to the record as an audit trail.
func (p *Prioritizer) ScoreLeads(records []model.BusinessRecord) []model.BusinessRecord {
	log := zap.L().With(zap.String("component", "priority"))
	log.Info("scoring leads", zap.Int("records", len(records)))

	scored := make([]model.BusinessRecord, len(records))
	copy(scored, records)
	for i := range scored {
		scored[i].PriorityScore = p.score(&scored[i])
		scored[i].PriorityCategory = Category(scored[i].PriorityScore)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})

	p.logDistribution(log, scored)
	return scored
}

// score computes the additive priority score for one record, appending a
// note for every rule that fires. Rules are non-exclusive; the sum is
// clamped to [0, 200]. Absent or malformed numeric fields count as absent.
func (p *Prioritizer) score(rec *model.BusinessRecord) int {
	score := 0

	if rec.Website == "" {
		score += p.weights.NoWebsite
		addNote(rec, "No website - High opportunity")
	} else if rec.WebsiteQualityScore < poorWebsiteQuality {
		score += p.weights.PoorWebsite
		addNote(rec, "Poor website quality")
	}

	if rec.Email == "" {
		score += p.weights.NoEmail
		addNote(rec, "No email found")
	}

	if rec.Instagram == "" && rec.Facebook == "" {
		score += p.weights.NoSocial
		addNote(rec, "No social media")
	}

	if rec.GoogleRating != nil {
		if *rec.GoogleRating < lowRating {
			score -= 10
			addNote(rec, "Low Google rating")
		}
	} else {
		// No rating usually means a new or unlisted business.
		score += 20
		addNote(rec, "No Google reviews")
	}

	if rec.Website != "" && strings.Contains(rec.Website, ".cz") {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// Category maps a score to its priority band. Boundaries are exact at
// 90, 75 and 50.
func Category(score int) string {
	switch {
	case score >= 90:
		return model.PriorityImmediate
	case score >= 75:
		return model.PriorityHigh
	case score >= 50:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// FilterByScore returns records with PriorityScore >= min.
func FilterByScore(records []model.BusinessRecord, min int) []model.BusinessRecord {
	out := make([]model.BusinessRecord, 0, len(records))
	for _, r := range records {
		if r.PriorityScore >= min {
			out = append(out, r)
		}
	}
	return out
}

// HighPriority returns leads scored 75 or above.
func HighPriority(records []model.BusinessRecord) []model.BusinessRecord {
	return FilterByScore(records, 75)
}

// ImmediateOpportunities returns leads scored 90 or above.
func ImmediateOpportunities(records []model.BusinessRecord) []model.BusinessRecord {
	return FilterByScore(records, 90)
}

func addNote(rec *model.BusinessRecord, note string) {
	if rec.Notes == "" {
		rec.Notes = note
		return
	}
	rec.Notes = rec.Notes + "; " + note
}

func (p *Prioritizer) logDistribution(log *zap.Logger, records []model.BusinessRecord) {
	if len(records) == 0 {
		return
	}
	counts := map[string]int{}
	for _, r := range records {
		counts[r.PriorityCategory]++
	}
	log.Info("priority distribution",
		zap.Int("immediate", counts[model.PriorityImmediate]),
		zap.Int("high", counts[model.PriorityHigh]),
		zap.Int("medium", counts[model.PriorityMedium]),
		zap.Int("low", counts[model.PriorityLow]))
}
