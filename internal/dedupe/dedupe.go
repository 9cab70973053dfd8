// Package dedupe merges near-duplicate business records within one scrape
// batch. Cross-batch deduplication is handled separately by the store's
// existence check at persistence time.
package dedupe

import (
	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/vltavalabs/leadscout/internal/model"
	"github.com/vltavalabs/leadscout/internal/normalize"
)

// DefaultSimilarityThreshold is the minimum normalized-name similarity for a
// fuzzy match.
const DefaultSimilarityThreshold = 0.9

// addressVetoThreshold is deliberately loose: address similarity below it
// vetoes a fuzzy name match (same name, different location), it never
// confirms one.
const addressVetoThreshold = 0.5

var simParams = levenshtein.NewParams()

// Deduplicator removes duplicate business entries from a batch.
type Deduplicator struct {
	threshold float64
}

// New creates a Deduplicator. A non-positive threshold selects the default.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Deduplicate returns the batch with duplicates merged. Matching is ordered
// and first-match-wins: exact IČO, then exact normalized phone, then fuzzy
// normalized-name similarity with an address veto.
//
// The fuzzy pass is pairwise over candidates sharing the first letter of the
// normalized name. Within a bucket it is O(n²), acceptable at scraper batch
// sizes (hundreds to low thousands); larger batches need finer blocking.
func (d *Deduplicator) Deduplicate(records []model.BusinessRecord) []model.BusinessRecord {
	if len(records) == 0 {
		return nil
	}
	log := zap.L().With(zap.String("component", "dedupe"))
	log.Info("deduplicating batch", zap.Int("records", len(records)))

	norms := make([]string, len(records))
	phones := make([]string, len(records))
	for i := range records {
		norms[i] = normalize.Name(records[i].BusinessName)
		if p, ok := normalize.Phone(records[i].Phone); ok {
			phones[i] = p
		} else {
			phones[i] = records[i].Phone
		}
	}

	processed := make([]bool, len(records))
	seenICO := make(map[string]bool)
	seenPhone := make(map[string]bool)

	var unique []model.BusinessRecord
	for i := range records {
		if processed[i] {
			continue
		}
		processed[i] = true
		rec := records[i]

		if rec.ICO != "" && seenICO[rec.ICO] {
			log.Debug("duplicate ICO", zap.String("ico", rec.ICO), zap.String("name", rec.BusinessName))
			continue
		}
		if phones[i] != "" && seenPhone[phones[i]] {
			log.Debug("duplicate phone", zap.String("phone", phones[i]), zap.String("name", rec.BusinessName))
			continue
		}

		if j := d.findFuzzyDuplicate(records, norms, processed, i); j >= 0 {
			log.Debug("fuzzy match",
				zap.String("name", rec.BusinessName),
				zap.String("duplicate", records[j].BusinessName))
			rec = merge(rec, records[j])
			processed[j] = true
		}

		if rec.ICO != "" {
			seenICO[rec.ICO] = true
		}
		if phones[i] != "" {
			seenPhone[phones[i]] = true
		}
		unique = append(unique, rec)
	}

	log.Info("deduplication complete",
		zap.Int("unique", len(unique)),
		zap.Int("removed", len(records)-len(unique)))
	return unique
}

// findFuzzyDuplicate returns the index of the first unprocessed record after
// i whose normalized name is similar enough, or -1.
func (d *Deduplicator) findFuzzyDuplicate(records []model.BusinessRecord, norms []string, processed []bool, i int) int {
	target := norms[i]
	if target == "" {
		return -1
	}
	targetAddr := normalize.Fold(records[i].Address)

	for j := i + 1; j < len(records); j++ {
		if processed[j] || norms[j] == "" {
			continue
		}
		if norms[j][0] != target[0] {
			continue
		}
		if levenshtein.Similarity(target, norms[j], simParams) < d.threshold {
			continue
		}

		// Names match; very different addresses mean two branches of the
		// same-named business, not a duplicate.
		candAddr := normalize.Fold(records[j].Address)
		if targetAddr != "" && candAddr != "" &&
			levenshtein.Similarity(targetAddr, candAddr, simParams) < addressVetoThreshold {
			continue
		}
		return j
	}
	return -1
}

// merge combines two duplicate records. The record with more non-empty
// fields becomes the base; empty fields are filled from the other side,
// rating and quality fields keep the higher value, and activity lists are
// unioned.
func merge(a, b model.BusinessRecord) model.BusinessRecord {
	base, other := a, b
	if b.FieldCount() > a.FieldCount() {
		base, other = b, a
	}

	fillString(&base.BusinessName, other.BusinessName)
	fillString(&base.Address, other.Address)
	fillString(&base.City, other.City)
	fillString(&base.PostalCode, other.PostalCode)
	fillString(&base.ICO, other.ICO)
	fillString(&base.Phone, other.Phone)
	fillString(&base.Email, other.Email)
	fillString(&base.Website, other.Website)
	fillString(&base.Instagram, other.Instagram)
	fillString(&base.Facebook, other.Facebook)
	fillString(&base.GooglePlaceID, other.GooglePlaceID)
	fillString(&base.Niche, other.Niche)
	fillString(&base.Source, other.Source)
	fillString(&base.Notes, other.Notes)

	if other.GoogleRating != nil && (base.GoogleRating == nil || *other.GoogleRating > *base.GoogleRating) {
		base.GoogleRating = other.GoogleRating
	}
	if other.ReviewCount > base.ReviewCount {
		base.ReviewCount = other.ReviewCount
	}
	if other.WebsiteQualityScore > base.WebsiteQualityScore {
		base.WebsiteQualityScore = other.WebsiteQualityScore
	}

	base.BusinessActivities = unionActivities(base.BusinessActivities, other.BusinessActivities)
	return base
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func unionActivities(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// RemoveInvalid drops records without a business name and records with no
// way to contact the business at all.
func (d *Deduplicator) RemoveInvalid(records []model.BusinessRecord) []model.BusinessRecord {
	log := zap.L().With(zap.String("component", "dedupe"))

	valid := make([]model.BusinessRecord, 0, len(records))
	for i := range records {
		if records[i].BusinessName == "" {
			log.Debug("dropping record without name")
			continue
		}
		if !records[i].HasContact() {
			log.Debug("dropping record without contact info", zap.String("name", records[i].BusinessName))
			continue
		}
		valid = append(valid, records[i])
	}

	if removed := len(records) - len(valid); removed > 0 {
		log.Info("removed invalid entries", zap.Int("removed", removed))
	}
	return valid
}
