// Package export writes scored leads to multi-sheet xlsx workbooks for
// handoff to sales.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/vltavalabs/leadscout/internal/model"
	"github.com/vltavalabs/leadscout/internal/normalize"
)

var leadColumns = []string{
	"Business Name", "Phone", "Email", "Website", "Instagram", "Facebook",
	"Address", "City", "IČO", "Google Rating", "Reviews",
	"Priority Score", "Priority Category", "Notes",
}

// Exporter writes lead workbooks into an output directory.
type Exporter struct {
	outputDir string
	now       func() time.Time
}

func New(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir, now: time.Now}
}

// Export writes records to {niche}_{location}_{timestamp}.xlsx with
// All Leads, No Website, High Priority and Summary sheets. Returns the
// path of the written file. Exporting zero records is an error.
func (e *Exporter) Export(records []model.BusinessRecord, niche, location string) (string, error) {
	if len(records) == 0 {
		return "", eris.New("export: no leads to export")
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create output dir")
	}

	filename := fmt.Sprintf("%s_%s_%s.xlsx",
		slug(niche), slug(location), e.now().Format("2006-01-02_15-04"))
	path := filepath.Join(e.outputDir, filename)

	file := xlsx.NewFile()

	noWebsite := filterRecords(records, func(r model.BusinessRecord) bool {
		return r.Website == ""
	})
	highPriority := filterRecords(records, func(r model.BusinessRecord) bool {
		return r.PriorityScore >= 75
	})

	if err := addLeadSheet(file, "All Leads", records); err != nil {
		return "", err
	}
	if err := addLeadSheet(file, "No Website", noWebsite); err != nil {
		return "", err
	}
	if err := addLeadSheet(file, "High Priority", highPriority); err != nil {
		return "", err
	}
	if err := addSummarySheet(file, records); err != nil {
		return "", err
	}

	if err := file.Save(path); err != nil {
		return "", eris.Wrapf(err, "export: save workbook %s", path)
	}

	zap.L().Info("exported leads",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.Int("total", len(records)),
		zap.Int("no_website", len(noWebsite)),
		zap.Int("high_priority", len(highPriority)))
	return path, nil
}

func addLeadSheet(file *xlsx.File, name string, records []model.BusinessRecord) error {
	sheet, err := file.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, col := range leadColumns {
		header.AddCell().Value = col
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().Value = rec.BusinessName
		row.AddCell().Value = rec.Phone
		row.AddCell().Value = rec.Email
		row.AddCell().Value = rec.Website
		row.AddCell().Value = rec.Instagram
		row.AddCell().Value = rec.Facebook
		row.AddCell().Value = rec.Address
		row.AddCell().Value = rec.City
		row.AddCell().Value = rec.ICO
		if rec.GoogleRating != nil {
			row.AddCell().SetFloat(*rec.GoogleRating)
		} else {
			row.AddCell()
		}
		row.AddCell().SetInt(rec.ReviewCount)
		row.AddCell().SetInt(rec.PriorityScore)
		row.AddCell().Value = rec.PriorityCategory
		row.AddCell().Value = rec.Notes
	}
	return nil
}

func addSummarySheet(file *xlsx.File, records []model.BusinessRecord) error {
	sheet, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	var (
		noWebsite, withEmail, withPhone int
		immediate, high, medium, low    int
		scoreSum                        int
	)
	for _, rec := range records {
		if rec.Website == "" {
			noWebsite++
		}
		if rec.Email != "" {
			withEmail++
		}
		if rec.Phone != "" {
			withPhone++
		}
		scoreSum += rec.PriorityScore
		switch rec.PriorityCategory {
		case model.PriorityImmediate:
			immediate++
		case model.PriorityHigh:
			high++
		case model.PriorityMedium:
			medium++
		default:
			low++
		}
	}

	addStat := func(label string, value int) {
		row := sheet.AddRow()
		row.AddCell().Value = label
		row.AddCell().SetInt(value)
	}

	addStat("Total leads", len(records))
	addStat("Without website", noWebsite)
	addStat("With email", withEmail)
	addStat("With phone", withPhone)
	addStat("Immediate opportunities", immediate)
	addStat("High priority", high)
	addStat("Medium priority", medium)
	addStat("Low priority", low)
	addStat("Average score", scoreSum/len(records))
	return nil
}

func filterRecords(records []model.BusinessRecord, keep func(model.BusinessRecord) bool) []model.BusinessRecord {
	var out []model.BusinessRecord
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// slug folds a niche or city name into a safe filename fragment, so
// "České Budějovice" becomes "ceske_budejovice".
func slug(s string) string {
	folded := normalize.Fold(s)
	if folded == "" {
		return "leads"
	}
	return strings.ReplaceAll(folded, " ", "_")
}
