package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/vltavalabs/leadscout/internal/model"
)

func testRecords() []model.BusinessRecord {
	rating := 4.6
	return []model.BusinessRecord{
		{
			BusinessName:     "Restaurace U Fleků",
			Phone:            "+420777123456",
			Address:          "Křemencova 11",
			City:             "Praha",
			GoogleRating:     &rating,
			ReviewCount:      1200,
			PriorityScore:    175,
			PriorityCategory: model.PriorityImmediate,
			Notes:            "No website - High opportunity; No email found",
		},
		{
			BusinessName:     "Bistro Kolín",
			Email:            "info@bistrokolin.cz",
			Website:          "https://bistrokolin.cz",
			City:             "Kolín",
			PriorityScore:    80,
			PriorityCategory: model.PriorityHigh,
		},
		{
			BusinessName:     "Pekárna Novák",
			Phone:            "+420608111222",
			Email:            "novak@pekarna.cz",
			Website:          "https://pekarna.cz",
			City:             "Praha",
			PriorityScore:    30,
			PriorityCategory: model.PriorityLow,
		},
	}
}

func TestExport_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	path, err := e.Export(testRecords(), "restaurants", "Praha")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "restaurants_praha_2025-03-14_09-30.xlsx"), path)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)

	all, ok := f.Sheet["All Leads"]
	require.True(t, ok)
	require.Len(t, all.Rows, 4) // header + 3 leads
	assert.Equal(t, "Business Name", all.Rows[0].Cells[0].String())
	assert.Equal(t, "Restaurace U Fleků", all.Rows[1].Cells[0].String())
	assert.Equal(t, "+420777123456", all.Rows[1].Cells[1].String())
	assert.Equal(t, "175", all.Rows[1].Cells[11].String())
	assert.Equal(t, model.PriorityImmediate, all.Rows[1].Cells[12].String())

	noWeb, ok := f.Sheet["No Website"]
	require.True(t, ok)
	require.Len(t, noWeb.Rows, 2)
	assert.Equal(t, "Restaurace U Fleků", noWeb.Rows[1].Cells[0].String())

	high, ok := f.Sheet["High Priority"]
	require.True(t, ok)
	require.Len(t, high.Rows, 3) // header + scores 175 and 80
}

func TestExport_SummarySheet(t *testing.T) {
	e := New(t.TempDir())

	path, err := e.Export(testRecords(), "restaurants", "Praha")
	require.NoError(t, err)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	summary, ok := f.Sheet["Summary"]
	require.True(t, ok)

	stats := map[string]string{}
	for _, row := range summary.Rows {
		if len(row.Cells) >= 2 {
			stats[row.Cells[0].String()] = row.Cells[1].String()
		}
	}
	assert.Equal(t, "3", stats["Total leads"])
	assert.Equal(t, "1", stats["Without website"])
	assert.Equal(t, "2", stats["With email"])
	assert.Equal(t, "1", stats["Immediate opportunities"])
	assert.Equal(t, "1", stats["High priority"])
	assert.Equal(t, "95", stats["Average score"])
}

func TestExport_EmptyInput(t *testing.T) {
	e := New(t.TempDir())

	_, err := e.Export(nil, "restaurants", "Praha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no leads")
}

func TestExport_SlugFoldsDiacritics(t *testing.T) {
	e := New(t.TempDir())
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	path, err := e.Export(testRecords(), "kavárny", "České Budějovice")
	require.NoError(t, err)
	assert.Equal(t, "kavarny_ceske_budejovice_2025-03-14_09-30.xlsx", filepath.Base(path))
}
