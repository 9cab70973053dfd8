package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vltavalabs/leadscout/internal/config"
	"github.com/vltavalabs/leadscout/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, OptionsFromConfig(config.ProgressConfig{}))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func rating(v float64) *float64 { return &v }

// --- Businesses ---

func TestSQLite_AddBusiness_Insert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName: "Kavárna Slavia",
		City:         "Praha",
		Phone:        "+420777123456",
		Niche:        "cafes",
		Source:       "google_maps",
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Kavárna Slavia", records[0].BusinessName)
	// Normalized name is derived, with the trade descriptor stripped.
	assert.Equal(t, "slavia", records[0].NormalizedName)
	assert.Equal(t, 1, records[0].ScrapeCount)
}

func TestSQLite_AddBusiness_UpsertNeverRegressesField(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName: "Pekárna Novák",
		Phone:        "+420111111111",
		City:         "Brno",
	})
	require.NoError(t, err)

	// Incoming record with no phone must not clear the stored one.
	id2, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName: "Pekárna Novák",
		Email:        "info@novak.cz",
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "+420111111111", records[0].Phone)
	assert.Equal(t, "info@novak.cz", records[0].Email)
	assert.Equal(t, 2, records[0].ScrapeCount)
}

func TestSQLite_AddBusiness_UpsertDoesNotOverwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName: "Autoservis Dvořák",
		Website:      "https://dvorak.cz",
	})
	require.NoError(t, err)

	// Persistence-layer merge: last write does not win on non-null fields.
	_, err = st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName: "Autoservis Dvořák",
		Website:      "https://other-site.cz",
	})
	require.NoError(t, err)

	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://dvorak.cz", records[0].Website)
}

func TestSQLite_BusinessExists_Precedence(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName:  "Restaurace U Petra",
		Address:       "Vodičkova 12, Praha 1",
		GooglePlaceID: "place-123",
	})
	require.NoError(t, err)

	// By place id, regardless of name.
	id, found, err := st.BusinessExists(ctx, "completely different", "", "place-123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Greater(t, id, int64(0))

	// By normalized name + address containment.
	_, found, err = st.BusinessExists(ctx, "restaurace u petra", "Vodičkova 12", "")
	require.NoError(t, err)
	assert.True(t, found)

	// By normalized name alone.
	_, found, err = st.BusinessExists(ctx, "U PETRA", "", "")
	require.NoError(t, err)
	assert.True(t, found)

	// Negative result is not an error.
	_, found, err = st.BusinessExists(ctx, "neexistuje", "", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLite_AddBusiness_DistinctPlaceIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Records without place ids must not collide on the unique index.
	_, err := st.AddBusiness(ctx, &model.BusinessRecord{BusinessName: "Firma Alfa", City: "Praha"})
	require.NoError(t, err)
	_, err = st.AddBusiness(ctx, &model.BusinessRecord{BusinessName: "Firma Beta", City: "Praha"})
	require.NoError(t, err)

	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLite_ListBusinesses_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := []model.BusinessRecord{
		{BusinessName: "S Webem", City: "Praha", Niche: "cafes", Website: "https://a.cz", PriorityScore: 40},
		{BusinessName: "Bez Webu", City: "Praha", Niche: "cafes", Phone: "+420777123456", PriorityScore: 150},
		{BusinessName: "Jiné Město", City: "Brno", Niche: "cafes", Phone: "+420777111222", PriorityScore: 90},
	}
	for i := range seed {
		_, err := st.AddBusiness(ctx, &seed[i])
		require.NoError(t, err)
	}

	hasWebsite := false
	records, err := st.ListBusinesses(ctx, Filter{City: "Praha", HasWebsite: &hasWebsite})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bez Webu", records[0].BusinessName)

	records, err = st.ListBusinesses(ctx, Filter{MinScore: 75})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Ordered by priority score descending.
	assert.Equal(t, "Bez Webu", records[0].BusinessName)

	records, err = st.ListBusinesses(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLite_Business_RoundTripFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AddBusiness(ctx, &model.BusinessRecord{
		BusinessName:       "Plný Záznam",
		Address:            "Dlouhá 1, Praha",
		ICO:                "25596641",
		GoogleRating:       rating(4.2),
		ReviewCount:        87,
		BusinessActivities: []string{"hostinská činnost", "výroba"},
		PriorityScore:      120,
		PriorityCategory:   model.PriorityImmediate,
	})
	require.NoError(t, err)

	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "25596641", rec.ICO)
	require.NotNil(t, rec.GoogleRating)
	assert.Equal(t, 4.2, *rec.GoogleRating)
	assert.Equal(t, 87, rec.ReviewCount)
	assert.Equal(t, []string{"hostinská činnost", "výroba"}, rec.BusinessActivities)
	assert.Equal(t, 120, rec.PriorityScore)
}

// --- Sessions ---

func TestSQLite_SessionLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.StartSession(ctx, "cafes", "Praha", "Praha 1", "kavárna")
	require.NoError(t, err)

	sessions, err := st.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.SessionRunning, sessions[0].Status)
	assert.NotEmpty(t, sessions[0].RunID)
	assert.Nil(t, sessions[0].CompletedAt)

	require.NoError(t, st.EndSession(ctx, id, 42, model.SessionCompleted, ""))

	sessions, err = st.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.SessionCompleted, sessions[0].Status)
	assert.Equal(t, 42, sessions[0].BusinessesFound)
	assert.NotNil(t, sessions[0].CompletedAt)
}

func TestSQLite_EndSession_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.EndSession(context.Background(), 9999, 0, model.SessionFailed, "boom")
	require.Error(t, err)
}

// --- Area progress ---

func TestSQLite_MarkAreaScraped_QualitySteps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cases := []struct {
		found     int
		quality   int
		completed bool
	}{
		{120, 100, true},
		{50, 80, true},
		{20, 50, false},
		{12, 30, false},
		{3, 10, false},
	}
	for _, tc := range cases {
		require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", tc.found))
		progress, err := st.ListAreaProgress(ctx, "cafes", "Praha")
		require.NoError(t, err)
		require.Len(t, progress, 1, "upsert must replace, not accumulate")
		assert.Equal(t, tc.quality, progress[0].QualityScore, "found=%d", tc.found)
		assert.Equal(t, tc.completed, progress[0].Completed, "found=%d", tc.found)
	}
}

func TestSQLite_LowYieldScrapeForcesRescrape(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// 12 results: quality 30, not completed, area stays open.
	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", 12))

	done, err := st.IsAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSQLite_IsAreaScraped_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	done, err := st.IsAreaScraped(context.Background(), "cafes", "Praha", "Praha 9", "kavárna")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSQLite_IsAreaScraped_CompletedAndRecent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", 50))

	done, err := st.IsAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSQLite_IsAreaScraped_WindowBoundary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", 60))

	backdate := func(ts time.Time) {
		_, err := st.db.ExecContext(ctx,
			`UPDATE area_progress SET last_scraped_at = ? WHERE niche = ? AND city = ? AND area = ? AND keyword = ?`,
			ts, "cafes", "Praha", "Praha 1", "kavárna")
		require.NoError(t, err)
	}

	// 6 days 23 hours ago: still inside the window.
	backdate(time.Now().UTC().Add(-(6*24 + 23) * time.Hour))
	done, err := st.IsAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna")
	require.NoError(t, err)
	assert.True(t, done)

	// 7 days and 1 second ago: window expired, re-scrape.
	backdate(time.Now().UTC().Add(-7*24*time.Hour - time.Second))
	done, err = st.IsAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSQLite_IsAreaScraped_CompletedFlagAloneInsufficient(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Row with completed=1 but too few results; the count guard must win.
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO area_progress (niche, city, area, keyword, businesses_found, completed, quality_score, last_scraped_at)
		 VALUES (?, ?, ?, ?, ?, 1, 30, ?)`,
		"cafes", "Praha", "Praha 2", "kavárna", 12, time.Now().UTC())
	require.NoError(t, err)

	done, err := st.IsAreaScraped(ctx, "cafes", "Praha", "Praha 2", "kavárna")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSQLite_ResetArea(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", 80))
	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 2", "kavárna", 80))
	_, err := st.AddBusiness(ctx, &model.BusinessRecord{BusinessName: "Přežije Reset", City: "Praha"})
	require.NoError(t, err)

	// Reset one area.
	require.NoError(t, st.ResetArea(ctx, "cafes", "Praha", "Praha 1"))
	progress, err := st.ListAreaProgress(ctx, "cafes", "Praha")
	require.NoError(t, err)
	assert.Len(t, progress, 1)

	// Reset whole city.
	require.NoError(t, st.ResetArea(ctx, "cafes", "Praha", ""))
	progress, err = st.ListAreaProgress(ctx, "cafes", "Praha")
	require.NoError(t, err)
	assert.Empty(t, progress)

	// Businesses are never deleted by a progress reset.
	records, err := st.ListBusinesses(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLite_ResetAllProgress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.MarkAreaScraped(ctx, "cafes", "Praha", "Praha 1", "kavárna", 80))
	require.NoError(t, st.MarkAreaScraped(ctx, "restaurants", "Brno", "Brno-střed", "restaurace", 80))

	require.NoError(t, st.ResetAllProgress(ctx))
	progress, err := st.ListAreaProgress(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, progress)
}

// --- Stats ---

func TestSQLite_ProgressStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, rec := range []model.BusinessRecord{
		{BusinessName: "A", City: "Praha", Niche: "cafes", Phone: "+420777000001"},
		{BusinessName: "B", City: "Praha", Niche: "cafes", Phone: "+420777000002"},
		{BusinessName: "C", City: "Brno", Niche: "cafes", Phone: "+420777000003"},
	} {
		r := rec
		_, err := st.AddBusiness(ctx, &r)
		require.NoError(t, err)
	}
	id, err := st.StartSession(ctx, "cafes", "Praha", "", "")
	require.NoError(t, err)
	require.NoError(t, st.EndSession(ctx, id, 3, model.SessionCompleted, ""))

	stats, err := st.ProgressStats(ctx, "cafes", "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBusinesses)
	require.NotEmpty(t, stats.ByCity)
	assert.Equal(t, "Praha", stats.ByCity[0].City)
	assert.Equal(t, 2, stats.ByCity[0].Count)
	assert.Len(t, stats.RecentSessions, 1)
}
