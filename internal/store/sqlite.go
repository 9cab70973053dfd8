package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vltavalabs/leadscout/internal/model"
	"github.com/vltavalabs/leadscout/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite. One process, one
// database file; every write autocommits.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLite opens a SQLite database at the given path, creating parent
// directories as needed, and configures WAL mode.
func NewSQLite(path string, opts Options) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create data dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	business_name         TEXT NOT NULL,
	normalized_name       TEXT NOT NULL,
	address               TEXT,
	city                  TEXT,
	postal_code           TEXT,
	ico                   TEXT,
	phone                 TEXT,
	email                 TEXT,
	website               TEXT,
	instagram             TEXT,
	facebook              TEXT,
	google_rating         REAL,
	review_count          INTEGER,
	google_place_id       TEXT UNIQUE,
	niche                 TEXT,
	source                TEXT,
	notes                 TEXT,
	business_activities   TEXT,
	website_quality_score INTEGER,
	priority_score        INTEGER,
	priority_category     TEXT,
	first_scraped_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	last_updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	scrape_count          INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_businesses_normalized_name ON businesses(normalized_name);
CREATE INDEX IF NOT EXISTS idx_businesses_place_id ON businesses(google_place_id);
CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses(city);

CREATE TABLE IF NOT EXISTS scraping_sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	niche            TEXT NOT NULL,
	location         TEXT NOT NULL,
	area             TEXT,
	keyword          TEXT,
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at     DATETIME,
	businesses_found INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'running',
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS area_progress (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	niche            TEXT NOT NULL,
	city             TEXT NOT NULL,
	area             TEXT NOT NULL,
	keyword          TEXT NOT NULL,
	last_scraped_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	businesses_found INTEGER NOT NULL DEFAULT 0,
	completed        INTEGER NOT NULL DEFAULT 0,
	quality_score    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(niche, city, area, keyword)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BusinessExists looks up a business by, in order of precedence: exact
// place id, normalized name plus address containment, normalized name
// alone. First hit wins; it never scans for a best match.
func (s *SQLiteStore) BusinessExists(ctx context.Context, name, address, placeID string) (int64, bool, error) {
	if placeID != "" {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM businesses WHERE google_place_id = ?`, placeID,
		).Scan(&id)
		if err == nil {
			return id, true, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, eris.Wrap(err, "sqlite: lookup by place id")
		}
	}

	normalized := normalize.Name(name)
	if normalized == "" {
		return 0, false, nil
	}

	var (
		id  int64
		err error
	)
	if address != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM businesses
			 WHERE normalized_name = ? AND (address LIKE ? OR address IS NULL)
			 LIMIT 1`,
			normalized, "%"+addressPrefix(address)+"%",
		).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM businesses WHERE normalized_name = ? LIMIT 1`,
			normalized,
		).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: lookup by name")
	}
	return id, true, nil
}

// AddBusiness upserts one business. An existing row is updated with
// COALESCE semantics: an empty incoming field never overwrites a non-null
// stored value, so batch noise cannot regress verified data. New rows get
// a freshly computed normalized name.
func (s *SQLiteStore) AddBusiness(ctx context.Context, rec *model.BusinessRecord) (int64, error) {
	normalized := normalize.Name(rec.BusinessName)

	id, exists, err := s.BusinessExists(ctx, rec.BusinessName, rec.Address, rec.GooglePlaceID)
	if err != nil {
		return 0, err
	}

	activities, err := activitiesJSON(rec.BusinessActivities)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if exists {
		_, err = s.db.ExecContext(ctx, `
			UPDATE businesses SET
				address               = COALESCE(?, address),
				city                  = COALESCE(?, city),
				postal_code           = COALESCE(?, postal_code),
				ico                   = COALESCE(?, ico),
				phone                 = COALESCE(?, phone),
				email                 = COALESCE(?, email),
				website               = COALESCE(?, website),
				instagram             = COALESCE(?, instagram),
				facebook              = COALESCE(?, facebook),
				google_rating         = COALESCE(?, google_rating),
				review_count          = COALESCE(?, review_count),
				notes                 = COALESCE(?, notes),
				business_activities   = COALESCE(?, business_activities),
				website_quality_score = COALESCE(?, website_quality_score),
				priority_score        = COALESCE(?, priority_score),
				priority_category     = COALESCE(?, priority_category),
				last_updated_at       = ?,
				scrape_count          = scrape_count + 1
			WHERE id = ?`,
			nullString(rec.Address), nullString(rec.City), nullString(rec.PostalCode),
			nullString(rec.ICO), nullString(rec.Phone), nullString(rec.Email),
			nullString(rec.Website), nullString(rec.Instagram), nullString(rec.Facebook),
			nullFloat(rec.GoogleRating), nullInt(rec.ReviewCount), nullString(rec.Notes),
			activities, nullInt(rec.WebsiteQualityScore), nullInt(rec.PriorityScore),
			nullString(rec.PriorityCategory), now, id,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: update business %d", id)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (
			business_name, normalized_name, address, city, postal_code, ico,
			phone, email, website, instagram, facebook, google_rating,
			review_count, google_place_id, niche, source, notes,
			business_activities, website_quality_score, priority_score,
			priority_category, first_scraped_at, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BusinessName, normalized,
		nullString(rec.Address), nullString(rec.City), nullString(rec.PostalCode),
		nullString(rec.ICO), nullString(rec.Phone), nullString(rec.Email),
		nullString(rec.Website), nullString(rec.Instagram), nullString(rec.Facebook),
		nullFloat(rec.GoogleRating), nullInt(rec.ReviewCount), nullString(rec.GooglePlaceID),
		nullString(rec.Niche), nullString(rec.Source), nullString(rec.Notes),
		activities, nullInt(rec.WebsiteQualityScore), nullInt(rec.PriorityScore),
		nullString(rec.PriorityCategory), now, now,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert business")
	}
	newID, err := res.LastInsertId()
	return newID, eris.Wrap(err, "sqlite: last insert id")
}

func (s *SQLiteStore) ListBusinesses(ctx context.Context, filter Filter) ([]model.BusinessRecord, error) {
	query := `SELECT id, business_name, normalized_name, address, city, postal_code, ico,
		phone, email, website, instagram, facebook, google_rating, review_count,
		google_place_id, niche, source, notes, business_activities,
		website_quality_score, priority_score, priority_category,
		first_scraped_at, last_updated_at, scrape_count
		FROM businesses WHERE 1=1`
	var args []any

	if filter.Niche != "" {
		query += ` AND niche = ?`
		args = append(args, filter.Niche)
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.HasWebsite != nil {
		if *filter.HasWebsite {
			query += ` AND website IS NOT NULL AND website != ''`
		} else {
			query += ` AND (website IS NULL OR website = '')`
		}
	}
	if filter.MinScore > 0 {
		query += ` AND priority_score >= ?`
		args = append(args, filter.MinScore)
	}

	query += ` ORDER BY priority_score DESC, last_updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		rec, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list businesses iterate")
}

func (s *SQLiteStore) StartSession(ctx context.Context, niche, location, area, keyword string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scraping_sessions (run_id, niche, location, area, keyword, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), niche, location, nullString(area), nullString(keyword),
		model.SessionRunning, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: start session")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: session id")
}

func (s *SQLiteStore) EndSession(ctx context.Context, sessionID int64, found int, status, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scraping_sessions SET completed_at = ?, businesses_found = ?, status = ?, notes = ?
		 WHERE id = ?`,
		time.Now().UTC(), found, status, nullString(notes), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: end session %d", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]model.ScrapingSession, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, niche, location, area, keyword, started_at, completed_at,
		        businesses_found, status, notes
		 FROM scraping_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent sessions")
	}
	defer rows.Close()

	var sessions []model.ScrapingSession
	for rows.Next() {
		var (
			sess                 model.ScrapingSession
			area, keyword, notes sql.NullString
			completedAt          sql.NullTime
		)
		if err := rows.Scan(&sess.ID, &sess.RunID, &sess.Niche, &sess.Location,
			&area, &keyword, &sess.StartedAt, &completedAt,
			&sess.BusinessesFound, &sess.Status, &notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sess.Area = area.String
		sess.Keyword = keyword.String
		sess.Notes = notes.String
		if completedAt.Valid {
			t := completedAt.Time
			sess.CompletedAt = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: recent sessions iterate")
}

// MarkAreaScraped upserts the progress row for one area. A resubmission
// replaces the prior result for that key; history never accumulates.
func (s *SQLiteStore) MarkAreaScraped(ctx context.Context, niche, city, area, keyword string, found int) error {
	quality := s.opts.qualityScore(found)
	completed := found >= s.opts.MinResultsForCompletion

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO area_progress (niche, city, area, keyword, businesses_found, completed, quality_score, last_scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(niche, city, area, keyword) DO UPDATE SET
			businesses_found = excluded.businesses_found,
			completed        = excluded.completed,
			quality_score    = excluded.quality_score,
			last_scraped_at  = excluded.last_scraped_at`,
		niche, city, area, keyword, found, boolInt(completed), quality, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: mark area scraped")
}

// IsAreaScraped reports whether an area can be skipped: the row must exist,
// be completed, have enough results, and be recent enough. Any failing
// condition forces a re-scrape.
func (s *SQLiteStore) IsAreaScraped(ctx context.Context, niche, city, area, keyword string) (bool, error) {
	var (
		completed   int
		found       int
		lastScraped time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT completed, businesses_found, last_scraped_at FROM area_progress
		 WHERE niche = ? AND city = ? AND area = ? AND keyword = ?`,
		niche, city, area, keyword,
	).Scan(&completed, &found, &lastScraped)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: is area scraped")
	}

	return s.opts.areaScraped(completed != 0, found, lastScraped, time.Now().UTC()), nil
}

func (s *SQLiteStore) ListAreaProgress(ctx context.Context, niche, city string) ([]model.AreaProgress, error) {
	query := `SELECT id, niche, city, area, keyword, last_scraped_at, businesses_found, completed, quality_score
		FROM area_progress WHERE 1=1`
	var args []any
	if niche != "" {
		query += ` AND niche = ?`
		args = append(args, niche)
	}
	if city != "" {
		query += ` AND city = ?`
		args = append(args, city)
	}
	query += ` ORDER BY city, area`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list area progress")
	}
	defer rows.Close()

	var progress []model.AreaProgress
	for rows.Next() {
		var (
			p         model.AreaProgress
			completed int
		)
		if err := rows.Scan(&p.ID, &p.Niche, &p.City, &p.Area, &p.Keyword,
			&p.LastScrapedAt, &p.BusinessesFound, &completed, &p.QualityScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area progress")
		}
		p.Completed = completed != 0
		progress = append(progress, p)
	}
	return progress, eris.Wrap(rows.Err(), "sqlite: list area progress iterate")
}

// ResetArea deletes progress rows to force a re-scrape. Business records
// are never deleted. An empty area resets the whole city.
func (s *SQLiteStore) ResetArea(ctx context.Context, niche, city, area string) error {
	var err error
	if area != "" {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM area_progress WHERE niche = ? AND city = ? AND area = ?`,
			niche, city, area)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM area_progress WHERE niche = ? AND city = ?`,
			niche, city)
	}
	return eris.Wrap(err, "sqlite: reset area")
}

func (s *SQLiteStore) ResetAllProgress(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM area_progress`)
	return eris.Wrap(err, "sqlite: reset all progress")
}

func (s *SQLiteStore) ProgressStats(ctx context.Context, niche, city string) (*Stats, error) {
	query := `SELECT COUNT(*) FROM businesses WHERE 1=1`
	var args []any
	if niche != "" {
		query += ` AND niche = ?`
		args = append(args, niche)
	}
	if city != "" {
		query += ` AND city = ?`
		args = append(args, city)
	}

	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalBusinesses); err != nil {
		return nil, eris.Wrap(err, "sqlite: count businesses")
	}

	cityQuery := `SELECT city, COUNT(*) FROM businesses WHERE city IS NOT NULL`
	var cityArgs []any
	if niche != "" {
		cityQuery += ` AND niche = ?`
		cityArgs = append(cityArgs, niche)
	}
	cityQuery += ` GROUP BY city ORDER BY COUNT(*) DESC LIMIT ?`
	cityArgs = append(cityArgs, 10)

	rows, err := s.db.QueryContext(ctx, cityQuery, cityArgs...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by city")
	}
	defer rows.Close()
	for rows.Next() {
		var cc CityCount
		if err := rows.Scan(&cc.City, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city count")
		}
		stats.ByCity = append(stats.ByCity, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: city counts iterate")
	}

	stats.RecentSessions, err = s.RecentSessions(ctx, 10)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// helpers

// addressPrefix returns the first 20 runes of an address, the containment
// key used for the loose address match.
func addressPrefix(address string) string {
	runes := []rune(address)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return string(runes)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func activitiesJSON(activities []string) (any, error) {
	if len(activities) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(activities)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal activities")
	}
	return string(data), nil
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*model.BusinessRecord, error) {
	var (
		rec                                                       model.BusinessRecord
		address, city, postalCode, ico, phone, email              sql.NullString
		website, instagram, facebook, placeID, niche, source      sql.NullString
		notes, activities, category                               sql.NullString
		rating                                                    sql.NullFloat64
		reviewCount, qualityScore, priorityScore                  sql.NullInt64
	)

	err := row.Scan(&rec.ID, &rec.BusinessName, &rec.NormalizedName,
		&address, &city, &postalCode, &ico, &phone, &email, &website,
		&instagram, &facebook, &rating, &reviewCount, &placeID, &niche,
		&source, &notes, &activities, &qualityScore, &priorityScore,
		&category, &rec.FirstScrapedAt, &rec.LastUpdatedAt, &rec.ScrapeCount)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan business")
	}

	rec.Address = address.String
	rec.City = city.String
	rec.PostalCode = postalCode.String
	rec.ICO = ico.String
	rec.Phone = phone.String
	rec.Email = email.String
	rec.Website = website.String
	rec.Instagram = instagram.String
	rec.Facebook = facebook.String
	rec.GooglePlaceID = placeID.String
	rec.Niche = niche.String
	rec.Source = source.String
	rec.Notes = notes.String
	rec.PriorityCategory = category.String
	if rating.Valid {
		v := rating.Float64
		rec.GoogleRating = &v
	}
	rec.ReviewCount = int(reviewCount.Int64)
	rec.WebsiteQualityScore = int(qualityScore.Int64)
	rec.PriorityScore = int(priorityScore.Int64)
	if activities.Valid && activities.String != "" {
		if err := json.Unmarshal([]byte(activities.String), &rec.BusinessActivities); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal activities")
		}
	}
	return &rec, nil
}
