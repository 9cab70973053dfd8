package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vltavalabs/leadscout/internal/model"
	"github.com/vltavalabs/leadscout/internal/normalize"
)

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it for tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. Useful when several
// operators share one lead database; the default deployment stays on the
// single-file SQLite backend.
type PostgresStore struct {
	pool pgxPool
	opts Options
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts Options) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, opts: opts}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                    BIGSERIAL PRIMARY KEY,
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
	google_rating         DOUBLE PRECISION,
	review_count          INTEGER,
	google_place_id       TEXT UNIQUE,
	niche                 TEXT,
	source                TEXT,
	notes                 TEXT,
	business_activities   JSONB,
	website_quality_score INTEGER,
	priority_score        INTEGER,
	priority_category     TEXT,
	first_scraped_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	scrape_count          INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_businesses_normalized_name ON businesses(normalized_name);
CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses(city);

CREATE TABLE IF NOT EXISTS scraping_sessions (
	id               BIGSERIAL PRIMARY KEY,
	run_id           TEXT NOT NULL,
	niche            TEXT NOT NULL,
	location         TEXT NOT NULL,
	area             TEXT,
	keyword          TEXT,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	businesses_found INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'running',
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS area_progress (
	id               BIGSERIAL PRIMARY KEY,
	niche            TEXT NOT NULL,
	city             TEXT NOT NULL,
	area             TEXT NOT NULL,
	keyword          TEXT NOT NULL,
	last_scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	businesses_found INTEGER NOT NULL DEFAULT 0,
	completed        BOOLEAN NOT NULL DEFAULT FALSE,
	quality_score    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(niche, city, area, keyword)
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) BusinessExists(ctx context.Context, name, address, placeID string) (int64, bool, error) {
	if placeID != "" {
		var id int64
		err := s.pool.QueryRow(ctx,
			`SELECT id FROM businesses WHERE google_place_id = $1`, placeID,
		).Scan(&id)
		if err == nil {
			return id, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, eris.Wrap(err, "postgres: lookup by place id")
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
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM businesses
			 WHERE normalized_name = $1 AND (address LIKE $2 OR address IS NULL)
			 LIMIT 1`,
			normalized, "%"+addressPrefix(address)+"%",
		).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM businesses WHERE normalized_name = $1 LIMIT 1`,
			normalized,
		).Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: lookup by name")
	}
	return id, true, nil
}

func (s *PostgresStore) AddBusiness(ctx context.Context, rec *model.BusinessRecord) (int64, error) {
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
		_, err = s.pool.Exec(ctx, `
			UPDATE businesses SET
				address               = COALESCE($1, address),
				city                  = COALESCE($2, city),
				postal_code           = COALESCE($3, postal_code),
				ico                   = COALESCE($4, ico),
				phone                 = COALESCE($5, phone),
				email                 = COALESCE($6, email),
				website               = COALESCE($7, website),
				instagram             = COALESCE($8, instagram),
				facebook              = COALESCE($9, facebook),
				google_rating         = COALESCE($10, google_rating),
				review_count          = COALESCE($11, review_count),
				notes                 = COALESCE($12, notes),
				business_activities   = COALESCE($13, business_activities),
				website_quality_score = COALESCE($14, website_quality_score),
				priority_score        = COALESCE($15, priority_score),
				priority_category     = COALESCE($16, priority_category),
				last_updated_at       = $17,
				scrape_count          = scrape_count + 1
			WHERE id = $18`,
			nullString(rec.Address), nullString(rec.City), nullString(rec.PostalCode),
			nullString(rec.ICO), nullString(rec.Phone), nullString(rec.Email),
			nullString(rec.Website), nullString(rec.Instagram), nullString(rec.Facebook),
			nullFloat(rec.GoogleRating), nullInt(rec.ReviewCount), nullString(rec.Notes),
			activities, nullInt(rec.WebsiteQualityScore), nullInt(rec.PriorityScore),
			nullString(rec.PriorityCategory), now, id,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: update business %d", id)
		}
		return id, nil
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO businesses (
			business_name, normalized_name, address, city, postal_code, ico,
			phone, email, website, instagram, facebook, google_rating,
			review_count, google_place_id, niche, source, notes,
			business_activities, website_quality_score, priority_score,
			priority_category, first_scraped_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id`,
		rec.BusinessName, normalized,
		nullString(rec.Address), nullString(rec.City), nullString(rec.PostalCode),
		nullString(rec.ICO), nullString(rec.Phone), nullString(rec.Email),
		nullString(rec.Website), nullString(rec.Instagram), nullString(rec.Facebook),
		nullFloat(rec.GoogleRating), nullInt(rec.ReviewCount), nullString(rec.GooglePlaceID),
		nullString(rec.Niche), nullString(rec.Source), nullString(rec.Notes),
		activities, nullInt(rec.WebsiteQualityScore), nullInt(rec.PriorityScore),
		nullString(rec.PriorityCategory), now, now,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert business")
	}
	return id, nil
}

func (s *PostgresStore) ListBusinesses(ctx context.Context, filter Filter) ([]model.BusinessRecord, error) {
	query := `SELECT id, business_name, normalized_name, address, city, postal_code, ico,
		phone, email, website, instagram, facebook, google_rating, review_count,
		google_place_id, niche, source, notes, business_activities,
		website_quality_score, priority_score, priority_category,
		first_scraped_at, last_updated_at, scrape_count
		FROM businesses WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Niche != "" {
		query += ` AND niche = ` + arg(filter.Niche)
	}
	if filter.City != "" {
		query += ` AND city = ` + arg(filter.City)
	}
	if filter.HasWebsite != nil {
		if *filter.HasWebsite {
			query += ` AND website IS NOT NULL AND website != ''`
		} else {
			query += ` AND (website IS NULL OR website = '')`
		}
	}
	if filter.MinScore > 0 {
		query += ` AND priority_score >= ` + arg(filter.MinScore)
	}

	query += ` ORDER BY priority_score DESC, last_updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		rec, err := scanPgBusiness(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list businesses iterate")
}

func (s *PostgresStore) StartSession(ctx context.Context, niche, location, area, keyword string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scraping_sessions (run_id, niche, location, area, keyword, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		uuid.New().String(), niche, location, nullString(area), nullString(keyword),
		model.SessionRunning, time.Now().UTC(),
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: start session")
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID int64, found int, status, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scraping_sessions SET completed_at = $1, businesses_found = $2, status = $3, notes = $4
		 WHERE id = $5`,
		time.Now().UTC(), found, status, nullString(notes), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: end session %d", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", sessionID)
	}
	return nil
}

func (s *PostgresStore) RecentSessions(ctx context.Context, limit int) ([]model.ScrapingSession, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, niche, location, area, keyword, started_at, completed_at,
		        businesses_found, status, notes
		 FROM scraping_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent sessions")
	}
	defer rows.Close()

	var sessions []model.ScrapingSession
	for rows.Next() {
		var (
			sess                 model.ScrapingSession
			area, keyword, notes *string
			completedAt          *time.Time
		)
		if err := rows.Scan(&sess.ID, &sess.RunID, &sess.Niche, &sess.Location,
			&area, &keyword, &sess.StartedAt, &completedAt,
			&sess.BusinessesFound, &sess.Status, &notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sess.Area = deref(area)
		sess.Keyword = deref(keyword)
		sess.Notes = deref(notes)
		sess.CompletedAt = completedAt
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: recent sessions iterate")
}

func (s *PostgresStore) MarkAreaScraped(ctx context.Context, niche, city, area, keyword string, found int) error {
	quality := s.opts.qualityScore(found)
	completed := found >= s.opts.MinResultsForCompletion

	_, err := s.pool.Exec(ctx, `
		INSERT INTO area_progress (niche, city, area, keyword, businesses_found, completed, quality_score, last_scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (niche, city, area, keyword) DO UPDATE SET
			businesses_found = EXCLUDED.businesses_found,
			completed        = EXCLUDED.completed,
			quality_score    = EXCLUDED.quality_score,
			last_scraped_at  = EXCLUDED.last_scraped_at`,
		niche, city, area, keyword, found, completed, quality, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: mark area scraped")
}

func (s *PostgresStore) IsAreaScraped(ctx context.Context, niche, city, area, keyword string) (bool, error) {
	var (
		completed   bool
		found       int
		lastScraped time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT completed, businesses_found, last_scraped_at FROM area_progress
		 WHERE niche = $1 AND city = $2 AND area = $3 AND keyword = $4`,
		niche, city, area, keyword,
	).Scan(&completed, &found, &lastScraped)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: is area scraped")
	}
	return s.opts.areaScraped(completed, found, lastScraped, time.Now().UTC()), nil
}

func (s *PostgresStore) ListAreaProgress(ctx context.Context, niche, city string) ([]model.AreaProgress, error) {
	query := `SELECT id, niche, city, area, keyword, last_scraped_at, businesses_found, completed, quality_score
		FROM area_progress WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if niche != "" {
		query += ` AND niche = ` + arg(niche)
	}
	if city != "" {
		query += ` AND city = ` + arg(city)
	}
	query += ` ORDER BY city, area`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list area progress")
	}
	defer rows.Close()

	var progress []model.AreaProgress
	for rows.Next() {
		var p model.AreaProgress
		if err := rows.Scan(&p.ID, &p.Niche, &p.City, &p.Area, &p.Keyword,
			&p.LastScrapedAt, &p.BusinessesFound, &p.Completed, &p.QualityScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan area progress")
		}
		progress = append(progress, p)
	}
	return progress, eris.Wrap(rows.Err(), "postgres: list area progress iterate")
}

func (s *PostgresStore) ResetArea(ctx context.Context, niche, city, area string) error {
	var err error
	if area != "" {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM area_progress WHERE niche = $1 AND city = $2 AND area = $3`,
			niche, city, area)
	} else {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM area_progress WHERE niche = $1 AND city = $2`,
			niche, city)
	}
	return eris.Wrap(err, "postgres: reset area")
}

func (s *PostgresStore) ResetAllProgress(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM area_progress`)
	return eris.Wrap(err, "postgres: reset all progress")
}

func (s *PostgresStore) ProgressStats(ctx context.Context, niche, city string) (*Stats, error) {
	query := `SELECT COUNT(*) FROM businesses WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if niche != "" {
		query += ` AND niche = ` + arg(niche)
	}
	if city != "" {
		query += ` AND city = ` + arg(city)
	}

	stats := &Stats{}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&stats.TotalBusinesses); err != nil {
		return nil, eris.Wrap(err, "postgres: count businesses")
	}

	cityQuery := `SELECT city, COUNT(*) FROM businesses WHERE city IS NOT NULL`
	var cityArgs []any
	if niche != "" {
		cityQuery += ` AND niche = $1`
		cityArgs = append(cityArgs, niche)
	}
	cityQuery += ` GROUP BY city ORDER BY COUNT(*) DESC LIMIT 10`

	rows, err := s.pool.Query(ctx, cityQuery, cityArgs...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by city")
	}
	defer rows.Close()
	for rows.Next() {
		var cc CityCount
		if err := rows.Scan(&cc.City, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city count")
		}
		stats.ByCity = append(stats.ByCity, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: city counts iterate")
	}

	stats.RecentSessions, err = s.RecentSessions(ctx, 10)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// helpers

func placeholder(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return "$" + digits[n:n+1]
	}
	return "$" + digits[n/10:n/10+1] + digits[n%10:n%10+1]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanPgBusiness(rows pgx.Rows) (*model.BusinessRecord, error) {
	var (
		rec                                                  model.BusinessRecord
		address, city, postalCode, ico, phone, email         *string
		website, instagram, facebook, placeID, niche, source *string
		notes, category                                      *string
		activities                                           []byte
		gRating                                              *float64
		reviewCount, qualityScore, priorityScore             *int
	)

	err := rows.Scan(&rec.ID, &rec.BusinessName, &rec.NormalizedName,
		&address, &city, &postalCode, &ico, &phone, &email, &website,
		&instagram, &facebook, &gRating, &reviewCount, &placeID, &niche,
		&source, &notes, &activities, &qualityScore, &priorityScore,
		&category, &rec.FirstScrapedAt, &rec.LastUpdatedAt, &rec.ScrapeCount)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan business")
	}

	rec.Address = deref(address)
	rec.City = deref(city)
	rec.PostalCode = deref(postalCode)
	rec.ICO = deref(ico)
	rec.Phone = deref(phone)
	rec.Email = deref(email)
	rec.Website = deref(website)
	rec.Instagram = deref(instagram)
	rec.Facebook = deref(facebook)
	rec.GooglePlaceID = deref(placeID)
	rec.Niche = deref(niche)
	rec.Source = deref(source)
	rec.Notes = deref(notes)
	rec.PriorityCategory = deref(category)
	rec.GoogleRating = gRating
	if reviewCount != nil {
		rec.ReviewCount = *reviewCount
	}
	if qualityScore != nil {
		rec.WebsiteQualityScore = *qualityScore
	}
	if priorityScore != nil {
		rec.PriorityScore = *priorityScore
	}
	if len(activities) > 0 {
		if err := json.Unmarshal(activities, &rec.BusinessActivities); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal activities")
		}
	}
	return &rec, nil
}
