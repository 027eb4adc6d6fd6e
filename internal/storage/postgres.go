// Package storage provides typed access to the scraped-jobs relation and
// the search-history log in PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonesy/jobscraps/internal/config"
)

// Store wraps a pgx pool with methods for job postings and search history.
type Store struct {
	pool *pgxpool.Pool
	db   config.DatabaseConfig
}

// Open connects to the configured database with bounded retries and ensures
// the schema exists.
func Open(ctx context.Context, db config.DatabaseConfig) (*Store, error) {
	attempts := db.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = connect(ctx, db)
		if err == nil {
			break
		}
		slog.Warn("database connection failed", "attempt", attempt, "database", db.Name, "error", err)
		if attempt < attempts {
			select {
			case <-time.After(db.RetryDelay()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s after %d attempts: %w", db.Name, attempts, err)
	}

	s := &Store{pool: pool, db: db}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return s, nil
}

func connect(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, db.URL())
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// DatabaseName returns the name of the database this store is bound to.
func (s *Store) DatabaseName() string {
	return s.db.Name
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scraped_jobs (
			id TEXT PRIMARY KEY,
			site TEXT,
			job_url TEXT,
			job_url_direct TEXT,
			title TEXT,
			company TEXT,
			location TEXT,
			date_posted TEXT,
			job_type TEXT,
			salary_source TEXT,
			interval TEXT,
			min_amount DECIMAL(12,2),
			max_amount DECIMAL(12,2),
			currency TEXT,
			is_remote BOOLEAN,
			job_level TEXT,
			job_function TEXT,
			listing_type TEXT,
			emails TEXT,
			description TEXT,
			company_industry TEXT,
			company_url TEXT,
			company_logo TEXT,
			company_url_direct TEXT,
			company_addresses TEXT,
			company_num_employees TEXT,
			company_revenue TEXT,
			company_description TEXT,
			skills TEXT,
			experience_range TEXT,
			company_rating TEXT,
			company_reviews_count TEXT,
			vacancy_count TEXT,
			work_from_home_type TEXT,
			date_scraped TIMESTAMP,
			search_query TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id TEXT PRIMARY KEY,
			search_query TEXT,
			parameters TEXT,
			timestamp TIMESTAMP,
			jobs_found INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_title ON scraped_jobs(title)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_company ON scraped_jobs(company)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_date_scraped ON scraped_jobs(date_scraped)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_search_query ON scraped_jobs(search_query)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// postingColumns lists scraped_jobs columns in struct-field order. Keep in
// sync with scanPosting and insert argument order.
var postingColumns = []string{
	"id", "site", "title", "company", "location", "description",
	"min_amount", "max_amount", "is_remote", "date_posted", "date_scraped",
	"search_query", "job_url", "job_url_direct", "job_type", "salary_source",
	"interval", "currency", "job_level", "job_function", "listing_type",
	"emails", "company_industry", "company_url", "company_logo",
	"company_url_direct", "company_addresses", "company_num_employees",
	"company_revenue", "company_description", "skills", "experience_range",
	"company_rating", "company_reviews_count", "vacancy_count",
	"work_from_home_type",
}

func postingArgs(p JobPosting) []any {
	return []any{
		p.ID, p.Site, p.Title, p.Company, p.Location, p.Description,
		p.MinAmount, p.MaxAmount, p.IsRemote, p.DatePosted, p.DateScraped,
		p.SearchQuery, p.JobURL, p.JobURLDirect, p.JobType, p.SalarySource,
		p.Interval, p.Currency, p.JobLevel, p.JobFunction, p.ListingType,
		p.Emails, p.CompanyIndustry, p.CompanyURL, p.CompanyLogo,
		p.CompanyURLDirect, p.CompanyAddresses, p.CompanyNumEmployees,
		p.CompanyRevenue, p.CompanyDescription, p.Skills, p.ExperienceRange,
		p.CompanyRating, p.CompanyReviewsCount, p.VacancyCount,
		p.WorkFromHomeType,
	}
}

func scanPosting(row pgx.Row) (JobPosting, error) {
	var p JobPosting
	err := row.Scan(
		&p.ID, &p.Site, &p.Title, &p.Company, &p.Location, &p.Description,
		&p.MinAmount, &p.MaxAmount, &p.IsRemote, &p.DatePosted, &p.DateScraped,
		&p.SearchQuery, &p.JobURL, &p.JobURLDirect, &p.JobType, &p.SalarySource,
		&p.Interval, &p.Currency, &p.JobLevel, &p.JobFunction, &p.ListingType,
		&p.Emails, &p.CompanyIndustry, &p.CompanyURL, &p.CompanyLogo,
		&p.CompanyURLDirect, &p.CompanyAddresses, &p.CompanyNumEmployees,
		&p.CompanyRevenue, &p.CompanyDescription, &p.Skills, &p.ExperienceRange,
		&p.CompanyRating, &p.CompanyReviewsCount, &p.VacancyCount,
		&p.WorkFromHomeType,
	)
	return p, err
}

func insertPlaceholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// selectColumns renders the posting column list with COALESCE guarding the
// text columns, so rows written by older schema versions scan cleanly.
func selectColumns() string {
	cols := make([]string, len(postingColumns))
	for i, c := range postingColumns {
		switch c {
		case "min_amount", "max_amount", "is_remote", "date_scraped":
			cols[i] = c
		default:
			cols[i] = fmt.Sprintf("COALESCE(%s, '')", c)
		}
	}
	return strings.Join(cols, ", ")
}

// ListAllPostings returns every posting in the store.
func (s *Store) ListAllPostings(ctx context.Context) ([]JobPosting, error) {
	query := "SELECT " + selectColumns() + " FROM scraped_jobs ORDER BY id"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var postings []JobPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// GetPosting returns the posting with the given id. A missing row wraps
// ErrNotFound.
func (s *Store) GetPosting(ctx context.Context, id string) (JobPosting, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectColumns()+" FROM scraped_jobs WHERE id = $1", id)
	p, err := scanPosting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return JobPosting{}, fmt.Errorf("posting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return JobPosting{}, fmt.Errorf("loading posting %s: %w", id, err)
	}
	return p, nil
}

// CountPostings returns the number of postings in the store.
func (s *Store) CountPostings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM scraped_jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting postings: %w", err)
	}
	return n, nil
}

// insertPostingSQL skips ids already present at the database, not in Go.
// Concurrent search runs can land the same posting; the conflict clause
// turns the loser's insert into a no-op instead of a constraint error.
var insertPostingSQL = fmt.Sprintf(
	"INSERT INTO scraped_jobs (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
	strings.Join(postingColumns, ", "), insertPlaceholders(len(postingColumns)))

// InsertPostings inserts postings whose ids are not already present and
// returns the number of new rows. Existing ids are skipped, never updated.
func (s *Store) InsertPostings(ctx context.Context, postings []JobPosting, searchQuery string) (int, error) {
	if len(postings) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("rejecting posting %q: %w", p.ID, err)
		}
		p.DateScraped = now
		p.SearchQuery = searchQuery
		batch.Queue(insertPostingSQL, postingArgs(p)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	inserted := 0
	for range postings {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting postings: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if inserted > 0 {
		slog.Info("inserted new postings", "count", inserted, "search_query", searchQuery)
	}
	return inserted, nil
}

// DeleteByIDs removes the postings with the given ids and returns the
// number of rows deleted.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM scraped_jobs WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("deleting by ids: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBefore removes postings scraped before the cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM scraped_jobs WHERE date_scraped < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting before %s: %w", cutoff.Format("2006-01-02"), err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBySalary removes postings whose salary range falls below both
// thresholds. Postings without salary data are untouched.
func (s *Store) DeleteBySalary(ctx context.Context, minThreshold, maxThreshold float64) (int64, error) {
	query := `DELETE FROM scraped_jobs
		WHERE (min_amount <> 0 AND min_amount < $1 AND max_amount < $2)
		   OR (min_amount >= $1 AND max_amount < $2)`
	tag, err := s.pool.Exec(ctx, query, minThreshold, maxThreshold)
	if err != nil {
		return 0, fmt.Errorf("deleting by salary: %w", err)
	}
	return tag.RowsAffected(), nil
}

// deletableFields whitelists the columns DeleteByField may target.
var deletableFields = map[string]bool{"company": true, "title": true}

// DeleteByField removes postings whose field matches any of the LIKE
// patterns, case-insensitively. Field must be "company" or "title".
func (s *Store) DeleteByField(ctx context.Context, field string, patterns []string) (int64, error) {
	if !deletableFields[field] {
		return 0, fmt.Errorf("field %q is not deletable", field)
	}
	var total int64
	for _, pattern := range patterns {
		query := fmt.Sprintf("DELETE FROM scraped_jobs WHERE LOWER(%s) LIKE $1", field)
		tag, err := s.pool.Exec(ctx, query, strings.ToLower(pattern))
		if err != nil {
			return total, fmt.Errorf("deleting by %s pattern %q: %w", field, pattern, err)
		}
		if n := tag.RowsAffected(); n > 0 {
			slog.Info("pattern matched", "field", field, "pattern", pattern, "deleted", n)
			total += n
		}
	}
	return total, nil
}

// ClearAll deletes every posting, keeping the table.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM scraped_jobs")
	if err != nil {
		return 0, fmt.Errorf("clearing postings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LogSearch appends one row to the search-history log.
func (s *Store) LogSearch(ctx context.Context, query, parameters string, jobsFound int) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO search_history (id, search_query, parameters, timestamp, jobs_found) VALUES ($1, $2, $3, $4, $5)",
		uuid.NewString(), query, parameters, time.Now().UTC(), jobsFound,
	)
	if err != nil {
		return fmt.Errorf("logging search %q: %w", query, err)
	}
	return nil
}

// SearchHistory returns the most recent search log rows, newest first.
func (s *Store) SearchHistory(ctx context.Context, limit int) ([]SearchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(search_query, ''), COALESCE(parameters, ''), timestamp, jobs_found
		 FROM search_history ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing search history: %w", err)
	}
	defer rows.Close()

	var records []SearchRecord
	for rows.Next() {
		var r SearchRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.Parameters, &r.Timestamp, &r.JobsFound); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
