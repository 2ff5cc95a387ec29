package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jimezsa/jobscrape/internal/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	job_link     TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL,
	location     TEXT NOT NULL,
	date_posted  TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL,
	source       TEXT NOT NULL,
	date_scraped TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_records_source ON job_records(source);
`

// DB persists job records in SQLite. Records are keyed on their link and
// never updated once stored.
type DB struct {
	Pool *sql.DB
}

func Open(ctx context.Context, path string) (*DB, error) {
	// modernc sqlite takes pragmas in the DSN
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	if _, err := pool.ExecContext(ctx, schema); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// InsertRecords stores records whose link is not yet known and returns how
// many were added.
func (d *DB) InsertRecords(ctx context.Context, records []models.JobRecord) (added int, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO job_records (job_link, title, company, location, date_posted, description, source, date_scraped)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.Link,
			rec.Title,
			rec.Company,
			rec.Location,
			postedValue(rec),
			rec.Description,
			string(rec.Source),
			rec.ScrapedAt.Local().Format("2006-01-02 15:04:05"),
		)
		if err != nil {
			return added, fmt.Errorf("insert %s: %w", rec.Link, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Count returns the number of stored records.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_records;`).Scan(&n)
	return n, err
}

// Links returns stored links in insertion order.
func (d *DB) Links(ctx context.Context) ([]string, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT job_link FROM job_records ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func postedValue(rec models.JobRecord) string {
	if rec.PostedAtRaw != "" {
		return rec.PostedAtRaw
	}
	if !rec.PostedAt.IsZero() {
		return rec.PostedAt.Format("2006-01-02")
	}
	return ""
}
