// internal/services/record_store.go
package services

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

// OpenDB opens the sqlite database shared by the record store and the
// generation ledger.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// RecordStore persists fetched historical records. The content hash is the
// primary key, so re-inserting a fetched record is a no-op.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates the table and indexes if absent.
func NewRecordStore(db *sql.DB) (*RecordStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS historical_records (
	content_hash TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	extract      TEXT NOT NULL,
	source       TEXT NOT NULL,
	url          TEXT,
	date         TEXT,
	category     TEXT,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_date ON historical_records(date);
CREATE INDEX IF NOT EXISTS idx_records_category ON historical_records(category);
CREATE INDEX IF NOT EXISTS idx_records_title ON historical_records(title);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create historical_records schema: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Insert stores one record. Returns true when a new row was written.
func (s *RecordStore) Insert(item models.HistoricalContextItem) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO historical_records
		 (content_hash, title, extract, source, url, date, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ContentHash(), item.Title, item.Extract, item.Source,
		item.URL, item.Date, item.Category, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert historical record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertBatch stores records, returning how many were new.
func (s *RecordStore) InsertBatch(items []models.HistoricalContextItem) (int, error) {
	inserted := 0
	for _, item := range items {
		fresh, err := s.Insert(item)
		if err != nil {
			return inserted, err
		}
		if fresh {
			inserted++
		}
	}
	return inserted, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM historical_records`).Scan(&n)
	return n, err
}

// SearchTitle returns records whose title contains the query substring,
// newest first.
func (s *RecordStore) SearchTitle(query string, limit int) ([]models.HistoricalContextItem, error) {
	rows, err := s.db.Query(
		`SELECT title, extract, source, url, date, category
		 FROM historical_records
		 WHERE title LIKE '%' || ? || '%'
		 ORDER BY created_at DESC LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search historical records: %w", err)
	}
	defer rows.Close()

	var items []models.HistoricalContextItem
	for rows.Next() {
		var item models.HistoricalContextItem
		var url, date, category sql.NullString
		if err := rows.Scan(&item.Title, &item.Extract, &item.Source, &url, &date, &category); err != nil {
			return nil, err
		}
		item.URL = url.String
		item.Date = date.String
		item.Category = category.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClearAll empties the store; used by the cache-reset operation.
func (s *RecordStore) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM historical_records`)
	if err != nil {
		return fmt.Errorf("clear historical records: %w", err)
	}
	return nil
}
