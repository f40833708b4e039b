// internal/services/ledger_service.go
package services

import (
	"database/sql"
	"fmt"
	"path"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/storage"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// Relative directories under the data/static storage roots.
const (
	generationsDirName = "generations"
	imagesDirName      = "generated_images"
	musicDirName       = "generated_music"
)

// LedgerService is the per-user record of generated artifacts. Deleting an
// entry cascades to the artifact files it references; missing files are
// logged and tolerated. Unlike the generators, the store operations here may
// return errors for the handler to surface.
type LedgerService struct {
	db            *sql.DB
	dataStorage   *storage.FileStorage
	staticStorage *storage.FileStorage
	logger        *utils.Logger
}

// NewLedgerService creates the table if absent.
func NewLedgerService(db *sql.DB, dataStorage, staticStorage *storage.FileStorage) (*LedgerService, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         TEXT NOT NULL,
	generation_type TEXT NOT NULL,
	file_ref        TEXT NOT NULL,
	title           TEXT,
	snippet         TEXT,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_entries(user_id, created_at);`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &LedgerService{
		db:            db,
		dataStorage:   dataStorage,
		staticStorage: staticStorage,
		logger:        utils.GetLogger(),
	}, nil
}

// Insert appends one entry and returns its id.
func (s *LedgerService) Insert(userID, generationType, fileRef, title, snippet string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO ledger_entries (user_id, generation_type, file_ref, title, snippet, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, generationType, fileRef, title, snippet, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return res.LastInsertId()
}

// List returns the user's entries newest first, optionally filtered by
// generation type.
func (s *LedgerService) List(userID, typeFilter string) ([]models.LedgerEntry, error) {
	query := `SELECT id, user_id, generation_type, file_ref, title, snippet, created_at
		 FROM ledger_entries WHERE user_id = ?`
	args := []interface{}{userID}
	if typeFilter != "" {
		query += ` AND generation_type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var title, snippet sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.GenerationType, &e.FileRef, &title, &snippet, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Title = title.String
		e.Snippet = snippet.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// get fetches one entry scoped to the user.
func (s *LedgerService) get(id int64, userID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var title, snippet sql.NullString
	err := s.db.QueryRow(
		`SELECT id, user_id, generation_type, file_ref, title, snippet, created_at
		 FROM ledger_entries WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&e.ID, &e.UserID, &e.GenerationType, &e.FileRef, &title, &snippet, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Title = title.String
	e.Snippet = snippet.String
	return &e, nil
}

// Delete removes one entry (authorised by user match) and its artifacts.
func (s *LedgerService) Delete(id int64, userID string) error {
	entry, err := s.get(id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("ledger entry %d not found", id)
		}
		return fmt.Errorf("load ledger entry: %w", err)
	}

	s.removeArtifacts(entry)

	if _, err := s.db.Exec(`DELETE FROM ledger_entries WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	return nil
}

// ClearAll removes every entry of the user and all owned artifacts.
func (s *LedgerService) ClearAll(userID string) (int, error) {
	entries, err := s.List(userID, "")
	if err != nil {
		return 0, err
	}
	for i := range entries {
		s.removeArtifacts(&entries[i])
	}

	res, err := s.db.Exec(`DELETE FROM ledger_entries WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear ledger entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// removeArtifacts cascades an entry deletion to the files it references.
// Missing files are tolerated.
func (s *LedgerService) removeArtifacts(entry *models.LedgerEntry) {
	switch entry.GenerationType {
	case models.GenerationTypeText:
		s.removeTolerant(s.dataStorage, generationsDirName, entry.FileRef+".txt")
		s.removeTolerant(s.dataStorage, generationsDirName, entry.FileRef+".meta.json")
	case models.GenerationTypeImage:
		// The recorded ref may be a static-prefixed path or a bare name.
		s.removeTolerant(s.staticStorage, imagesDirName, path.Base(entry.FileRef))
	case models.GenerationTypeMusic:
		s.removeTolerant(s.staticStorage, musicDirName, "music_metadata_"+entry.FileRef+".json")
		s.removeTolerant(s.staticStorage, musicDirName+"/audio", "music_"+entry.FileRef+".mp3")
		s.removeTolerant(s.staticStorage, musicDirName+"/covers", "cover_"+entry.FileRef+".jpg")
	}
}

func (s *LedgerService) removeTolerant(store *storage.FileStorage, dir, filename string) {
	if store == nil || !store.FileExists(dir, filename) {
		return
	}
	if err := store.DeleteFile(dir, filename); err != nil {
		s.logger.Warn("remove artifact failed", map[string]interface{}{
			"dir": dir, "file": filename, "error": err.Error(),
		})
	}
}
