// internal/models/ledger.go
package models

import "time"

// Generation types recorded in the ledger.
const (
	GenerationTypeText  = "text"
	GenerationTypeImage = "image"
	GenerationTypeMusic = "music"
)

// LedgerEntry is one per-user pointer to a generated artifact. FileRef is a
// literary file id, an image filename, or a music task id; artifact bytes
// are never stored in the ledger itself.
type LedgerEntry struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	GenerationType string    `json:"generation_type"`
	FileRef        string    `json:"file_path_or_id"`
	Title          string    `json:"title"`
	Snippet        string    `json:"snippet_or_description"`
	CreatedAt      time.Time `json:"created_at"`
}
