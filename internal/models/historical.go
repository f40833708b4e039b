// internal/models/historical.go
package models

import (
	"crypto/sha256"
	"fmt"
)

// Historical record sources.
const (
	SourceEncyclopedia = "encyclopedia"
	SourceEventsAPI    = "events_api"
)

// HistoricalContextItem is one encyclopedic article or historical event
// retrieved for a diary excerpt.
type HistoricalContextItem struct {
	Title          string  `json:"title"`
	Extract        string  `json:"extract"`
	Source         string  `json:"source"`
	URL            string  `json:"url,omitempty"`
	Date           string  `json:"date,omitempty"`
	Category       string  `json:"category,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ContentHash is the deduplication key for the persistent record store:
// title+extract for encyclopedia records, date+title+extract for events.
func (h *HistoricalContextItem) ContentHash() string {
	var payload string
	if h.Source == SourceEventsAPI {
		payload = h.Date + h.Title + h.Extract
	} else {
		payload = h.Title + h.Extract
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(payload)))
}

// SearchText is the text the ranker vectorises for this record.
func (h *HistoricalContextItem) SearchText() string {
	if h.Extract == "" {
		return h.Title
	}
	return h.Title + " " + h.Extract
}

// ExtractedDate is a date match found in the diary with its surrounding
// context window.
type ExtractedDate struct {
	DateString string `json:"date_string"`
	Context    string `json:"context"`
	Year       int    `json:"year,omitempty"`
}
