// internal/rag/dates.go
package rag

import (
	"regexp"
	"strconv"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

// contextWindow is the number of runes kept around each date match.
const contextWindow = 50

var monthsRu = map[string]int{
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4, "мая": 5,
	"июня": 6, "июля": 7, "августа": 8, "сентября": 9, "октября": 10,
	"ноября": 11, "декабря": 12,
}

// The five recognised date shapes.
var datePatterns = []*regexp.Regexp{
	// 15 августа 1943 [года|г.]
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)\s+\d{4}(?:\s*(?:года|г\.))?`),
	// 15.08.1943
	regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`),
	// August 15, 1943
	regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s*\d{4}`),
	// 15 August 1943
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
	// 1943 [г.], matched last so long forms claim their year first
	regexp.MustCompile(`\b(?:19|20)\d{2}(?:\s*г\.)?`),
}

var yearRe = regexp.MustCompile(`(?:19|20)\d{2}`)

// ExtractDates finds date mentions with their surrounding context. Matches
// overlapping an earlier match (the bare-year pattern re-hits long forms)
// are dropped.
func ExtractDates(text string) []models.ExtractedDate {
	runes := []rune(text)
	covered := make([]bool, len(text))

	var dates []models.ExtractedDate
	for _, pattern := range datePatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			if loc[0] < len(covered) && covered[loc[0]] {
				continue
			}
			for i := loc[0]; i < loc[1] && i < len(covered); i++ {
				covered[i] = true
			}

			dateStr := text[loc[0]:loc[1]]

			// Byte offsets → rune offsets for the context window.
			start := len([]rune(text[:loc[0]]))
			end := len([]rune(text[:loc[1]]))
			ctxStart := start - contextWindow
			if ctxStart < 0 {
				ctxStart = 0
			}
			ctxEnd := end + contextWindow
			if ctxEnd > len(runes) {
				ctxEnd = len(runes)
			}

			date := models.ExtractedDate{
				DateString: dateStr,
				Context:    string(runes[ctxStart:ctxEnd]),
			}
			if year := yearRe.FindString(dateStr); year != "" {
				date.Year, _ = strconv.Atoi(year)
			}
			dates = append(dates, date)
		}
	}
	return dates
}

// ExtractYears returns the distinct years mentioned, first-seen order.
func ExtractYears(dates []models.ExtractedDate) []int {
	var years []int
	seen := make(map[int]bool)
	for _, d := range dates {
		if d.Year == 0 || seen[d.Year] {
			continue
		}
		seen[d.Year] = true
		years = append(years, d.Year)
	}
	return years
}
