// internal/services/music_params.go
package services

import (
	"fmt"
	"strings"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// Emotion families recognised by the parameter derivation. Matching is
// lexical over the reported emotion names, bilingual.
const (
	familyFear    = "fear"
	familySorrow  = "sorrow"
	familyHope    = "hope"
	familyValor   = "valor"
	familyResolve = "resolve"
	familyNone    = ""
)

var emotionFamilies = []struct {
	name  string
	terms []string
}{
	{familyFear, []string{
		"страх", "ужас", "тревог", "паник", "испуг",
		"fear", "terror", "anxiety", "dread", "panic",
	}},
	{familySorrow, []string{
		"грусть", "печал", "скорб", "горе", "тоск", "отчаяни",
		"sorrow", "grief", "sadness", "melanchol", "mourning", "despair",
	}},
	{familyHope, []string{
		"надежд", "вера", "оптимизм",
		"hope", "faith", "optimism",
	}},
	{familyValor, []string{
		"отваг", "мужеств", "героизм", "храбр", "доблест",
		"courage", "valor", "valour", "bravery", "heroism",
	}},
	{familyResolve, []string{
		"решимост", "стойкост", "упорств", "воля",
		"determination", "resolve", "perseverance", "resilience",
	}},
}

// dominantFamily returns the first family (in fixed priority order) that any
// reported emotion belongs to.
func dominantFamily(report *models.EmotionReport) string {
	if report == nil {
		return familyNone
	}
	for _, family := range emotionFamilies {
		for _, e := range report.PrimaryEmotions {
			lower := strings.ToLower(e.Emotion)
			for _, term := range family.terms {
				if strings.Contains(lower, term) {
					return family.name
				}
			}
		}
	}
	return familyNone
}

func averageIntensity(report *models.EmotionReport) float64 {
	if report == nil || len(report.PrimaryEmotions) == 0 {
		return 0
	}
	sum := 0
	for _, e := range report.PrimaryEmotions {
		sum += e.Intensity
	}
	return float64(sum) / float64(len(report.PrimaryEmotions))
}

// DeriveParams computes the music submission parameters from the emotion
// report. Pure: the same report always yields the same parameters.
func DeriveParams(report *models.EmotionReport) models.MusicParams {
	family := dominantFamily(report)
	avg := averageIntensity(report)

	params := models.MusicParams{
		Style:       "dramatic film score",
		Mood:        "dramatic",
		Instruments: "full orchestra with piano",
	}

	switch family {
	case familyFear:
		params.Style = "suspenseful orchestral"
		params.Mood = "tense"
		params.Instruments = "low strings and percussion"
	case familySorrow:
		params.Style = "neoclassical piano"
		params.Mood = "melancholic"
		params.Instruments = "cello and piano"
	case familyHope:
		params.Style = "uplifting orchestral"
		params.Mood = "hopeful"
		params.Instruments = "strings and woodwinds"
	case familyValor:
		params.Style = "epic orchestral"
		params.Mood = "heroic"
		params.Instruments = "brass and timpani"
	case familyResolve:
		params.Style = "dramatic orchestral"
		params.Mood = "dramatic"
		params.Instruments = "brass and strings"
	}

	switch {
	case family == familyFear && avg > 7:
		params.Tempo = "fast-paced"
	case family == familySorrow:
		params.Tempo = "slow"
	case family == familyValor:
		params.Tempo = "steady"
	case avg > 7:
		params.Tempo = "dynamic"
	default:
		params.Tempo = "moderate"
	}

	return params
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// topEmotionNames lists up to n reported emotion names.
func topEmotionNames(report *models.EmotionReport, n int) []string {
	var names []string
	if report == nil {
		return names
	}
	for _, e := range report.TopEmotions(n) {
		names = append(names, e.Emotion)
	}
	return names
}

// BuildMusicTitle derives the track title from tone and style, capped at 80
// characters with a trailing ellipsis.
func BuildMusicTitle(report *models.EmotionReport, params models.MusicParams) string {
	tone := "wartime diary"
	if report != nil && report.EmotionalTone != "" {
		tone = report.EmotionalTone
	}
	title := fmt.Sprintf("%s: %s", capitalize(tone), params.Style)
	return utils.TruncateText(title, models.MusicTitleMaxLen)
}

// BuildMusicPrompt composes the instrumental-track prompt, bounded by the
// prompt size limit.
func BuildMusicPrompt(report *models.EmotionReport, params models.MusicParams) string {
	emotions := strings.Join(topEmotionNames(report, models.MusicMaxEmotions), ", ")
	if emotions == "" {
		emotions = "reflection"
	}
	tone := ""
	if report != nil {
		tone = report.EmotionalTone
	}

	prompt := fmt.Sprintf(
		"Instrumental %s piece. Mood: %s. Tempo: %s. Featured instruments: %s. "+
			"The music follows the emotional arc of a WWII soldier's diary entry, expressing %s.",
		params.Style, params.Mood, params.Tempo, params.Instruments, emotions)
	if tone != "" {
		prompt += fmt.Sprintf(" Overall tone: %s.", tone)
	}
	return utils.TruncateText(prompt, models.MusicPromptMaxLen)
}
