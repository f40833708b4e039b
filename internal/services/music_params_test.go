// internal/services/music_params_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

func reportWith(tone string, emotions ...models.EmotionScore) *models.EmotionReport {
	return &models.EmotionReport{
		PrimaryEmotions: emotions,
		EmotionalTone:   tone,
	}
}

func TestDeriveParamsPerFamily(t *testing.T) {
	cases := []struct {
		name    string
		emotion string
		style   string
		mood    string
		tempo   string
	}{
		{"fear", "страх", "suspenseful orchestral", "tense", "moderate"},
		{"sorrow", "grief", "neoclassical piano", "melancholic", "slow"},
		{"hope", "надежда", "uplifting orchestral", "hopeful", "moderate"},
		{"valor", "мужество", "epic orchestral", "heroic", "steady"},
		{"resolve", "determination", "dramatic orchestral", "dramatic", "moderate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DeriveParams(reportWith("", models.EmotionScore{Emotion: tc.emotion, Intensity: 5}))
			assert.Equal(t, tc.style, params.Style)
			assert.Equal(t, tc.mood, params.Mood)
			assert.Equal(t, tc.tempo, params.Tempo)
		})
	}
}

func TestDeriveParamsHighIntensityFear(t *testing.T) {
	params := DeriveParams(reportWith("", models.EmotionScore{Emotion: "ужас", Intensity: 9}))
	assert.Equal(t, "fast-paced", params.Tempo)
}

func TestDeriveParamsHighIntensityUnknownFamily(t *testing.T) {
	params := DeriveParams(reportWith("", models.EmotionScore{Emotion: "ностальгия", Intensity: 9}))
	assert.Equal(t, "dramatic film score", params.Style)
	assert.Equal(t, "dynamic", params.Tempo)
}

func TestDeriveParamsDefaults(t *testing.T) {
	params := DeriveParams(nil)
	assert.Equal(t, "dramatic film score", params.Style)
	assert.Equal(t, "dramatic", params.Mood)
	assert.Equal(t, "full orchestra with piano", params.Instruments)
	assert.Equal(t, "moderate", params.Tempo)
}

func TestDeriveParamsIsPure(t *testing.T) {
	report := reportWith("sorrowful",
		models.EmotionScore{Emotion: "грусть", Intensity: 7},
		models.EmotionScore{Emotion: "надежда", Intensity: 4})

	assert.Equal(t, DeriveParams(report), DeriveParams(report))
}

func TestDeriveParamsFamilyPriorityOrder(t *testing.T) {
	// fear outranks hope regardless of listing order in the report
	report := reportWith("",
		models.EmotionScore{Emotion: "hope", Intensity: 8},
		models.EmotionScore{Emotion: "fear", Intensity: 3})

	params := DeriveParams(report)
	assert.Equal(t, "tense", params.Mood)
}

func TestBuildMusicTitle(t *testing.T) {
	params := DeriveParams(reportWith("скорбный", models.EmotionScore{Emotion: "грусть", Intensity: 6}))
	title := BuildMusicTitle(reportWith("скорбный", models.EmotionScore{Emotion: "грусть", Intensity: 6}), params)

	assert.Equal(t, "Скорбный: neoclassical piano", title)
}

func TestBuildMusicTitleCapped(t *testing.T) {
	longTone := make([]rune, 0, 120)
	for i := 0; i < 120; i++ {
		longTone = append(longTone, 'а')
	}
	report := reportWith(string(longTone), models.EmotionScore{Emotion: "грусть", Intensity: 6})

	title := BuildMusicTitle(report, DeriveParams(report))
	assert.LessOrEqual(t, len([]rune(title)), models.MusicTitleMaxLen)
}

func TestBuildMusicPrompt(t *testing.T) {
	report := reportWith("tense",
		models.EmotionScore{Emotion: "fear", Intensity: 8},
		models.EmotionScore{Emotion: "resolve", Intensity: 6})
	params := DeriveParams(report)

	prompt := BuildMusicPrompt(report, params)

	assert.Contains(t, prompt, "Instrumental")
	assert.Contains(t, prompt, params.Style)
	assert.Contains(t, prompt, "fear, resolve")
	assert.Contains(t, prompt, "Overall tone: tense.")
	assert.LessOrEqual(t, len([]rune(prompt)), models.MusicPromptMaxLen)
}

func TestBuildMusicPromptNilReport(t *testing.T) {
	prompt := BuildMusicPrompt(nil, DeriveParams(nil))
	assert.Contains(t, prompt, "reflection")
}
