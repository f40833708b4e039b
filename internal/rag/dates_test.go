// internal/rag/dates_test.go
package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDatesRussianLongForm(t *testing.T) {
	dates := ExtractDates("Запись от 15 августа 1943 года, под вечер.")

	require.Len(t, dates, 1)
	assert.Equal(t, 1943, dates[0].Year)
	assert.Contains(t, dates[0].DateString, "15 августа 1943")
	assert.Contains(t, dates[0].Context, "Запись от")
}

func TestExtractDatesNumericForm(t *testing.T) {
	dates := ExtractDates("Дата: 23.02.1942, мороз.")

	require.Len(t, dates, 1)
	assert.Equal(t, "23.02.1942", dates[0].DateString)
	assert.Equal(t, 1942, dates[0].Year)
}

func TestExtractDatesEnglishForms(t *testing.T) {
	dates := ExtractDates("It was August 15, 1943 and then 2 May 1945 came.")

	require.Len(t, dates, 2)
	assert.Equal(t, 1943, dates[0].Year)
	assert.Equal(t, 1945, dates[1].Year)
}

func TestExtractDatesBareYearNotDoubleCounted(t *testing.T) {
	// The bare-year pattern overlaps the long form; the long form wins and
	// its year must not produce a second match.
	dates := ExtractDates("15 августа 1943 года")

	require.Len(t, dates, 1)
}

func TestExtractDatesBareYearAlone(t *testing.T) {
	dates := ExtractDates("Шёл 1944 год.")

	require.Len(t, dates, 1)
	assert.Equal(t, 1944, dates[0].Year)
}

func TestExtractYearsDeduplicates(t *testing.T) {
	dates := ExtractDates("В 1943 г. и снова в 1943 г., а потом в 1944 г.")

	years := ExtractYears(dates)
	assert.Equal(t, []int{1943, 1944}, years)
}

func TestExtractDatesNone(t *testing.T) {
	assert.Empty(t, ExtractDates("без единой даты"))
}
