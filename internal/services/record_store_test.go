// internal/services/record_store_test.go
package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

func newTestRecordStore(t *testing.T) *RecordStore {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewRecordStore(db)
	require.NoError(t, err)
	return store
}

func encyclopediaItem(title, extract string) models.HistoricalContextItem {
	return models.HistoricalContextItem{
		Title:   title,
		Extract: extract,
		Source:  models.SourceEncyclopedia,
	}
}

func TestRecordStoreInsertDeduplicatesByContentHash(t *testing.T) {
	store := newTestRecordStore(t)
	item := encyclopediaItem("Курская битва", "Крупнейшее танковое сражение.")

	fresh, err := store.Insert(item)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.Insert(item)
	require.NoError(t, err)
	assert.False(t, fresh)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordStoreEventHashIncludesDate(t *testing.T) {
	store := newTestRecordStore(t)

	event := models.HistoricalContextItem{
		Title:   "Освобождение города",
		Extract: "Войска вошли в город.",
		Source:  models.SourceEventsAPI,
		Date:    "1943-08-05",
	}
	sameTextOtherDate := event
	sameTextOtherDate.Date = "1944-01-27"

	fresh, err := store.Insert(event)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.Insert(sameTextOtherDate)
	require.NoError(t, err)
	assert.True(t, fresh, "same text on a different date is a distinct event")
}

func TestRecordStoreInsertBatchCountsFreshOnly(t *testing.T) {
	store := newTestRecordStore(t)
	items := []models.HistoricalContextItem{
		encyclopediaItem("А", "первый"),
		encyclopediaItem("Б", "второй"),
		encyclopediaItem("А", "первый"),
	}

	inserted, err := store.InsertBatch(items)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
}

func TestRecordStoreSearchTitle(t *testing.T) {
	store := newTestRecordStore(t)
	_, err := store.Insert(encyclopediaItem("Блокада Ленинграда", "872 дня."))
	require.NoError(t, err)
	_, err = store.Insert(encyclopediaItem("Курская битва", "Лето 1943."))
	require.NoError(t, err)

	found, err := store.SearchTitle("Ленинград", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Блокада Ленинграда", found[0].Title)
}

func TestRecordStoreClearAll(t *testing.T) {
	store := newTestRecordStore(t)
	_, err := store.Insert(encyclopediaItem("А", "б"))
	require.NoError(t, err)

	require.NoError(t, store.ClearAll())

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
