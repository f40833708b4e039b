// internal/services/literary_service_test.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/storage"
)

func newLiteraryFixture(t *testing.T, provider llm.Provider) (*LiteraryService, *LedgerService) {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dataStorage, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	ledger, err := NewLedgerService(db, dataStorage, nil)
	require.NoError(t, err)

	return NewLiteraryService(provider, dataStorage, ledger), ledger
}

func validReport() *models.EmotionReport {
	return reportWith("суровый",
		models.EmotionScore{Emotion: "решимость", Intensity: 7},
		models.EmotionScore{Emotion: "тоска", Intensity: 5})
}

func TestLiteraryGeneratePersistsWorkAndMeta(t *testing.T) {
	svc, ledger := newLiteraryFixture(t, textProvider("Снег лежит на бруствере.\nМы молчим."))

	work, err := svc.Generate(context.Background(), "запись из дневника", validReport(), "user-1", models.LiteraryTypePoem)
	require.NoError(t, err)

	assert.Equal(t, models.LiteraryTypePoem, work.LiteraryType)
	assert.NotEmpty(t, work.FileID)
	assert.Equal(t, work.FileID+".txt", work.Filename)

	loaded, meta, err := svc.Load(work.FileID)
	require.NoError(t, err)
	assert.Equal(t, work.Text, loaded.Text)
	assert.Equal(t, models.LiteraryTypePoem, meta.LiteraryType)
	assert.Equal(t, "user-1", meta.UserID)
	assert.NotNil(t, meta.EmotionAnalysisUsed)
	assert.Equal(t, "stub-model", meta.ModelUsed)

	entries, err := ledger.List("user-1", models.GenerationTypeText)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, work.FileID, entries[0].FileRef)
}

func TestLiteraryGenerateRandomResolvesToConcreteType(t *testing.T) {
	svc, _ := newLiteraryFixture(t, textProvider("текст произведения"))

	work, err := svc.Generate(context.Background(), "запись", validReport(), "", models.LiteraryTypeRandom)
	require.NoError(t, err)

	assert.Contains(t, models.ConcreteLiteraryTypes, work.LiteraryType)
}

func TestLiteraryGenerateRejectsInvalidType(t *testing.T) {
	svc, _ := newLiteraryFixture(t, textProvider("x"))

	_, err := svc.Generate(context.Background(), "запись", validReport(), "", "sonnet")
	assert.Error(t, err)
}

func TestLiteraryGenerateRejectsErrorReport(t *testing.T) {
	provider := &stubProvider{}
	svc, _ := newLiteraryFixture(t, provider)

	_, err := svc.Generate(context.Background(), "запись", models.EmptyEmotionReport("analysis failed"), "", models.LiteraryTypePoem)

	assert.Error(t, err)
	assert.Zero(t, provider.textCalls)
}

func TestLiteraryGenerateCompletionFailure(t *testing.T) {
	provider := &stubProvider{
		completeText: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, fmt.Errorf("model offline")
		},
	}
	svc, _ := newLiteraryFixture(t, provider)

	_, err := svc.Generate(context.Background(), "запись", validReport(), "", models.LiteraryTypeStory)
	assert.Error(t, err)
}

func TestLiteraryGenerateEmptyCompletion(t *testing.T) {
	svc, _ := newLiteraryFixture(t, textProvider("   \n  "))

	_, err := svc.Generate(context.Background(), "запись", validReport(), "", models.LiteraryTypeDrama)
	assert.Error(t, err)
}

func TestLiteraryGenerateWithoutUserSkipsLedger(t *testing.T) {
	svc, ledger := newLiteraryFixture(t, textProvider("текст"))

	_, err := svc.Generate(context.Background(), "запись", validReport(), "", models.LiteraryTypePoem)
	require.NoError(t, err)

	entries, err := ledger.List("", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChooseConcreteType(t *testing.T) {
	assert.Equal(t, models.LiteraryTypeDrama, chooseConcreteType(models.LiteraryTypeDrama))

	for i := 0; i < 50; i++ {
		assert.Contains(t, models.ConcreteLiteraryTypes, chooseConcreteType(models.LiteraryTypeRandom))
	}
}

func TestLoadMissingWork(t *testing.T) {
	svc, _ := newLiteraryFixture(t, textProvider("x"))

	_, _, err := svc.Load("no-such-id")
	assert.Error(t, err)
}
