// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/services"
	"github.com/okhotin/FrontlineMuse/internal/storage"
)

func newLedgerBackedHandler(t *testing.T) (*Handler, *services.LedgerService) {
	t.Helper()

	db, err := services.OpenDB(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dataStorage, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	ledger, err := services.NewLedgerService(db, dataStorage, nil)
	require.NoError(t, err)

	return NewHandler(nil, nil, nil, nil, nil, nil, ledger, testSecret), ledger
}

func ledgerRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/api/ledger", h.ListLedger)
	r.DELETE("/api/ledger/:id", h.DeleteLedgerEntry)
	r.DELETE("/api/ledger", h.ClearLedger)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHealth(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, nil, nil, "")
	r := gin.New()
	r.GET("/api/health", h.Health)

	w, envelope := doJSON(t, r, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)
}

func TestAuthGuestIssuesUsableToken(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, nil, nil, testSecret)
	r := gin.New()
	r.POST("/api/auth/guest", h.AuthGuest)

	w, envelope := doJSON(t, r, "POST", "/api/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]interface{})
	token := data["token"].(string)
	userID := data["user_id"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, userID)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestAuthGuestWithoutSecret(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, nil, nil, "")
	r := gin.New()
	r.POST("/api/auth/guest", h.AuthGuest)

	w, envelope := doJSON(t, r, "POST", "/api/auth/guest", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrorAPIKeyMissing, envelope.Error.Code)
}

func TestListLedgerScopedToTokenUser(t *testing.T) {
	h, ledger := newLedgerBackedHandler(t)
	r := ledgerRouter(h)

	_, err := ledger.Insert("user-1", models.GenerationTypeText, "file-a", "", "")
	require.NoError(t, err)
	_, err = ledger.Insert(GuestUserID, models.GenerationTypeText, "file-guest", "", "")
	require.NoError(t, err)

	token, err := IssueToken(testSecret, "user-1")
	require.NoError(t, err)

	_, envelope := doJSON(t, r, "GET", "/api/ledger", token, nil)
	require.True(t, envelope.Success)
	entries := envelope.Data.([]interface{})
	require.Len(t, entries, 1)

	// Without a token the guest history is served instead.
	_, envelope = doJSON(t, r, "GET", "/api/ledger", "", nil)
	require.True(t, envelope.Success)
	entries = envelope.Data.([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "file-guest", entry["file_path_or_id"])
}

func TestDeleteLedgerEntryEndpoint(t *testing.T) {
	h, ledger := newLedgerBackedHandler(t)
	r := ledgerRouter(h)

	id, err := ledger.Insert(GuestUserID, models.GenerationTypeText, "file-a", "", "")
	require.NoError(t, err)

	w, envelope := doJSON(t, r, "DELETE", fmt.Sprintf("/api/ledger/%d", id), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, envelope.Success)

	entries, err := ledger.List(GuestUserID, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteLedgerEntryRejectsBadID(t *testing.T) {
	h, _ := newLedgerBackedHandler(t)
	r := ledgerRouter(h)

	w, envelope := doJSON(t, r, "DELETE", "/api/ledger/not-a-number", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrorBadRequest, envelope.Error.Code)
}

func TestDeleteLedgerEntryForeignUser(t *testing.T) {
	h, ledger := newLedgerBackedHandler(t)
	r := ledgerRouter(h)

	id, err := ledger.Insert("user-1", models.GenerationTypeText, "file-a", "", "")
	require.NoError(t, err)

	// Guest must not be able to delete another user's entry.
	w, envelope := doJSON(t, r, "DELETE", fmt.Sprintf("/api/ledger/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrorLedgerEntryNotFound, envelope.Error.Code)
}

func TestClearLedgerEndpoint(t *testing.T) {
	h, ledger := newLedgerBackedHandler(t)
	r := ledgerRouter(h)

	_, err := ledger.Insert(GuestUserID, models.GenerationTypeText, "a", "", "")
	require.NoError(t, err)
	_, err = ledger.Insert(GuestUserID, models.GenerationTypeMusic, "b", "", "")
	require.NoError(t, err)

	_, envelope := doJSON(t, r, "DELETE", "/api/ledger", "", nil)
	require.True(t, envelope.Success)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["deleted"])
}

func TestNormalizeCallbackPayload(t *testing.T) {
	m, ok := normalizeCallbackPayload(map[string]interface{}{"task_id": "t"})
	require.True(t, ok)
	assert.Equal(t, "t", m["task_id"])

	m, ok = normalizeCallbackPayload([]interface{}{"noise", map[string]interface{}{"task_id": "t2"}})
	require.True(t, ok)
	assert.Equal(t, "t2", m["task_id"])

	_, ok = normalizeCallbackPayload([]interface{}{"only", "strings"})
	assert.False(t, ok)

	_, ok = normalizeCallbackPayload("scalar")
	assert.False(t, ok)
}
