// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/observe"
	"github.com/okhotin/FrontlineMuse/internal/services"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// Handler carries the wired services for every endpoint.
type Handler struct {
	generation *services.GenerationService
	emotion    *services.EmotionService
	rag        *services.RAGService
	literary   *services.LiteraryService
	image      *services.ImageService
	music      *services.MusicService
	ledger     *services.LedgerService

	hub       *TaskHub
	jwtSecret string
	resp      *ResponseHelper
	logger    *utils.Logger
}

// NewHandler builds the API handler from container-provided services.
func NewHandler(
	generation *services.GenerationService,
	emotion *services.EmotionService,
	rag *services.RAGService,
	literary *services.LiteraryService,
	image *services.ImageService,
	music *services.MusicService,
	ledger *services.LedgerService,
	jwtSecret string,
) *Handler {
	return &Handler{
		generation: generation,
		emotion:    emotion,
		rag:        rag,
		literary:   literary,
		image:      image,
		music:      music,
		ledger:     ledger,
		hub:        NewTaskHub(),
		jwtSecret:  jwtSecret,
		resp:       NewResponseHelper(),
		logger:     utils.GetLogger(),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	h.resp.Success(c, gin.H{"status": "ok"})
}

// AuthGuest issues a token for a fresh anonymous user id, so a browser
// session can keep a private ledger without registration.
func (h *Handler) AuthGuest(c *gin.Context) {
	if h.jwtSecret == "" {
		h.resp.Error(c, http.StatusServiceUnavailable, ErrorAPIKeyMissing, "token signing is not configured")
		return
	}
	userID := "user_" + uuid.NewString()
	token, err := IssueToken(h.jwtSecret, userID)
	if err != nil {
		h.resp.InternalError(c, "failed to issue token")
		return
	}
	h.resp.Success(c, gin.H{"token": token, "user_id": userID})
}

type analyzeRequest struct {
	DiaryText                string `json:"diary_text"`
	IncludeHistoricalContext bool   `json:"include_historical_context"`
}

// AnalyzeText runs emotion analysis, optionally enriched with retrieved
// historical context.
func (h *Handler) AnalyzeText(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if req.DiaryText == "" {
		h.resp.Error(c, http.StatusBadRequest, ErrorEmptyDiaryText, "diary_text is required")
		return
	}

	report := h.emotion.Analyze(c.Request.Context(), req.DiaryText)

	if !report.IsError() && req.IncludeHistoricalContext && h.rag != nil {
		h.resp.Success(c, h.rag.Enrich(c.Request.Context(), req.DiaryText, report))
		return
	}
	h.resp.Success(c, &models.EnrichedAnalysis{EmotionReport: *report})
}

// Generate runs the full multi-modal pipeline.
func (h *Handler) Generate(c *gin.Context) {
	var req services.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if req.DiaryText == "" {
		h.resp.Error(c, http.StatusBadRequest, ErrorEmptyDiaryText, "diary_text is required")
		return
	}
	if req.LiteraryType != "" && !models.IsValidLiteraryType(req.LiteraryType) {
		h.resp.Error(c, http.StatusBadRequest, ErrorInvalidLiteraryType, "literary_type must be poem, story, drama or random")
		return
	}

	result := h.generation.Generate(c.Request.Context(), req, currentUserID(c), c.Request.Host)
	h.resp.Success(c, result)
}

type safeImageRequest struct {
	EmotionalTone string `json:"emotional_tone"`
	Ultra         bool   `json:"ultra"`
}

// GenerateSafeImage renders the symbolic fallback scene after a content
// policy rejection.
func (h *Handler) GenerateSafeImage(c *gin.Context) {
	var req safeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request body", err.Error())
		return
	}

	var result *models.ImageResult
	if req.Ultra {
		result = h.image.GenerateUltraSafe(c.Request.Context())
	} else {
		report := &models.EmotionReport{EmotionalTone: req.EmotionalTone}
		result = h.image.GenerateSafe(c.Request.Context(), report)
	}
	observe.RecordGeneration(models.GenerationTypeImage, result.Success)
	h.resp.Success(c, result)
}

// GetLiteraryWork returns a persisted work with its metadata.
func (h *Handler) GetLiteraryWork(c *gin.Context) {
	fileID := c.Param("file_id")
	work, meta, err := h.literary.Load(fileID)
	if err != nil {
		h.resp.NotFound(c, "literary work not found", err.Error())
		return
	}
	h.resp.Success(c, gin.H{"work": work, "meta": meta})
}

type musicGenerateRequest struct {
	DiaryText       string `json:"diary_text"`
	CallbackBaseURL string `json:"callback_base_url,omitempty"`
}

// GenerateMusic analyses the diary and submits an asynchronous music task.
func (h *Handler) GenerateMusic(c *gin.Context) {
	var req musicGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if req.DiaryText == "" {
		h.resp.Error(c, http.StatusBadRequest, ErrorEmptyDiaryText, "diary_text is required")
		return
	}

	report := h.emotion.Analyze(c.Request.Context(), req.DiaryText)
	if report.IsError() {
		h.resp.Error(c, http.StatusBadGateway, ErrorAnalysisFailed, report.Error)
		return
	}

	result := h.music.Submit(c.Request.Context(), report, req.CallbackBaseURL, c.Request.Host, currentUserID(c))
	observe.RecordGeneration(models.GenerationTypeMusic, result.Success)
	if !result.Success {
		h.resp.Error(c, http.StatusBadGateway, ErrorMusicSubmitFailed, result.Error, result.ErrorType)
		return
	}
	h.resp.Success(c, result)
}

// GetMusicStatus answers a status poll for one task. May block for the
// duration of the polling schedule when the task is still processing.
func (h *Handler) GetMusicStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	result := h.music.CheckStatus(c.Request.Context(), taskID)
	if !result.Success && result.ErrorType == models.ErrKindMissingTaskID {
		h.resp.Error(c, http.StatusNotFound, ErrorMusicTaskNotFound, result.Error)
		return
	}
	h.hub.Broadcast(taskID, result)
	h.resp.Success(c, result)
}

// ListMusicTasks returns every known task sidecar.
func (h *Handler) ListMusicTasks(c *gin.Context) {
	tasks, err := h.music.ListTasks()
	if err != nil {
		h.resp.InternalError(c, "failed to list music tasks", err.Error())
		return
	}
	h.resp.Success(c, tasks)
}

// MusicCallback ingests an upstream delivery. The payload may be a mapping
// or a sequence; both shapes reduce to the same sidecar update.
func (h *Handler) MusicCallback(c *gin.Context) {
	var raw interface{}
	if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil {
		observe.MusicCallbacksTotal.WithLabelValues("rejected").Inc()
		h.resp.Error(c, http.StatusBadRequest, ErrorCallbackRejected, "callback body is not valid json")
		return
	}

	payload, ok := normalizeCallbackPayload(raw)
	if !ok {
		observe.MusicCallbacksTotal.WithLabelValues("rejected").Inc()
		h.resp.Error(c, http.StatusBadRequest, ErrorCallbackRejected, "callback payload has no usable object")
		return
	}

	taskID, err := h.music.HandleCallback(c.Request.Context(), payload)
	if err != nil {
		observe.MusicCallbacksTotal.WithLabelValues("rejected").Inc()
		h.resp.Error(c, http.StatusBadRequest, ErrorCallbackRejected, err.Error())
		return
	}
	observe.MusicCallbacksTotal.WithLabelValues("accepted").Inc()

	if snapshot, err := h.music.TaskSnapshot(taskID); err == nil {
		h.hub.Broadcast(taskID, snapshot)
	}
	h.resp.Success(c, gin.H{"task_id": taskID})
}

// normalizeCallbackPayload reduces sequence-shaped deliveries to a mapping.
func normalizeCallbackPayload(raw interface{}) (map[string]interface{}, bool) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, true
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// MusicTaskWebSocket streams task updates to a subscriber.
func (h *Handler) MusicTaskWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	snapshot, err := h.music.TaskSnapshot(taskID)
	if err != nil {
		h.resp.Error(c, http.StatusNotFound, ErrorMusicTaskNotFound, "unknown task id")
		return
	}
	h.hub.serveTaskSocket(c.Writer, c.Request, taskID, snapshot)
}

// ListLedger returns the user's generation history, optionally filtered by
// type.
func (h *Handler) ListLedger(c *gin.Context) {
	entries, err := h.ledger.List(currentUserID(c), c.Query("type"))
	if err != nil {
		h.resp.Error(c, http.StatusInternalServerError, ErrorLedgerFailed, "failed to list entries", err.Error())
		return
	}
	h.resp.Success(c, entries)
}

// DeleteLedgerEntry removes one entry and its artifacts.
func (h *Handler) DeleteLedgerEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.resp.BadRequest(c, "entry id must be an integer")
		return
	}
	if err := h.ledger.Delete(id, currentUserID(c)); err != nil {
		h.resp.Error(c, http.StatusNotFound, ErrorLedgerEntryNotFound, err.Error())
		return
	}
	h.resp.Success(c, gin.H{"deleted": id})
}

// ClearLedger removes every entry of the user with all owned artifacts.
func (h *Handler) ClearLedger(c *gin.Context) {
	n, err := h.ledger.ClearAll(currentUserID(c))
	if err != nil {
		h.resp.Error(c, http.StatusInternalServerError, ErrorLedgerFailed, "failed to clear ledger", err.Error())
		return
	}
	h.resp.Success(c, gin.H{"deleted": n})
}

// ClearRAGCache resets the vectoriser caches and the record store.
func (h *Handler) ClearRAGCache(c *gin.Context) {
	if h.rag == nil {
		h.resp.NotFound(c, "retrieval subsystem is not configured")
		return
	}
	if err := h.rag.ClearCache(); err != nil {
		h.resp.InternalError(c, "failed to clear caches", err.Error())
		return
	}
	h.resp.Success(c, gin.H{"cleared": true})
}
