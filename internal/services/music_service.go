// internal/services/music_service.go
package services

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/music"
	"github.com/okhotin/FrontlineMuse/internal/storage"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// Polling schedule. The initial delay gives the upstream queue time to
// register the task; gaps then grow until the total-wait cap is reached.
var (
	pollInitialDelay = 20 * time.Second
	pollGaps         = []time.Duration{0, 5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second, 30 * time.Second}
	pollTotalCap     = 400 * time.Second
)

// consecutive 404s past the initial delay before the task is treated as
// lost on the server rather than still queued.
const pollNotFoundThreshold = 3

const musicNegativeTags = "vocals, singing, voice, lyrics, choir, spoken word"

const callbackPath = "/music_callback"

// MusicSubmitResult is returned by Submit.
type MusicSubmitResult struct {
	Success   bool   `json:"success"`
	TaskID    string `json:"task_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Title     string `json:"title,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MusicStatusResult is returned by CheckStatus.
type MusicStatusResult struct {
	Success          bool   `json:"success"`
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	ExternalAudioURL string `json:"external_audio_url,omitempty"`
	LocalAudioURL    string `json:"local_audio_url,omitempty"`
	ExternalCoverURL string `json:"external_cover_url,omitempty"`
	LocalCoverURL    string `json:"local_cover_url,omitempty"`
	ErrorType        string `json:"error_type,omitempty"`
	Error            string `json:"error,omitempty"`
	FallbackCreated  bool   `json:"fallback_created,omitempty"`
	NewTaskID        string `json:"new_task_id,omitempty"`
}

// MusicService orchestrates the asynchronous music task lifecycle. The
// sidecar file under the music directory is the sole source of truth for a
// task; submission responses, callbacks and polls all merge into it under
// the per-file lock.
type MusicService struct {
	client        *music.Client
	staticStorage *storage.FileStorage
	ledger        *LedgerService
	externalBase  string
	logger        *utils.Logger

	// sleep is replaceable in tests so the polling schedule runs instantly.
	sleep func(time.Duration)
}

// NewMusicService wires the orchestrator. externalBase, when configured, is
// the externally reachable base URL used for callback delivery.
func NewMusicService(client *music.Client, staticStorage *storage.FileStorage, ledger *LedgerService, externalBase string) *MusicService {
	return &MusicService{
		client:        client,
		staticStorage: staticStorage,
		ledger:        ledger,
		externalBase:  externalBase,
		logger:        utils.GetLogger(),
		sleep:         time.Sleep,
	}
}

func sidecarName(taskID string) string {
	return "music_metadata_" + taskID + ".json"
}

// ResolveCallbackURL picks the callback base in priority order: configured
// external URL, caller-supplied base, live request host, localhost.
func (s *MusicService) ResolveCallbackURL(callerBase, requestHost string) string {
	switch {
	case s.externalBase != "":
		return s.externalBase + callbackPath
	case callerBase != "":
		return callerBase + callbackPath
	case requestHost != "":
		return "http://" + requestHost + callbackPath
	}
	s.logger.Warn("no reachable callback base configured, callbacks cannot arrive", nil)
	return "http://localhost:8085" + callbackPath
}

// Submit derives parameters from the emotion report, posts the generation
// request and writes the initial sidecar. Never raises: failures are carried
// in the result.
func (s *MusicService) Submit(ctx context.Context, report *models.EmotionReport, callerBase, requestHost, userID string) *MusicSubmitResult {
	if !s.client.HasKey() {
		return &MusicSubmitResult{
			Success:   false,
			ErrorType: models.ErrKindMissingAPIKey,
			Error:     "music api key is not configured",
		}
	}

	params := DeriveParams(report)
	title := BuildMusicTitle(report, params)
	prompt := BuildMusicPrompt(report, params)
	callbackURL := s.ResolveCallbackURL(callerBase, requestHost)

	outcome := s.client.Submit(ctx, music.SubmitRequest{
		Prompt:       prompt,
		Style:        utils.TruncateText(params.Style, models.MusicStyleMaxLen),
		Title:        title,
		CustomMode:   true,
		Instrumental: true,
		Model:        s.client.Model(),
		NegativeTags: musicNegativeTags,
		CallBackURL:  callbackURL,
	})
	if !outcome.OK() {
		s.logger.Error("music submission failed", map[string]interface{}{
			"error_type": outcome.ErrKind, "error": outcome.ErrMsg,
		})
		return &MusicSubmitResult{Success: false, ErrorType: outcome.ErrKind, Error: outcome.ErrMsg}
	}

	tone := ""
	if report != nil {
		tone = report.EmotionalTone
	}
	now := time.Now().UTC()
	task := &models.MusicTask{
		TaskID:          outcome.TaskID,
		Title:           title,
		Prompt:          prompt,
		Style:           params.Style,
		Mood:            params.Mood,
		Tempo:           params.Tempo,
		Instruments:     params.Instruments,
		Emotions:        topEmotionNames(report, models.MusicMaxEmotions),
		EmotionalTone:   tone,
		Status:          models.MusicStatusProcessing,
		CreatedAt:       now,
		LastUpdate:      now,
		CallbackURLUsed: callbackURL,
		ModelUsed:       s.client.Model(),
	}
	task.AppendEvent("submit", "task accepted")

	if err := s.staticStorage.SaveJSONFile(musicDirName, sidecarName(task.TaskID), task); err != nil {
		s.logger.Error("persist music sidecar failed", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
		return &MusicSubmitResult{Success: false, ErrorType: models.ErrKindHTTP, Error: "failed to persist task state"}
	}

	if userID != "" && s.ledger != nil {
		if _, err := s.ledger.Insert(userID, models.GenerationTypeMusic, task.TaskID, title, utils.TruncateText(prompt, 200)); err != nil {
			s.logger.Warn("ledger insert for music task failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return &MusicSubmitResult{
		Success: true,
		TaskID:  task.TaskID,
		Status:  task.Status,
		Title:   title,
	}
}

// loadTask reads a sidecar, normalising the audio-url/complete invariant on
// read and rewriting when a violation was found on disk.
func (s *MusicService) loadTask(taskID string) (*models.MusicTask, error) {
	var task models.MusicTask
	if err := s.staticStorage.LoadJSONFile(musicDirName, sidecarName(taskID), &task); err != nil {
		return nil, err
	}
	if task.Normalize() {
		task.LastUpdate = time.Now().UTC()
		if err := s.staticStorage.SaveJSONFile(musicDirName, sidecarName(taskID), &task); err != nil {
			s.logger.Warn("rewrite normalised sidecar failed", map[string]interface{}{"task_id": taskID, "error": err.Error()})
		}
	}
	return &task, nil
}

// HandleCallback applies one inbound callback to its task sidecar. Duplicate
// deliveries are no-ops. Returns the task id the callback was applied to.
func (s *MusicService) HandleCallback(ctx context.Context, payload map[string]interface{}) (string, error) {
	taskID := music.FindTaskID(payload)
	if taskID == "" {
		return "", fmt.Errorf("callback payload carries no task id")
	}

	s.archiveRawCallback(taskID, payload)

	unlock := s.staticStorage.Lock(musicDirName, sidecarName(taskID))
	defer unlock()

	task := &models.MusicTask{}
	if err := s.staticStorage.LoadJSONFileLocked(musicDirName, sidecarName(taskID), task); err != nil {
		// A callback can outrun or outlive the submit path; keep its
		// result on a fresh sidecar rather than dropping it.
		now := time.Now().UTC()
		task = &models.MusicTask{
			TaskID:    taskID,
			Status:    models.MusicStatusProcessing,
			CreatedAt: now,
		}
	}

	// Re-delivery of the last applied callback must not change the sidecar,
	// whatever state it left the task in.
	if task.LastCallback != nil && reflect.DeepEqual(task.LastCallback, payload) {
		return taskID, nil
	}

	task.LastCallback = payload
	task.AppendEvent("callback", "callback received")

	data := payload
	if inner, ok := payload["data"].(map[string]interface{}); ok {
		data = inner
	}
	if track, ok := music.PickCompletedTrack(data); ok {
		task.ExternalAudioURL = track.AudioURL
		if track.CoverURL != "" {
			task.ExternalCoverURL = track.CoverURL
		}
		task.Status = models.MusicStatusComplete
		task.ErrorType = ""
		task.ErrorMessage = ""
		s.mirrorAssets(ctx, task)
	}

	task.Normalize()
	task.LastUpdate = time.Now().UTC()

	if err := s.staticStorage.SaveJSONFileLocked(musicDirName, sidecarName(taskID), task); err != nil {
		return taskID, fmt.Errorf("persist callback result: %w", err)
	}
	return taskID, nil
}

// archiveRawCallback keeps the verbatim payload for debugging and audits.
func (s *MusicService) archiveRawCallback(taskID string, payload map[string]interface{}) {
	name := fmt.Sprintf("raw_callback_%s_%d.json", taskID, time.Now().UnixNano())
	if err := s.staticStorage.SaveJSONFile(musicDirName+"/raw_callbacks", name, payload); err != nil {
		s.logger.Warn("archive raw callback failed", map[string]interface{}{"task_id": taskID, "error": err.Error()})
	}
}

// mirrorAssets downloads audio and cover next to the sidecar. Failures set
// download_error without touching the task status.
func (s *MusicService) mirrorAssets(ctx context.Context, task *models.MusicTask) {
	if task.ExternalAudioURL != "" && task.LocalAudioPath == "" {
		rel := "audio/music_" + task.TaskID + ".mp3"
		dest := s.staticStorage.FullPath(musicDirName, rel)
		if _, err := s.client.DownloadFile(ctx, task.ExternalAudioURL, dest); err != nil {
			task.DownloadError = fmt.Sprintf("audio: %v", err)
			s.logger.Warn("audio download failed", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
		} else {
			task.LocalAudioPath = rel
		}
	}

	if task.ExternalCoverURL != "" && task.LocalCoverPath == "" {
		rel := "covers/cover_" + task.TaskID + ".jpg"
		dest := s.staticStorage.FullPath(musicDirName, rel)
		if _, err := s.client.DownloadFile(ctx, task.ExternalCoverURL, dest); err != nil {
			task.DownloadError = fmt.Sprintf("cover: %v", err)
			s.logger.Warn("cover download failed", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
		} else {
			task.LocalCoverPath = rel
		}
	}
}

func (s *MusicService) statusFromTask(task *models.MusicTask) *MusicStatusResult {
	result := &MusicStatusResult{
		Success:          true,
		TaskID:           task.TaskID,
		Status:           task.Status,
		ExternalAudioURL: task.ExternalAudioURL,
		ExternalCoverURL: task.ExternalCoverURL,
	}
	if task.LocalAudioPath != "" {
		result.LocalAudioURL = "/static/" + musicDirName + "/" + task.LocalAudioPath
	}
	if task.LocalCoverPath != "" {
		result.LocalCoverURL = "/static/" + musicDirName + "/" + task.LocalCoverPath
	}
	// Completed tasks never expose error fields.
	if task.Status != models.MusicStatusComplete {
		result.ErrorType = task.ErrorType
		result.Error = task.ErrorMessage
	}
	return result
}

// TaskSnapshot reads the current sidecar state without any polling.
func (s *MusicService) TaskSnapshot(taskID string) (*MusicStatusResult, error) {
	task, err := s.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	return s.statusFromTask(task), nil
}

// CheckStatus answers a client asking about a task. The sidecar is consulted
// first; a task already carrying an audio URL is complete without network
// I/O. Otherwise the status endpoints are polled on the bounded schedule,
// with fallback recreation when the server has lost the task.
func (s *MusicService) CheckStatus(ctx context.Context, taskID string) *MusicStatusResult {
	task, err := s.loadTask(taskID)
	if err != nil {
		return &MusicStatusResult{
			Success:   false,
			TaskID:    taskID,
			ErrorType: models.ErrKindMissingTaskID,
			Error:     "unknown task id",
		}
	}

	if task.ExternalAudioURL != "" || task.IsTerminal() {
		return s.statusFromTask(task)
	}

	return s.poll(ctx, task)
}

// poll drives the bounded polling schedule against the status endpoints.
func (s *MusicService) poll(ctx context.Context, task *models.MusicTask) *MusicStatusResult {
	s.sleep(pollInitialDelay)
	elapsed := pollInitialDelay

	lastErr := "no status obtained before the polling cap"
	notFoundStreak := 0

	for attempt := 0; ; attempt++ {
		gap := pollGaps[len(pollGaps)-1]
		if attempt < len(pollGaps) {
			gap = pollGaps[attempt]
		}
		if elapsed+gap > pollTotalCap {
			break
		}
		s.sleep(gap)
		elapsed += gap

		outcome := s.client.CheckStatus(ctx, task.TaskID)
		task.AppendEvent("poll", outcome.APIStatus)

		switch {
		case outcome.NotFound:
			// 404 right after submission means still queued; a streak of
			// them past the initial delay means the server lost the task.
			notFoundStreak++
			lastErr = "status endpoints returned 404"
			if notFoundStreak >= pollNotFoundThreshold {
				return s.recreateTask(ctx, task)
			}

		case outcome.AudioURL != "":
			notFoundStreak = 0
			return s.completeFromPoll(ctx, task, outcome)

		case outcome.ErrKind == models.ErrKindAPIReported:
			// Definitive upstream failure; stop polling.
			return s.failTask(task, outcome.ErrKind, outcome.ErrMsg)

		case outcome.ErrKind != "":
			notFoundStreak = 0
			lastErr = fmt.Sprintf("%s: %s", outcome.ErrKind, outcome.ErrMsg)

		default:
			// processing / pending / submitted / generating
			notFoundStreak = 0
		}
	}

	return s.timeoutTask(task, lastErr)
}

// completeFromPoll merges a successful poll into the sidecar.
func (s *MusicService) completeFromPoll(ctx context.Context, task *models.MusicTask, outcome music.StatusOutcome) *MusicStatusResult {
	unlock := s.staticStorage.Lock(musicDirName, sidecarName(task.TaskID))
	defer unlock()

	// Re-read under the lock: a callback may have landed meanwhile.
	current := &models.MusicTask{}
	if err := s.staticStorage.LoadJSONFileLocked(musicDirName, sidecarName(task.TaskID), current); err != nil {
		current = task
	}
	if current.ExternalAudioURL == "" {
		current.ExternalAudioURL = outcome.AudioURL
		if outcome.CoverURL != "" {
			current.ExternalCoverURL = outcome.CoverURL
		}
	}
	current.Status = models.MusicStatusComplete
	current.ErrorType = ""
	current.ErrorMessage = ""
	current.AppendEvent("poll", "complete with audio url")
	s.mirrorAssets(ctx, current)
	current.Normalize()
	current.LastUpdate = time.Now().UTC()

	if err := s.staticStorage.SaveJSONFileLocked(musicDirName, sidecarName(task.TaskID), current); err != nil {
		s.logger.Error("persist completed task failed", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
	}
	return s.statusFromTask(current)
}

// reloadForWrite re-reads the sidecar under the caller-held lock. ok is
// false when a callback has already completed the task; the completion is
// absorbing and no failure state may be written over it.
func (s *MusicService) reloadForWrite(task *models.MusicTask) (*models.MusicTask, bool) {
	current := &models.MusicTask{}
	if err := s.staticStorage.LoadJSONFileLocked(musicDirName, sidecarName(task.TaskID), current); err != nil {
		current = task
	}
	if current.Status == models.MusicStatusComplete || current.ExternalAudioURL != "" {
		return current, false
	}
	return current, true
}

// failTask persists a definitive error state. A callback completing the task
// mid-poll wins: the completed sidecar is returned untouched.
func (s *MusicService) failTask(task *models.MusicTask, errKind, errMsg string) *MusicStatusResult {
	unlock := s.staticStorage.Lock(musicDirName, sidecarName(task.TaskID))
	defer unlock()

	current, ok := s.reloadForWrite(task)
	if !ok {
		return s.statusFromTask(current)
	}
	current.Status = models.MusicStatusError
	current.ErrorType = errKind
	current.ErrorMessage = errMsg
	current.LastUpdate = time.Now().UTC()
	if err := s.staticStorage.SaveJSONFileLocked(musicDirName, sidecarName(current.TaskID), current); err != nil {
		s.logger.Error("persist failed task state failed", map[string]interface{}{"task_id": current.TaskID, "error": err.Error()})
	}
	return s.statusFromTask(current)
}

// timeoutTask persists the exhausted-retries state, unless a callback
// completed the task while the schedule ran out.
func (s *MusicService) timeoutTask(task *models.MusicTask, lastErr string) *MusicStatusResult {
	unlock := s.staticStorage.Lock(musicDirName, sidecarName(task.TaskID))
	defer unlock()

	current, ok := s.reloadForWrite(task)
	if !ok {
		return s.statusFromTask(current)
	}
	current.Status = models.MusicStatusTimeout
	current.ErrorType = models.ErrKindMaxRetries
	current.ErrorMessage = lastErr
	current.LastUpdate = time.Now().UTC()
	if err := s.staticStorage.SaveJSONFileLocked(musicDirName, sidecarName(current.TaskID), current); err != nil {
		s.logger.Error("persist timed-out task state failed", map[string]interface{}{"task_id": current.TaskID, "error": err.Error()})
	}
	return s.statusFromTask(current)
}

// recreateTask resubmits a task the server has lost, reconstructing the
// request from the existing sidecar. The old sidecar is kept as history.
func (s *MusicService) recreateTask(ctx context.Context, old *models.MusicTask) *MusicStatusResult {
	// A callback may complete the task during the 404 streak; completion
	// wins over recreation.
	unlock := s.staticStorage.Lock(musicDirName, sidecarName(old.TaskID))
	current, ok := s.reloadForWrite(old)
	unlock()
	if !ok {
		return s.statusFromTask(current)
	}
	old = current

	outcome := s.client.Submit(ctx, music.SubmitRequest{
		Prompt:       old.Prompt,
		Style:        utils.TruncateText(old.Style, models.MusicStyleMaxLen),
		Title:        old.Title,
		CustomMode:   true,
		Instrumental: true,
		Model:        old.ModelUsed,
		NegativeTags: musicNegativeTags,
		CallBackURL:  old.CallbackURLUsed,
	})
	if !outcome.OK() {
		return s.failTask(old, outcome.ErrKind, "fallback resubmission failed: "+outcome.ErrMsg)
	}

	now := time.Now().UTC()
	fresh := &models.MusicTask{
		TaskID:           outcome.TaskID,
		Title:            old.Title,
		Prompt:           old.Prompt,
		Style:            old.Style,
		Mood:             old.Mood,
		Tempo:            old.Tempo,
		Instruments:      old.Instruments,
		Emotions:         old.Emotions,
		EmotionalTone:    old.EmotionalTone,
		Status:           models.MusicStatusProcessingFallback,
		CreatedAt:        now,
		LastUpdate:       now,
		CallbackURLUsed:  old.CallbackURLUsed,
		ModelUsed:        old.ModelUsed,
		FallbackOfTaskID: old.TaskID,
	}
	fresh.AppendEvent("fallback", "recreated after task loss, replaces "+old.TaskID)
	if err := s.staticStorage.SaveJSONFile(musicDirName, sidecarName(fresh.TaskID), fresh); err != nil {
		s.logger.Error("persist fallback sidecar failed", map[string]interface{}{"task_id": fresh.TaskID, "error": err.Error()})
	}

	unlock = s.staticStorage.Lock(musicDirName, sidecarName(old.TaskID))
	defer unlock()
	current, ok = s.reloadForWrite(old)
	if !ok {
		// Completed while the fallback was being submitted; the fresh
		// sidecar stays as history, the completion is what the caller gets.
		return s.statusFromTask(current)
	}
	current.ReplacedByTaskID = fresh.TaskID
	current.AppendEvent("fallback", "replaced by "+fresh.TaskID)
	current.LastUpdate = now
	if err := s.staticStorage.SaveJSONFileLocked(musicDirName, sidecarName(current.TaskID), current); err != nil {
		s.logger.Warn("persist replaced sidecar failed", map[string]interface{}{"task_id": current.TaskID, "error": err.Error()})
	}

	return &MusicStatusResult{
		Success:         true,
		TaskID:          old.TaskID,
		Status:          fresh.Status,
		FallbackCreated: true,
		NewTaskID:       fresh.TaskID,
	}
}

// ListTasks returns every known task, sidecar order.
func (s *MusicService) ListTasks() ([]*models.MusicTask, error) {
	names, err := s.staticStorage.ListFiles(musicDirName, "music_metadata_")
	if err != nil {
		return nil, err
	}

	var tasks []*models.MusicTask
	for _, name := range names {
		var task models.MusicTask
		if err := s.staticStorage.LoadJSONFile(musicDirName, name, &task); err != nil {
			s.logger.Warn("skip unreadable sidecar", map[string]interface{}{"file": name, "error": err.Error()})
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}
