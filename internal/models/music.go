// internal/models/music.go
package models

import "time"

// Music task statuses. Complete is the only absorbing state; error and
// timeout may be retried by the user.
const (
	MusicStatusProcessing         = "processing"
	MusicStatusProcessingFallback = "processing_fallback"
	MusicStatusComplete           = "complete"
	MusicStatusError              = "error"
	MusicStatusTimeout            = "timeout"
)

// Size limits enforced before submission.
const (
	MusicTitleMaxLen  = 80
	MusicStyleMaxLen  = 1000
	MusicPromptMaxLen = 5000
	MusicMaxEmotions  = 3
)

// MusicParams are the derived submission parameters. DeriveParams is a pure
// function of the emotion report.
type MusicParams struct {
	Style       string `json:"style"`
	Mood        string `json:"mood"`
	Tempo       string `json:"tempo"`
	Instruments string `json:"instruments"`
}

// MusicAPIEvent is one entry in a task's API response history.
type MusicAPIEvent struct {
	Kind      string    `json:"kind"` // submit / callback / poll / fallback
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MusicTask is the sidecar document for one asynchronous music job. The
// sidecar on disk is the sole source of truth for task state.
//
// Invariant: ExternalAudioURL != "" ⇒ Status == complete. Every writer
// enforces it through Normalize; readers finding it violated rewrite.
type MusicTask struct {
	TaskID        string   `json:"task_id"`
	Title         string   `json:"title"`
	Prompt        string   `json:"prompt"`
	Style         string   `json:"style"`
	Mood          string   `json:"mood"`
	Tempo         string   `json:"tempo"`
	Instruments   string   `json:"instruments"`
	Emotions      []string `json:"emotions"`
	EmotionalTone string   `json:"emotional_tone"`

	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`

	CallbackURLUsed string `json:"callback_url_used"`
	ModelUsed       string `json:"model_used"`

	ExternalAudioURL string `json:"external_audio_url,omitempty"`
	ExternalCoverURL string `json:"external_cover_url,omitempty"`
	LocalAudioPath   string `json:"local_audio_path,omitempty"`
	LocalCoverPath   string `json:"local_cover_path,omitempty"`

	DownloadError string `json:"download_error,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`

	// Fallback recreation bookkeeping.
	FallbackOfTaskID string `json:"fallback_of_task_id,omitempty"`
	ReplacedByTaskID string `json:"replaced_by_task_id,omitempty"`

	LastCallback       map[string]interface{} `json:"last_callback,omitempty"`
	APIResponseHistory []MusicAPIEvent        `json:"api_response_history,omitempty"`
}

// Normalize enforces the audio-url ⇒ complete invariant. It returns true
// when the task was mutated.
func (t *MusicTask) Normalize() bool {
	if t.ExternalAudioURL != "" && t.Status != MusicStatusComplete {
		t.Status = MusicStatusComplete
		t.ErrorType = ""
		t.ErrorMessage = ""
		return true
	}
	return false
}

// IsTerminal reports whether no further upstream updates are expected.
func (t *MusicTask) IsTerminal() bool {
	switch t.Status {
	case MusicStatusComplete, MusicStatusError, MusicStatusTimeout:
		return true
	}
	return false
}

// AppendEvent records an API interaction in the task history.
func (t *MusicTask) AppendEvent(kind, detail string) {
	t.APIResponseHistory = append(t.APIResponseHistory, MusicAPIEvent{
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}
