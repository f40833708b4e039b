// internal/music/client.go
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

// Client talks to the asynchronous music synthesis service. Methods never
// panic and classify failures into the closed error-kind taxonomy; the
// orchestrator persists outcomes into task sidecars.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// DefaultModel is sent when no model override is configured.
const DefaultModel = "V3_5"

// NewClient builds a music API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// HasKey reports whether a credential is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Model returns the model identifier sent with submissions.
func (c *Client) Model() string {
	return c.model
}

// SubmitRequest is the wire document for POST /generate.
type SubmitRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	NegativeTags string `json:"negativeTags"`
	CallBackURL  string `json:"callBackUrl"`
}

// SubmitOutcome is the classified result of a submission.
type SubmitOutcome struct {
	TaskID  string
	ErrKind string
	ErrMsg  string
}

// OK reports a usable task id.
func (o SubmitOutcome) OK() bool { return o.ErrKind == "" }

// Submit posts a generation request. It never returns an error; failures
// are carried in the outcome.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) SubmitOutcome {
	if c.apiKey == "" {
		return SubmitOutcome{ErrKind: models.ErrKindMissingAPIKey, ErrMsg: "music api key is not configured"}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return SubmitOutcome{ErrKind: models.ErrKindJSONDecode, ErrMsg: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/generate", bytes.NewBuffer(payload))
	if err != nil {
		return SubmitOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return SubmitOutcome{ErrKind: models.ErrKindTimeout, ErrMsg: err.Error()}
		}
		return SubmitOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return SubmitOutcome{
			ErrKind: models.ErrKindHTTP,
			ErrMsg:  fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var parsed struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SubmitOutcome{ErrKind: models.ErrKindJSONDecode, ErrMsg: err.Error()}
	}
	if parsed.Code != 200 {
		return SubmitOutcome{
			ErrKind: models.ErrKindAPIReported,
			ErrMsg:  fmt.Sprintf("code %d: %s", parsed.Code, parsed.Msg),
		}
	}
	if len(parsed.Data) == 0 {
		return SubmitOutcome{ErrKind: models.ErrKindMissingDataField, ErrMsg: "response has no data field"}
	}

	var data struct {
		TaskID string `json:"taskId"`
		AltID  string `json:"task_id"`
	}
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		return SubmitOutcome{ErrKind: models.ErrKindJSONDecode, ErrMsg: err.Error()}
	}

	taskID := data.TaskID
	if taskID == "" {
		taskID = data.AltID
	}
	if taskID == "" {
		return SubmitOutcome{ErrKind: models.ErrKindMissingTaskID, ErrMsg: "response data carries no task id"}
	}

	return SubmitOutcome{TaskID: taskID}
}

// StatusOutcome is the classified result of one status endpoint probe.
type StatusOutcome struct {
	APIStatus string
	AudioURL  string
	CoverURL  string
	Duration  float64
	NotFound  bool
	ErrKind   string
	ErrMsg    string
}

// statusEndpoints enumerates the three known status URL shapes.
func (c *Client) statusEndpoints(taskID string) []string {
	return []string{
		c.baseURL + "/tasks/" + taskID,
		c.baseURL + "/get?taskId=" + taskID,
		c.baseURL + "/music/" + taskID,
	}
}

// CheckStatus probes the status endpoints in order, returning the first
// decodable answer. HTTP 404 from every endpoint yields NotFound.
func (c *Client) CheckStatus(ctx context.Context, taskID string) StatusOutcome {
	if c.apiKey == "" {
		return StatusOutcome{ErrKind: models.ErrKindMissingAPIKey, ErrMsg: "music api key is not configured"}
	}

	var last StatusOutcome
	sawNotFound := false

	for _, endpoint := range c.statusEndpoints(taskID) {
		outcome := c.probe(ctx, endpoint)
		if outcome.NotFound {
			sawNotFound = true
			last = outcome
			continue
		}
		if outcome.ErrKind == "" {
			return outcome
		}
		last = outcome
	}

	if sawNotFound && last.ErrKind == "" {
		last.NotFound = true
	}
	return last
}

func (c *Client) probe(ctx context.Context, endpoint string) StatusOutcome {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return StatusOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusOutcome{ErrKind: models.ErrKindTimeout, ErrMsg: err.Error()}
		}
		return StatusOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusOutcome{NotFound: true}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusOutcome{ErrKind: models.ErrKindConnection, ErrMsg: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return StatusOutcome{
			ErrKind: models.ErrKindHTTP,
			ErrMsg:  fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return StatusOutcome{ErrKind: models.ErrKindJSONDecode, ErrMsg: err.Error()}
	}

	return classifyStatusPayload(payload)
}

// classifyStatusPayload resolves the task status and audio/cover URLs from
// a 200 OK status document. The audio URL is searched across tracks[0],
// the top level, and results.
func classifyStatusPayload(payload map[string]interface{}) StatusOutcome {
	data := payload
	if inner, ok := payload["data"].(map[string]interface{}); ok {
		data = inner
	}

	status, _ := data["status"].(string)

	outcome := StatusOutcome{APIStatus: status}
	if track, ok := PickCompletedTrack(data); ok {
		outcome.AudioURL = track.AudioURL
		outcome.CoverURL = track.CoverURL
		outcome.Duration = track.Duration
	}

	switch status {
	case "complete", "completed", "success", "SUCCESS":
		if outcome.AudioURL == "" {
			outcome.ErrKind = models.ErrKindMissingDataField
			outcome.ErrMsg = "complete status without a resolvable audio url"
		}
	case "processing", "pending", "submitted", "generating", "PENDING", "":
		// keep waiting
	case "error", "failed", "FAILED":
		outcome.ErrKind = models.ErrKindAPIReported
		if msg, ok := data["error"].(string); ok {
			outcome.ErrMsg = msg
		} else {
			outcome.ErrMsg = "music service reported failure"
		}
	default:
		outcome.ErrKind = models.ErrKindUnknownAPIStatus
		outcome.ErrMsg = fmt.Sprintf("unrecognised status %q", status)
	}
	return outcome
}

// DownloadFile mirrors a remote asset to destPath. It returns the number of
// bytes written; zero bytes is reported as an error so callers can record a
// download failure without touching task status.
func (c *Client) DownloadFile(ctx context.Context, fileURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, err
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return written, err
	}
	if written == 0 {
		os.Remove(tmpPath)
		return 0, errors.New("downloaded zero bytes")
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return written, err
	}
	return written, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
