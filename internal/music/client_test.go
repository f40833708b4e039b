// internal/music/client_test.go
package music

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/FrontlineMuse/internal/models"
)

func TestSubmitSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"code":200,"msg":"ok","data":{"taskId":"task-123"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	outcome := c.Submit(context.Background(), SubmitRequest{Prompt: "p", Title: "t"})

	require.True(t, outcome.OK())
	assert.Equal(t, "task-123", outcome.TaskID)
}

func TestSubmitSnakeCaseTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"task_id":"task-snake"}}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").Submit(context.Background(), SubmitRequest{})
	require.True(t, outcome.OK())
	assert.Equal(t, "task-snake", outcome.TaskID)
}

func TestSubmitMissingKey(t *testing.T) {
	c := NewClient("http://unreachable.invalid", "")
	outcome := c.Submit(context.Background(), SubmitRequest{})

	assert.False(t, outcome.OK())
	assert.Equal(t, models.ErrKindMissingAPIKey, outcome.ErrKind)
}

func TestSubmitHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").Submit(context.Background(), SubmitRequest{})
	assert.Equal(t, models.ErrKindHTTP, outcome.ErrKind)
}

func TestSubmitAPIReportedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":429,"msg":"credit exhausted"}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").Submit(context.Background(), SubmitRequest{})
	assert.Equal(t, models.ErrKindAPIReported, outcome.ErrKind)
	assert.Contains(t, outcome.ErrMsg, "credit exhausted")
}

func TestSubmitMissingTaskID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"other":"field"}}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").Submit(context.Background(), SubmitRequest{})
	assert.Equal(t, models.ErrKindMissingTaskID, outcome.ErrKind)
}

func TestCheckStatusFallsThroughEndpoints(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/tasks/task-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":{"status":"complete","audio_url":"https://cdn/x.mp3"}}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")

	assert.False(t, outcome.NotFound)
	assert.Equal(t, "https://cdn/x.mp3", outcome.AudioURL)
	assert.Equal(t, []string{"/tasks/task-1", "/get"}, paths)
}

func TestCheckStatusAllNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")
	assert.True(t, outcome.NotFound)
	assert.Empty(t, outcome.ErrKind)
}

func TestCheckStatusFailedTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","error":"generation failed upstream"}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")
	assert.Equal(t, models.ErrKindAPIReported, outcome.ErrKind)
	assert.Equal(t, "generation failed upstream", outcome.ErrMsg)
}

func TestCheckStatusCompleteWithoutAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"complete"}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")
	assert.Equal(t, models.ErrKindMissingDataField, outcome.ErrKind)
}

func TestCheckStatusUnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"hibernating"}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")
	assert.Equal(t, models.ErrKindUnknownAPIStatus, outcome.ErrKind)
}

func TestCheckStatusStillProcessing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"processing"}}`))
	}))
	defer server.Close()

	outcome := NewClient(server.URL, "k").CheckStatus(context.Background(), "task-1")
	assert.Empty(t, outcome.ErrKind)
	assert.Empty(t, outcome.AudioURL)
	assert.Equal(t, "processing", outcome.APIStatus)
}

func TestDownloadFileWritesAtomically(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "audio", "a.mp3")
	n, err := NewClient(server.URL, "k").DownloadFile(context.Background(), server.URL+"/a.mp3", dest)

	require.NoError(t, err)
	assert.Equal(t, int64(len("audio-bytes")), n)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(content))

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFileZeroBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.mp3")
	_, err := NewClient(server.URL, "k").DownloadFile(context.Background(), server.URL+"/a.mp3", dest)

	require.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadFileHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k").DownloadFile(context.Background(), server.URL+"/a.mp3", filepath.Join(t.TempDir(), "a.mp3"))
	assert.Error(t, err)
}
