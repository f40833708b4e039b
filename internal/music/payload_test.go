// internal/music/payload_test.go
package music

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestFindTaskIDTopLevel(t *testing.T) {
	assert.Equal(t, "abc", FindTaskID(decodePayload(t, `{"task_id":"abc"}`)))
	assert.Equal(t, "abc", FindTaskID(decodePayload(t, `{"id":"abc"}`)))
	assert.Equal(t, "abc", FindTaskID(decodePayload(t, `{"taskId":"abc"}`)))
}

func TestFindTaskIDUnderData(t *testing.T) {
	payload := decodePayload(t, `{"code":200,"data":{"taskId":"nested"}}`)
	assert.Equal(t, "nested", FindTaskID(payload))
}

func TestFindTaskIDPrefersTopLevel(t *testing.T) {
	payload := decodePayload(t, `{"task_id":"outer","data":{"task_id":"inner"}}`)
	assert.Equal(t, "outer", FindTaskID(payload))
}

func TestFindTaskIDMissing(t *testing.T) {
	assert.Equal(t, "", FindTaskID(decodePayload(t, `{"status":"complete"}`)))
}

func TestPickCompletedTrackSingleTrackPayload(t *testing.T) {
	data := decodePayload(t, `{"audio_url":"https://cdn/a.mp3","image_url":"https://cdn/a.jpg"}`)

	track, ok := PickCompletedTrack(data)
	require.True(t, ok)
	assert.Equal(t, "https://cdn/a.mp3", track.AudioURL)
	assert.Equal(t, "https://cdn/a.jpg", track.CoverURL)
}

func TestPickCompletedTrackSunoDataArray(t *testing.T) {
	data := decodePayload(t, `{
		"sunoData": [
			{"title":"first","duration":10},
			{"title":"second","audioUrl":"https://cdn/b.mp3","duration":120}
		]
	}`)

	track, ok := PickCompletedTrack(data)
	require.True(t, ok)
	assert.Equal(t, "https://cdn/b.mp3", track.AudioURL)
	assert.Equal(t, "second", track.Title)
}

func TestPickCompletedTrackAlternateAudioKeys(t *testing.T) {
	for _, raw := range []string{
		`{"tracks":[{"source_audio_url":"https://cdn/c.mp3"}]}`,
		`{"results":[{"sourceAudioUrl":"https://cdn/c.mp3"}]}`,
		`{"data":[{"url":"https://cdn/c.mp3"}]}`,
	} {
		track, ok := PickCompletedTrack(decodePayload(t, raw))
		require.True(t, ok, raw)
		assert.Equal(t, "https://cdn/c.mp3", track.AudioURL, raw)
	}
}

func TestPickCompletedTrackNoAudio(t *testing.T) {
	data := decodePayload(t, `{"tracks":[{"title":"pending","duration":30}]}`)

	_, ok := PickCompletedTrack(data)
	assert.False(t, ok)
}

func TestPickCompletedTrackEmptyPayload(t *testing.T) {
	_, ok := PickCompletedTrack(map[string]interface{}{})
	assert.False(t, ok)
}
