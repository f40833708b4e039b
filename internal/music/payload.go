// internal/music/payload.go
package music

// Track is one synthesised audio variant extracted from a callback or
// status payload.
type Track struct {
	AudioURL string
	CoverURL string
	Title    string
	Duration float64
}

var audioURLKeys = []string{"audio_url", "audioUrl", "source_audio_url", "sourceAudioUrl", "url"}
var coverURLKeys = []string{"image_url", "imageUrl", "cover_url", "coverUrl", "source_image_url"}

// FindTaskID probes a callback payload for the task identifier. Probe order:
// task_id, id, taskId at the top level, then the same keys under data.
func FindTaskID(payload map[string]interface{}) string {
	keys := []string{"task_id", "id", "taskId"}
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		for _, k := range keys {
			if s, ok := data[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringField(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func floatField(m map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return f
		}
	}
	return 0
}

func trackFromMap(m map[string]interface{}) Track {
	t := Track{
		AudioURL: stringField(m, audioURLKeys),
		CoverURL: stringField(m, coverURLKeys),
		Duration: floatField(m, "duration", "audio_duration"),
	}
	if s, ok := m["title"].(string); ok {
		t.Title = s
	}
	return t
}

// collectTracks gathers track candidates from the known container shapes:
// data itself (single-track payloads), plus tracks/results/sunoData arrays.
func collectTracks(data map[string]interface{}) []Track {
	var tracks []Track

	if self := trackFromMap(data); self.AudioURL != "" {
		tracks = append(tracks, self)
	}

	for _, key := range []string{"tracks", "results", "sunoData", "data"} {
		arr, ok := data[key].([]interface{})
		if !ok {
			continue
		}
		for _, raw := range arr {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			tracks = append(tracks, trackFromMap(m))
		}
	}
	return tracks
}

// PickCompletedTrack selects the track to persist: the first one carrying an
// audio URL, else the longest by duration. Returns false when no candidate
// has an audio URL.
func PickCompletedTrack(data map[string]interface{}) (Track, bool) {
	tracks := collectTracks(data)
	if len(tracks) == 0 {
		return Track{}, false
	}

	for _, t := range tracks {
		if t.AudioURL != "" {
			return t, true
		}
	}

	longest := tracks[0]
	for _, t := range tracks[1:] {
		if t.Duration > longest.Duration {
			longest = t
		}
	}
	if longest.AudioURL == "" {
		return Track{}, false
	}
	return longest, true
}
