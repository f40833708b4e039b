// internal/models/errors.go
package models

// Closed error-kind taxonomy. These strings travel in result objects and
// sidecars; the generators never raise across their public surface.
const (
	ErrKindContentPolicy    = "content_policy_violation"
	ErrKindAPIReported      = "api_reported_error"
	ErrKindHTTP             = "http_error"
	ErrKindConnection       = "connection_error"
	ErrKindTimeout          = "timeout"
	ErrKindJSONDecode       = "json_decode_error"
	ErrKindMissingTaskID    = "missing_task_id"
	ErrKindMissingDataField = "missing_data_field"
	ErrKindMaxRetries       = "max_retries_reached"
	ErrKindUnknownAPIStatus = "unknown_api_status"
	ErrKindMissingAPIKey    = "missing_api_key"
)
