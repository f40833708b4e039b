// internal/api/error_codes.go
package api

// API error code constants.
const (
	// generic
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorForbidden     = "FORBIDDEN"

	// analysis
	ErrorAnalysisFailed = "ANALYSIS_FAILED"
	ErrorEmptyDiaryText = "EMPTY_DIARY_TEXT"

	// generation
	ErrorLiteraryFailed      = "LITERARY_GENERATION_FAILED"
	ErrorImageFailed         = "IMAGE_GENERATION_FAILED"
	ErrorInvalidLiteraryType = "INVALID_LITERARY_TYPE"

	// music
	ErrorMusicSubmitFailed = "MUSIC_SUBMIT_FAILED"
	ErrorMusicTaskNotFound = "MUSIC_TASK_NOT_FOUND"
	ErrorCallbackRejected  = "CALLBACK_REJECTED"

	// ledger
	ErrorLedgerEntryNotFound = "LEDGER_ENTRY_NOT_FOUND"
	ErrorLedgerFailed        = "LEDGER_OPERATION_FAILED"

	// configuration
	ErrorAPIKeyMissing = "API_KEY_MISSING"
)
