package errors

import "net/http"

// ErrorCode is a string identifier for a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

// Common error codes.
const (
	CodeOK           ErrorCode = "OK"
	CodeUnknown      ErrorCode = "COMMON_000"
	CodeInternal     ErrorCode = "COMMON_001"
	CodeInvalidParam ErrorCode = "COMMON_002"
	CodeNotFound     ErrorCode = "COMMON_003"
	CodeConflict     ErrorCode = "COMMON_004"
	CodeTimeout      ErrorCode = "COMMON_005"
)

// Ingestion error codes.  These map directly onto the reload failure
// taxonomy: a missing file, an unreadable or schema-unrecognised document,
// a single malformed entry, and a corrupt persisted snapshot.
const (
	CodeSourceMissing     ErrorCode = "INGEST_001"
	CodeMalformedDocument ErrorCode = "INGEST_002"
	CodeMalformedEntry    ErrorCode = "INGEST_003"
	CodeSnapshotCorrupt   ErrorCode = "INGEST_004"
	CodeReloadInProgress  ErrorCode = "INGEST_005"
)

// Screening error codes.
const (
	CodeEmptyQuery       ErrorCode = "SCREEN_001"
	CodeBatchTooLarge    ErrorCode = "SCREEN_002"
	CodeThresholdInvalid ErrorCode = "SCREEN_003"
)

// HTTPStatus maps an ErrorCode to the HTTP status the interface layer
// should respond with.  Unknown codes fall through to 500.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeEmptyQuery, CodeBatchTooLarge, CodeThresholdInvalid:
		return http.StatusBadRequest
	case CodeNotFound, CodeSourceMissing:
		return http.StatusNotFound
	case CodeConflict, CodeReloadInProgress:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeMalformedDocument, CodeMalformedEntry, CodeSnapshotCorrupt:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
