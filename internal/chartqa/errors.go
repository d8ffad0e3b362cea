package chartqa

import (
	"errors"
	"strings"
)

var (
	ErrInvalidRequest        = errors.New("chartId or patientId is required")
	ErrNoDocuments           = errors.New("chart has no documents")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

// Per-document failure codes stored on the document and returned in the report.
const (
	ErrorCodeExtractionFailed = "EXTRACTION_FAILED"
	ErrorCodeAnalysisFailed   = "ANALYSIS_FAILED"
	ErrorCodeLocked           = "LOCKED"
	ErrorCodeTimeout          = "TIMEOUT"
)

const (
	maxErrorMessageLen = 500
	lockedMessage      = "document is already being processed"
	timeoutMessage     = "chart QA run timed out before this document finished"
)

// sanitizeError flattens a failure message into one bounded line.
func sanitizeError(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxErrorMessageLen {
		cut := maxErrorMessageLen
		for cut > 0 && !isRuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
