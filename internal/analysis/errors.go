package analysis

import "errors"

var (
	// ErrParse marks model output that could not be recovered into a JSON object.
	ErrParse = errors.New("analysis output is not a JSON object")
	// ErrEmptyText is returned when there is nothing to analyze.
	ErrEmptyText = errors.New("no document text to analyze")
)

const (
	fallbackIssue       = "AI analysis failed; heuristic fallback score applied"
	disabledIssue       = "AI analysis disabled; heuristic score applied"
	manualReviewIssue   = "Manual compliance review required"
	heuristicSummaryFmt = "Heuristic score from %d of 5 structural signals."
)
