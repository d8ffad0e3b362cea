package analysis

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var (
	identifierPattern = regexp.MustCompile(`(?i)\b(patient\s*name|patient|mrn|medical\s+record|dob|date\s+of\s+birth)\b`)
	medicationPattern = regexp.MustCompile(`(?i)\b(medications?|med\s+list|dosage|dose|\d+\s?(mg|mcg|ml)|prn|bid|tid)\b`)
	signaturePattern  = regexp.MustCompile(`(?i)\b(signature|signed|electronically\s+signed|attested|clinician\s+sign)`)
	// OASIS item ids (M1800) or ICD-10 categories (I10, E11.9).
	codePattern = regexp.MustCompile(`\b(M\d{4}|[A-TV-Z]\d{2}(\.\d+)?)\b`)
)

type signals struct {
	identifiers bool
	length      bool
	medication  bool
	signature   bool
	code        bool
}

func (s signals) count() int {
	n := 0
	for _, ok := range []bool{s.identifiers, s.length, s.medication, s.signature, s.code} {
		if ok {
			n++
		}
	}
	return n
}

func detectSignals(cfg Config, text string) signals {
	return signals{
		identifiers: identifierPattern.MatchString(text),
		length:      utf8.RuneCountInString(text) > cfg.HeuristicLengthChars,
		medication:  medicationPattern.MatchString(text),
		signature:   signaturePattern.MatchString(text),
		code:        codePattern.MatchString(text),
	}
}

// heuristic scores text from cheap structural signals. The output is a pure function of its inputs.
func heuristic(cfg Config, text, reason string) Result {
	sig := detectSignals(cfg, text)

	quality := cfg.HeuristicBase
	if sig.identifiers {
		quality += cfg.HeuristicIdentifierBonus
	}
	if sig.length {
		quality += cfg.HeuristicLengthBonus
	}
	if sig.medication {
		quality += cfg.HeuristicMedicationBonus
	}
	if sig.signature {
		quality += cfg.HeuristicSignatureBonus
	}
	if sig.code {
		quality += cfg.HeuristicCodeBonus
	}

	flagged := []string{reason}
	if !sig.identifiers {
		flagged = append(flagged, "No patient identifiers detected")
	}
	if !sig.signature {
		flagged = append(flagged, "No clinician signature detected")
	}

	return Result{
		QualityScore:      clampScore(quality),
		CompletenessScore: clampScore(cfg.HeuristicCompletenessBase + cfg.HeuristicCompletenessStep*sig.count()),
		ConfidenceScore:   clampScore(cfg.HeuristicConfidence),
		FlaggedIssues:     flagged,
		CriticalIssues:    []string{},
		Recommendations:   []string{"Re-run AI analysis or review the document manually"},
		FinancialImpact:   FinancialImpact{Opportunities: []string{}},
		ComplianceChecks: ComplianceChecks{
			HIPAACompliant:  true,
			DomainCompliant: true,
			Issues:          []string{manualReviewIssue},
		},
		Summary: fmt.Sprintf(heuristicSummaryFmt, sig.count()),
		Source:  SourceHeuristic,
	}
}
