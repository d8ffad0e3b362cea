package analysis

import (
	"math"
	"strconv"
	"strings"
)

var listTextKeys = []string{"issue", "description", "text", "recommendation", "title", "message"}

// normalize maps a decoded model object onto a bounded Result.
func normalize(cfg Config, obj map[string]any) Result {
	res := Result{
		QualityScore:      scoreOr(obj["qualityScore"], cfg.DefaultScore),
		CompletenessScore: scoreOr(obj["completenessScore"], cfg.DefaultScore),
		ConfidenceScore:   scoreOr(obj["confidenceScore"], cfg.DefaultScore),
		ComplianceScore:   optionalScore(obj["complianceScore"]),
		AccuracyScore:     optionalScore(obj["accuracyScore"]),
		FlaggedIssues:     stringList(obj["flaggedIssues"], cfg.MaxListItems),
		CriticalIssues:    stringList(obj["criticalIssues"], cfg.MaxListItems),
		Recommendations:   stringList(obj["recommendations"], cfg.MaxListItems),
		Summary:           strings.TrimSpace(asString(obj["summary"])),
		Source:            SourceAI,
	}

	fin, _ := obj["financialImpact"].(map[string]any)
	res.FinancialImpact = FinancialImpact{
		CurrentRevenue:    amount(fin["currentRevenue"]),
		OptimizedRevenue:  amount(fin["optimizedRevenue"]),
		PotentialIncrease: amount(fin["potentialIncrease"]),
		Opportunities:     stringList(fin["opportunities"], cfg.MaxOpportunities),
	}

	checks, _ := obj["complianceChecks"].(map[string]any)
	res.ComplianceChecks = ComplianceChecks{
		HIPAACompliant:  boolOr(checks["hipaaCompliant"], true),
		DomainCompliant: boolOr(checks["domainCompliant"], true),
		Issues:          stringList(checks["issues"], cfg.MaxListItems),
	}
	return res
}

func scoreOr(v any, fallback int) int {
	if s := optionalScore(v); s != nil {
		return *s
	}
	return clampScore(fallback)
}

func optionalScore(v any) *int {
	f, ok := number(v)
	if !ok {
		return nil
	}
	// Clamp before converting: float to int is undefined out of range.
	s := int(math.Round(math.Max(0, math.Min(100, f))))
	return &s
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// number accepts JSON numbers and numeric strings such as "85", "85%" or "$1,200.50".
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case string:
		clean := strings.TrimSpace(n)
		clean = strings.TrimSuffix(clean, "%")
		clean = strings.TrimPrefix(clean, "$")
		clean = strings.ReplaceAll(clean, ",", "")
		f, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func amount(v any) *float64 {
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

func boolOr(v any, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return fallback
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// stringList reads an array of strings or of objects carrying a text field. It never returns nil.
func stringList(v any, limit int) []string {
	out := []string{}
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		out = append(out, s)
		return len(out) < limit
	}

	switch raw := v.(type) {
	case string:
		add(raw)
	case []any:
		for _, item := range raw {
			var text string
			switch it := item.(type) {
			case string:
				text = it
			case map[string]any:
				for _, key := range listTextKeys {
					if s, ok := it[key].(string); ok && strings.TrimSpace(s) != "" {
						text = s
						break
					}
				}
			}
			if !add(text) {
				break
			}
		}
	}
	return out
}
