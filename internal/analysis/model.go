package analysis

import "strings"

// Document kinds with dedicated scoring prompts.
const (
	KindOASIS            = "oasis_assessment"
	KindClinicalNote     = "clinical_note"
	KindPlanOfCare       = "plan_of_care"
	KindPhysicianOrder   = "physician_order"
	KindTrainingMaterial = "training_material"
	KindOther            = "other"
)

// NormalizeKind maps a stored document type to one of the known kinds.
func NormalizeKind(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case KindOASIS, "oasis", "oasis_start_of_care", "oasis_recert":
		return KindOASIS
	case KindClinicalNote, "note", "visit_note", "progress_note", "skilled_nursing_note":
		return KindClinicalNote
	case KindPlanOfCare, "poc", "485", "care_plan":
		return KindPlanOfCare
	case KindPhysicianOrder, "order", "physician_orders", "verbal_order":
		return KindPhysicianOrder
	case KindTrainingMaterial, "training", "training_video", "slide_deck", "slides", "presentation":
		return KindTrainingMaterial
	default:
		return KindOther
	}
}

// Meta identifies the document being analyzed.
type Meta struct {
	DocumentID string
	Kind       string
	FileName   string
	ChartID    string
}

// Source records which scorer produced a Result.
type Source string

const (
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

// FinancialImpact is the revenue view of a document. Figures are absent when unknown.
type FinancialImpact struct {
	CurrentRevenue    *float64 `json:"currentRevenue,omitempty"`
	OptimizedRevenue  *float64 `json:"optimizedRevenue,omitempty"`
	PotentialIncrease *float64 `json:"potentialIncrease,omitempty"`
	Opportunities     []string `json:"opportunities"`
}

// ComplianceChecks carries the boolean compliance flags.
type ComplianceChecks struct {
	HIPAACompliant  bool     `json:"hipaaCompliant"`
	DomainCompliant bool     `json:"domainCompliant"`
	Issues          []string `json:"issues"`
}

// Result is the normalized QA output for one document.
type Result struct {
	QualityScore      int              `json:"qualityScore"`
	CompletenessScore int              `json:"completenessScore"`
	ConfidenceScore   int              `json:"confidenceScore"`
	ComplianceScore   *int             `json:"complianceScore,omitempty"`
	AccuracyScore     *int             `json:"accuracyScore,omitempty"`
	FlaggedIssues     []string         `json:"flaggedIssues"`
	CriticalIssues    []string         `json:"criticalIssues"`
	Recommendations   []string         `json:"recommendations"`
	FinancialImpact   FinancialImpact  `json:"financialImpact"`
	ComplianceChecks  ComplianceChecks `json:"complianceChecks"`
	Summary           string           `json:"summary,omitempty"`
	Source            Source           `json:"source"`
}
