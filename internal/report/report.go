package report

import (
	"math"
	"strings"
	"time"

	"chart-qa-backend/internal/analysis"
)

// RiskLevel is the chart-level verdict.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const (
	maxFlaggedIssues    = 15
	maxRecommendations  = 15
	maxComplianceIssues = 10
	maxOpportunities    = 5
	reviewIssueLimit    = 10
	failedDocumentIssue = "manual review needed"
)

// DocumentOutcome is the pipeline result for one document of a chart.
type DocumentOutcome struct {
	DocumentID string           `json:"documentId"`
	FileName   string           `json:"fileName,omitempty"`
	Kind       string           `json:"kind"`
	Status     string           `json:"status"`
	Analysis   *analysis.Result `json:"analysis,omitempty"`
	ErrorCode  string           `json:"errorCode,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Failed reports whether the document produced no analysis.
func (o DocumentOutcome) Failed() bool {
	return o.Analysis == nil
}

// FinancialImpact sums the revenue figures of all analyzed documents.
type FinancialImpact struct {
	CurrentRevenue    float64  `json:"currentRevenue"`
	OptimizedRevenue  float64  `json:"optimizedRevenue"`
	PotentialIncrease float64  `json:"potentialIncrease"`
	Opportunities     []string `json:"opportunities"`
}

// ChartReport is the aggregated QA verdict for a chart.
type ChartReport struct {
	ChartID               string            `json:"chartId"`
	OverallQAScore        int               `json:"overallQAScore"`
	ComplianceScore       int               `json:"complianceScore"`
	RiskLevel             RiskLevel         `json:"riskLevel"`
	TotalIssues           int               `json:"totalIssues"`
	CriticalIssues        int               `json:"criticalIssues"`
	ReviewRequired        bool              `json:"reviewRequired"`
	FlaggedIssues         []string          `json:"flaggedIssues"`
	Recommendations       []string          `json:"recommendations"`
	ComplianceIssues      []string          `json:"complianceIssues"`
	FinancialImpact       FinancialImpact   `json:"financialImpact"`
	DocumentTypeBreakdown map[string]int    `json:"documentTypeBreakdown"`
	DocumentsAnalyzed     int               `json:"documentsAnalyzed"`
	DocumentsFailed       int               `json:"documentsFailed"`
	PerDocumentResults    []DocumentOutcome `json:"perDocumentResults"`
	GeneratedAt           time.Time         `json:"generatedAt"`
}

// ClassifyRisk maps scores and issue counts to a risk level. The most severe matching level wins.
func ClassifyRisk(overall, totalIssues, criticalIssues int) RiskLevel {
	switch {
	case overall < 70 || totalIssues > 15 || criticalIssues > 3:
		return RiskCritical
	case overall < 80 || totalIssues > 10 || criticalIssues > 1:
		return RiskHigh
	case overall < 90 || totalIssues > 5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Aggregate merges per-document outcomes into one chart report.
func Aggregate(chartID string, outcomes []DocumentOutcome) ChartReport {
	rep := ChartReport{
		ChartID:               chartID,
		DocumentTypeBreakdown: map[string]int{},
		PerDocumentResults:    outcomes,
		GeneratedAt:           time.Now().UTC(),
	}
	if rep.PerDocumentResults == nil {
		rep.PerDocumentResults = []DocumentOutcome{}
	}

	flagged := newDedup(maxFlaggedIssues)
	recs := newDedup(maxRecommendations)
	compliance := newDedup(maxComplianceIssues)
	opportunities := newDedup(maxOpportunities)

	var qualitySum, complianceSum float64
	var qualityN, complianceN int

	for _, o := range outcomes {
		kind := o.Kind
		if kind == "" {
			kind = analysis.KindOther
		}
		rep.DocumentTypeBreakdown[kind]++

		if o.Failed() {
			rep.DocumentsFailed++
			rep.TotalIssues++
			flagged.add(failedDocumentLabel(o))
			continue
		}
		res := o.Analysis
		rep.DocumentsAnalyzed++

		qualitySum += float64(res.QualityScore)
		qualityN++
		if res.ComplianceScore != nil {
			complianceSum += float64(*res.ComplianceScore)
			complianceN++
		}

		rep.TotalIssues += len(res.FlaggedIssues)
		rep.CriticalIssues += len(res.CriticalIssues)
		if !res.ComplianceChecks.HIPAACompliant {
			rep.CriticalIssues++
		}

		flagged.add(res.FlaggedIssues...)
		recs.add(res.Recommendations...)
		compliance.add(res.ComplianceChecks.Issues...)
		opportunities.add(res.FinancialImpact.Opportunities...)

		fin := res.FinancialImpact
		rep.FinancialImpact.CurrentRevenue += deref(fin.CurrentRevenue)
		rep.FinancialImpact.OptimizedRevenue += deref(fin.OptimizedRevenue)
		rep.FinancialImpact.PotentialIncrease += deref(fin.PotentialIncrease)
	}

	if qualityN > 0 {
		rep.OverallQAScore = int(math.Round(qualitySum / float64(qualityN)))
	}
	rep.ComplianceScore = rep.OverallQAScore
	if complianceN > 0 {
		rep.ComplianceScore = int(math.Round(complianceSum / float64(complianceN)))
	}

	rep.FlaggedIssues = flagged.items
	rep.Recommendations = recs.items
	rep.ComplianceIssues = compliance.items
	rep.FinancialImpact.Opportunities = opportunities.items

	if qualityN == 0 {
		rep.RiskLevel = RiskCritical
	} else {
		rep.RiskLevel = ClassifyRisk(rep.OverallQAScore, rep.TotalIssues, rep.CriticalIssues)
	}
	rep.ReviewRequired = rep.TotalIssues > reviewIssueLimit || rep.CriticalIssues > 0
	return rep
}

func failedDocumentLabel(o DocumentOutcome) string {
	name := o.FileName
	if name == "" {
		name = o.DocumentID
	}
	return name + ": " + failedDocumentIssue
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// dedup keeps the first spelling of case-insensitively equal strings, up to a cap.
type dedup struct {
	seen  map[string]struct{}
	items []string
	max   int
}

func newDedup(max int) *dedup {
	return &dedup{seen: map[string]struct{}{}, items: []string{}, max: max}
}

func (d *dedup) add(values ...string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || len(d.items) >= d.max {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		d.items = append(d.items, v)
	}
}
