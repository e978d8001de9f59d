package analyzer

import (
	"encoding/json"
	"regexp"
	"strings"
)

/* Result is the structured outcome of one webhook analysis
 * The completion service is asked for exactly this shape; anything it
 * returns is validated and coerced before use
 */
type Result struct {
	Patterns           []Pattern           `json:"patterns"`
	Anomalies          []Anomaly           `json:"anomalies"`
	SecurityRisks      []SecurityRisk      `json:"security_risks"`
	SchemaImprovements []SchemaImprovement `json:"schema_improvements"`
	PotentialIssues    []PotentialIssue    `json:"potential_issues"`
	ConfidenceScore    float64             `json:"confidence_score"`
	ProcessingTimeMs   int64               `json:"processing_time"`
}

type Pattern struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	Confidence  float64  `json:"confidence"`
	Examples    []string `json:"examples"`
}

type Anomaly struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Suggestion  string `json:"suggestion"`
}

type SecurityRisk struct {
	RiskType       string   `json:"risk_type"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Mitigation     string   `json:"mitigation"`
	AffectedFields []string `json:"affected_fields"`
}

type SchemaImprovement struct {
	Field         string `json:"field"`
	CurrentType   string `json:"current_type"`
	SuggestedType string `json:"suggested_type"`
	Reason        string `json:"reason"`
	Example       string `json:"example"`
}

type PotentialIssue struct {
	IssueType   string  `json:"issue_type"`
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
	Impact      string  `json:"impact"`
	Prevention  string  `json:"prevention"`
}

// emptyResult is the degraded outcome when everything else failed
func emptyResult() Result {
	return Result{
		Patterns:           []Pattern{},
		Anomalies:          []Anomaly{},
		SecurityRisks:      []SecurityRisk{},
		SchemaImprovements: []SchemaImprovement{},
		PotentialIssues:    []PotentialIssue{},
	}
}

// IsEmpty reports whether the result carries no findings at all
func (r Result) IsEmpty() bool {
	return len(r.Patterns) == 0 &&
		len(r.Anomalies) == 0 &&
		len(r.SecurityRisks) == 0 &&
		len(r.SchemaImprovements) == 0 &&
		len(r.PotentialIssues) == 0
}

var codeFence = regexp.MustCompile("```(?:json)?\\s*")

/* parseResponse turns raw completion output into a validated Result
 * Models occasionally wrap JSON in code fences; those are stripped.
 * Items missing their required string fields are dropped, optional
 * fields are coerced to safe defaults.
 */
func parseResponse(content string) (Result, bool) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(content, ""))

	var raw struct {
		Patterns           []Pattern           `json:"patterns"`
		Anomalies          []Anomaly           `json:"anomalies"`
		SecurityRisks      []SecurityRisk      `json:"security_risks"`
		SchemaImprovements []SchemaImprovement `json:"schema_improvements"`
		PotentialIssues    []PotentialIssue    `json:"potential_issues"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return emptyResult(), false
	}

	result := Result{
		Patterns:           validatePatterns(raw.Patterns),
		Anomalies:          validateAnomalies(raw.Anomalies),
		SecurityRisks:      validateSecurityRisks(raw.SecurityRisks),
		SchemaImprovements: validateSchemaImprovements(raw.SchemaImprovements),
		PotentialIssues:    validatePotentialIssues(raw.PotentialIssues),
	}
	result.ConfidenceScore = confidenceScore(result)

	return result, true
}

func validatePatterns(patterns []Pattern) []Pattern {
	valid := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Type == "" || p.Description == "" {
			continue
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			p.Confidence = 0
		}
		if p.Examples == nil {
			p.Examples = []string{}
		}
		valid = append(valid, p)
	}
	return valid
}

func validateAnomalies(anomalies []Anomaly) []Anomaly {
	valid := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if a.Type == "" || a.Description == "" {
			continue
		}
		a.Severity = normalizeSeverity(a.Severity)
		valid = append(valid, a)
	}
	return valid
}

func validateSecurityRisks(risks []SecurityRisk) []SecurityRisk {
	valid := make([]SecurityRisk, 0, len(risks))
	for _, r := range risks {
		if r.RiskType == "" || r.Description == "" {
			continue
		}
		r.Severity = normalizeSeverity(r.Severity)
		if r.AffectedFields == nil {
			r.AffectedFields = []string{}
		}
		valid = append(valid, r)
	}
	return valid
}

func validateSchemaImprovements(improvements []SchemaImprovement) []SchemaImprovement {
	valid := make([]SchemaImprovement, 0, len(improvements))
	for _, s := range improvements {
		if s.Field == "" || s.CurrentType == "" || s.SuggestedType == "" {
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

func validatePotentialIssues(issues []PotentialIssue) []PotentialIssue {
	valid := make([]PotentialIssue, 0, len(issues))
	for _, i := range issues {
		if i.IssueType == "" || i.Description == "" {
			continue
		}
		if i.Probability <= 0 || i.Probability > 1 {
			i.Probability = 0.5
		}
		i.Impact = normalizeSeverity(i.Impact)
		valid = append(valid, i)
	}
	return valid
}

func normalizeSeverity(s string) string {
	switch s {
	case "low", "medium", "high":
		return s
	default:
		return "medium"
	}
}

/* confidenceScore derives an overall confidence from per-finding
 * weights: patterns contribute their own confidence, the other
 * categories contribute fixed weights. Clamped to [0,1], 0 when the
 * result is empty.
 */
func confidenceScore(r Result) float64 {
	var score float64
	var total int

	for _, p := range r.Patterns {
		score += p.Confidence
	}
	total += len(r.Patterns)

	score += float64(len(r.Anomalies)) * 0.8
	total += len(r.Anomalies)

	score += float64(len(r.SecurityRisks)) * 0.9
	total += len(r.SecurityRisks)

	score += float64(len(r.SchemaImprovements)) * 0.7
	total += len(r.SchemaImprovements)

	score += float64(len(r.PotentialIssues)) * 0.6
	total += len(r.PotentialIssues)

	if total == 0 {
		return 0
	}

	final := score / float64(total)
	if final < 0 {
		return 0
	}
	if final > 1 {
		return 1
	}
	return final
}
