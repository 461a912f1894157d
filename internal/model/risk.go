package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// RiskType distinguishes identified risks from outright errors in the source.
type RiskType string

const (
	RiskTypeRisk  RiskType = "risk"
	RiskTypeError RiskType = "error"
)

// Severity is the assessed impact level of a risk.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Probability is the assessed likelihood of a risk materializing.
type Probability string

const (
	ProbabilityLow    Probability = "low"
	ProbabilityMedium Probability = "medium"
	ProbabilityHigh   Probability = "high"
)

// Category classifies the business domain a risk belongs to.
type Category string

const (
	CategoryFinancial       Category = "financial"
	CategoryOperational     Category = "operational"
	CategoryLegal           Category = "legal"
	CategoryTechnological   Category = "technological"
	CategoryReputational    Category = "reputational"
	CategoryRegulatory      Category = "regulatory"
	CategoryDocumentation   Category = "documentation"
	CategoryBusinessProcess Category = "business_process"
)

// Relevance ties a risk back to the analysis topic.
type Relevance string

const (
	RelevanceDeal          Relevance = "deal"
	RelevanceProduct       Relevance = "product"
	RelevanceDocumentation Relevance = "documentation"
	RelevanceUniversal     Relevance = "universal"
	RelevanceNotRelevant   Relevance = "not_relevant"
)

// Risk is a single extracted risk or error record. Records are immutable once
// created; a changed record is a new record with a new ID.
type Risk struct {
	ID              string      `json:"id"`
	Type            RiskType    `json:"type"`
	Description     string      `json:"description"`
	Justification   string      `json:"justification,omitempty"`
	Relevance       Relevance   `json:"relevance,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	Category        Category    `json:"category"`
	Severity        Severity    `json:"severity"`
	Probability     Probability `json:"probability"`
	Impact          string      `json:"impact,omitempty"`
	Mitigation      string      `json:"mitigation,omitempty"`
	SourceDocument  string      `json:"source_document,omitempty"`
	SourcePage      string      `json:"source_page,omitempty"`
	CreatedAt       string      `json:"created_at,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
}

func (r Risk) String() string {
	return fmt.Sprintf("%s (%s): %s [%s/%s]", r.Type, r.Category, r.Description, r.Severity, r.Probability)
}

// Signature returns the content key used for local duplicate comparison.
func (r Risk) Signature() string {
	return strings.ToLower(strings.TrimSpace(r.Description))
}

var (
	validSeverities = map[Severity]bool{
		SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
	}
	validProbabilities = map[Probability]bool{
		ProbabilityLow: true, ProbabilityMedium: true, ProbabilityHigh: true,
	}
	validCategories = map[Category]bool{
		CategoryFinancial: true, CategoryOperational: true, CategoryLegal: true,
		CategoryTechnological: true, CategoryReputational: true, CategoryRegulatory: true,
		CategoryDocumentation: true, CategoryBusinessProcess: true,
	}
	validRelevances = map[Relevance]bool{
		RelevanceDeal: true, RelevanceProduct: true, RelevanceDocumentation: true,
		RelevanceUniversal: true, RelevanceNotRelevant: true,
	}
)

// Normalize lowercases enum fields and fills safe defaults for missing ones.
// It does not touch free-text fields.
func (r *Risk) Normalize() {
	r.Type = RiskType(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.Severity = Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
	r.Probability = Probability(strings.ToLower(strings.TrimSpace(string(r.Probability))))
	r.Category = Category(strings.ToLower(strings.TrimSpace(string(r.Category))))
	r.Relevance = Relevance(strings.ToLower(strings.TrimSpace(string(r.Relevance))))

	if r.Type == "" {
		r.Type = RiskTypeRisk
	}
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	if r.Probability == "" {
		r.Probability = ProbabilityMedium
	}
	if r.Category == "" {
		r.Category = CategoryOperational
	}
}

// Validate performs structural checks only: non-empty identity and description
// plus known enum values. Business-domain correctness is out of scope.
func (r Risk) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return eris.New("risk: empty id")
	}
	if strings.TrimSpace(r.Description) == "" {
		return eris.Errorf("risk %s: empty description", r.ID)
	}
	if r.Type != RiskTypeRisk && r.Type != RiskTypeError {
		return eris.Errorf("risk %s: unknown type %q", r.ID, r.Type)
	}
	if !validSeverities[r.Severity] {
		return eris.Errorf("risk %s: unknown severity %q", r.ID, r.Severity)
	}
	if !validProbabilities[r.Probability] {
		return eris.Errorf("risk %s: unknown probability %q", r.ID, r.Probability)
	}
	if !validCategories[r.Category] {
		return eris.Errorf("risk %s: unknown category %q", r.ID, r.Category)
	}
	if r.Relevance != "" && !validRelevances[r.Relevance] {
		return eris.Errorf("risk %s: unknown relevance %q", r.ID, r.Relevance)
	}
	return nil
}

// RisksJSON renders a risk list as the {"risks": [...]} payload used in
// prompts and expected back from the model.
func RisksJSON(risks []Risk) (string, error) {
	b, err := json.MarshalIndent(map[string][]Risk{"risks": risks}, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "model: marshal risks")
	}
	return string(b), nil
}
