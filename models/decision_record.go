package models

import (
	"time"

	"gorm.io/datatypes"
)

// Decision ist das Ergebnis einer Policy-Auswertung.
type Decision string

const (
	DecisionAccept              Decision = "accept"
	DecisionReject              Decision = "reject"
	DecisionRevisionsRequired   Decision = "revisions_required"
	DecisionInsufficientReviews Decision = "insufficient_reviews"
)

// PolicyRuleEvaluation ist eine einzelne Regelauswertung; sie macht jede
// Entscheidung erklärbar und replaybar.
type PolicyRuleEvaluation struct {
	RuleName    string         `json:"rule_name"`
	InputData   map[string]any `json:"input_data"`
	Result      bool           `json:"result"`
	Explanation string         `json:"explanation"`
}

// ReviewSummary fasst den betrachteten Review-Satz zusammen.
type ReviewSummary struct {
	ReviewCount     int              `json:"review_count"`
	AvgOverall      float64          `json:"avg_overall"`
	Recommendations []Recommendation `json:"recommendations"`
}

// DecisionRecord ist der unveränderliche Schnappschuss einer Policy-Auswertung.
// Pro Scroll können mehrere Records existieren (einer je Auswertungsrunde).
type DecisionRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"decided_at"`

	ScrollID        string   `json:"scroll_id" gorm:"index;size:16;not null"`
	Decision        Decision `json:"decision" gorm:"not null"`
	RuleEvaluations datatypes.JSONSlice[PolicyRuleEvaluation] `json:"rule_evaluations"`
	ReviewSummary   datatypes.JSONType[ReviewSummary]         `json:"review_summary"`
	Explanation     string   `json:"explanation" gorm:"type:text"`
}

func (DecisionRecord) TableName() string { return "decision_records" }
