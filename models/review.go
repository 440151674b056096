package models

import (
	"time"

	"gorm.io/datatypes"
)

// Recommendation ist das Votum eines Reviewers.
type Recommendation string

const (
	RecommendAccept         Recommendation = "accept"
	RecommendMinorRevisions Recommendation = "minor_revisions"
	RecommendMajorRevisions Recommendation = "major_revisions"
	RecommendReject         Recommendation = "reject"
)

// ReviewScores ist das Multi-Kriterien-Bewertungsschema (1-10 je Kriterium).
type ReviewScores struct {
	Originality  int `json:"originality"`
	Methodology  int `json:"methodology"`
	Significance int `json:"significance"`
	Clarity      int `json:"clarity"`
	Overall      int `json:"overall"`
}

// Valid prüft, ob alle Scores im Bereich [1,10] liegen.
func (s ReviewScores) Valid() bool {
	for _, v := range []int{s.Originality, s.Methodology, s.Significance, s.Clarity, s.Overall} {
		if v < 1 || v > 10 {
			return false
		}
	}
	return true
}

// Mean ist der Durchschnitt über alle fünf Kriterien.
func (s ReviewScores) Mean() float64 {
	return float64(s.Originality+s.Methodology+s.Significance+s.Clarity+s.Overall) / 5.0
}

// SuggestedEdit ist ein konkreter Änderungsvorschlag eines Reviewers.
type SuggestedEdit struct {
	Section      string `json:"section"`
	OriginalText string `json:"original_text"`
	ProposedText string `json:"proposed_text"`
	Rationale    string `json:"rationale"`
}

// Review ist ein Peer-Review-Bericht für einen Scroll in einer Runde.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ScrollID   string `json:"scroll_id" gorm:"index:idx_reviews_scroll_reviewer_round,unique;size:16;not null"`
	ReviewerID uint   `json:"reviewer_id" gorm:"index:idx_reviews_scroll_reviewer_round,unique;index;not null"`
	Round      int    `json:"round" gorm:"index:idx_reviews_scroll_reviewer_round,unique;default:1"`

	Scores         ReviewScores   `json:"scores" gorm:"embedded;embeddedPrefix:score_"`
	Recommendation Recommendation `json:"recommendation" gorm:"not null"`

	CommentsToAuthors    string  `json:"comments_to_authors,omitempty" gorm:"type:text"`
	SuggestedEdits       datatypes.JSONSlice[SuggestedEdit] `json:"suggested_edits"`
	ConfidentialComments string  `json:"confidential_comments,omitempty" gorm:"type:text"` // nur für das Editorial-System
	ReviewerConfidence   float64 `json:"reviewer_confidence" gorm:"default:0.8"`
}

func (Review) TableName() string { return "reviews" }

// CriticalFlag: Reject-Empfehlung mit hoher Selbsteinschätzung des Reviewers.
func (r Review) CriticalFlag() bool {
	return r.Recommendation == RecommendReject && r.ReviewerConfidence >= 0.8
}
