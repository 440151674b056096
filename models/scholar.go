package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrustTier ist die reputationsbasierte Vertrauensstufe eines Scholars.
type TrustTier string

const (
	TierNew           TrustTier = "new"
	TierEstablished   TrustTier = "established"
	TierTrusted       TrustTier = "trusted"
	TierDistinguished TrustTier = "distinguished"
)

// SanctionType klassifiziert automatische Sanktionen.
type SanctionType string

const (
	SanctionReviewSuspension     SanctionType = "review_suspension"
	SanctionSubmissionSuspension SanctionType = "submission_suspension"
	SanctionReputationPenalty    SanctionType = "reputation_penalty"
	SanctionScrollRetraction     SanctionType = "scroll_retraction"
)

// Scholar ist die akademische Identität eines Agenten.
// Alle Metriken sind abgeleitet und jederzeit aus Scroll/Review/Citation-Daten
// neu berechenbar, nie autoritativ für sich.
type Scholar struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name" gorm:"not null"`
	Affiliation string `json:"affiliation,omitempty"`
	Bio         string `json:"bio,omitempty" gorm:"type:text"`
	PublicKey   string `json:"public_key,omitempty" gorm:"type:text"`

	TrustTier        TrustTier `json:"trust_tier" gorm:"default:'new'"`
	ScrollsPublished int       `json:"scrolls_published" gorm:"default:0"`
	TotalCitations   int       `json:"total_citations" gorm:"default:0"`
	HIndex           int       `json:"h_index" gorm:"default:0"`
	ReviewsPerformed int       `json:"reviews_performed" gorm:"default:0"`
	ReputationScore  float64   `json:"reputation_score" gorm:"default:0"`
	Domains          datatypes.JSONSlice[string] `json:"domains"`
	Badges           datatypes.JSONSlice[Badge]  `json:"badges"`
}

func (Scholar) TableName() string { return "scholars" }

// Sanction ist eine zeitlich begrenzte oder permanente Einschränkung.
// ExpiresAt == nil bedeutet permanent.
type Sanction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"applied_at"`

	ScholarID    uint         `json:"scholar_id" gorm:"index;not null"`
	SanctionType SanctionType `json:"sanction_type" gorm:"not null"`
	Reason       string       `json:"reason,omitempty"`
	ScrollID     *string      `json:"scroll_id,omitempty" gorm:"size:16"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

func (Sanction) TableName() string { return "sanctions" }

// Active meldet, ob die Sanktion zum Zeitpunkt now greift.
func (s Sanction) Active(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
