package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScrollType kategorisiert wissenschaftliche Arbeiten.
type ScrollType string

const (
	TypePaper        ScrollType = "paper"
	TypeHypothesis   ScrollType = "hypothesis"
	TypeMetaAnalysis ScrollType = "meta_analysis"
	TypeRebuttal     ScrollType = "rebuttal"
	TypeTutorial     ScrollType = "tutorial"
)

// ScrollStatus ist der Pipeline-Zustand eines Scrolls.
type ScrollStatus string

const (
	StatusSubmitted         ScrollStatus = "submitted"
	StatusScreened          ScrollStatus = "screened"
	StatusDeskRejected      ScrollStatus = "desk_rejected"
	StatusUnderReview       ScrollStatus = "under_review"
	StatusRevisionsRequired ScrollStatus = "revisions_required"
	StatusReproCheck        ScrollStatus = "repro_check"
	StatusAccepted          ScrollStatus = "accepted"
	StatusPublished         ScrollStatus = "published"
	StatusFlagged           ScrollStatus = "flagged"
	StatusRetracted         ScrollStatus = "retracted"
	StatusSuperseded        ScrollStatus = "superseded"
	StatusRejected          ScrollStatus = "rejected"
)

// EvidenceGrade fasst die Replikationsstärke zusammen.
type EvidenceGrade string

const (
	GradeA   EvidenceGrade = "A" // >= 2 unabhängige erfolgreiche Replikationen
	GradeB   EvidenceGrade = "B" // genau 1 erfolgreiche Replikation
	GradeC   EvidenceGrade = "C" // review-approved, noch nicht repliziert
	Ungraded EvidenceGrade = "ungraded"
)

// Badge ist eine im Qualitäts-Workflow verdiente Auszeichnung.
type Badge string

const (
	BadgeReplicated            Badge = "replicated"
	BadgeArtifactComplete      Badge = "artifact_complete"
	BadgeHighConfidenceMethods Badge = "high_confidence_methods"
	BadgeIntegrityFlagged      Badge = "integrity_flagged"
)

// Claim ist eine explizite, falsifizierbare Behauptung innerhalb eines Scrolls.
type Claim struct {
	Statement    string `json:"statement"`
	EvidenceType string `json:"evidence_type,omitempty"` // empirical, theoretical, observational
	Falsifiable  bool   `json:"falsifiable"`
}

// ResponseItem verknüpft einen Reviewer-Kommentar mit der Autoren-Antwort.
type ResponseItem struct {
	ReviewerID      uint   `json:"reviewer_id"`
	ReviewerComment string `json:"reviewer_comment"`
	AuthorResponse  string `json:"author_response"`
	ChangeMade      string `json:"change_made,omitempty"`
}

// RevisionEntry dokumentiert eine Revision in der Historie eines Scrolls.
type RevisionEntry struct {
	Version        int            `json:"version"`
	RevisedAt      time.Time      `json:"revised_at"`
	ChangeSummary  string         `json:"change_summary,omitempty"`
	ResponseLetter []ResponseItem `json:"response_letter,omitempty"`
}

// Scroll repräsentiert ein Manuskript im Publishing-Workflow.
type Scroll struct {
	ScrollID  string    `json:"scroll_id" gorm:"primaryKey;size:16"` // AX-YYYY-NNNNN
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title      string     `json:"title" gorm:"not null"`
	ScrollType ScrollType `json:"scroll_type" gorm:"index;default:'paper'"`
	Abstract   string     `json:"abstract,omitempty" gorm:"type:text"`
	Content    string     `json:"content,omitempty" gorm:"type:text"`
	Keywords   datatypes.JSONSlice[string] `json:"keywords"`
	Domain     string     `json:"domain" gorm:"index"`
	Authors    datatypes.JSONSlice[uint] `json:"authors"` // scholar IDs, Reihenfolge = Autorenliste

	Status          ScrollStatus `json:"status" gorm:"index;default:'submitted'"`
	Version         int          `json:"version" gorm:"default:1"`
	RevisionHistory datatypes.JSONSlice[RevisionEntry] `json:"revision_history"`

	// Evidence
	Claims           datatypes.JSONSlice[Claim] `json:"claims"`
	ArtifactBundleID *uint         `json:"artifact_bundle_id,omitempty"`
	MethodProfile    string        `json:"method_profile,omitempty" gorm:"type:text"`
	ResultSummary    string        `json:"result_summary,omitempty" gorm:"type:text"`
	EvidenceGrade    EvidenceGrade `json:"evidence_grade" gorm:"default:'ungraded'"`
	Badges           datatypes.JSONSlice[Badge] `json:"badges"`

	// Zitationen ("references" ist ein SQL-Schlüsselwort, daher references_list)
	References    datatypes.JSONSlice[string] `json:"references" gorm:"column:references_list"`
	CitationCount int `json:"citation_count" gorm:"default:0"`

	// Lifecycle
	DecisionRecordID *uint   `json:"decision_record_id,omitempty"`
	SupersededBy     *string `json:"superseded_by,omitempty" gorm:"size:16"`
	RetractionReason *string `json:"retraction_reason,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

func (Scroll) TableName() string { return "scrolls" }

// ScrollAuthor ist die normalisierte Autoren-Zuordnung für Konflikt- und
// Ownership-Checks (Join statt LIKE auf serialisierten Listen).
type ScrollAuthor struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ScrollID  string `json:"scroll_id" gorm:"index:idx_scroll_authors_unique,unique;size:16"`
	ScholarID uint   `json:"scholar_id" gorm:"index:idx_scroll_authors_unique,unique;index"`
}

func (ScrollAuthor) TableName() string { return "scroll_authors" }

// IDSequence verfolgt die fortlaufende Scroll-Nummer pro Kalenderjahr.
type IDSequence struct {
	Year int `gorm:"primaryKey"`
	Seq  int `gorm:"not null;default:0"`
}

func (IDSequence) TableName() string { return "id_sequences" }
