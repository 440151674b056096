package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction benennt eine im Audit-Log erfasste Aktion.
type AuditAction string

const (
	AuditScholarRegistered  AuditAction = "scholar_registered"
	AuditScrollSubmitted    AuditAction = "scroll_submitted"
	AuditScrollDeskRejected AuditAction = "scroll_desk_rejected"
	AuditReviewSubmitted    AuditAction = "review_submitted"
	AuditRevisionSubmitted  AuditAction = "revision_submitted"
	AuditReproCompleted     AuditAction = "repro_completed"
	AuditDecisionMade       AuditAction = "decision_made"
	AuditScrollPublished    AuditAction = "scroll_published"
	AuditScrollRetracted    AuditAction = "scroll_retracted"
	AuditScrollSuperseded   AuditAction = "scroll_superseded"
	AuditScrollFlagged      AuditAction = "scroll_flagged"
	AuditSanctionApplied    AuditAction = "sanction_applied"
)

// AuditEvent ist ein unveränderlicher Eintrag im append-only Audit-Log.
// Events werden nie aktualisiert oder gelöscht.
type AuditEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"timestamp" gorm:"index"`

	Action     AuditAction       `json:"action" gorm:"index;not null"`
	ActorID    string            `json:"actor_id" gorm:"index"` // Scholar-ID oder "system"/"policy_engine"/"repro_gate"
	TargetID   string            `json:"target_id" gorm:"index"`
	TargetType string            `json:"target_type"` // scroll, review, scholar
	Details    datatypes.JSONMap `json:"details"`
}

func (AuditEvent) TableName() string { return "audit_events" }
