package services

import (
	"fmt"

	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Akteur-IDs für systemgesteuerte Aktionen.
const (
	ActorSystem       = "system"
	ActorPolicyEngine = "policy_engine"
	ActorReproGate    = "repro_gate"
	ActorIntegrity    = "integrity"
)

// ActorScholar formatiert eine Scholar-ID als Audit-Akteur.
func ActorScholar(id uint) string {
	return fmt.Sprintf("scholar:%d", id)
}

// AuditService schreibt und liest das append-only Audit-Log.
type AuditService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewAuditService(db *gorm.DB, logger *zap.Logger) *AuditService {
	return &AuditService{DB: db, Logger: logger}
}

// Record hängt ein Event an das Log an. Ein Fehlschlag wird geloggt, aber
// nie an den Aufrufer propagiert; das Log darf fachliche Operationen nicht
// zum Scheitern bringen.
func (a *AuditService) Record(action models.AuditAction, actorID, targetID, targetType string, details map[string]interface{}) {
	event := models.AuditEvent{
		Action:     action,
		ActorID:    actorID,
		TargetID:   targetID,
		TargetType: targetType,
		Details:    datatypes.JSONMap(details),
	}
	if err := a.DB.Create(&event).Error; err != nil {
		a.Logger.Error("Audit event write failed",
			zap.String("action", string(action)),
			zap.String("target_id", targetID),
			zap.Error(err))
	}
}

// recordTx schreibt ein Event innerhalb einer bestehenden Transaktion.
func recordTx(tx *gorm.DB, action models.AuditAction, actorID, targetID, targetType string, details map[string]interface{}) error {
	return tx.Create(&models.AuditEvent{
		Action:     action,
		ActorID:    actorID,
		TargetID:   targetID,
		TargetType: targetType,
		Details:    datatypes.JSONMap(details),
	}).Error
}

// ForTarget liefert die Historie eines Objekts, neueste zuerst.
func (a *AuditService) ForTarget(targetID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.AuditEvent
	err := a.DB.Where("target_id = ?", targetID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ForActor liefert alle Aktionen eines Akteurs, neueste zuerst.
func (a *AuditService) ForActor(actorID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.AuditEvent
	err := a.DB.Where("actor_id = ?", actorID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Recent liefert die letzten Events, optional gefiltert nach Aktion.
func (a *AuditService) Recent(action models.AuditAction, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := a.DB.Order("created_at desc, id desc").Limit(limit)
	if action != "" {
		query = query.Where("action = ?", action)
	}
	var events []models.AuditEvent
	err := query.Find(&events).Error
	return events, err
}
