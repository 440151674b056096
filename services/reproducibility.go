package services

import (
	"errors"
	"fmt"
	"time"

	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBundleNotFound = errors.New("artifact bundle not found")

// PublicationArchiver legt publizierte Scrolls dauerhaft ab. storage.Archive
// implementiert das Interface gegen S3; Tests verwenden einen Fake.
type PublicationArchiver interface {
	ArchiveScroll(scroll *models.Scroll) (string, error)
}

// BundleInput ist die Eingabe für ein Artefakt-Bundle.
type BundleInput struct {
	ScrollID        string                 `json:"scroll_id"`
	CodeHash        string                 `json:"code_hash"`
	DataHash        string                 `json:"data_hash"`
	EnvSpec         string                 `json:"env_spec"`
	RunCommands     []string               `json:"run_commands"`
	ExpectedMetrics map[string]interface{} `json:"expected_metrics"`
	RandomSeed      *int64                 `json:"random_seed"`
}

// ReplicationInput ist die Eingabe für einen Reproduktionsversuch.
type ReplicationInput struct {
	ScrollID        string                 `json:"scroll_id"`
	ReproducerID    uint                   `json:"reproducer_id"`
	Success         bool                   `json:"success"`
	ObservedMetrics map[string]interface{} `json:"observed_metrics"`
	Logs            string                 `json:"logs"`
	EnvUsed         string                 `json:"env_used"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at"`
}

// GateResult ist das Ergebnis eines Gate-Laufs.
type GateResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// ReproService verwaltet Artefakt-Bundles und Replikationen und betreibt
// das Reproduzierbarkeits-Gate zwischen Akzeptanz und Publikation.
type ReproService struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Citations *CitationService
	Archive   PublicationArchiver
	Now       func() time.Time
}

func NewReproService(db *gorm.DB, logger *zap.Logger, citations *CitationService, archive PublicationArchiver) *ReproService {
	return &ReproService{DB: db, Logger: logger, Citations: citations, Archive: archive, Now: time.Now}
}

// AttachBundle legt das Bundle eines Scrolls an oder ersetzt es. Pro Scroll
// existiert genau ein Bundle; die erneute Einreichung ist ein Upsert.
func (rs *ReproService) AttachBundle(in BundleInput) (*models.ArtifactBundle, error) {
	var scroll models.Scroll
	if err := rs.DB.First(&scroll, "scroll_id = ?", in.ScrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScrollNotFound
		}
		return nil, err
	}

	bundle := models.ArtifactBundle{
		ScrollID:        in.ScrollID,
		CodeHash:        in.CodeHash,
		DataHash:        in.DataHash,
		EnvSpec:         in.EnvSpec,
		RunCommands:     datatypes.JSONSlice[string](in.RunCommands),
		ExpectedMetrics: datatypes.JSONMap(in.ExpectedMetrics),
		RandomSeed:      in.RandomSeed,
	}

	err := rs.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scroll_id"}},
			UpdateAll: true,
		}).Create(&bundle).Error; err != nil {
			return err
		}
		// Bei einem Upsert trägt bundle.ID nicht zwingend die Zeilen-ID.
		if err := tx.First(&bundle, "scroll_id = ?", in.ScrollID).Error; err != nil {
			return err
		}
		scroll.ArtifactBundleID = &bundle.ID
		return tx.Model(&models.Scroll{}).
			Where("scroll_id = ?", scroll.ScrollID).
			Update("artifact_bundle_id", bundle.ID).Error
	})
	if err != nil {
		return nil, err
	}

	if err := rs.GradeEvidence(in.ScrollID); err != nil {
		rs.Logger.Warn("Evidence regrade after bundle attach failed",
			zap.String("scroll_id", in.ScrollID), zap.Error(err))
	}

	rs.Logger.Info("Artifact bundle attached",
		zap.String("scroll_id", in.ScrollID), zap.Uint("bundle_id", bundle.ID))
	return &bundle, nil
}

// RecordReplication hängt einen Reproduktionsversuch an das Bundle eines
// Scrolls an (append-only) und stößt danach das Gate an, falls der Scroll
// darauf wartet.
func (rs *ReproService) RecordReplication(in ReplicationInput) (*models.Replication, *GateResult, error) {
	var scroll models.Scroll
	if err := rs.DB.First(&scroll, "scroll_id = ?", in.ScrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrScrollNotFound
		}
		return nil, nil, err
	}
	var bundle models.ArtifactBundle
	if err := rs.DB.First(&bundle, "scroll_id = ?", in.ScrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrBundleNotFound
		}
		return nil, nil, err
	}

	started := in.StartedAt
	if started.IsZero() {
		started = rs.Now().UTC()
	}
	replication := models.Replication{
		ArtifactBundleID: bundle.ID,
		ScrollID:         in.ScrollID,
		ReproducerID:     in.ReproducerID,
		Success:          in.Success,
		ObservedMetrics:  datatypes.JSONMap(in.ObservedMetrics),
		Logs:             in.Logs,
		EnvUsed:          in.EnvUsed,
		StartedAt:        started,
		CompletedAt:      in.CompletedAt,
	}
	if err := rs.DB.Create(&replication).Error; err != nil {
		return nil, nil, err
	}

	rs.Logger.Info("Replication recorded",
		zap.String("scroll_id", in.ScrollID),
		zap.Uint("reproducer_id", in.ReproducerID),
		zap.Bool("success", in.Success))

	if err := rs.GradeEvidence(in.ScrollID); err != nil {
		rs.Logger.Warn("Evidence regrade after replication failed",
			zap.String("scroll_id", in.ScrollID), zap.Error(err))
	}

	var gate *GateResult
	if scroll.Status == models.StatusReproCheck {
		result, err := rs.RunGate(in.ScrollID)
		if err != nil {
			rs.Logger.Error("Gate run after replication failed",
				zap.String("scroll_id", in.ScrollID), zap.Error(err))
		} else {
			gate = result
		}
	}
	return &replication, gate, nil
}

// successfulReproducers zählt distinkte Scholars mit erfolgreicher
// Replikation für einen Scroll.
func successfulReproducers(db *gorm.DB, scrollID string) (int64, error) {
	var count int64
	err := db.Model(&models.Replication{}).
		Where("scroll_id = ? AND success = ?", scrollID, true).
		Distinct("reproducer_id").
		Count(&count).Error
	return count, err
}

// RunGate prüft, ob ein Scroll im Status repro_check publiziert werden darf.
// Nicht-empirische Typen passieren automatisch; empirische brauchen ein
// Bundle und mindestens eine erfolgreiche Replikation. Besteht der Scroll,
// wird er publiziert; andernfalls bleibt er im repro_check und kann nach
// weiteren Replikationen erneut geprüft werden.
func (rs *ReproService) RunGate(scrollID string) (*GateResult, error) {
	var scroll models.Scroll
	if err := rs.DB.First(&scroll, "scroll_id = ?", scrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScrollNotFound
		}
		return nil, err
	}
	if scroll.Status != models.StatusReproCheck {
		return nil, fmt.Errorf("scroll %s is %s, not awaiting reproducibility check", scrollID, scroll.Status)
	}

	result, err := rs.gateCheck(&scroll)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{"passed": result.Passed, "reason": result.Reason}
	if !result.Passed {
		rs.Audit(models.AuditReproCompleted, scroll.ScrollID, details)
		rs.Logger.Info("Reproducibility gate failed",
			zap.String("scroll_id", scrollID), zap.String("reason", result.Reason))
		return result, nil
	}

	err = rs.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(&scroll, models.StatusPublished); err != nil {
			return err
		}
		now := rs.Now().UTC()
		scroll.PublishedAt = &now
		if err := tx.Save(&scroll).Error; err != nil {
			return err
		}
		if err := recordTx(tx, models.AuditReproCompleted, ActorReproGate, scroll.ScrollID, "scroll", details); err != nil {
			return err
		}
		return recordTx(tx, models.AuditScrollPublished, ActorReproGate, scroll.ScrollID, "scroll",
			map[string]interface{}{"published_at": now.Format(time.RFC3339)})
	})
	if err != nil {
		return nil, err
	}

	if err := rs.GradeEvidence(scroll.ScrollID); err != nil {
		rs.Logger.Warn("Evidence grading after publication failed",
			zap.String("scroll_id", scrollID), zap.Error(err))
	}
	if rs.Citations != nil {
		if err := rs.Citations.RecordForScroll(&scroll); err != nil {
			rs.Logger.Warn("Citation graph update after publication failed",
				zap.String("scroll_id", scrollID), zap.Error(err))
		}
	}
	if rs.Archive != nil {
		if link, err := rs.Archive.ArchiveScroll(&scroll); err != nil {
			rs.Logger.Warn("Publication archive upload failed",
				zap.String("scroll_id", scrollID), zap.Error(err))
		} else {
			rs.Logger.Info("Scroll archived", zap.String("scroll_id", scrollID), zap.String("link", link))
		}
	}

	rs.Logger.Info("Scroll published",
		zap.String("scroll_id", scrollID), zap.String("reason", result.Reason))
	return result, nil
}

// Audit schreibt ein Gate-Event außerhalb einer Transaktion.
func (rs *ReproService) Audit(action models.AuditAction, scrollID string, details map[string]interface{}) {
	if err := recordTx(rs.DB, action, ActorReproGate, scrollID, "scroll", details); err != nil {
		rs.Logger.Error("Audit event write failed", zap.String("scroll_id", scrollID), zap.Error(err))
	}
}

func (rs *ReproService) gateCheck(scroll *models.Scroll) (*GateResult, error) {
	switch scroll.ScrollType {
	case models.TypeHypothesis, models.TypeTutorial, models.TypeRebuttal:
		return &GateResult{Passed: true,
			Reason: fmt.Sprintf("auto_pass: %s scrolls require no replication", scroll.ScrollType)}, nil
	case models.TypeMetaAnalysis:
		return &GateResult{Passed: true,
			Reason: "auto_pass: meta-analyses aggregate already replicated work"}, nil
	}

	if scroll.ArtifactBundleID == nil {
		return &GateResult{Passed: false, Reason: "empirical_scroll_missing_artifact_bundle"}, nil
	}
	count, err := successfulReproducers(rs.DB, scroll.ScrollID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &GateResult{Passed: false, Reason: "no_successful_replications"}, nil
	}
	return &GateResult{Passed: true,
		Reason: fmt.Sprintf("passed: %d successful replication(s)", count)}, nil
}

// GradeEvidence berechnet Evidence Grade und Badges eines Scrolls neu.
// Die Funktion ist idempotent; wiederholte Aufrufe ohne neue Daten ändern
// nichts. Ein vorhandenes integrity_flagged-Badge bleibt erhalten.
func (rs *ReproService) GradeEvidence(scrollID string) error {
	var scroll models.Scroll
	if err := rs.DB.First(&scroll, "scroll_id = ?", scrollID).Error; err != nil {
		return err
	}
	count, err := successfulReproducers(rs.DB, scrollID)
	if err != nil {
		return err
	}

	grade := gradeFor(&scroll, int(count))
	badges := badgesFor(&scroll, grade)

	return rs.DB.Model(&models.Scroll{}).
		Where("scroll_id = ?", scrollID).
		Updates(map[string]interface{}{
			"evidence_grade": grade,
			"badges":         datatypes.JSONSlice[models.Badge](badges),
		}).Error
}

func gradeFor(scroll *models.Scroll, successful int) models.EvidenceGrade {
	switch {
	case successful >= 2:
		return models.GradeA
	case successful == 1:
		return models.GradeB
	}
	switch scroll.Status {
	case models.StatusReproCheck, models.StatusAccepted, models.StatusPublished:
		return models.GradeC
	}
	return models.Ungraded
}

func badgesFor(scroll *models.Scroll, grade models.EvidenceGrade) []models.Badge {
	var badges []models.Badge
	if grade == models.GradeA || grade == models.GradeB {
		badges = append(badges, models.BadgeReplicated)
	}
	if scroll.ArtifactBundleID != nil {
		badges = append(badges, models.BadgeArtifactComplete)
	}
	if grade == models.GradeA {
		badges = append(badges, models.BadgeHighConfidenceMethods)
	}
	for _, b := range scroll.Badges {
		if b == models.BadgeIntegrityFlagged {
			badges = append(badges, b)
			break
		}
	}
	return badges
}

// ReplicationsForScroll liefert alle Reproduktionsversuche, älteste zuerst.
func (rs *ReproService) ReplicationsForScroll(scrollID string) ([]models.Replication, error) {
	var reps []models.Replication
	err := rs.DB.Where("scroll_id = ?", scrollID).Order("created_at, id").Find(&reps).Error
	return reps, err
}
