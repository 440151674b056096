package services

import (
	"fmt"
	"time"

	"scriptorium/config"
	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlagiarismReport ist das Ergebnis einer Ähnlichkeitsprüfung. Checked ist
// false, wenn das Orakel nicht erreichbar war; die Einreichung läuft dann
// ungeprüft weiter (fail-open) und kann später nachgeprüft werden.
type PlagiarismReport struct {
	Checked  bool           `json:"checked"`
	Flagged  bool           `json:"flagged"`
	TopMatch string         `json:"top_match,omitempty"`
	Matches  []SimilarMatch `json:"matches,omitempty"`
}

// SimilarMatch ist ein Treffer oberhalb der Meldeschwelle.
type SimilarMatch struct {
	ScrollID   string  `json:"scroll_id"`
	Similarity float64 `json:"similarity"`
}

// RingFinding beschreibt ein auffälliges Zitationspaar zweier Scholars.
type RingFinding struct {
	ScholarA  uint `json:"scholar_a"`
	ScholarB  uint `json:"scholar_b"`
	EdgesAtoB int  `json:"edges_a_to_b"`
	EdgesBtoA int  `json:"edges_b_to_a"`
}

// SybilReport bewertet die Einreichungsrate eines Scholars im gleitenden
// Fenster. Violation ist true, wenn die Rate über dem Limit liegt.
type SybilReport struct {
	ScholarID           uint `json:"scholar_id"`
	SubmissionsInWindow int  `json:"submissions_in_window"`
	WindowHours         int  `json:"window_hours"`
	MaxAllowed          int  `json:"max_allowed"`
	Violation           bool `json:"violation"`
}

// IntegrityService bündelt die Schutzmechanismen: Plagiatsprüfung über das
// Ähnlichkeitsorakel, Flagging verdächtiger Scrolls, Sanktionen und die
// Erkennung von Zitations-Zirkeln.
type IntegrityService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Policy config.Policy
	Oracle SimilarityOracle
	Now    func() time.Time
}

func NewIntegrityService(db *gorm.DB, logger *zap.Logger, policy config.Policy, oracle SimilarityOracle) *IntegrityService {
	return &IntegrityService{DB: db, Logger: logger, Policy: policy, Oracle: oracle, Now: time.Now}
}

// PlagiarismCheck fragt das Orakel nach ähnlichen Scrolls. Liegt ein Treffer
// über der Schwelle, wird der Scroll geflaggt und das Ereignis auditiert.
func (is *IntegrityService) PlagiarismCheck(scrollID string) (*PlagiarismReport, error) {
	var scroll models.Scroll
	if err := is.DB.First(&scroll, "scroll_id = ?", scrollID).Error; err != nil {
		return nil, err
	}
	if is.Oracle == nil {
		return &PlagiarismReport{Checked: false}, nil
	}

	result := is.Oracle.Query(scroll.Abstract+"\n"+scroll.Content, scroll.ScrollID, 5)
	if !result.Available {
		is.Logger.Warn("Plagiarism check skipped, oracle unavailable",
			zap.String("scroll_id", scrollID))
		return &PlagiarismReport{Checked: false}, nil
	}

	report := &PlagiarismReport{Checked: true}
	for _, m := range result.Matches {
		if m.Similarity >= is.Policy.PlagiarismSimilarityThreshold {
			report.Matches = append(report.Matches, SimilarMatch{ScrollID: m.ScrollID, Similarity: m.Similarity})
		}
	}
	if len(report.Matches) == 0 {
		return report, nil
	}

	report.Flagged = true
	report.TopMatch = report.Matches[0].ScrollID
	if err := is.FlagScroll(&scroll, fmt.Sprintf("similarity %.2f to %s",
		report.Matches[0].Similarity, report.TopMatch)); err != nil {
		return nil, err
	}
	return report, nil
}

// FlagScroll nimmt einen Scroll wegen eines Integritätsverdachts aus dem
// regulären Workflow. Terminal ist das nicht; nach Klärung kann er zurück
// in den Review oder endgültig zurückgezogen werden.
func (is *IntegrityService) FlagScroll(scroll *models.Scroll, reason string) error {
	return is.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(scroll, models.StatusFlagged); err != nil {
			return err
		}
		hasBadge := false
		for _, b := range scroll.Badges {
			if b == models.BadgeIntegrityFlagged {
				hasBadge = true
				break
			}
		}
		if !hasBadge {
			scroll.Badges = append(scroll.Badges, models.BadgeIntegrityFlagged)
		}
		if err := tx.Save(scroll).Error; err != nil {
			return err
		}
		is.Logger.Warn("Scroll flagged",
			zap.String("scroll_id", scroll.ScrollID), zap.String("reason", reason))
		return recordTx(tx, models.AuditScrollFlagged, ActorIntegrity, scroll.ScrollID, "scroll",
			map[string]interface{}{"reason": reason})
	})
}

// ApplySanction verhängt eine Sanktion gegen einen Scholar. duration == 0
// bedeutet permanent.
func (is *IntegrityService) ApplySanction(scholarID uint, sanctionType models.SanctionType, reason string, scrollID *string, duration time.Duration) (*models.Sanction, error) {
	var scholar models.Scholar
	if err := is.DB.First(&scholar, scholarID).Error; err != nil {
		return nil, ErrScholarNotFound
	}

	sanction := models.Sanction{
		ScholarID:    scholarID,
		SanctionType: sanctionType,
		Reason:       reason,
		ScrollID:     scrollID,
	}
	if duration > 0 {
		expires := is.Now().Add(duration)
		sanction.ExpiresAt = &expires
	}

	err := is.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sanction).Error; err != nil {
			return err
		}
		details := datatypes.JSONMap{
			"sanction_type": string(sanctionType),
			"reason":        reason,
		}
		if sanction.ExpiresAt != nil {
			details["expires_at"] = sanction.ExpiresAt.Format(time.RFC3339)
		}
		return recordTx(tx, models.AuditSanctionApplied, ActorIntegrity, ActorScholar(scholarID), "scholar", details)
	})
	if err != nil {
		return nil, err
	}

	is.Logger.Info("Sanction applied",
		zap.Uint("scholar_id", scholarID),
		zap.String("sanction_type", string(sanctionType)))
	return &sanction, nil
}

// ActiveSanctions liefert die aktuell greifenden Sanktionen eines Scholars.
func (is *IntegrityService) ActiveSanctions(scholarID uint) ([]models.Sanction, error) {
	var all []models.Sanction
	if err := is.DB.Where("scholar_id = ?", scholarID).Find(&all).Error; err != nil {
		return nil, err
	}
	now := is.Now()
	active := make([]models.Sanction, 0, len(all))
	for _, s := range all {
		if s.Active(now) {
			active = append(active, s)
		}
	}
	return active, nil
}

// CheckSybilVelocity prüft, ob ein Scholar in der konfigurierten Zeitspanne
// auffällig viele Scrolls eingereicht hat. Gezählt wird jede Einreichung, an
// der er als Autor beteiligt ist.
func (is *IntegrityService) CheckSybilVelocity(scholarID uint) (*SybilReport, error) {
	var scholar models.Scholar
	if err := is.DB.First(&scholar, scholarID).Error; err != nil {
		return nil, ErrScholarNotFound
	}

	cutoff := is.Now().Add(-time.Duration(is.Policy.SybilVelocityWindowHours) * time.Hour)
	var count int64
	err := is.DB.Model(&models.Scroll{}).
		Joins("JOIN scroll_authors ON scroll_authors.scroll_id = scrolls.scroll_id").
		Where("scroll_authors.scholar_id = ? AND scrolls.created_at > ?", scholarID, cutoff).
		Count(&count).Error
	if err != nil {
		return nil, err
	}

	report := &SybilReport{
		ScholarID:           scholarID,
		SubmissionsInWindow: int(count),
		WindowHours:         is.Policy.SybilVelocityWindowHours,
		MaxAllowed:          is.Policy.SybilMaxSubmissions,
		Violation:           int(count) > is.Policy.SybilMaxSubmissions,
	}
	if report.Violation {
		is.Logger.Warn("Submission velocity anomaly",
			zap.Uint("scholar_id", scholarID),
			zap.Int("submissions", report.SubmissionsInWindow),
			zap.Int("max_allowed", report.MaxAllowed))
	}
	return report, nil
}

// DetectCitationRings sucht Scholar-Paare, die sich gegenseitig auffallend
// oft zitieren. Gemeldet wird ein Paar, wenn beide Richtungen die Schwelle
// erreichen.
func (is *IntegrityService) DetectCitationRings() ([]RingFinding, error) {
	// Kantenzahl je (zitierender Autor, zitierter Autor).
	type pairCount struct {
		Citing uint
		Cited  uint
		Count  int
	}
	var pairs []pairCount
	err := is.DB.Model(&models.Citation{}).
		Select("a.scholar_id as citing, b.scholar_id as cited, count(*) as count").
		Joins("JOIN scroll_authors a ON a.scroll_id = citations.citing_scroll_id").
		Joins("JOIN scroll_authors b ON b.scroll_id = citations.cited_scroll_id").
		Where("a.scholar_id <> b.scholar_id").
		Group("a.scholar_id, b.scholar_id").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[[2]uint]int, len(pairs))
	for _, p := range pairs {
		counts[[2]uint{p.Citing, p.Cited}] = p.Count
	}

	var findings []RingFinding
	seen := make(map[[2]uint]bool)
	for key, ab := range counts {
		a, b := key[0], key[1]
		if a > b {
			continue
		}
		if seen[[2]uint{a, b}] {
			continue
		}
		ba := counts[[2]uint{b, a}]
		if ab >= is.Policy.CitationRingThreshold && ba >= is.Policy.CitationRingThreshold {
			findings = append(findings, RingFinding{ScholarA: a, ScholarB: b, EdgesAtoB: ab, EdgesBtoA: ba})
			seen[[2]uint{a, b}] = true
		}
	}
	return findings, nil
}
