package services

import (
	"errors"
	"fmt"
	"time"

	"scriptorium/config"
	"scriptorium/models"
	"scriptorium/search"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SimilarityOracle ist die vom ScrollService benötigte Sicht auf den
// Ähnlichkeitsindex. search.SimilarityIndex erfüllt das Interface; Tests
// stecken einen Fake hinein.
type SimilarityOracle interface {
	IndexScroll(doc search.ScrollDocument)
	Query(text, excludeID string, limit int) search.Matches
}

var (
	ErrScrollNotFound    = errors.New("scroll not found")
	ErrScholarNotFound   = errors.New("scholar not found")
	ErrNotAnAuthor       = errors.New("scholar is not an author of this scroll")
	ErrSubmissionBlocked = errors.New("submitting author is under an active submission suspension")
)

// ScrollSubmission ist die Eingabe für eine neue Einreichung. SubmitterID
// identifiziert den einreichenden Scholar; er wird bei Bedarf der
// Autorenliste vorangestellt.
type ScrollSubmission struct {
	SubmitterID uint              `json:"submitter_id"`
	Title       string            `json:"title"`
	ScrollType  models.ScrollType `json:"scroll_type"`
	Abstract    string            `json:"abstract"`
	Content     string            `json:"content"`
	Keywords    []string          `json:"keywords"`
	Domain      string            `json:"domain"`
	Authors     []uint            `json:"authors"`
	Claims      []models.Claim    `json:"claims"`
	References  []string          `json:"references"`
	Profile     string            `json:"method_profile"`
}

// ScrollRevision ist die Eingabe für eine überarbeitete Fassung.
type ScrollRevision struct {
	EditorID       uint                  `json:"editor_id"`
	Title          string                `json:"title"`
	Abstract       string                `json:"abstract"`
	Content        string                `json:"content"`
	Keywords       []string              `json:"keywords"`
	Claims         []models.Claim        `json:"claims"`
	References     []string              `json:"references"`
	ChangeSummary  string                `json:"change_summary"`
	ResponseLetter []models.ResponseItem `json:"response_letter"`
}

// SubmissionOutcome liefert Scroll und Screening-Ergebnis an den Aufrufer.
type SubmissionOutcome struct {
	Scroll    models.Scroll   `json:"scroll"`
	Screening ScreeningResult `json:"screening"`
}

// ScrollService verwaltet den Lebenszyklus der Scrolls: Einreichung mit
// Desk-Screening, Revisionen, Rückzug und Ablösung.
type ScrollService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Policy config.Policy
	Oracle SimilarityOracle
	Now    func() time.Time
}

func NewScrollService(db *gorm.DB, logger *zap.Logger, policy config.Policy, oracle SimilarityOracle) *ScrollService {
	return &ScrollService{DB: db, Logger: logger, Policy: policy, Oracle: oracle, Now: time.Now}
}

// nextScrollID vergibt die nächste Kennung im Format AX-YYYY-NNNNN.
// Die Sequenzzeile wird innerhalb der Transaktion gesperrt, damit parallel
// laufende Einreichungen keine doppelte Nummer ziehen.
func nextScrollID(tx *gorm.DB, year int) (string, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.IDSequence{Year: year, Seq: 0}).Error; err != nil {
		return "", err
	}
	// SQLite kennt kein SELECT ... FOR UPDATE; dort serialisiert die
	// Transaktion selbst.
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var seq models.IDSequence
	if err := q.First(&seq, "year = ?", year).Error; err != nil {
		return "", err
	}
	seq.Seq++
	if err := tx.Save(&seq).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("AX-%d-%05d", year, seq.Seq), nil
}

// missingReferences liefert die References, zu denen kein Scroll existiert.
func missingReferences(db *gorm.DB, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var known []string
	if err := db.Model(&models.Scroll{}).
		Where("scroll_id IN ?", refs).
		Pluck("scroll_id", &known).Error; err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}
	var missing []string
	for _, id := range refs {
		if !knownSet[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Submit nimmt eine Einreichung an, prüft sie und legt sie an. Besteht der
// Scroll das Screening, geht er direkt in den Review; andernfalls wird er
// mit vollständiger Mängelliste desk-rejected (terminal).
func (s *ScrollService) Submit(sub ScrollSubmission) (*SubmissionOutcome, error) {
	if sub.ScrollType == "" {
		sub.ScrollType = models.TypePaper
	}

	// Der Submitter steht immer in der Autorenliste; ohne expliziten
	// Submitter gilt der erste Autor als Einreicher.
	if sub.SubmitterID != 0 {
		listed := false
		for _, id := range sub.Authors {
			if id == sub.SubmitterID {
				listed = true
				break
			}
		}
		if !listed {
			sub.Authors = append([]uint{sub.SubmitterID}, sub.Authors...)
		}
	} else if len(sub.Authors) > 0 {
		sub.SubmitterID = sub.Authors[0]
	}

	// Autoren müssen registrierte Scholars sein.
	if len(sub.Authors) > 0 {
		var count int64
		if err := s.DB.Model(&models.Scholar{}).Where("id IN ?", sub.Authors).Count(&count).Error; err != nil {
			return nil, err
		}
		if count != int64(len(sub.Authors)) {
			return nil, ErrScholarNotFound
		}

		// Die Sperre hängt am Einreicher, nicht an der Autorenreihenfolge.
		var sanctions []models.Sanction
		if err := s.DB.Where("scholar_id = ? AND sanction_type = ?",
			sub.SubmitterID, models.SanctionSubmissionSuspension).Find(&sanctions).Error; err != nil {
			return nil, err
		}
		now := s.Now()
		for _, sn := range sanctions {
			if sn.Active(now) {
				return nil, ErrSubmissionBlocked
			}
		}
	}

	missing, err := missingReferences(s.DB, sub.References)
	if err != nil {
		return nil, err
	}

	scroll := models.Scroll{
		Title:         sub.Title,
		ScrollType:    sub.ScrollType,
		Abstract:      sub.Abstract,
		Content:       sub.Content,
		Keywords:      datatypes.JSONSlice[string](sub.Keywords),
		Domain:        sub.Domain,
		Authors:       datatypes.JSONSlice[uint](sub.Authors),
		Claims:        datatypes.JSONSlice[models.Claim](sub.Claims),
		References:    datatypes.JSONSlice[string](sub.References),
		MethodProfile: sub.Profile,
		Status:        models.StatusSubmitted,
		Version:       1,
		EvidenceGrade: models.Ungraded,
	}

	result := Screen(&scroll, missing, s.Policy)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		id, err := nextScrollID(tx, s.Now().Year())
		if err != nil {
			return err
		}
		scroll.ScrollID = id

		if result.Passed {
			if err := transition(&scroll, models.StatusUnderReview); err != nil {
				return err
			}
		} else {
			if err := transition(&scroll, models.StatusDeskRejected); err != nil {
				return err
			}
		}

		if err := tx.Create(&scroll).Error; err != nil {
			return err
		}
		for _, authorID := range scroll.Authors {
			if err := tx.Create(&models.ScrollAuthor{ScrollID: scroll.ScrollID, ScholarID: authorID}).Error; err != nil {
				return err
			}
		}

		actor := ActorSystem
		if sub.SubmitterID != 0 {
			actor = ActorScholar(sub.SubmitterID)
		}
		if err := recordTx(tx, models.AuditScrollSubmitted, actor, scroll.ScrollID, "scroll",
			map[string]interface{}{"title": scroll.Title, "scroll_type": string(scroll.ScrollType), "domain": scroll.Domain}); err != nil {
			return err
		}
		if !result.Passed {
			issues := make([]interface{}, 0, len(result.Issues))
			for _, i := range result.Issues {
				issues = append(issues, map[string]interface{}{"rule": i.Rule, "detail": i.Detail})
			}
			if err := recordTx(tx, models.AuditScrollDeskRejected, ActorSystem, scroll.ScrollID, "scroll",
				map[string]interface{}{"issues": issues}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Passed && s.Oracle != nil {
		s.Oracle.IndexScroll(search.ScrollDocument{
			ScrollID: scroll.ScrollID,
			Title:    scroll.Title,
			Abstract: scroll.Abstract,
			Content:  scroll.Content,
			Domain:   scroll.Domain,
			Status:   string(scroll.Status),
		})
	}

	s.Logger.Info("Scroll submitted",
		zap.String("scroll_id", scroll.ScrollID),
		zap.String("status", string(scroll.Status)),
		zap.Int("screening_issues", len(result.Issues)))

	return &SubmissionOutcome{Scroll: scroll, Screening: result}, nil
}

// Get lädt einen Scroll.
func (s *ScrollService) Get(scrollID string) (*models.Scroll, error) {
	var scroll models.Scroll
	if err := s.DB.First(&scroll, "scroll_id = ?", scrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScrollNotFound
		}
		return nil, err
	}
	return &scroll, nil
}

// IsAuthor prüft die Autorenschaft über die normalisierte Join-Tabelle.
func IsAuthor(db *gorm.DB, scrollID string, scholarID uint) (bool, error) {
	var count int64
	err := db.Model(&models.ScrollAuthor{}).
		Where("scroll_id = ? AND scholar_id = ?", scrollID, scholarID).
		Count(&count).Error
	return count > 0, err
}

// Revise reicht eine überarbeitete Fassung ein. Nur Autoren dürfen
// revidieren, und nur solange der Scroll in revisions_required steht.
// Die neue Fassung geht zurück in den Review; die Runde entspricht danach
// der neuen Versionsnummer.
func (s *ScrollService) Revise(scrollID string, rev ScrollRevision) (*models.Scroll, error) {
	scroll, err := s.Get(scrollID)
	if err != nil {
		return nil, err
	}
	isAuthor, err := IsAuthor(s.DB, scrollID, rev.EditorID)
	if err != nil {
		return nil, err
	}
	if !isAuthor {
		return nil, ErrNotAnAuthor
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(scroll, models.StatusUnderReview); err != nil {
			return err
		}
		scroll.Version++
		if rev.Title != "" {
			scroll.Title = rev.Title
		}
		if rev.Abstract != "" {
			scroll.Abstract = rev.Abstract
		}
		if rev.Content != "" {
			scroll.Content = rev.Content
		}
		if rev.Keywords != nil {
			scroll.Keywords = datatypes.JSONSlice[string](rev.Keywords)
		}
		if rev.Claims != nil {
			scroll.Claims = datatypes.JSONSlice[models.Claim](rev.Claims)
		}
		if rev.References != nil {
			missing, err := missingReferences(tx, rev.References)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("revision references unknown scrolls: %v", missing)
			}
			scroll.References = datatypes.JSONSlice[string](rev.References)
		}
		scroll.RevisionHistory = append(scroll.RevisionHistory, models.RevisionEntry{
			Version:        scroll.Version,
			RevisedAt:      s.Now().UTC(),
			ChangeSummary:  rev.ChangeSummary,
			ResponseLetter: rev.ResponseLetter,
		})

		if err := tx.Save(scroll).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditRevisionSubmitted, ActorScholar(rev.EditorID), scroll.ScrollID, "scroll",
			map[string]interface{}{"version": scroll.Version, "change_summary": rev.ChangeSummary})
	})
	if err != nil {
		return nil, err
	}

	if s.Oracle != nil {
		s.Oracle.IndexScroll(search.ScrollDocument{
			ScrollID: scroll.ScrollID,
			Title:    scroll.Title,
			Abstract: scroll.Abstract,
			Content:  scroll.Content,
			Domain:   scroll.Domain,
			Status:   string(scroll.Status),
		})
	}

	s.Logger.Info("Revision submitted",
		zap.String("scroll_id", scroll.ScrollID),
		zap.Int("version", scroll.Version))
	return scroll, nil
}

// Retract zieht einen Scroll aus jedem aktiven Zustand zurück. Nur Autoren
// dürfen zurückziehen; der Eintrag bleibt erhalten, nur Status und
// Rückzugsgrund ändern sich.
func (s *ScrollService) Retract(scrollID string, authorID uint, reason string) (*models.Scroll, error) {
	scroll, err := s.Get(scrollID)
	if err != nil {
		return nil, err
	}
	isAuthor, err := IsAuthor(s.DB, scrollID, authorID)
	if err != nil {
		return nil, err
	}
	if !isAuthor {
		return nil, ErrNotAnAuthor
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(scroll, models.StatusRetracted); err != nil {
			return err
		}
		scroll.RetractionReason = &reason
		if err := tx.Save(scroll).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditScrollRetracted, ActorScholar(authorID), scroll.ScrollID, "scroll",
			map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Scroll retracted", zap.String("scroll_id", scrollID), zap.String("reason", reason))
	return scroll, nil
}

// Supersede markiert einen publizierten Scroll als durch einen neueren
// abgelöst. Beide Scrolls müssen existieren; der Nachfolger muss publiziert
// sein, damit nie auf unveröffentlichte Arbeit verwiesen wird.
func (s *ScrollService) Supersede(oldID, newID string, actorID string) (*models.Scroll, error) {
	old, err := s.Get(oldID)
	if err != nil {
		return nil, err
	}
	successor, err := s.Get(newID)
	if err != nil {
		return nil, err
	}
	if successor.Status != models.StatusPublished {
		return nil, fmt.Errorf("successor %s is not published", newID)
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(old, models.StatusSuperseded); err != nil {
			return err
		}
		old.SupersededBy = &successor.ScrollID
		if err := tx.Save(old).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditScrollSuperseded, actorID, old.ScrollID, "scroll",
			map[string]interface{}{"superseded_by": successor.ScrollID})
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// List liefert Scrolls gefiltert nach Status und/oder Domain.
func (s *ScrollService) List(status models.ScrollStatus, domain string, limit int) ([]models.Scroll, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.DB.Order("created_at desc").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}
	var scrolls []models.Scroll
	err := query.Find(&scrolls).Error
	return scrolls, err
}

// PipelineStats ist die aggregierte Sicht auf den Publishing-Workflow.
type PipelineStats struct {
	ScrollsByStatus   map[string]int64 `json:"scrolls_by_status"`
	ScrollsByType     map[string]int64 `json:"scrolls_by_type"`
	ScholarCount      int64            `json:"scholar_count"`
	ReviewCount       int64            `json:"review_count"`
	CitationCount     int64            `json:"citation_count"`
	PublishedByDomain map[string]int64 `json:"published_by_domain"`
}

// Stats berechnet die Pipeline-Statistik aus der Datenbank.
func (s *ScrollService) Stats() (*PipelineStats, error) {
	stats := &PipelineStats{
		ScrollsByStatus:   map[string]int64{},
		ScrollsByType:     map[string]int64{},
		PublishedByDomain: map[string]int64{},
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var rows []bucket

	if err := s.DB.Model(&models.Scroll{}).
		Select("status as key, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ScrollsByStatus[r.Key] = r.Count
	}

	rows = nil
	if err := s.DB.Model(&models.Scroll{}).
		Select("scroll_type as key, count(*) as count").Group("scroll_type").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ScrollsByType[r.Key] = r.Count
	}

	rows = nil
	if err := s.DB.Model(&models.Scroll{}).
		Where("status = ?", models.StatusPublished).
		Select("domain as key, count(*) as count").Group("domain").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.PublishedByDomain[r.Key] = r.Count
	}

	if err := s.DB.Model(&models.Scholar{}).Count(&stats.ScholarCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Review{}).Count(&stats.ReviewCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Citation{}).Count(&stats.CitationCount).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
