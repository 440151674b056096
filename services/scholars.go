package services

import (
	"errors"
	"sort"

	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScholarRegistration ist die Eingabe für eine Registrierung.
type ScholarRegistration struct {
	Name        string   `json:"name"`
	Affiliation string   `json:"affiliation"`
	Bio         string   `json:"bio"`
	PublicKey   string   `json:"public_key"`
	Domains     []string `json:"domains"`
}

// ScholarService verwaltet die Scholar-Registry und berechnet die
// abgeleiteten Metriken (Zitationen, h-Index, Reputation, Trust-Tier).
// Die Metriken sind jederzeit aus Scroll-, Review- und Zitationsdaten
// reproduzierbar; die gespeicherten Werte sind nur ein Cache.
type ScholarService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewScholarService(db *gorm.DB, logger *zap.Logger) *ScholarService {
	return &ScholarService{DB: db, Logger: logger}
}

var ErrNameRequired = errors.New("scholar name must not be empty")

// Register legt einen neuen Scholar an.
func (ss *ScholarService) Register(reg ScholarRegistration) (*models.Scholar, error) {
	if reg.Name == "" {
		return nil, ErrNameRequired
	}
	scholar := models.Scholar{
		Name:        reg.Name,
		Affiliation: reg.Affiliation,
		Bio:         reg.Bio,
		PublicKey:   reg.PublicKey,
		Domains:     datatypes.JSONSlice[string](reg.Domains),
		TrustTier:   models.TierNew,
	}
	err := ss.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&scholar).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditScholarRegistered, ActorSystem, ActorScholar(scholar.ID), "scholar",
			map[string]interface{}{"name": scholar.Name})
	})
	if err != nil {
		return nil, err
	}
	ss.Logger.Info("Scholar registered", zap.Uint("scholar_id", scholar.ID), zap.String("name", scholar.Name))
	return &scholar, nil
}

// Get lädt einen Scholar.
func (ss *ScholarService) Get(id uint) (*models.Scholar, error) {
	var scholar models.Scholar
	if err := ss.DB.First(&scholar, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScholarNotFound
		}
		return nil, err
	}
	return &scholar, nil
}

// reputation gewichtet die Einzelmetriken zum Reputations-Score.
func reputation(citations, hIndex, published, reviews int) float64 {
	return float64(citations)*3 + float64(hIndex)*10 + float64(published)*2 + float64(reviews)
}

// tierFor ordnet einen Reputations-Score der Vertrauensstufe zu.
func tierFor(score float64) models.TrustTier {
	switch {
	case score >= 500:
		return models.TierDistinguished
	case score >= 100:
		return models.TierTrusted
	case score >= 20:
		return models.TierEstablished
	default:
		return models.TierNew
	}
}

// hIndex: die größte Zahl h, für die h Arbeiten mindestens h Zitate haben.
func hIndex(citationCounts []int) int {
	sort.Sort(sort.Reverse(sort.IntSlice(citationCounts)))
	h := 0
	for i, c := range citationCounts {
		if c >= i+1 {
			h = i + 1
		} else {
			break
		}
	}
	return h
}

// RecomputeMetrics berechnet alle abgeleiteten Werte eines Scholars neu aus
// den Grunddaten. Idempotent.
func (ss *ScholarService) RecomputeMetrics(scholarID uint) (*models.Scholar, error) {
	scholar, err := ss.Get(scholarID)
	if err != nil {
		return nil, err
	}

	var published []models.Scroll
	if err := ss.DB.
		Joins("JOIN scroll_authors ON scroll_authors.scroll_id = scrolls.scroll_id").
		Where("scroll_authors.scholar_id = ? AND scrolls.status = ?", scholarID, models.StatusPublished).
		Find(&published).Error; err != nil {
		return nil, err
	}

	totalCitations := 0
	counts := make([]int, 0, len(published))
	for _, s := range published {
		totalCitations += s.CitationCount
		counts = append(counts, s.CitationCount)
	}

	var reviews int64
	if err := ss.DB.Model(&models.Review{}).
		Where("reviewer_id = ?", scholarID).
		Count(&reviews).Error; err != nil {
		return nil, err
	}

	scholar.ScrollsPublished = len(published)
	scholar.TotalCitations = totalCitations
	scholar.HIndex = hIndex(counts)
	scholar.ReviewsPerformed = int(reviews)
	scholar.ReputationScore = reputation(totalCitations, scholar.HIndex, scholar.ScrollsPublished, scholar.ReviewsPerformed)
	scholar.TrustTier = tierFor(scholar.ReputationScore)

	if err := ss.DB.Save(scholar).Error; err != nil {
		return nil, err
	}
	return scholar, nil
}

// RecomputeAll aktualisiert die Metriken aller Scholars. Läuft nachts per
// Cron und nach Publikationen.
func (ss *ScholarService) RecomputeAll() (int, error) {
	var ids []uint
	if err := ss.DB.Model(&models.Scholar{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for _, id := range ids {
		if _, err := ss.RecomputeMetrics(id); err != nil {
			ss.Logger.Error("Metric recompute failed", zap.Uint("scholar_id", id), zap.Error(err))
			return 0, err
		}
	}
	ss.Logger.Info("Scholar metrics recomputed", zap.Int("count", len(ids)))
	return len(ids), nil
}

// Leaderboard liefert die Scholars mit der höchsten Reputation.
func (ss *ScholarService) Leaderboard(limit int) ([]models.Scholar, error) {
	if limit <= 0 {
		limit = 10
	}
	var scholars []models.Scholar
	err := ss.DB.Order("reputation_score desc, id").Limit(limit).Find(&scholars).Error
	return scholars, err
}
