package services

import (
	"errors"

	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CitationService pflegt den gerichteten Zitationsgraphen. Kanten entstehen
// bei der Publikation aus den References eines Scrolls; der Zähler am
// zitierten Scroll wird aus dem Graphen abgeleitet, nie direkt gesetzt.
type CitationService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewCitationService(db *gorm.DB, logger *zap.Logger) *CitationService {
	return &CitationService{DB: db, Logger: logger}
}

// RecordForScroll legt für jede Reference eine Kante an. Doppelte Kanten
// werden ignoriert (eine Arbeit zitiert eine andere höchstens einmal);
// Selbstzitate ebenfalls.
func (cs *CitationService) RecordForScroll(scroll *models.Scroll) error {
	for _, citedID := range scroll.References {
		if citedID == scroll.ScrollID {
			continue
		}
		edge := models.Citation{CitingScrollID: scroll.ScrollID, CitedScrollID: citedID}
		if err := cs.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			return err
		}
		if err := cs.refreshCount(citedID); err != nil {
			return err
		}
	}
	return nil
}

// refreshCount setzt citation_count aus dem Graphen neu.
func (cs *CitationService) refreshCount(scrollID string) error {
	var count int64
	if err := cs.DB.Model(&models.Citation{}).
		Where("cited_scroll_id = ?", scrollID).
		Count(&count).Error; err != nil {
		return err
	}
	return cs.DB.Model(&models.Scroll{}).
		Where("scroll_id = ?", scrollID).
		Update("citation_count", count).Error
}

// RecomputeAllCounts gleicht alle Zähler mit dem Graphen ab. Läuft im
// nächtlichen Metrik-Job mit.
func (cs *CitationService) RecomputeAllCounts() error {
	var ids []string
	if err := cs.DB.Model(&models.Scroll{}).Pluck("scroll_id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := cs.refreshCount(id); err != nil {
			return err
		}
	}
	return nil
}

// CitedBy liefert die Scrolls, die den übergebenen zitieren (Rückwärtskanten).
func (cs *CitationService) CitedBy(scrollID string) ([]models.Scroll, error) {
	var scrolls []models.Scroll
	err := cs.DB.
		Joins("JOIN citations ON citations.citing_scroll_id = scrolls.scroll_id").
		Where("citations.cited_scroll_id = ?", scrollID).
		Order("scrolls.created_at").
		Find(&scrolls).Error
	return scrolls, err
}

// Cites liefert die vom übergebenen Scroll zitierten Scrolls (Vorwärtskanten).
func (cs *CitationService) Cites(scrollID string) ([]models.Scroll, error) {
	var scrolls []models.Scroll
	err := cs.DB.
		Joins("JOIN citations ON citations.cited_scroll_id = scrolls.scroll_id").
		Where("citations.citing_scroll_id = ?", scrollID).
		Order("scrolls.created_at").
		Find(&scrolls).Error
	return scrolls, err
}

// LineageNode ist ein Knoten im Zitationsstammbaum eines Scrolls.
type LineageNode struct {
	ScrollID   string        `json:"scroll_id"`
	Title      string        `json:"title,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	NotFound   bool          `json:"not_found,omitempty"`
	References []LineageNode `json:"references,omitempty"`
}

// TraceLineage verfolgt die Zitationskette eines Scrolls bis zu ihren
// Wurzeln. Bereits besuchte Knoten und alles unterhalb von maxDepth werden
// als truncated markiert, damit Zyklen den Abstieg nicht endlos machen.
func (cs *CitationService) TraceLineage(scrollID string, maxDepth int) (*LineageNode, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	visited := make(map[string]bool)

	var trace func(sid string, depth int) (*LineageNode, error)
	trace = func(sid string, depth int) (*LineageNode, error) {
		if depth >= maxDepth || visited[sid] {
			return &LineageNode{ScrollID: sid, Truncated: true}, nil
		}
		visited[sid] = true

		var scroll models.Scroll
		if err := cs.DB.Select("scroll_id, title").First(&scroll, "scroll_id = ?", sid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &LineageNode{ScrollID: sid, NotFound: true}, nil
			}
			return nil, err
		}

		var citedIDs []string
		if err := cs.DB.Model(&models.Citation{}).
			Where("citing_scroll_id = ?", sid).
			Order("cited_scroll_id").
			Pluck("cited_scroll_id", &citedIDs).Error; err != nil {
			return nil, err
		}

		node := &LineageNode{ScrollID: scroll.ScrollID, Title: scroll.Title}
		for _, citedID := range citedIDs {
			child, err := trace(citedID, depth+1)
			if err != nil {
				return nil, err
			}
			node.References = append(node.References, *child)
		}
		return node, nil
	}

	return trace(scrollID, 0)
}

// RebuttalRef verweist auf eine publizierte Erwiderung.
type RebuttalRef struct {
	ScrollID string `json:"scroll_id"`
	Title    string `json:"title"`
}

// Contradiction ist eine publizierte Arbeit samt der Rebuttals, die sie
// zitieren; ein Hinweis auf umstrittene Ergebnisse.
type Contradiction struct {
	OriginalScrollID string        `json:"original_scroll_id"`
	OriginalTitle    string        `json:"original_title"`
	Rebuttals        []RebuttalRef `json:"rebuttals"`
}

// FindContradictions sucht publizierte Rebuttals und gruppiert sie nach den
// Scrolls, gegen die sie sich richten.
func (cs *CitationService) FindContradictions(limit int) ([]Contradiction, error) {
	if limit <= 0 {
		limit = 20
	}

	type rebuttalEdge struct {
		ScrollID string
		Title    string
		CitedID  string
	}
	var edges []rebuttalEdge
	err := cs.DB.Model(&models.Scroll{}).
		Select("scrolls.scroll_id as scroll_id, scrolls.title as title, citations.cited_scroll_id as cited_id").
		Joins("JOIN citations ON citations.citing_scroll_id = scrolls.scroll_id").
		Where("scrolls.scroll_type = ? AND scrolls.status = ?", models.TypeRebuttal, models.StatusPublished).
		Order("scrolls.created_at desc").
		Limit(limit * 5).
		Scan(&edges).Error
	if err != nil {
		return nil, err
	}

	byTarget := make(map[string][]RebuttalRef)
	var targetOrder []string
	for _, e := range edges {
		if _, seen := byTarget[e.CitedID]; !seen {
			targetOrder = append(targetOrder, e.CitedID)
		}
		byTarget[e.CitedID] = append(byTarget[e.CitedID], RebuttalRef{ScrollID: e.ScrollID, Title: e.Title})
	}

	var contradictions []Contradiction
	for _, targetID := range targetOrder {
		var target models.Scroll
		if err := cs.DB.Select("scroll_id, title").First(&target, "scroll_id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		contradictions = append(contradictions, Contradiction{
			OriginalScrollID: target.ScrollID,
			OriginalTitle:    target.Title,
			Rebuttals:        byTarget[targetID],
		})
		if len(contradictions) >= limit {
			break
		}
	}
	return contradictions, nil
}

// MostCited liefert die meistzitierten publizierten Scrolls.
func (cs *CitationService) MostCited(limit int) ([]models.Scroll, error) {
	if limit <= 0 {
		limit = 10
	}
	var scrolls []models.Scroll
	err := cs.DB.Where("status = ?", models.StatusPublished).
		Order("citation_count desc, scroll_id").
		Limit(limit).
		Find(&scrolls).Error
	return scrolls, err
}
