package models

import "time"

// Citation modelliert eine gerichtete Kante: citing zitiert cited (A cites B).
// Die Kante ist eindeutig; Mehrfachzitate zählen nicht doppelt.
type Citation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CitingScrollID string `json:"citing_scroll_id" gorm:"index:idx_citations_unique_edge,unique;size:16;not null"`
	CitedScrollID  string `json:"cited_scroll_id" gorm:"index:idx_citations_unique_edge,unique;index;size:16;not null"`
}

func (Citation) TableName() string { return "citations" }
