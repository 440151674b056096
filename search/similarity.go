package search

import (
	"encoding/json"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxScrolls = "scriptorium_scrolls"

// Match ist ein Ähnlichkeitstreffer aus dem Orakel.
type Match struct {
	ScrollID   string  `json:"scroll_id"`
	Similarity float64 `json:"similarity"`
}

// Matches ist das explizite Capability-Ergebnis des Orakels: Available
// unterscheidet "keine Treffer" von "Orakel nicht erreichbar". Aufrufer
// behandeln Unavailable als fail-open.
type Matches struct {
	Available bool
	Matches   []Match
}

// ScrollDocument ist das im Index hinterlegte Dokument.
type ScrollDocument struct {
	ScrollID string `json:"scroll_id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Content  string `json:"content"`
	Domain   string `json:"domain"`
	Status   string `json:"status"`
}

// SimilarityIndex implementiert das Similarity/Plagiarism-Orakel via Meilisearch.
// Bei Nichterreichbarkeit degradiert jede Operation zu einem No-Op bzw.
// Matches{Available: false}; Submissions werden dadurch nie blockiert.
type SimilarityIndex struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewSimilarityIndex verbindet sich mit Meilisearch und richtet den Index ein.
// Schlägt die Verbindung fehl, läuft der Index im degradierten Modus weiter
// und versucht periodisch eine Wiederverbindung.
func NewSimilarityIndex(url, apiKey string, logger *zap.Logger) *SimilarityIndex {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	s := &SimilarityIndex{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("Similarity oracle unavailable, continuing degraded",
			zap.String("url", url), zap.Error(err))
		s.healthy.Store(false)
	} else {
		s.healthy.Store(true)
		s.configureIndex()
	}

	go s.healthLoop()
	return s
}

func (s *SimilarityIndex) configureIndex() {
	if _, err := s.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxScrolls,
		PrimaryKey: "scroll_id",
	}); err != nil {
		s.logger.Debug("Create similarity index (may already exist)", zap.Error(err))
	}

	index := s.client.Index(idxScrolls)
	filterable := []interface{}{"domain", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		s.logger.Warn("Update filterable attributes failed", zap.Error(err))
	}
	searchable := []string{"title", "abstract", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		s.logger.Warn("Update searchable attributes failed", zap.Error(err))
	}
}

func (s *SimilarityIndex) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, err := s.client.Health()
			wasHealthy := s.healthy.Load()
			s.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				s.logger.Info("Similarity oracle recovered, reconfiguring index")
				s.configureIndex()
			}
		}
	}
}

// Close stoppt den Health-Monitor.
func (s *SimilarityIndex) Close() {
	close(s.done)
}

// Healthy meldet, ob Meilisearch erreichbar ist.
func (s *SimilarityIndex) Healthy() bool {
	return s.healthy.Load()
}

// IndexScroll legt einen Scroll im Ähnlichkeitsindex ab (Upsert über scroll_id).
// Fehler werden geloggt, nie propagiert.
func (s *SimilarityIndex) IndexScroll(doc ScrollDocument) {
	if !s.healthy.Load() {
		return
	}
	if _, err := s.client.Index(idxScrolls).AddDocuments([]ScrollDocument{doc}, nil); err != nil {
		s.logger.Warn("Similarity indexing failed",
			zap.String("scroll_id", doc.ScrollID), zap.Error(err))
		s.healthy.Store(false)
	}
}

// Query sucht die ähnlichsten Scrolls zum übergebenen Text. Der Text wird auf
// die ersten 5000 Zeichen gekürzt; excludeID filtert den Scroll selbst heraus.
func (s *SimilarityIndex) Query(text, excludeID string, limit int) Matches {
	if !s.healthy.Load() {
		return Matches{Available: false}
	}
	if limit <= 0 {
		limit = 5
	}
	if len(text) > 5000 {
		text = text[:5000]
	}

	resp, err := s.client.Index(idxScrolls).Search(text, &meili.SearchRequest{
		Limit:            int64(limit + 1),
		Filter:           []string{`status != "desk_rejected"`},
		ShowRankingScore: true,
	})
	if err != nil {
		s.logger.Warn("Similarity query failed", zap.Error(err))
		s.healthy.Store(false)
		return Matches{Available: false}
	}

	out := Matches{Available: true}
	for _, hit := range resp.Hits {
		id := decodeString(hit, "scroll_id")
		if id == "" || id == excludeID {
			continue
		}
		out.Matches = append(out.Matches, Match{
			ScrollID:   id,
			Similarity: decodeRankingScore(hit),
		})
		if len(out.Matches) >= limit {
			break
		}
	}
	return out
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func decodeRankingScore(hit meili.Hit) float64 {
	raw, ok := hit["_rankingScore"]
	if !ok {
		return 0
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return v
}
