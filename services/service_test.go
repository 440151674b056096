package services

import (
	"strings"
	"testing"

	"scriptorium/config"
	"scriptorium/models"
	"scriptorium/search"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeOracle ist ein steuerbarer Ersatz für den Meilisearch-Index.
type fakeOracle struct {
	indexed   []search.ScrollDocument
	available bool
	matches   []search.Match
}

func (f *fakeOracle) IndexScroll(doc search.ScrollDocument) {
	f.indexed = append(f.indexed, doc)
}

func (f *fakeOracle) Query(text, excludeID string, limit int) search.Matches {
	if !f.available {
		return search.Matches{Available: false}
	}
	return search.Matches{Available: true, Matches: f.matches}
}

// testEnv verdrahtet alle Services gegen eine in-memory Datenbank.
type testEnv struct {
	db        *gorm.DB
	oracle    *fakeOracle
	scrolls   *ScrollService
	reviews   *ReviewService
	engine    *PolicyEngine
	repro     *ReproService
	scholars  *ScholarService
	citations *CitationService
	integrity *IntegrityService
	audit     *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// Eine Verbindung, damit :memory: über alle Queries hinweg dieselbe
	// Datenbank bleibt.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Scholar{},
		&models.Sanction{},
		&models.Scroll{},
		&models.ScrollAuthor{},
		&models.IDSequence{},
		&models.Review{},
		&models.DecisionRecord{},
		&models.ArtifactBundle{},
		&models.Replication{},
		&models.Citation{},
		&models.AuditEvent{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	log := zap.NewNop()
	policy := config.DefaultPolicy()
	oracle := &fakeOracle{available: true}

	citations := NewCitationService(db, log)
	engine := NewPolicyEngine(db, log, policy)
	repro := NewReproService(db, log, citations, nil)
	env := &testEnv{
		db:        db,
		oracle:    oracle,
		scrolls:   NewScrollService(db, log, policy, oracle),
		reviews:   NewReviewService(db, log, policy, engine, repro),
		engine:    engine,
		repro:     repro,
		scholars:  NewScholarService(db, log),
		citations: citations,
		integrity: NewIntegrityService(db, log, policy, oracle),
		audit:     NewAuditService(db, log),
	}
	return env
}

func (e *testEnv) registerScholar(t *testing.T, name string) models.Scholar {
	t.Helper()
	scholar, err := e.scholars.Register(ScholarRegistration{Name: name, Domains: []string{"systems"}})
	if err != nil {
		t.Fatalf("register scholar %s: %v", name, err)
	}
	return *scholar
}

func validSubmission(authors ...uint) ScrollSubmission {
	return ScrollSubmission{
		Title:      "On the Convergence of Asynchronous Consensus",
		ScrollType: models.TypePaper,
		Abstract:   strings.Repeat("A thorough abstract describing the work. ", 3),
		Content:    strings.Repeat("Detailed methodology, experiments and discussion. ", 10),
		Keywords:   []string{"consensus", "distributed-systems"},
		Domain:     "systems",
		Authors:    authors,
	}
}

func (e *testEnv) submitScroll(t *testing.T, authors ...uint) models.Scroll {
	t.Helper()
	outcome, err := e.scrolls.Submit(validSubmission(authors...))
	if err != nil {
		t.Fatalf("submit scroll: %v", err)
	}
	if !outcome.Screening.Passed {
		t.Fatalf("expected screening to pass, issues: %+v", outcome.Screening.Issues)
	}
	return outcome.Scroll
}

func (e *testEnv) mustGetScroll(t *testing.T, id string) models.Scroll {
	t.Helper()
	scroll, err := e.scrolls.Get(id)
	if err != nil {
		t.Fatalf("get scroll %s: %v", id, err)
	}
	return *scroll
}

func reviewFor(scrollID string, reviewerID uint, overall int, rec models.Recommendation) ReviewSubmission {
	return ReviewSubmission{
		ScrollID:   scrollID,
		ReviewerID: reviewerID,
		Scores: models.ReviewScores{
			Originality:  overall,
			Methodology:  overall,
			Significance: overall,
			Clarity:      overall,
			Overall:      overall,
		},
		Recommendation:    rec,
		CommentsToAuthors: "detailed comments",
	}
}
