package services

import (
	"fmt"
	"testing"
	"time"

	"scriptorium/models"
	"scriptorium/search"
)

func TestPlagiarismCheckFlagsHighSimilarity(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	scroll := env.submitScroll(t, author.ID)

	env.oracle.matches = []search.Match{
		{ScrollID: "AX-2026-00042", Similarity: 0.97},
		{ScrollID: "AX-2026-00043", Similarity: 0.40},
	}

	report, err := env.integrity.PlagiarismCheck(scroll.ScrollID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.Checked || !report.Flagged {
		t.Fatalf("report = %+v, want checked and flagged", report)
	}
	if report.TopMatch != "AX-2026-00042" || len(report.Matches) != 1 {
		t.Errorf("matches = %+v", report.Matches)
	}

	got := env.mustGetScroll(t, scroll.ScrollID)
	if got.Status != models.StatusFlagged {
		t.Errorf("status = %s, want flagged", got.Status)
	}
	hasBadge := false
	for _, b := range got.Badges {
		if b == models.BadgeIntegrityFlagged {
			hasBadge = true
		}
	}
	if !hasBadge {
		t.Error("missing integrity_flagged badge")
	}

	events, err := env.audit.ForTarget(scroll.ScrollID, 10)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	flagged := false
	for _, ev := range events {
		if ev.Action == models.AuditScrollFlagged {
			flagged = true
		}
	}
	if !flagged {
		t.Error("missing scroll_flagged audit event")
	}
}

func TestPlagiarismCheckBelowThresholdPasses(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	scroll := env.submitScroll(t, author.ID)

	env.oracle.matches = []search.Match{{ScrollID: "AX-2026-00042", Similarity: 0.5}}

	report, err := env.integrity.PlagiarismCheck(scroll.ScrollID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.Checked || report.Flagged {
		t.Fatalf("report = %+v, want checked and clean", report)
	}
	if got := env.mustGetScroll(t, scroll.ScrollID); got.Status != models.StatusUnderReview {
		t.Errorf("status = %s, want under_review", got.Status)
	}
}

func TestPlagiarismCheckFailsOpenWhenOracleDown(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	scroll := env.submitScroll(t, author.ID)

	env.oracle.available = false
	report, err := env.integrity.PlagiarismCheck(scroll.ScrollID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.Checked || report.Flagged {
		t.Fatalf("report = %+v, want unchecked and unflagged", report)
	}
	if got := env.mustGetScroll(t, scroll.ScrollID); got.Status != models.StatusUnderReview {
		t.Errorf("status = %s, scroll must not be blocked by oracle outage", got.Status)
	}
}

func TestDetectCitationRings(t *testing.T) {
	env := newTestEnv(t)
	a := env.registerScholar(t, "A")
	b := env.registerScholar(t, "B")
	c := env.registerScholar(t, "C")

	seedScroll := func(n int, owner uint) string {
		id := fmt.Sprintf("AX-2026-%05d", n)
		if err := env.db.Create(&models.Scroll{ScrollID: id, Title: "t", Status: models.StatusPublished}).Error; err != nil {
			t.Fatalf("seed scroll: %v", err)
		}
		if err := env.db.Create(&models.ScrollAuthor{ScrollID: id, ScholarID: owner}).Error; err != nil {
			t.Fatalf("seed author: %v", err)
		}
		return id
	}

	// 5 Kanten in jede Richtung zwischen A und B, eine einzelne zu C.
	n := 1
	for i := 0; i < 5; i++ {
		aScroll := seedScroll(n, a.ID)
		n++
		bScroll := seedScroll(n, b.ID)
		n++
		if err := env.db.Create(&models.Citation{CitingScrollID: aScroll, CitedScrollID: bScroll}).Error; err != nil {
			t.Fatalf("seed citation: %v", err)
		}
		if err := env.db.Create(&models.Citation{CitingScrollID: bScroll, CitedScrollID: aScroll}).Error; err != nil {
			t.Fatalf("seed citation: %v", err)
		}
	}
	cScroll := seedScroll(n, c.ID)
	if err := env.db.Create(&models.Citation{CitingScrollID: cScroll, CitedScrollID: seedScroll(n+1, a.ID)}).Error; err != nil {
		t.Fatalf("seed citation: %v", err)
	}

	findings, err := env.integrity.DetectCitationRings()
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want exactly one pair", findings)
	}
	f := findings[0]
	pair := map[uint]bool{f.ScholarA: true, f.ScholarB: true}
	if !pair[a.ID] || !pair[b.ID] {
		t.Errorf("finding pair = %+v, want scholars A and B", f)
	}
	if f.EdgesAtoB < 5 || f.EdgesBtoA < 5 {
		t.Errorf("edge counts = %d/%d, want >= 5 both ways", f.EdgesAtoB, f.EdgesBtoA)
	}
}

func TestCheckSybilVelocity(t *testing.T) {
	env := newTestEnv(t)
	scholar := env.registerScholar(t, "Prolific")

	// Elf Einreichungen im Fenster, eine weit davor.
	for i := 0; i < 11; i++ {
		id := fmt.Sprintf("AX-2026-%05d", i+1)
		if err := env.db.Create(&models.Scroll{ScrollID: id, Title: "t", Status: models.StatusUnderReview}).Error; err != nil {
			t.Fatalf("seed scroll: %v", err)
		}
		if err := env.db.Create(&models.ScrollAuthor{ScrollID: id, ScholarID: scholar.ID}).Error; err != nil {
			t.Fatalf("seed author: %v", err)
		}
	}
	old := models.Scroll{ScrollID: "AX-2026-00099", Title: "old", Status: models.StatusPublished,
		CreatedAt: time.Now().Add(-3 * time.Hour)}
	if err := env.db.Create(&old).Error; err != nil {
		t.Fatalf("seed old scroll: %v", err)
	}
	if err := env.db.Create(&models.ScrollAuthor{ScrollID: old.ScrollID, ScholarID: scholar.ID}).Error; err != nil {
		t.Fatalf("seed old author: %v", err)
	}

	report, err := env.integrity.CheckSybilVelocity(scholar.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.SubmissionsInWindow != 11 {
		t.Errorf("submissions = %d, want 11 (old one outside window)", report.SubmissionsInWindow)
	}
	if !report.Violation {
		t.Error("expected velocity violation above the limit")
	}

	quiet := env.registerScholar(t, "Quiet")
	report, err = env.integrity.CheckSybilVelocity(quiet.ID)
	if err != nil {
		t.Fatalf("check quiet: %v", err)
	}
	if report.Violation || report.SubmissionsInWindow != 0 {
		t.Errorf("report = %+v, want clean", report)
	}

	if _, err := env.integrity.CheckSybilVelocity(4242); err != ErrScholarNotFound {
		t.Errorf("err = %v, want ErrScholarNotFound", err)
	}
}

func TestApplySanctionPermanentWhenNoDuration(t *testing.T) {
	env := newTestEnv(t)
	scholar := env.registerScholar(t, "Ada")

	sanction, err := env.integrity.ApplySanction(scholar.ID, models.SanctionReviewSuspension, "test", nil, 0)
	if err != nil {
		t.Fatalf("sanction: %v", err)
	}
	if sanction.ExpiresAt != nil {
		t.Error("zero duration must mean permanent")
	}

	active, err := env.integrity.ActiveSanctions(scholar.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active = %d, want 1", len(active))
	}
}
