package services

import (
	"fmt"
	"testing"

	"scriptorium/models"
)

func seedPublishedScroll(t *testing.T, env *testEnv, n int, scrollType models.ScrollType) string {
	t.Helper()
	id := fmt.Sprintf("AX-2026-%05d", n)
	scroll := models.Scroll{
		ScrollID:   id,
		Title:      fmt.Sprintf("Scroll %d", n),
		ScrollType: scrollType,
		Status:     models.StatusPublished,
	}
	if err := env.db.Create(&scroll).Error; err != nil {
		t.Fatalf("seed scroll: %v", err)
	}
	return id
}

func seedCitation(t *testing.T, env *testEnv, citing, cited string) {
	t.Helper()
	if err := env.db.Create(&models.Citation{CitingScrollID: citing, CitedScrollID: cited}).Error; err != nil {
		t.Fatalf("seed citation: %v", err)
	}
}

func TestTraceLineageFollowsReferences(t *testing.T) {
	env := newTestEnv(t)
	a := seedPublishedScroll(t, env, 1, models.TypePaper)
	b := seedPublishedScroll(t, env, 2, models.TypePaper)
	c := seedPublishedScroll(t, env, 3, models.TypePaper)
	seedCitation(t, env, a, b)
	seedCitation(t, env, b, c)

	tree, err := env.citations.TraceLineage(a, 10)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if tree.ScrollID != a || len(tree.References) != 1 {
		t.Fatalf("root = %+v", tree)
	}
	child := tree.References[0]
	if child.ScrollID != b || len(child.References) != 1 {
		t.Fatalf("child = %+v", child)
	}
	if child.References[0].ScrollID != c || len(child.References[0].References) != 0 {
		t.Errorf("grandchild = %+v", child.References[0])
	}
}

func TestTraceLineageMarksCyclesTruncated(t *testing.T) {
	env := newTestEnv(t)
	a := seedPublishedScroll(t, env, 1, models.TypePaper)
	b := seedPublishedScroll(t, env, 2, models.TypePaper)
	seedCitation(t, env, a, b)
	seedCitation(t, env, b, a)

	tree, err := env.citations.TraceLineage(a, 10)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	child := tree.References[0]
	if child.ScrollID != b || len(child.References) != 1 {
		t.Fatalf("child = %+v", child)
	}
	back := child.References[0]
	if back.ScrollID != a || !back.Truncated {
		t.Errorf("cycle node = %+v, want truncated back-reference", back)
	}
}

func TestTraceLineageMarksMissingScrolls(t *testing.T) {
	env := newTestEnv(t)
	a := seedPublishedScroll(t, env, 1, models.TypePaper)
	seedCitation(t, env, a, "AX-2020-00042")

	tree, err := env.citations.TraceLineage(a, 10)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(tree.References) != 1 || !tree.References[0].NotFound {
		t.Errorf("references = %+v, want not_found marker", tree.References)
	}
}

func TestFindContradictionsGroupsRebuttalsByTarget(t *testing.T) {
	env := newTestEnv(t)
	target := seedPublishedScroll(t, env, 1, models.TypePaper)
	r1 := seedPublishedScroll(t, env, 2, models.TypeRebuttal)
	r2 := seedPublishedScroll(t, env, 3, models.TypeRebuttal)
	// Ein unpublizierter Rebuttal zählt nicht.
	draft := models.Scroll{ScrollID: "AX-2026-00004", Title: "draft", ScrollType: models.TypeRebuttal, Status: models.StatusUnderReview}
	if err := env.db.Create(&draft).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	seedCitation(t, env, r1, target)
	seedCitation(t, env, r2, target)
	seedCitation(t, env, draft.ScrollID, target)

	found, err := env.citations.FindContradictions(20)
	if err != nil {
		t.Fatalf("contradictions: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found = %+v, want one disputed target", found)
	}
	if found[0].OriginalScrollID != target || len(found[0].Rebuttals) != 2 {
		t.Errorf("entry = %+v, want both published rebuttals", found[0])
	}
}
