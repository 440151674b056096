package services

import (
	"errors"
	"testing"
	"time"

	"scriptorium/models"
)

func wantIntakeCode(t *testing.T, err error, code string) {
	t.Helper()
	var ie *IntakeError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntakeError, got %v", err)
	}
	if ie.Code != code {
		t.Fatalf("code = %s, want %s", ie.Code, code)
	}
}

func TestSubmitReviewUnknownScroll(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.registerScholar(t, "Rev")
	_, err := env.reviews.Submit(reviewFor("AX-2026-99999", reviewer.ID, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "scroll_not_found")
}

func TestSubmitReviewScrollNotUnderReview(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	outcome, err := env.scrolls.Submit(ScrollSubmission{Title: "bad", Authors: []uint{author.ID}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = env.reviews.Submit(reviewFor(outcome.Scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "scroll_not_under_review")
}

func TestSubmitReviewUnknownReviewer(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	scroll := env.submitScroll(t, author.ID)
	_, err := env.reviews.Submit(reviewFor(scroll.ScrollID, 4242, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "reviewer_not_found")
}

func TestSubmitReviewInvalidScores(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	scroll := env.submitScroll(t, author.ID)

	sub := reviewFor(scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept)
	sub.Scores.Overall = 11
	_, err := env.reviews.Submit(sub)
	wantIntakeCode(t, err, "invalid_scores")
}

func TestSubmitReviewAuthorCannotReview(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	scroll := env.submitScroll(t, author.ID)
	_, err := env.reviews.Submit(reviewFor(scroll.ScrollID, author.ID, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "reviewer_is_author")
}

func TestSubmitReviewSuspendedReviewer(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	scroll := env.submitScroll(t, author.ID)

	if _, err := env.integrity.ApplySanction(reviewer.ID, models.SanctionReviewSuspension,
		"pattern of careless reviews", nil, 48*time.Hour); err != nil {
		t.Fatalf("apply sanction: %v", err)
	}
	_, err := env.reviews.Submit(reviewFor(scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "reviewer_suspended")
}

func TestSubmitReviewExpiredSuspensionDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	scroll := env.submitScroll(t, author.ID)

	expired := time.Now().Add(-time.Hour)
	sanction := models.Sanction{
		ScholarID:    reviewer.ID,
		SanctionType: models.SanctionReviewSuspension,
		ExpiresAt:    &expired,
	}
	if err := env.db.Create(&sanction).Error; err != nil {
		t.Fatalf("seed sanction: %v", err)
	}
	if _, err := env.reviews.Submit(reviewFor(scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept)); err != nil {
		t.Fatalf("expected accepted review, got %v", err)
	}
}

func TestSubmitReviewDuplicateRound(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	scroll := env.submitScroll(t, author.ID)

	if _, err := env.reviews.Submit(reviewFor(scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept)); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err := env.reviews.Submit(reviewFor(scroll.ScrollID, reviewer.ID, 8, models.RecommendAccept))
	wantIntakeCode(t, err, "already_reviewed_this_scroll_round")
}

func TestSubmitReviewBlocksRepeatReviewerOfSameAuthor(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")

	// Drei frühere Begutachtungen von Arbeiten desselben Autors.
	for i := 0; i < 3; i++ {
		scroll := env.submitScroll(t, author.ID)
		if _, err := env.reviews.Submit(reviewFor(scroll.ScrollID, reviewer.ID, 7, models.RecommendAccept)); err != nil {
			t.Fatalf("prior review %d: %v", i, err)
		}
	}

	// Die vierte wird abgewiesen, auch wenn der Autor nie zurückbegutachtet hat.
	fourth := env.submitScroll(t, author.ID)
	_, err := env.reviews.Submit(reviewFor(fourth.ScrollID, reviewer.ID, 7, models.RecommendAccept))
	wantIntakeCode(t, err, "excessive_reciprocal_reviews")

	var count int64
	if err := env.db.Model(&models.Review{}).
		Where("scroll_id = ?", fourth.ScrollID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("reviews persisted = %d, want 0", count)
	}
}

func TestSubmitReviewTriggersDecision(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	r1 := env.registerScholar(t, "Rev1")
	r2 := env.registerScholar(t, "Rev2")
	scroll := env.submitScroll(t, author.ID)

	first, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r1.ID, 8, models.RecommendAccept))
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	if first.Decision == nil || first.Decision.Decision != models.DecisionInsufficientReviews {
		t.Fatalf("first decision = %+v, want insufficient_reviews record", first.Decision)
	}

	second, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r2.ID, 7, models.RecommendAccept))
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if second.Decision == nil || second.Decision.Decision != models.DecisionAccept {
		t.Fatalf("second decision = %+v, want accept", second.Decision)
	}

	got := env.mustGetScroll(t, scroll.ScrollID)
	if got.Status != models.StatusReproCheck {
		t.Errorf("status = %s, want repro_check", got.Status)
	}
}

func TestReviewRoundFollowsVersionAfterRevision(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	r1 := env.registerScholar(t, "Rev1")
	r2 := env.registerScholar(t, "Rev2")
	r3 := env.registerScholar(t, "Rev3")
	scroll := env.submitScroll(t, author.ID)

	// Runde 1 endet in revisions_required.
	if _, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r1.ID, 5, models.RecommendMinorRevisions)); err != nil {
		t.Fatalf("review 1: %v", err)
	}
	if _, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r2.ID, 5, models.RecommendAccept)); err != nil {
		t.Fatalf("review 2: %v", err)
	}
	if got := env.mustGetScroll(t, scroll.ScrollID); got.Status != models.StatusRevisionsRequired {
		t.Fatalf("status = %s, want revisions_required", got.Status)
	}

	revised, err := env.scrolls.Revise(scroll.ScrollID, ScrollRevision{
		EditorID:      author.ID,
		ChangeSummary: "addressed reviewer concerns",
	})
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if revised.Version != 2 {
		t.Fatalf("version = %d, want 2", revised.Version)
	}

	outcome, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r3.ID, 8, models.RecommendAccept))
	if err != nil {
		t.Fatalf("round 2 review: %v", err)
	}
	if outcome.Review.Round != 2 {
		t.Errorf("round = %d, want 2", outcome.Review.Round)
	}

	// Der Reviewer aus Runde 1 darf in Runde 2 erneut begutachten.
	again, err := env.reviews.Submit(reviewFor(scroll.ScrollID, r1.ID, 8, models.RecommendAccept))
	if err != nil {
		t.Fatalf("repeat reviewer in new round: %v", err)
	}
	if again.Review.Round != 2 {
		t.Errorf("repeat round = %d, want 2", again.Review.Round)
	}
}

func TestQueueSkipsOwnAndReviewedScrolls(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	reviewer := env.registerScholar(t, "Rev")
	own := env.submitScroll(t, reviewer.ID)
	other := env.submitScroll(t, author.ID)
	reviewed := env.submitScroll(t, author.ID)

	if _, err := env.reviews.Submit(reviewFor(reviewed.ScrollID, reviewer.ID, 7, models.RecommendAccept)); err != nil {
		t.Fatalf("seed review: %v", err)
	}

	queue, err := env.reviews.Queue(reviewer.ID, 10)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	ids := make(map[string]bool)
	for _, entry := range queue {
		ids[entry.Scroll.ScrollID] = true
	}
	if ids[own.ScrollID] {
		t.Error("queue contains reviewer's own scroll")
	}
	if ids[reviewed.ScrollID] {
		t.Error("queue contains already reviewed scroll")
	}
	if !ids[other.ScrollID] {
		t.Error("queue misses reviewable scroll")
	}
	for _, entry := range queue {
		if entry.Scroll.ScrollID == other.ScrollID && entry.ReviewsNeeded != 2 {
			t.Errorf("reviews_needed = %d, want 2", entry.ReviewsNeeded)
		}
	}
}

func TestQueueOrdersByReviewCountThenAge(t *testing.T) {
	env := newTestEnv(t)
	author := env.registerScholar(t, "Ada")
	seed := env.registerScholar(t, "Seed")
	reviewer := env.registerScholar(t, "Rev")

	older := env.submitScroll(t, author.ID)
	newer := env.submitScroll(t, author.ID)
	covered := env.submitScroll(t, author.ID)

	// covered hat bereits einen Review und rückt ans Ende.
	if _, err := env.reviews.Submit(reviewFor(covered.ScrollID, seed.ID, 7, models.RecommendAccept)); err != nil {
		t.Fatalf("seed review: %v", err)
	}

	queue, err := env.reviews.Queue(reviewer.ID, 10)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	if queue[0].Scroll.ScrollID != older.ScrollID || queue[1].Scroll.ScrollID != newer.ScrollID {
		t.Errorf("unreviewed order = %s, %s; want oldest first", queue[0].Scroll.ScrollID, queue[1].Scroll.ScrollID)
	}
	if queue[2].Scroll.ScrollID != covered.ScrollID {
		t.Errorf("last = %s, want the scroll with an existing review", queue[2].Scroll.ScrollID)
	}
}
