package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"scriptorium/config"
	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IntakeError beschreibt, warum ein Review abgewiesen wurde. Der Code ist
// maschinenlesbar und stabil; Detail ist für Menschen.
type IntakeError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e *IntakeError) Error() string {
	return fmt.Sprintf("review rejected (%s): %s", e.Code, e.Detail)
}

const reciprocalReviewLimit = 3

// ReviewSubmission ist die Eingabe für einen Review-Bericht.
type ReviewSubmission struct {
	ScrollID             string                 `json:"scroll_id"`
	ReviewerID           uint                   `json:"reviewer_id"`
	Scores               models.ReviewScores    `json:"scores"`
	Recommendation       models.Recommendation  `json:"recommendation"`
	CommentsToAuthors    string                 `json:"comments_to_authors"`
	SuggestedEdits       []models.SuggestedEdit `json:"suggested_edits"`
	ConfidentialComments string                 `json:"confidential_comments"`
	ReviewerConfidence   *float64               `json:"reviewer_confidence"`
}

// ReviewOutcome liefert den angenommenen Review, den frischen Decision
// Record (falls die Annahme eine Entscheidung ausgelöst hat) und das
// Gate-Ergebnis, wenn die Entscheidung accept war.
type ReviewOutcome struct {
	Review   models.Review          `json:"review"`
	Decision *models.DecisionRecord `json:"decision,omitempty"`
	Gate     *GateResult            `json:"repro_gate,omitempty"`
}

// QueueEntry ist ein Eintrag der Review-Warteschlange eines Reviewers.
type QueueEntry struct {
	Scroll        models.Scroll `json:"scroll"`
	Round         int           `json:"round"`
	ReviewsSoFar  int           `json:"reviews_so_far"`
	ReviewsNeeded int           `json:"reviews_needed"`
}

// ReviewService nimmt Peer-Reviews an, stößt nach jeder Annahme die
// Policy-Auswertung an und lässt bei accept sofort das Gate laufen.
type ReviewService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Policy config.Policy
	Engine *PolicyEngine
	Gate   *ReproService
	Now    func() time.Time
}

func NewReviewService(db *gorm.DB, logger *zap.Logger, policy config.Policy, engine *PolicyEngine, gate *ReproService) *ReviewService {
	return &ReviewService{DB: db, Logger: logger, Policy: policy, Engine: engine, Gate: gate, Now: time.Now}
}

// currentRound bestimmt die Review-Runde eines Scrolls: die höchste bereits
// vergebene Runde, mindestens aber die aktuelle Version.
func currentRound(db *gorm.DB, scroll *models.Scroll) (int, error) {
	var maxRound int
	err := db.Model(&models.Review{}).
		Where("scroll_id = ?", scroll.ScrollID).
		Select("coalesce(max(round), 0)").
		Scan(&maxRound).Error
	if err != nil {
		return 0, err
	}
	if scroll.Version > maxRound {
		return scroll.Version, nil
	}
	return maxRound, nil
}

// Submit prüft und speichert einen Review. Die Vorbedingungen werden in
// fester Reihenfolge geprüft, damit die Fehlercodes deterministisch sind:
// Scroll, Status, Reviewer, Sanktionen, Interessenkonflikte, Duplikat.
func (r *ReviewService) Submit(sub ReviewSubmission) (*ReviewOutcome, error) {
	if !sub.Scores.Valid() {
		return nil, &IntakeError{Code: "invalid_scores", Detail: "all scores must be between 1 and 10"}
	}
	switch sub.Recommendation {
	case models.RecommendAccept, models.RecommendMinorRevisions, models.RecommendMajorRevisions, models.RecommendReject:
	default:
		return nil, &IntakeError{Code: "invalid_recommendation", Detail: fmt.Sprintf("unknown recommendation %q", sub.Recommendation)}
	}
	confidence := 0.8
	if sub.ReviewerConfidence != nil {
		confidence = *sub.ReviewerConfidence
		if confidence < 0 || confidence > 1 {
			return nil, &IntakeError{Code: "invalid_confidence", Detail: "reviewer_confidence must be between 0 and 1"}
		}
	}

	var scroll models.Scroll
	if err := r.DB.First(&scroll, "scroll_id = ?", sub.ScrollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &IntakeError{Code: "scroll_not_found", Detail: sub.ScrollID}
		}
		return nil, err
	}
	if scroll.Status != models.StatusUnderReview {
		return nil, &IntakeError{Code: "scroll_not_under_review",
			Detail: fmt.Sprintf("scroll %s is %s", scroll.ScrollID, scroll.Status)}
	}

	var reviewer models.Scholar
	if err := r.DB.First(&reviewer, sub.ReviewerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &IntakeError{Code: "reviewer_not_found", Detail: fmt.Sprintf("scholar %d", sub.ReviewerID)}
		}
		return nil, err
	}

	var sanctions []models.Sanction
	if err := r.DB.Where("scholar_id = ? AND sanction_type = ?",
		reviewer.ID, models.SanctionReviewSuspension).Find(&sanctions).Error; err != nil {
		return nil, err
	}
	now := r.Now()
	for _, sn := range sanctions {
		if sn.Active(now) {
			return nil, &IntakeError{Code: "reviewer_suspended",
				Detail: fmt.Sprintf("active review suspension until %v", sn.ExpiresAt)}
		}
	}

	if err := r.checkConflicts(&scroll, reviewer.ID); err != nil {
		return nil, err
	}

	round, err := currentRound(r.DB, &scroll)
	if err != nil {
		return nil, err
	}
	var dup int64
	if err := r.DB.Model(&models.Review{}).
		Where("scroll_id = ? AND reviewer_id = ? AND round = ?", scroll.ScrollID, reviewer.ID, round).
		Count(&dup).Error; err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, &IntakeError{Code: "already_reviewed_this_scroll_round",
			Detail: fmt.Sprintf("scholar %d already reviewed %s in round %d", reviewer.ID, scroll.ScrollID, round)}
	}

	review := models.Review{
		ScrollID:             scroll.ScrollID,
		ReviewerID:           reviewer.ID,
		Round:                round,
		Scores:               sub.Scores,
		Recommendation:       sub.Recommendation,
		CommentsToAuthors:    sub.CommentsToAuthors,
		SuggestedEdits:       sub.SuggestedEdits,
		ConfidentialComments: sub.ConfidentialComments,
		ReviewerConfidence:   confidence,
	}

	err = r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Scholar{}).Where("id = ?", reviewer.ID).
			UpdateColumn("reviews_performed", gorm.Expr("reviews_performed + 1")).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditReviewSubmitted, ActorScholar(reviewer.ID), scroll.ScrollID, "scroll",
			map[string]interface{}{
				"review_id":      review.ID,
				"round":          round,
				"recommendation": string(sub.Recommendation),
				"overall":        sub.Scores.Overall,
			})
	})
	if err != nil {
		return nil, err
	}

	r.Logger.Info("Review accepted",
		zap.String("scroll_id", scroll.ScrollID),
		zap.Uint("reviewer_id", reviewer.ID),
		zap.Int("round", round),
		zap.String("recommendation", string(sub.Recommendation)))

	outcome := &ReviewOutcome{Review: review}
	if r.Engine != nil {
		record, err := r.Engine.EvaluateScroll(scroll.ScrollID)
		if err != nil {
			r.Logger.Error("Policy evaluation after review failed",
				zap.String("scroll_id", scroll.ScrollID), zap.Error(err))
		} else {
			outcome.Decision = record
		}
	}
	// Nach accept läuft das Gate sofort; nicht-empirische Typen publizieren
	// damit ohne weiteren Anstoß.
	if outcome.Decision != nil && outcome.Decision.Decision == models.DecisionAccept && r.Gate != nil {
		result, err := r.Gate.RunGate(scroll.ScrollID)
		if err != nil {
			r.Logger.Error("Gate run after accept failed",
				zap.String("scroll_id", scroll.ScrollID), zap.Error(err))
		} else {
			outcome.Gate = result
		}
	}
	return outcome, nil
}

// checkConflicts prüft Interessenkonflikte zwischen Reviewer und Scroll.
func (r *ReviewService) checkConflicts(scroll *models.Scroll, reviewerID uint) error {
	isAuthor, err := IsAuthor(r.DB, scroll.ScrollID, reviewerID)
	if err != nil {
		return err
	}
	if isAuthor {
		return &IntakeError{Code: "reviewer_is_author",
			Detail: fmt.Sprintf("scholar %d is an author of %s", reviewerID, scroll.ScrollID)}
	}

	// Anti-Capture: hat der Reviewer bereits drei oder mehr Arbeiten eines
	// der Autoren begutachtet, wird er für weitere gesperrt. Die Regel ist
	// bewusst einseitig; auf die Gegenrichtung kommt es nicht an.
	for _, authorID := range scroll.Authors {
		var byReviewer int64
		err := r.DB.Model(&models.Review{}).
			Joins("JOIN scroll_authors ON scroll_authors.scroll_id = reviews.scroll_id").
			Where("reviews.reviewer_id = ? AND scroll_authors.scholar_id = ?", reviewerID, authorID).
			Count(&byReviewer).Error
		if err != nil {
			return err
		}
		if byReviewer >= reciprocalReviewLimit {
			return &IntakeError{Code: "excessive_reciprocal_reviews",
				Detail: fmt.Sprintf("scholar %d has already reviewed %d scrolls by scholar %d", reviewerID, byReviewer, authorID)}
		}
	}
	return nil
}

// ListForScroll liefert alle Reviews eines Scrolls, optional nur eine Runde.
func (r *ReviewService) ListForScroll(scrollID string, round int) ([]models.Review, error) {
	query := r.DB.Where("scroll_id = ?", scrollID).Order("round, created_at")
	if round > 0 {
		query = query.Where("round = ?", round)
	}
	var reviews []models.Review
	err := query.Find(&reviews).Error
	return reviews, err
}

// Queue stellt die Warteschlange für einen Reviewer zusammen: Scrolls im
// Review, bei denen er weder Autor ist noch in der laufenden Runde schon
// begutachtet hat. Sortiert nach Review-Stand der Runde, dann Alter, damit
// unterversorgte Scrolls zuerst drankommen und nichts liegen bleibt.
func (r *ReviewService) Queue(reviewerID uint, limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var scrolls []models.Scroll
	err := r.DB.Where("status = ?", models.StatusUnderReview).
		Find(&scrolls).Error
	if err != nil {
		return nil, err
	}

	var entries []QueueEntry
	for i := range scrolls {
		scroll := scrolls[i]
		isAuthor, err := IsAuthor(r.DB, scroll.ScrollID, reviewerID)
		if err != nil {
			return nil, err
		}
		if isAuthor {
			continue
		}
		round, err := currentRound(r.DB, &scroll)
		if err != nil {
			return nil, err
		}
		var reviewed int64
		if err := r.DB.Model(&models.Review{}).
			Where("scroll_id = ? AND reviewer_id = ? AND round = ?", scroll.ScrollID, reviewerID, round).
			Count(&reviewed).Error; err != nil {
			return nil, err
		}
		if reviewed > 0 {
			continue
		}
		var soFar int64
		if err := r.DB.Model(&models.Review{}).
			Where("scroll_id = ? AND round = ?", scroll.ScrollID, round).
			Count(&soFar).Error; err != nil {
			return nil, err
		}
		needed := r.Policy.MinReviews(scroll.Domain) - int(soFar)
		if needed < 0 {
			needed = 0
		}
		entries = append(entries, QueueEntry{
			Scroll:        scroll,
			Round:         round,
			ReviewsSoFar:  int(soFar),
			ReviewsNeeded: needed,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ReviewsSoFar != entries[j].ReviewsSoFar {
			return entries[i].ReviewsSoFar < entries[j].ReviewsSoFar
		}
		return entries[i].Scroll.CreatedAt.Before(entries[j].Scroll.CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
