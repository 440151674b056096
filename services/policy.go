package services

import (
	"fmt"

	"scriptorium/config"
	"scriptorium/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PolicyEngine wertet den Review-Satz eines Scrolls gegen die konfigurierte
// Policy aus. Die Auswertung ist eine reine Funktion über (Scroll, Reviews,
// Policy): gleiche Eingaben liefern immer dieselbe Entscheidung, und jeder
// Decision Record hält alle Regelauswertungen für ein späteres Replay fest.
type PolicyEngine struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Policy config.Policy
}

func NewPolicyEngine(db *gorm.DB, logger *zap.Logger, policy config.Policy) *PolicyEngine {
	return &PolicyEngine{DB: db, Logger: logger, Policy: policy}
}

// Regelnamen, wie sie in Decision Records erscheinen.
const (
	RuleMinimumReviews    = "minimum_reviews"
	RuleRevisionLimit     = "revision_limit"
	RuleScoreThreshold    = "score_threshold"
	RuleNoRejectMajority  = "no_reject_majority"
	RuleNoCriticalFlags   = "no_unresolved_critical_flags"
	RuleRevisionsNeeded   = "revisions_needed"
)

// ruleSet hält die Zwischenergebnisse einer Auswertung.
type ruleSet struct {
	evaluations []models.PolicyRuleEvaluation

	revisionLimitOK  bool
	scoreOK          bool
	rejectMajority   bool
	criticalFlags    bool
	revisionsNeeded  bool
	majorRevisions   bool
}

func (rs *ruleSet) add(name string, input map[string]any, result bool, explanation string) {
	rs.evaluations = append(rs.evaluations, models.PolicyRuleEvaluation{
		RuleName:    name,
		InputData:   input,
		Result:      result,
		Explanation: explanation,
	})
}

// EvaluateRules ist die reine Entscheidungsfunktion. Sie verändert nichts
// und greift nicht auf die Datenbank zu.
func EvaluateRules(scroll *models.Scroll, reviews []models.Review, p config.Policy) (models.Decision, []models.PolicyRuleEvaluation, models.ReviewSummary, string) {
	summary := summarize(reviews)
	rs := &ruleSet{}

	// Regel 1: Mindestanzahl an Reviews. Schlägt sie fehl, endet die
	// Auswertung sofort; der Record enthält dann nur diese eine Regel.
	required := p.MinReviews(scroll.Domain)
	minOK := len(reviews) >= required
	rs.add(RuleMinimumReviews,
		map[string]any{"review_count": len(reviews), "required": required, "domain": scroll.Domain},
		minOK,
		fmt.Sprintf("%d of %d required reviews present", len(reviews), required))
	if !minOK {
		return models.DecisionInsufficientReviews, rs.evaluations, summary,
			fmt.Sprintf("insufficient reviews: %d of %d", len(reviews), required)
	}

	// Regel 2: Revisionslimit. Version 1 ist die Erstfassung, danach
	// sind MaxRevisionRounds Überarbeitungen erlaubt.
	rs.revisionLimitOK = scroll.Version <= p.MaxRevisionRounds+1
	rs.add(RuleRevisionLimit,
		map[string]any{"version": scroll.Version, "max_revision_rounds": p.MaxRevisionRounds},
		rs.revisionLimitOK,
		fmt.Sprintf("version %d against limit of %d revisions", scroll.Version, p.MaxRevisionRounds))

	// Regel 3: Score-Schwelle über den Overall-Scores. Punktlandung zählt
	// als bestanden.
	rs.scoreOK = summary.AvgOverall >= p.AcceptScoreThreshold
	rs.add(RuleScoreThreshold,
		map[string]any{"avg_overall": summary.AvgOverall, "threshold": p.AcceptScoreThreshold},
		rs.scoreOK,
		fmt.Sprintf("average overall score %.2f against threshold %.2f", summary.AvgOverall, p.AcceptScoreThreshold))

	// Regel 4: Keine Reject-Mehrheit.
	rejects := 0
	for _, rev := range reviews {
		if rev.Recommendation == models.RecommendReject {
			rejects++
		}
	}
	rs.rejectMajority = rejects > len(reviews)/2
	rs.add(RuleNoRejectMajority,
		map[string]any{"reject_count": rejects, "review_count": len(reviews)},
		!rs.rejectMajority,
		fmt.Sprintf("%d of %d reviewers recommend reject", rejects, len(reviews)))

	// Regel 5: Keine unaufgelösten kritischen Flags (Reject mit hoher
	// Reviewer-Confidence).
	flags := 0
	for _, rev := range reviews {
		if rev.CriticalFlag() {
			flags++
		}
	}
	rs.criticalFlags = flags > 0
	rs.add(RuleNoCriticalFlags,
		map[string]any{"critical_flags": flags},
		!rs.criticalFlags,
		fmt.Sprintf("%d critical flag(s) raised", flags))

	// Regel 6: Revisionswünsche.
	minor, major := 0, 0
	for _, rev := range reviews {
		switch rev.Recommendation {
		case models.RecommendMinorRevisions:
			minor++
		case models.RecommendMajorRevisions:
			major++
		}
	}
	rs.revisionsNeeded = minor+major > 0
	rs.majorRevisions = major > 0
	rs.add(RuleRevisionsNeeded,
		map[string]any{"minor_revisions": minor, "major_revisions": major},
		!rs.revisionsNeeded,
		fmt.Sprintf("%d minor and %d major revision request(s)", minor, major))

	decision, explanation := resolve(rs)
	return decision, rs.evaluations, summary, explanation
}

// resolve verdichtet die Regelergebnisse in fester Prioritätsreihenfolge zu
// einer Entscheidung.
func resolve(rs *ruleSet) (models.Decision, string) {
	switch {
	case !rs.revisionLimitOK:
		return models.DecisionReject, "revision limit exhausted"
	case rs.rejectMajority:
		return models.DecisionReject, "majority of reviewers recommend rejection"
	case rs.criticalFlags:
		return models.DecisionReject, "unresolved critical flags from confident reviewers"
	case rs.revisionsNeeded && !rs.scoreOK:
		return models.DecisionRevisionsRequired, "revisions requested and score below threshold"
	case rs.revisionsNeeded && rs.scoreOK:
		if rs.majorRevisions {
			return models.DecisionRevisionsRequired, "major revisions requested despite passing score"
		}
		return models.DecisionAccept, "score above threshold, only minor revisions requested"
	case rs.scoreOK:
		return models.DecisionAccept, "score above threshold, no revisions requested"
	default:
		return models.DecisionRevisionsRequired, "score below threshold"
	}
}

func summarize(reviews []models.Review) models.ReviewSummary {
	summary := models.ReviewSummary{ReviewCount: len(reviews)}
	if len(reviews) == 0 {
		return summary
	}
	total := 0
	for _, rev := range reviews {
		total += rev.Scores.Overall
		summary.Recommendations = append(summary.Recommendations, rev.Recommendation)
	}
	summary.AvgOverall = float64(total) / float64(len(reviews))
	return summary
}

// decisionStatus bildet eine Entscheidung auf den Folgestatus ab.
func decisionStatus(d models.Decision) (models.ScrollStatus, bool) {
	switch d {
	case models.DecisionAccept:
		return models.StatusReproCheck, true
	case models.DecisionReject:
		return models.StatusRejected, true
	case models.DecisionRevisionsRequired:
		return models.StatusRevisionsRequired, true
	default:
		return "", false
	}
}

// EvaluateScroll lädt Scroll und Reviews der laufenden Runde, wertet die
// Policy aus und persistiert das Ergebnis. Scrolls außerhalb von
// under_review werden ignoriert (nil, nil). Bei insufficient_reviews wird
// der Record zwar gespeichert, der Scroll-Status bleibt aber unverändert.
func (pe *PolicyEngine) EvaluateScroll(scrollID string) (*models.DecisionRecord, error) {
	var scroll models.Scroll
	if err := pe.DB.First(&scroll, "scroll_id = ?", scrollID).Error; err != nil {
		return nil, err
	}
	if scroll.Status != models.StatusUnderReview {
		return nil, nil
	}

	round, err := currentRound(pe.DB, &scroll)
	if err != nil {
		return nil, err
	}
	var reviews []models.Review
	if err := pe.DB.Where("scroll_id = ? AND round = ?", scroll.ScrollID, round).
		Order("created_at").Find(&reviews).Error; err != nil {
		return nil, err
	}

	decision, evaluations, summary, explanation := EvaluateRules(&scroll, reviews, pe.Policy)

	record := models.DecisionRecord{
		ScrollID:        scroll.ScrollID,
		Decision:        decision,
		RuleEvaluations: evaluations,
		ReviewSummary:   datatypes.NewJSONType(summary),
		Explanation:     explanation,
	}

	err = pe.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if decision == models.DecisionInsufficientReviews {
			return nil
		}

		next, ok := decisionStatus(decision)
		if !ok {
			return fmt.Errorf("no status mapping for decision %q", decision)
		}
		if err := transition(&scroll, next); err != nil {
			return err
		}
		scroll.DecisionRecordID = &record.ID
		if err := tx.Save(&scroll).Error; err != nil {
			return err
		}
		return recordTx(tx, models.AuditDecisionMade, ActorPolicyEngine, scroll.ScrollID, "scroll",
			map[string]interface{}{
				"decision":    string(decision),
				"record_id":   record.ID,
				"round":       round,
				"avg_overall": summary.AvgOverall,
				"explanation": explanation,
			})
	})
	if err != nil {
		return nil, err
	}

	pe.Logger.Info("Policy evaluated",
		zap.String("scroll_id", scroll.ScrollID),
		zap.Int("round", round),
		zap.String("decision", string(decision)))
	return &record, nil
}

// RecordsForScroll liefert alle Decision Records eines Scrolls, älteste zuerst.
func (pe *PolicyEngine) RecordsForScroll(scrollID string) ([]models.DecisionRecord, error) {
	var records []models.DecisionRecord
	err := pe.DB.Where("scroll_id = ?", scrollID).Order("created_at, id").Find(&records).Error
	return records, err
}
