package services

import (
	"fmt"

	"scriptorium/models"
)

// legalTransitions ist die einzige Stelle, an der Statuswechsel definiert
// sind. Jede Statusänderung läuft über Transition; direkte Updates des
// Status-Feldes umgehen die Zustandsmaschine und sind ein Bug.
var legalTransitions = map[models.ScrollStatus][]models.ScrollStatus{
	models.StatusSubmitted: {
		models.StatusUnderReview,
		models.StatusDeskRejected,
	},
	models.StatusUnderReview: {
		models.StatusRevisionsRequired,
		models.StatusReproCheck,
		models.StatusRejected,
		models.StatusRetracted,
		models.StatusFlagged,
	},
	models.StatusRevisionsRequired: {
		models.StatusUnderReview,
		models.StatusRejected,
		models.StatusRetracted,
		models.StatusFlagged,
	},
	models.StatusReproCheck: {
		models.StatusPublished,
		models.StatusRetracted,
		models.StatusFlagged,
	},
	models.StatusPublished: {
		models.StatusRetracted,
		models.StatusSuperseded,
		models.StatusFlagged,
	},
	models.StatusFlagged: {
		models.StatusUnderReview,
		models.StatusRetracted,
		models.StatusRejected,
	},
	// desk_rejected, rejected, retracted, superseded sind terminal
}

// CanTransition prüft, ob der Wechsel from -> to erlaubt ist.
func CanTransition(from, to models.ScrollStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionError meldet einen unzulässigen Statuswechsel.
type TransitionError struct {
	ScrollID string
	From     models.ScrollStatus
	To       models.ScrollStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("scroll %s: illegal transition %s -> %s", e.ScrollID, e.From, e.To)
}

// transition setzt den Status eines Scrolls nach Prüfung gegen die
// Zustandsmaschine. Mutiert nur das Struct; persistiert wird beim Aufrufer.
func transition(s *models.Scroll, to models.ScrollStatus) error {
	if !CanTransition(s.Status, to) {
		return &TransitionError{ScrollID: s.ScrollID, From: s.Status, To: to}
	}
	s.Status = to
	return nil
}
