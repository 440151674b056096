package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"scriptorium/config"
	"scriptorium/models"
)

// ScreeningIssue ist ein einzelner Befund der automatischen Eingangsprüfung.
type ScreeningIssue struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// ScreeningResult fasst alle Befunde zusammen. Passed ist nur dann true,
// wenn keine Regel angeschlagen hat.
type ScreeningResult struct {
	Passed bool             `json:"passed"`
	Issues []ScreeningIssue `json:"issues"`
}

// Screen führt die Desk-Prüfung eines Scrolls aus. Alle Regeln werden
// ausgewertet, nicht nur die erste fehlgeschlagene, damit der Autor die
// vollständige Mängelliste erhält. missingRefs sind die References des
// Scrolls, die der Aufrufer nicht auflösen konnte.
func Screen(s *models.Scroll, missingRefs []string, p config.Policy) ScreeningResult {
	var issues []ScreeningIssue
	add := func(rule, detail string) {
		issues = append(issues, ScreeningIssue{Rule: rule, Detail: detail})
	}

	if strings.TrimSpace(s.Title) == "" {
		add("title_required", "title must not be empty")
	}
	// Längen in Zeichen, nicht Bytes; Multibyte-Texte zählen pro Codepoint.
	if utf8.RuneCountInString(strings.TrimSpace(s.Abstract)) < p.MinAbstractLength {
		add("abstract_too_short", fmt.Sprintf("abstract must be at least %d characters", p.MinAbstractLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Content)) < p.MinContentLength {
		add("content_too_short", fmt.Sprintf("content must be at least %d characters", p.MinContentLength))
	}
	if len(s.Authors) == 0 {
		add("authors_required", "at least one author is required")
	}
	if strings.TrimSpace(s.Domain) == "" {
		add("domain_required", "domain must be set")
	}

	switch s.ScrollType {
	case models.TypeHypothesis:
		if len(s.Claims) == 0 {
			add("hypothesis_needs_claims", "a hypothesis must state at least one explicit claim")
		}
	case models.TypeMetaAnalysis:
		if len(s.References) < 2 {
			add("meta_analysis_needs_references", "a meta-analysis must reference at least 2 scrolls")
		}
	case models.TypeRebuttal:
		if len(s.References) == 0 {
			add("rebuttal_needs_target", "a rebuttal must reference the scroll it responds to")
		}
	}

	if len(missingRefs) > 0 {
		shown := missingRefs
		suffix := ""
		if len(shown) > 10 {
			shown = shown[:10]
			suffix = ", ..."
		}
		add("invalid_references", fmt.Sprintf("unknown referenced scrolls: %s%s", strings.Join(shown, ", "), suffix))
	}

	return ScreeningResult{Passed: len(issues) == 0, Issues: issues}
}
