package services

import (
	"strings"
	"testing"

	"scriptorium/config"
	"scriptorium/models"
)

func issueRules(result ScreeningResult) map[string]bool {
	rules := make(map[string]bool, len(result.Issues))
	for _, issue := range result.Issues {
		rules[issue.Rule] = true
	}
	return rules
}

func TestScreenPassesValidPaper(t *testing.T) {
	scroll := models.Scroll{
		Title:    "Valid Title",
		Abstract: strings.Repeat("a", 60),
		Content:  strings.Repeat("b", 250),
		Domain:   "systems",
		Authors:  []uint{1},
	}
	result := Screen(&scroll, nil, config.DefaultPolicy())
	if !result.Passed {
		t.Fatalf("expected pass, got issues %+v", result.Issues)
	}
}

func TestScreenCollectsAllIssues(t *testing.T) {
	// Leerer Scroll: jede Basisregel muss anschlagen, nicht nur die erste.
	scroll := models.Scroll{ScrollType: models.TypePaper}
	result := Screen(&scroll, nil, config.DefaultPolicy())
	if result.Passed {
		t.Fatal("expected screening to fail")
	}
	rules := issueRules(result)
	for _, want := range []string{
		"title_required",
		"abstract_too_short",
		"content_too_short",
		"authors_required",
		"domain_required",
	} {
		if !rules[want] {
			t.Errorf("missing issue %q in %+v", want, result.Issues)
		}
	}
}

func TestScreenWhitespaceOnlyFieldsFail(t *testing.T) {
	scroll := models.Scroll{
		Title:    "   ",
		Abstract: strings.Repeat(" ", 100),
		Content:  strings.Repeat(" ", 300),
		Domain:   " ",
		Authors:  []uint{1},
	}
	result := Screen(&scroll, nil, config.DefaultPolicy())
	rules := issueRules(result)
	for _, want := range []string{"title_required", "abstract_too_short", "content_too_short", "domain_required"} {
		if !rules[want] {
			t.Errorf("missing issue %q", want)
		}
	}
}

func TestScreenCountsRunesNotBytes(t *testing.T) {
	// 30 Zeichen, aber 60 Bytes: die Länge zählt pro Codepoint.
	scroll := models.Scroll{
		Title:    "Umlaut Heavy",
		Abstract: strings.Repeat("ü", 30),
		Content:  strings.Repeat("c", 250),
		Domain:   "systems",
		Authors:  []uint{1},
	}
	result := Screen(&scroll, nil, config.DefaultPolicy())
	if result.Passed {
		t.Fatal("expected screening to fail")
	}
	if !issueRules(result)["abstract_too_short"] {
		t.Errorf("missing abstract_too_short in %+v", result.Issues)
	}

	// 60 Multibyte-Zeichen reichen dagegen aus.
	scroll.Abstract = strings.Repeat("ü", 60)
	if result := Screen(&scroll, nil, config.DefaultPolicy()); !result.Passed {
		t.Fatalf("expected pass with 60 runes, got %+v", result.Issues)
	}
}

func TestScreenTypeSpecificRules(t *testing.T) {
	base := models.Scroll{
		Title:    "Typed Scroll",
		Abstract: strings.Repeat("a", 60),
		Content:  strings.Repeat("b", 250),
		Domain:   "systems",
		Authors:  []uint{1},
	}

	cases := []struct {
		name       string
		mutate     func(*models.Scroll)
		wantRule   string
		wantPassed bool
	}{
		{
			name:     "hypothesis without claims",
			mutate:   func(s *models.Scroll) { s.ScrollType = models.TypeHypothesis },
			wantRule: "hypothesis_needs_claims",
		},
		{
			name: "hypothesis with claims",
			mutate: func(s *models.Scroll) {
				s.ScrollType = models.TypeHypothesis
				s.Claims = []models.Claim{{Statement: "X implies Y", Falsifiable: true}}
			},
			wantPassed: true,
		},
		{
			name: "meta-analysis with one reference",
			mutate: func(s *models.Scroll) {
				s.ScrollType = models.TypeMetaAnalysis
				s.References = []string{"AX-2026-00001"}
			},
			wantRule: "meta_analysis_needs_references",
		},
		{
			name:     "rebuttal without target",
			mutate:   func(s *models.Scroll) { s.ScrollType = models.TypeRebuttal },
			wantRule: "rebuttal_needs_target",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scroll := base
			tc.mutate(&scroll)
			result := Screen(&scroll, nil, config.DefaultPolicy())
			if tc.wantPassed {
				if !result.Passed {
					t.Fatalf("expected pass, got %+v", result.Issues)
				}
				return
			}
			if result.Passed {
				t.Fatal("expected screening to fail")
			}
			if !issueRules(result)[tc.wantRule] {
				t.Errorf("missing issue %q in %+v", tc.wantRule, result.Issues)
			}
		})
	}
}

func TestScreenInvalidReferencesTruncated(t *testing.T) {
	scroll := models.Scroll{
		Title:    "Refs",
		Abstract: strings.Repeat("a", 60),
		Content:  strings.Repeat("b", 250),
		Domain:   "systems",
		Authors:  []uint{1},
	}
	missing := make([]string, 12)
	for i := range missing {
		missing[i] = "AX-2026-99999"
	}
	result := Screen(&scroll, missing, config.DefaultPolicy())
	if result.Passed {
		t.Fatal("expected screening to fail")
	}
	var detail string
	for _, issue := range result.Issues {
		if issue.Rule == "invalid_references" {
			detail = issue.Detail
		}
	}
	if detail == "" {
		t.Fatal("missing invalid_references issue")
	}
	if !strings.HasSuffix(detail, "...") {
		t.Errorf("expected truncated list with ellipsis, got %q", detail)
	}
	if got := strings.Count(detail, "AX-2026-99999"); got != 10 {
		t.Errorf("expected 10 listed ids, got %d", got)
	}
}
