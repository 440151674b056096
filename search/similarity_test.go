package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func TestDecodeString(t *testing.T) {
	hit := meili.Hit{
		"scroll_id": json.RawMessage(`"AX-2026-00001"`),
		"title":     json.RawMessage(`"Some Title"`),
		"broken":    json.RawMessage(`42`),
	}
	if got := decodeString(hit, "scroll_id"); got != "AX-2026-00001" {
		t.Errorf("decodeString = %q", got)
	}
	if got := decodeString(hit, "missing"); got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}
	if got := decodeString(hit, "broken"); got != "" {
		t.Errorf("non-string value = %q, want empty", got)
	}
}

func TestDecodeRankingScore(t *testing.T) {
	hit := meili.Hit{"_rankingScore": json.RawMessage(`0.87`)}
	if got := decodeRankingScore(hit); got != 0.87 {
		t.Errorf("score = %v, want 0.87", got)
	}
	if got := decodeRankingScore(meili.Hit{}); got != 0 {
		t.Errorf("missing score = %v, want 0", got)
	}
}
