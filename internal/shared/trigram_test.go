package shared

import "testing"

func TestTrigramSimilarity(t *testing.T) {
	t.Run("IdenticalStrings", func(t *testing.T) {
		if got := TrigramSimilarity("daft punk", "daft punk"); got != 1 {
			t.Errorf("expected 1.0 for identical strings, got %v", got)
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		if got := TrigramSimilarity("Daft Punk", "daft punk"); got != 1 {
			t.Errorf("expected 1.0 for case-folded match, got %v", got)
		}
	})

	t.Run("Disjoint", func(t *testing.T) {
		if got := TrigramSimilarity("abc", "xyz"); got != 0 {
			t.Errorf("expected 0 for disjoint strings, got %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := TrigramSimilarity("", "anything"); got != 0 {
			t.Errorf("expected 0 when one side is empty, got %v", got)
		}
		if got := TrigramSimilarity("", ""); got != 0 {
			t.Errorf("expected 0 for two empty strings, got %v", got)
		}
	})

	t.Run("Bounds", func(t *testing.T) {
		pairs := [][2]string{
			{"radiohead", "radio head"},
			{"the beatles", "beatles"},
			{"a", "ab"},
			{"nirvana", "nirvana unplugged"},
		}
		for _, p := range pairs {
			got := TrigramSimilarity(p[0], p[1])
			if got < 0 || got > 1 {
				t.Errorf("similarity(%q, %q) = %v outside [0, 1]", p[0], p[1], got)
			}
		}
	})

	t.Run("PrefixScoresAboveUnrelated", func(t *testing.T) {
		near := TrigramSimilarity("queen", "quee")
		far := TrigramSimilarity("queen", "slipknot")
		if near <= far {
			t.Errorf("expected prefix %v to outscore unrelated %v", near, far)
		}
	})
}
