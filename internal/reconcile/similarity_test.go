package reconcile_test

import (
	"testing"

	"novadream/internal/reconcile"
)

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Call  the Client!", "call the client"},
		{"  Launch MVP (v1.0)  ", "launch mvp v10"},
		{"UPPER-case, mixed", "uppercase mixed"},
		{"already plain", "already plain"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := reconcile.NormalizeTitle(c.in); got != c.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSimilarityIgnoresCosmeticDifferences(t *testing.T) {
	if got := reconcile.Similarity("Call  the Client!", "call the client"); got != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", got)
	}
}

func TestSimilarityBothEmpty(t *testing.T) {
	if got := reconcile.Similarity("", "!!!"); got != 1.0 {
		t.Fatalf("both normalize to empty, similarity = %v, want 1.0", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	got := reconcile.Similarity("abc", "xyz")
	if got != 0 {
		t.Fatalf("similarity = %v, want 0", got)
	}
}

func TestSimilarityScore(t *testing.T) {
	// "launch the mvp" vs "launch the map": 1 substitution over 14 runes.
	got := reconcile.Similarity("launch the mvp", "launch the map")
	want := 13.0 / 14.0
	if got != want {
		t.Fatalf("similarity = %v, want %v", got, want)
	}
}

func TestSimilarityIsSymmetric(t *testing.T) {
	a, b := "write the launch announcement", "write launch announcement"
	if reconcile.Similarity(a, b) != reconcile.Similarity(b, a) {
		t.Fatal("similarity should be symmetric")
	}
}
