package classify

import "testing"

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kubernetes", "kubernetes", 100},
		{"orders-api", "api orders", 100},
		{"kubernetis", "kubernetes", 90},
		{"abc", "xyz", 0},
		{"", "", 100},
	}
	for _, tt := range tests {
		if got := TokenSortRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("TokenSortRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBestMatch(t *testing.T) {
	keys := []string{"aws-lambda", "kubernetes", "postgresql"}

	key, score, ok := BestMatch("kubernetis", keys, DefaultFuzzyThreshold)
	if !ok || key != "kubernetes" || score != 90 {
		t.Errorf("BestMatch = (%q, %d, %v), want (kubernetes, 90, true)", key, score, ok)
	}

	if _, _, ok := BestMatch("kubernetis", keys, 95); ok {
		t.Error("BestMatch above threshold should miss")
	}
	if _, _, ok := BestMatch("", keys, 0); ok {
		t.Error("empty query should miss")
	}

	// Equal scores: the earlier key wins.
	if key, _, _ := BestMatch("ab", []string{"ax", "ay"}, 0); key != "ax" {
		t.Errorf("tie = %q, want ax", key)
	}
}
