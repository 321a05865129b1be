package vectorstore

import "testing"

func TestClampScore(t *testing.T) {
	cases := []struct {
		name string
		in   float32
		want float64
	}{
		{"opposing vectors", -1, 0},
		{"slightly negative", -0.01, 0},
		{"zero", 0, 0},
		{"midrange", 0.5, 0.5},
		{"identical vectors", 1, 1},
		{"float drift above one", 1.0000002, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampScore(tc.in); got != tc.want {
				t.Errorf("clampScore(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuildScopeExpression(t *testing.T) {
	got := buildScopeExpression([]string{"doc-a", "doc-b"})
	want := `document_id in ["doc-a", "doc-b"]`
	if got != want {
		t.Errorf("buildScopeExpression() = %s, want %s", got, want)
	}
}
