package predict

import (
	"errors"
	"strings"
	"testing"
)

func TestReducePicksMaxPerScope(t *testing.T) {
	scores := []float64{0.1, 0.9, 0.3, 0.5, 0.2, 0.7}
	frags := []string{"a0", "a1", "a2", "b0", "c0", "c1"}
	got, err := Reduce(scores, frags, []int{3, 1, 2})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := []Reduced{{0.9, "a1", 1}, {0.5, "b0", 0}, {0.7, "c1", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %d reductions", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reduction %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReduceTiesGoToFirst(t *testing.T) {
	got, err := Reduce([]float64{0.4, 0.8, 0.8, 0.8}, []string{"w", "x", "y", "z"}, []int{4})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if got[0].Offset != 1 || got[0].Frag != "x" {
		t.Fatalf("tie resolved to %+v, want offset 1", got[0])
	}
}

func TestReduceScopeErrors(t *testing.T) {
	cases := map[string]struct {
		scores []float64
		frags  []string
		scopes []int
	}{
		"overrun":     {[]float64{1, 2}, []string{"a", "b"}, []int{3}},
		"short":       {[]float64{1, 2, 3}, []string{"a", "b", "c"}, []int{2}},
		"zero scope":  {[]float64{1}, []string{"a"}, []int{0, 1}},
		"frag length": {[]float64{1, 2}, []string{"a"}, []int{2}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Reduce(tc.scores, tc.frags, tc.scopes); !errors.Is(err, ErrScopes) {
				t.Fatalf("want ErrScopes, got %v", err)
			}
		})
	}
}

func TestRowsCoordinates(t *testing.T) {
	full := strings.Repeat("A", 40)
	reduced := []Reduced{
		{Score: 0.5, Frag: "MKV", Offset: 0},
		{Score: 0.6, Frag: full, Offset: 0},
		{Score: 0.7, Frag: full, Offset: 5},
	}
	rows := Rows([]string{"short", "exact", "long"}, reduced, 40)
	if rows[0].Beg != 1 || rows[0].End != -1 {
		t.Fatalf("short: beg %d end %d", rows[0].Beg, rows[0].End)
	}
	if rows[1].Beg != 1 || rows[1].End != 40 {
		t.Fatalf("exact: beg %d end %d", rows[1].Beg, rows[1].End)
	}
	if rows[2].Beg != 6 || rows[2].End != 45 {
		t.Fatalf("long: beg %d end %d", rows[2].Beg, rows[2].End)
	}
	if rows[2].ID != "long" || rows[2].Prob != 0.7 || rows[2].Frag != full {
		t.Fatalf("row fields not carried: %+v", rows[2])
	}
}
