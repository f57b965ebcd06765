package predict

import (
	"fmt"

	"protpred/internal/fragment"
	"protpred/internal/results"
)

// ErrScopes reports scopes that do not partition the score vector.
var ErrScopes = fragment.ErrScopes

// Reduced is the best-scoring fragment of one sequence.
type Reduced struct {
	Score  float64
	Frag   string
	Offset int // index of Frag within its sequence, 0-based
}

// Reduce collapses fragment scores to one entry per scope group by taking
// the maximum. Ties go to the earliest fragment.
func Reduce(scores []float64, frags []string, scopes []int) ([]Reduced, error) {
	if len(scores) != len(frags) {
		return nil, fmt.Errorf("%w: %d scores for %d fragments", ErrScopes, len(scores), len(frags))
	}
	out := make([]Reduced, 0, len(scopes))
	p := 0
	for i, s := range scopes {
		if s < 1 || p+s > len(scores) {
			return nil, fmt.Errorf("%w: scope %d (%d) overruns %d scores at offset %d", ErrScopes, i, s, len(scores), p)
		}
		group := scores[p : p+s]
		best := 0
		for j := 1; j < len(group); j++ {
			if group[j] > group[best] {
				best = j
			}
		}
		out = append(out, Reduced{Score: group[best], Frag: frags[p+best], Offset: best})
		p += s
	}
	if p != len(scores) {
		return nil, fmt.Errorf("%w: scopes cover %d of %d scores", ErrScopes, p, len(scores))
	}
	return out, nil
}

// Rows turns reductions into output rows. Beg is 1-based. End is the last
// residue of a full window of length window, or -1 when the selected
// fragment is shorter than that.
func Rows(ids []string, reduced []Reduced, window int) []results.Row {
	rows := make([]results.Row, len(reduced))
	for i, r := range reduced {
		end := -1
		if len(r.Frag) >= window {
			end = r.Offset + window
		}
		rows[i] = results.Row{
			ID:   ids[i],
			Prob: r.Score,
			Beg:  r.Offset + 1,
			End:  end,
			Frag: r.Frag,
		}
	}
	return rows
}
