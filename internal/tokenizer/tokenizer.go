// Package tokenizer encodes amino-acid fragments into the fixed-width token
// rows the classification models consume.
package tokenizer

// AminoAcids lists the residues with their own token, in token order.
const AminoAcids = "ACDEFGHIKLMNPQRSTUVWXY"

// Special tokens follow the amino acids.
const (
	Other int32 = int32(len(AminoAcids)) + iota
	Start
	End
	Pad
)

// VocabSize is the number of distinct tokens.
const VocabSize = int(Pad) + 1

// AddedTokens is the number of framing tokens added to every fragment.
const AddedTokens = 2

var index [256]int32

func init() {
	for i := range index {
		index[i] = Other
	}
	for i := 0; i < len(AminoAcids); i++ {
		c := AminoAcids[i]
		index[c] = int32(i)
		index[c+'a'-'A'] = int32(i)
	}
}

// Tokenizer pads or truncates every fragment to Width tokens.
type Tokenizer struct {
	Width int
}

// New returns a tokenizer for fragments of at most maxLen residues.
func New(maxLen int) Tokenizer {
	return Tokenizer{Width: maxLen + AddedTokens}
}

// EncodeOne frames frag with <START>/<END> and pads it with <PAD>.
// Residues that do not fit are dropped.
func (t Tokenizer) EncodeOne(frag string) []int32 {
	row := make([]int32, t.Width)
	if t.Width == 0 {
		return row
	}
	row[0] = Start
	n := len(frag)
	if room := t.Width - AddedTokens; n > room {
		n = room
	}
	if n < 0 {
		n = 0
	}
	for i := 0; i < n; i++ {
		row[i+1] = index[frag[i]]
	}
	p := n + 1
	if p < t.Width {
		row[p] = End
		p++
	}
	for ; p < t.Width; p++ {
		row[p] = Pad
	}
	return row
}

// Encode tokenizes a batch of fragments.
func (t Tokenizer) Encode(frags []string) [][]int32 {
	out := make([][]int32, len(frags))
	for i, f := range frags {
		out[i] = t.EncodeOne(f)
	}
	return out
}
