package model

import (
	"context"
	"fmt"
	"math"

	"protpred/internal/tokenizer"
)

// LinearConfig is the [linear] table of a manifest: one weight per token
// plus a bias, averaged over the residues of a fragment.
type LinearConfig struct {
	Bias    float64   `toml:"bias"`
	Weights []float64 `toml:"weights"`
}

// Linear is an offline logistic scorer over residue composition.
type Linear struct {
	name string
	cfg  LinearConfig
}

// NewLinear validates cfg and returns the model.
func NewLinear(name string, cfg LinearConfig) (*Linear, error) {
	if len(cfg.Weights) != tokenizer.VocabSize {
		return nil, fmt.Errorf("%w: %s: %d weights, want %d", ErrArtifact, name, len(cfg.Weights), tokenizer.VocabSize)
	}
	return &Linear{name: name, cfg: cfg}, nil
}

func (l *Linear) Name() string { return l.name }

// Predict returns sigmoid(bias + mean weight of the residue tokens).
func (l *Linear) Predict(ctx context.Context, in Input) ([]float64, error) {
	out := make([]float64, in.Len())
	for i, row := range in.Tokens {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var sum float64
		n := 0
		for _, tok := range row {
			if tok == tokenizer.Start || tok == tokenizer.End || tok == tokenizer.Pad {
				continue
			}
			if tok < 0 || int(tok) >= len(l.cfg.Weights) {
				return nil, fmt.Errorf("%w: %s: token %d out of vocabulary", ErrShape, l.name, tok)
			}
			sum += l.cfg.Weights[tok]
			n++
		}
		z := l.cfg.Bias
		if n > 0 {
			z += sum / float64(n)
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}
