package model

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Ensemble runs a fixed list of models over the same batch and, when there
// is more than one, averages their scores into a combined prediction.
type Ensemble struct {
	models          []Model
	prefix          string
	annotationWidth int
}

// NewEnsemble keeps models in the given order. prefix names the combined
// model; annotationWidth is the width of the zero side input.
func NewEnsemble(models []Model, prefix string, annotationWidth int) *Ensemble {
	return &Ensemble{models: models, prefix: prefix, annotationWidth: annotationWidth}
}

// Len returns the number of real models.
func (e *Ensemble) Len() int { return len(e.models) }

// Combined reports whether Run produces a combined prediction.
func (e *Ensemble) Combined() bool { return len(e.models) > 1 }

// CombinedName is prefix followed by "comb" and the model ordinals, e.g.
// ProteinBERTcomb123 for three models.
func (e *Ensemble) CombinedName() string {
	var b strings.Builder
	b.WriteString(e.prefix)
	b.WriteString("comb")
	for i := 1; i <= len(e.models); i++ {
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Names lists output names in write order: each model, then the combined
// model when there is one.
func (e *Ensemble) Names() []string {
	names := make([]string, 0, len(e.models)+1)
	for _, m := range e.models {
		names = append(names, m.Name())
	}
	if e.Combined() {
		names = append(names, e.CombinedName())
	}
	return names
}

// Output is one named score vector, aligned with the input fragments.
type Output struct {
	Name   string
	Scores []float64
}

// Prediction holds every model's fragment scores for one batch.
type Prediction struct {
	PerModel []Output
	Combined *Output
}

// Outputs returns the per-model outputs followed by the combined one.
func (p Prediction) Outputs() []Output {
	out := append([]Output(nil), p.PerModel...)
	if p.Combined != nil {
		out = append(out, *p.Combined)
	}
	return out
}

// ZeroAnnotations returns n rows of width zeros. Rows share one backing
// array and must be treated as read-only.
func ZeroAnnotations(n, width int) [][]int8 {
	zero := make([]int8, width)
	rows := make([][]int8, n)
	for i := range rows {
		rows[i] = zero
	}
	return rows
}

// Run scores tokens with every model in order.
func (e *Ensemble) Run(ctx context.Context, tokens [][]int32) (Prediction, error) {
	in := Input{Tokens: tokens, Annotations: ZeroAnnotations(len(tokens), e.annotationWidth)}
	var pred Prediction
	for _, m := range e.models {
		scores, err := m.Predict(ctx, in)
		if err != nil {
			return Prediction{}, fmt.Errorf("model %s: %w", m.Name(), err)
		}
		if len(scores) != len(tokens) {
			return Prediction{}, fmt.Errorf("%w: %s returned %d scores for %d fragments", ErrShape, m.Name(), len(scores), len(tokens))
		}
		pred.PerModel = append(pred.PerModel, Output{Name: m.Name(), Scores: scores})
	}
	if e.Combined() {
		vecs := make([][]float64, len(pred.PerModel))
		for i, o := range pred.PerModel {
			vecs[i] = o.Scores
		}
		pred.Combined = &Output{Name: e.CombinedName(), Scores: Mean(vecs)}
	}
	return pred, nil
}

// Mean is the elementwise arithmetic mean of equally long vectors.
func Mean(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	n := float64(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}
