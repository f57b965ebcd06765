package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"protpred/internal/tokenizer"
)

// fixed returns canned scores regardless of input.
type fixed struct {
	name   string
	scores []float64
	calls  int
	seen   Input
}

func (f *fixed) Name() string { return f.name }

func (f *fixed) Predict(_ context.Context, in Input) ([]float64, error) {
	f.calls++
	f.seen = in
	return f.scores, nil
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEnsembleMeanOfTwoModels(t *testing.T) {
	a := &fixed{name: "cv1", scores: []float64{0.2, 0.8}}
	b := &fixed{name: "cv2", scores: []float64{0.4, 0.6}}
	e := NewEnsemble([]Model{a, b}, "ProteinBERT", 8)

	pred, err := e.Run(context.Background(), make([][]int32, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pred.Combined == nil {
		t.Fatalf("expected a combined prediction")
	}
	got := pred.Combined.Scores
	if !approx(got[0], 0.3) || !approx(got[1], 0.7) {
		t.Fatalf("combined = %v, want [0.3 0.7]", got)
	}
	if pred.Combined.Name != "ProteinBERTcomb12" {
		t.Fatalf("combined name = %q", pred.Combined.Name)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("each model must be called once, got %d and %d", a.calls, b.calls)
	}
	outs := pred.Outputs()
	if len(outs) != 3 || outs[0].Name != "cv1" || outs[1].Name != "cv2" || outs[2].Name != "ProteinBERTcomb12" {
		t.Fatalf("unexpected outputs order: %+v", outs)
	}
}

func TestEnsembleSingleModelHasNoCombined(t *testing.T) {
	e := NewEnsemble([]Model{&fixed{name: "only", scores: []float64{0.5}}}, "P", 4)
	pred, err := e.Run(context.Background(), make([][]int32, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pred.Combined != nil {
		t.Fatalf("single model must not produce a combined output")
	}
	if names := e.Names(); len(names) != 1 || names[0] != "only" {
		t.Fatalf("Names = %v", names)
	}
}

func TestEnsemblePassesZeroAnnotations(t *testing.T) {
	m := &fixed{name: "m", scores: []float64{0.1, 0.2, 0.3}}
	e := NewEnsemble([]Model{m}, "P", 8943)
	if _, err := e.Run(context.Background(), make([][]int32, 3)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.seen.Annotations) != 3 {
		t.Fatalf("got %d annotation rows", len(m.seen.Annotations))
	}
	for _, row := range m.seen.Annotations {
		if len(row) != 8943 {
			t.Fatalf("annotation width %d", len(row))
		}
		for _, v := range row {
			if v != 0 {
				t.Fatalf("annotation row is not all zeros")
			}
		}
	}
}

func TestEnsembleShapeMismatch(t *testing.T) {
	e := NewEnsemble([]Model{&fixed{name: "bad", scores: []float64{0.1}}}, "P", 1)
	_, err := e.Run(context.Background(), make([][]int32, 2))
	if !errors.Is(err, ErrShape) {
		t.Fatalf("want ErrShape, got %v", err)
	}
}

func TestCombinedName(t *testing.T) {
	ms := []Model{&fixed{name: "a"}, &fixed{name: "b"}, &fixed{name: "c"}}
	if got := NewEnsemble(ms, "ProteinBERT", 0).CombinedName(); got != "ProteinBERTcomb123" {
		t.Fatalf("CombinedName = %q", got)
	}
}

func linearWeights(v float64) []float64 {
	w := make([]float64, tokenizer.VocabSize)
	for i := range w {
		w[i] = v
	}
	return w
}

func TestLinearPredict(t *testing.T) {
	w := linearWeights(0)
	w[0] = 2 // A
	m, err := NewLinear("lin", LinearConfig{Bias: -1, Weights: w})
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	tok := tokenizer.New(4)
	scores, err := m.Predict(context.Background(), Input{Tokens: tok.Encode([]string{"AAAA", "CCCC", ""})})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	sig := func(z float64) float64 { return 1 / (1 + math.Exp(-z)) }
	want := []float64{sig(1), sig(-1), sig(-1)}
	for i := range want {
		if !approx(scores[i], want[i]) {
			t.Fatalf("scores[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestNewLinearRejectsWrongWidth(t *testing.T) {
	if _, err := NewLinear("x", LinearConfig{Weights: []float64{1, 2}}); !errors.Is(err, ErrArtifact) {
		t.Fatalf("want ErrArtifact, got %v", err)
	}
}

func writeLinearManifest(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("kind = \"linear\"\n\n[linear]\nbias = 0.5\nweights = [")
	for i := 0; i < tokenizer.VocabSize; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("0.0")
	}
	b.WriteString("]\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeLinearManifest(t, filepath.Join(dir, "cv2.toml"))
	sub := filepath.Join(dir, "cv1")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeLinearManifest(t, filepath.Join(sub, ManifestFile))

	models, err := LoadDir(dir, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(models) != 2 || models[0].Name() != "cv1" || models[1].Name() != "cv2" {
		t.Fatalf("unexpected models: %d", len(models))
	}
	scores, err := models[0].Predict(context.Background(), Input{Tokens: tokenizer.New(3).Encode([]string{"MKV"})})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if want := 1 / (1 + math.Exp(-0.5)); !approx(scores[0], want) {
		t.Fatalf("score = %v, want %v", scores[0], want)
	}
}

func TestLoadDirRejectsUnknownArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weights.h5"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(dir, nil); !errors.Is(err, ErrArtifact) {
		t.Fatalf("want ErrArtifact, got %v", err)
	}
}

func TestLoadArtifactUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.toml")
	if err := os.WriteFile(path, []byte("kind = \"onnx\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadArtifact(path); !errors.Is(err, ErrArtifact) {
		t.Fatalf("want ErrArtifact, got %v", err)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Fatalf("expected error for missing models dir")
	}
}
