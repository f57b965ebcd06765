// Package model loads fragment classifiers and runs them as an ensemble.
package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the manifest name inside a directory artifact.
const ManifestFile = "model.toml"

var (
	// ErrArtifact is returned for a model artifact that cannot be loaded.
	ErrArtifact = errors.New("model: bad artifact")
	// ErrShape is returned when a model returns the wrong number of scores.
	ErrShape = errors.New("model: prediction shape mismatch")
)

// Input is one batch of tokenized fragments. Annotations is the side input
// every model takes alongside the tokens; it is all zeros here.
type Input struct {
	Tokens      [][]int32
	Annotations [][]int8
}

// Len returns the number of fragments in the batch.
func (in Input) Len() int { return len(in.Tokens) }

// Model scores a batch of fragments, one probability per fragment.
type Model interface {
	Name() string
	Predict(ctx context.Context, in Input) ([]float64, error)
}

// Manifest describes one model artifact.
type Manifest struct {
	Kind   string         `toml:"kind"`
	Linear *LinearConfig  `toml:"linear"`
	Remote *RemoteConfig  `toml:"remote"`
	Meta   map[string]any `toml:"meta"`
}

// ReadManifest decodes a TOML manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifact, path, err)
	}
	return &m, nil
}

// Build instantiates the model a manifest describes.
func (m *Manifest) Build(name string) (Model, error) {
	switch strings.ToLower(m.Kind) {
	case "linear":
		if m.Linear == nil {
			return nil, fmt.Errorf("%w: %s: missing [linear] table", ErrArtifact, name)
		}
		return NewLinear(name, *m.Linear)
	case "remote":
		if m.Remote == nil {
			return nil, fmt.Errorf("%w: %s: missing [remote] table", ErrArtifact, name)
		}
		return NewRemote(name, *m.Remote)
	default:
		return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrArtifact, name, m.Kind)
	}
}

// Discover lists the artifacts of dir in lexical order. An artifact is a
// .toml manifest or a directory holding model.toml.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// NameOf derives a model's name from its artifact path.
func NameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".toml")
}

// LoadArtifact loads the model stored at path.
func LoadArtifact(path string) (Model, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	manifest := path
	if fi.IsDir() {
		manifest = filepath.Join(path, ManifestFile)
	} else if filepath.Ext(path) != ".toml" {
		return nil, fmt.Errorf("%w: %s: not a .toml manifest or model directory", ErrArtifact, path)
	}
	m, err := ReadManifest(manifest)
	if err != nil {
		return nil, err
	}
	return m.Build(NameOf(path))
}

// LoadDir loads every artifact in dir. Any failure aborts the whole load.
func LoadDir(dir string, logger *log.Logger) ([]Model, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(paths))
	for _, p := range paths {
		m, err := LoadArtifact(p)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Debug("loaded model", "name", m.Name(), "path", p)
		}
		models = append(models, m)
	}
	return models, nil
}
