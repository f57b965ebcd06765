// Package predict scores FASTA files chunk by chunk with a model ensemble and
// writes one table of sequence-level predictions per model.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"protpred/internal/fragment"
	"protpred/internal/model"
	"protpred/internal/results"
	"protpred/internal/tokenizer"
)

// ErrNoModels is returned when a file is processed without any model.
var ErrNoModels = errors.New("predict: no models loaded")

// Options configures a Pipeline.
type Options struct {
	OutputDir string
	ChunkSize int
	SeqCutoff int
	Separator rune
}

// Pipeline runs the ensemble over input files, one file and one chunk at a
// time.
type Pipeline struct {
	ens    *model.Ensemble
	tok    tokenizer.Tokenizer
	opts   Options
	logger *log.Logger

	// OnChunk, when set, is called after every written chunk.
	OnChunk func(ChunkStats)
}

// New returns a pipeline. A nil logger discards log output.
func New(ens *model.Ensemble, opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{ens: ens, tok: tokenizer.New(opts.SeqCutoff), opts: opts, logger: logger}
}

// InputFiles resolves the files to process. In multi mode fastaPath is a
// directory and every entry matching pattern is returned in lexical order.
func InputFiles(fastaPath string, multi bool, pattern string) ([]string, error) {
	if !multi {
		return []string{fastaPath}, nil
	}
	fi, err := os.Stat(fastaPath)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", fastaPath)
	}
	paths, err := filepath.Glob(filepath.Join(fastaPath, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes paths in order and stops at the first error.
func (p *Pipeline) Run(ctx context.Context, paths []string) ([]FileStats, error) {
	var all []FileStats
	for _, path := range paths {
		st, err := p.ProcessFile(ctx, path)
		if err != nil {
			return all, err
		}
		all = append(all, st)
	}
	return all, nil
}

// ProcessFile scores every sequence of one FASTA file. Output files are
// closed on every return path.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (st FileStats, err error) {
	if p.ens.Len() == 0 {
		return st, ErrNoModels
	}
	set, err := fragment.Open(path, p.opts.SeqCutoff, p.opts.ChunkSize)
	if err != nil {
		return st, err
	}
	defer set.Close()

	out, err := results.Create(p.opts.OutputDir, set.Name(), p.ens.Names(), p.opts.Separator)
	if err != nil {
		return st, fmt.Errorf("create outputs for %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close outputs for %s: %w", path, cerr)
		}
	}()

	p.logger.Info("processing file", "path", path, "chunk_size", p.opts.ChunkSize, "outputs", len(out.Paths()))
	st.Path = path
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		ok, err := set.Pull()
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		batch := set.Take()
		if err := p.processChunk(ctx, out, batch); err != nil {
			return st, fmt.Errorf("%s chunk %d: %w", path, st.Chunks+1, err)
		}

		st.Chunks++
		st.Sequences += batch.Len()
		st.Fragments += len(batch.Frags)
		st.Elapsed = time.Since(start)
		cs := ChunkStats{File: path, Chunk: st.Chunks, Sequences: batch.Len(), Fragments: len(batch.Frags), Total: st}
		p.logger.Info("chunk processed",
			"chunk", st.Chunks,
			"elapsed_min", fmt.Sprintf("%.2f", st.Elapsed.Minutes()),
			"sequences_total", st.Sequences)
		if p.OnChunk != nil {
			p.OnChunk(cs)
		}
	}
	st.Elapsed = time.Since(start)

	p.logger.Info("finished file",
		"path", path,
		"total_min", fmt.Sprintf("%.2f", st.Elapsed.Minutes()),
		"chunks", st.Chunks,
		"sequences", st.Sequences,
		"fragments", st.Fragments,
		"sec_per_sequence", fmt.Sprintf("%.3f", st.PerSequence().Seconds()),
		"ms_per_fragment", fmt.Sprintf("%.3f", float64(st.PerFragment().Microseconds())/1000))
	return st, nil
}

func (p *Pipeline) processChunk(ctx context.Context, out *results.FileSet, b fragment.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	tokens := p.tok.Encode(b.Frags)
	pred, err := p.ens.Run(ctx, tokens)
	if err != nil {
		return err
	}
	for _, o := range pred.Outputs() {
		reduced, err := Reduce(o.Scores, b.Frags, b.Scopes)
		if err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
		if err := out.Append(o.Name, Rows(b.IDs, reduced, p.opts.SeqCutoff)); err != nil {
			return err
		}
	}
	return nil
}
