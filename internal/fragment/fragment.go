// Package fragment cuts protein sequences into fixed-width windows and
// buffers them chunk by chunk for scoring.
package fragment

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"protpred/internal/fasta"
)

// ErrScopes reports a batch whose scopes disagree with its ids or fragments.
var ErrScopes = errors.New("fragment: scopes do not cover batch")

// Split returns the fragments of seqs and, per sequence, the number of
// consecutive fragments it produced. A sequence of length n > maxLen yields
// the n-maxLen+1 windows [i, i+maxLen); shorter ones are kept whole.
func Split(seqs []string, maxLen int) (frags []string, scopes []int) {
	scopes = make([]int, 0, len(seqs))
	for _, seq := range seqs {
		n := len(seq)
		if n > maxLen {
			count := n - maxLen + 1
			for i := 0; i < count; i++ {
				frags = append(frags, seq[i:i+maxLen])
			}
			scopes = append(scopes, count)
			continue
		}
		frags = append(frags, seq)
		scopes = append(scopes, 1)
	}
	return frags, scopes
}

// Batch is the buffered content of one or more pulled chunks.
type Batch struct {
	IDs    []string
	Frags  []string
	Scopes []int
}

// Len returns the number of sequences in the batch.
func (b Batch) Len() int { return len(b.IDs) }

// Validate checks that there is one scope per id and that the scopes sum to
// the fragment count.
func (b Batch) Validate() error {
	if len(b.Scopes) != len(b.IDs) {
		return fmt.Errorf("%w: %d scopes for %d ids", ErrScopes, len(b.Scopes), len(b.IDs))
	}
	sum := 0
	for _, s := range b.Scopes {
		sum += s
	}
	if sum != len(b.Frags) {
		return fmt.Errorf("%w: scopes sum to %d, have %d fragments", ErrScopes, sum, len(b.Frags))
	}
	return nil
}

// Set accumulates fragmented chunks read from one FASTA file.
type Set struct {
	name   string
	maxLen int
	reader *fasta.ChunkReader
	buf    Batch
}

// NewSet binds a chunk reader to a set named after path.
func NewSet(path string, reader *fasta.ChunkReader, maxLen int) *Set {
	return &Set{name: SetName(path), maxLen: maxLen, reader: reader}
}

// Open opens path and returns a Set pulling chunkSize records at a time.
// The caller must Close it.
func Open(path string, maxLen, chunkSize int) (*Set, error) {
	r, err := fasta.Open(path, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSet(path, r, maxLen), nil
}

// SetName is the file's base name up to its first dot.
func SetName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// Name returns the set name used for output files.
func (s *Set) Name() string { return s.name }

// Pull reads the next chunk and appends its ids, fragments and scopes to the
// buffer. It returns false, leaving the buffer untouched, once the file is
// exhausted.
func (s *Set) Pull() (bool, error) {
	ch, err := s.reader.Next()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.name, err)
	}
	frags, scopes := Split(ch.Seqs, s.maxLen)
	s.buf.IDs = append(s.buf.IDs, ch.IDs...)
	s.buf.Frags = append(s.buf.Frags, frags...)
	s.buf.Scopes = append(s.buf.Scopes, scopes...)
	return true, nil
}

// PullAll pulls until the file is exhausted.
func (s *Set) PullAll() error {
	for {
		ok, err := s.Pull()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Buffered returns a view of the current buffer without consuming it.
func (s *Set) Buffered() Batch { return s.buf }

// Take hands the buffered batch to the caller and leaves the set empty.
func (s *Set) Take() Batch {
	b := s.buf
	s.buf = Batch{}
	return b
}

// Reset drops the buffered batch.
func (s *Set) Reset() { s.buf = Batch{} }

// Close closes the underlying reader.
func (s *Set) Close() error { return s.reader.Close() }
