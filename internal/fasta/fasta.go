package fasta

// Package fasta reads FASTA files in bounded batches of records so memory
// stays proportional to the chunk size rather than the file size.

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// ErrFormat is returned when the input is not FASTA.
var ErrFormat = errors.New("fasta: malformed input")

// Chunk is one batch of records in file order. IDs and Seqs are parallel.
type Chunk struct {
	IDs  []string
	Seqs []string
}

// Len returns the number of records in the chunk.
func (c Chunk) Len() int { return len(c.IDs) }

// ChunkReader pulls records from a FASTA stream chunkSize at a time.
// It is single pass: once Next has returned io.EOF it keeps returning it.
type ChunkReader struct {
	sc        *seqio.Scanner
	closer    io.Closer
	chunkSize int
	done      bool
}

// NewChunkReader wraps r. chunkSize must be at least 1.
func NewChunkReader(r io.Reader, chunkSize int) (*ChunkReader, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("fasta: chunk size must be >= 1, got %d", chunkSize)
	}
	tmpl := linear.NewSeq("", nil, alphabet.Protein)
	return &ChunkReader{
		sc:        seqio.NewScanner(fasta.NewReader(r, tmpl)),
		chunkSize: chunkSize,
	}, nil
}

// Open opens path for chunked reading. Gzip input is detected by magic
// number or a .gz suffix.
func Open(path string, chunkSize int) (*ChunkReader, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	cr, err := NewChunkReader(rc, chunkSize)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	cr.closer = rc
	return cr, nil
}

// Next returns the next batch of at most chunkSize records. The final batch
// may be smaller. After the last record Next returns io.EOF.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	var ch Chunk
	for ch.Len() < c.chunkSize {
		if !c.sc.Next() {
			c.done = true
			if err := c.sc.Error(); err != nil && err != io.EOF {
				return Chunk{}, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			break
		}
		s, ok := c.sc.Seq().(*linear.Seq)
		if !ok {
			c.done = true
			return Chunk{}, fmt.Errorf("%w: unexpected sequence type %T", ErrFormat, c.sc.Seq())
		}
		ch.IDs = append(ch.IDs, s.Name())
		ch.Seqs = append(ch.Seqs, letters(s.Seq))
	}
	if ch.Len() == 0 {
		return Chunk{}, io.EOF
	}
	return ch, nil
}

// Close releases the underlying file when the reader was created by Open.
func (c *ChunkReader) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

func letters(ls alphabet.Letters) string {
	var b strings.Builder
	b.Grow(len(ls))
	for _, l := range ls {
		b.WriteByte(byte(l))
	}
	return b.String()
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func openReader(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}
