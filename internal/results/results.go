// Package results writes and reads the per-model prediction tables.
package results

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"
)

// Header is the fixed column order of every output file.
var Header = []string{"id", "prob", "beg", "end", "frag"}

// ErrUnknownModel is returned by Append for a name not opened by Create.
var ErrUnknownModel = errors.New("results: unknown model")

// Row is one sequence-level prediction. Beg is 1-based; End is -1 when the
// selected fragment is shorter than the canonical window.
type Row struct {
	ID   string
	Prob float64
	Beg  int
	End  int
	Frag string
}

func (r Row) record() []string {
	return []string{
		r.ID,
		strconv.FormatFloat(r.Prob, 'f', 3, 64),
		strconv.Itoa(r.Beg),
		strconv.Itoa(r.End),
		r.Frag,
	}
}

// FileName is the output file name for one set and model.
func FileName(setName, modelName string) string {
	return fmt.Sprintf("%s.%s.csv", setName, filepath.Base(modelName))
}

type file struct {
	path string
	f    *os.File
	buf  *bufio.Writer
	w    *csv.Writer
}

// FileSet owns the output files of one input file, one per model.
type FileSet struct {
	files map[string]*file
	order []string
}

// Create truncates or creates <dir>/<set>.<model>.csv for every model and
// writes the header. On error every file already opened is closed.
func Create(dir, setName string, modelNames []string, sep rune) (*FileSet, error) {
	if !validSep(sep) {
		return nil, fmt.Errorf("results: invalid separator %q", sep)
	}
	fs := &FileSet{files: make(map[string]*file, len(modelNames))}
	for _, name := range modelNames {
		if _, dup := fs.files[name]; dup {
			_ = fs.Close()
			return nil, fmt.Errorf("results: duplicate model name %q", name)
		}
		path := filepath.Join(dir, FileName(setName, name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			_ = fs.Close()
			return nil, err
		}
		f, err := os.Create(path)
		if err != nil {
			_ = fs.Close()
			return nil, err
		}
		buf := bufio.NewWriter(f)
		w := csv.NewWriter(buf)
		w.Comma = sep
		fs.files[name] = &file{path: path, f: f, buf: buf, w: w}
		fs.order = append(fs.order, name)
		if err := w.Write(Header); err != nil {
			_ = fs.Close()
			return nil, err
		}
	}
	return fs, nil
}

// Paths returns the output paths in creation order.
func (fs *FileSet) Paths() []string {
	out := make([]string, 0, len(fs.order))
	for _, n := range fs.order {
		out = append(out, fs.files[n].path)
	}
	return out
}

// Append writes rows to the model's file and flushes them to the OS, so a
// killed process leaves every completed chunk on disk.
func (fs *FileSet) Append(modelName string, rows []Row) error {
	fl, ok := fs.files[modelName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, modelName)
	}
	for _, r := range rows {
		if err := fl.w.Write(r.record()); err != nil {
			return fmt.Errorf("write %s: %w", fl.path, err)
		}
	}
	fl.w.Flush()
	if err := fl.w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", fl.path, err)
	}
	if err := fl.buf.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", fl.path, err)
	}
	return nil
}

// Close flushes and closes every file. It is safe to call more than once
// and returns the first error.
func (fs *FileSet) Close() error {
	var first error
	for _, name := range fs.order {
		fl := fs.files[name]
		if fl.f == nil {
			continue
		}
		fl.w.Flush()
		if err := fl.w.Error(); err != nil && first == nil {
			first = err
		}
		if err := fl.buf.Flush(); err != nil && first == nil {
			first = err
		}
		if err := fl.f.Close(); err != nil && first == nil {
			first = err
		}
		fl.f = nil
	}
	return first
}

// Read parses a prediction table written with separator sep.
func Read(r io.Reader, sep rune) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = len(Header)
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("results: header: %w", err)
	}
	for i, h := range Header {
		if head[i] != h {
			return nil, fmt.Errorf("results: unexpected header column %d %q", i, head[i])
		}
	}
	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("results: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

// ReadFile reads a prediction table from path.
func ReadFile(path string, sep rune) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f), sep)
}

func parseRow(rec []string) (Row, error) {
	prob, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return Row{}, err
	}
	beg, err := strconv.Atoi(rec[2])
	if err != nil {
		return Row{}, err
	}
	end, err := strconv.Atoi(rec[3])
	if err != nil {
		return Row{}, err
	}
	return Row{ID: rec[0], Prob: prob, Beg: beg, End: end, Frag: rec[4]}, nil
}

func validSep(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
