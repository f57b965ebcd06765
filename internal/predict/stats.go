package predict

import "time"

// FileStats summarises one processed input file.
type FileStats struct {
	Path      string
	Chunks    int
	Sequences int
	Fragments int
	Elapsed   time.Duration
}

// PerSequence is the mean time per sequence, zero for an empty file.
func (s FileStats) PerSequence() time.Duration {
	if s.Sequences == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Sequences)
}

// PerFragment is the mean time per fragment, zero for an empty file.
func (s FileStats) PerFragment() time.Duration {
	if s.Fragments == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Fragments)
}

// ChunkStats is reported after each chunk; Total is the running file total.
type ChunkStats struct {
	File      string
	Chunk     int
	Sequences int
	Fragments int
	Total     FileStats
}

// Summary adds up the stats of several files.
func Summary(files []FileStats) FileStats {
	var t FileStats
	for _, f := range files {
		t.Chunks += f.Chunks
		t.Sequences += f.Sequences
		t.Fragments += f.Fragments
		t.Elapsed += f.Elapsed
	}
	return t
}
