// Package embedding loads pretrained word vectors (GloVe text format) into an
// in-memory table that implements grouping.EmbeddingProvider.
package embedding

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Table is a read-only word -> vector map. It is safe for concurrent readers
// once loading has finished.
type Table struct {
	dim     int
	vectors map[string][]float64

	identityOnce sync.Once
	identity     string
}

// NewTable creates an empty table of the given dimensionality.
func NewTable(dim int) *Table {
	return &Table{dim: dim, vectors: make(map[string][]float64)}
}

// Add stores a vector. Words are case-sensitive; GloVe vocabularies are lowercase.
func (t *Table) Add(word string, vec []float64) error {
	if len(vec) != t.dim {
		return fmt.Errorf("embedding: %q has %d dimensions, want %d", word, len(vec), t.dim)
	}
	t.vectors[word] = vec
	return nil
}

// Lookup returns the vector for token.
func (t *Table) Lookup(token string) ([]float64, bool) {
	v, ok := t.vectors[token]
	return v, ok
}

// Dimensions returns the vector width.
func (t *Table) Dimensions() int {
	return t.dim
}

// Len returns the number of words.
func (t *Table) Len() int {
	return len(t.vectors)
}

// Identity returns a BLAKE2b-256 digest of the table's words and vectors,
// computed on first use. Call it only after loading has finished.
func (t *Table) Identity() string {
	t.identityOnce.Do(func() {
		h, _ := blake2b.New256(nil)
		var buf [8]byte
		writeUint := func(v uint64) {
			binary.BigEndian.PutUint64(buf[:], v)
			h.Write(buf[:])
		}

		words := make([]string, 0, len(t.vectors))
		for w := range t.vectors {
			words = append(words, w)
		}
		slices.Sort(words)

		writeUint(uint64(t.dim))
		for _, w := range words {
			writeUint(uint64(len(w)))
			h.Write([]byte(w))
			for _, v := range t.vectors[w] {
				writeUint(math.Float64bits(v))
			}
		}
		t.identity = "glove:" + hex.EncodeToString(h.Sum(nil))
	})
	return t.identity
}

// Options controls loading.
type Options struct {
	// Dimensions the file is expected to have. Zero takes it from the first line.
	Dimensions int

	// MaxWords stops after this many words. Zero reads everything.
	MaxWords int
}

// Load reads a GloVe file from disk. Files ending in .gz are decompressed.
func Load(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("embedding: gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return Read(r, opts)
}

// Read parses "word v1 v2 ... vN" lines. Blank lines are skipped; a line with
// the wrong number of values or a non-numeric value is an error.
func Read(r io.Reader, opts Options) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var table *Table
	if opts.Dimensions > 0 {
		table = NewTable(opts.Dimensions)
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("embedding: line %d: no vector values", lineNo)
		}

		if table == nil {
			table = NewTable(len(fields) - 1)
		}
		if len(fields)-1 != table.dim {
			return nil, fmt.Errorf("embedding: line %d: %d values, want %d", lineNo, len(fields)-1, table.dim)
		}

		vec := make([]float64, table.dim)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("embedding: line %d: value %d: %w", lineNo, i+1, err)
			}
			vec[i] = v
		}
		table.vectors[fields[0]] = vec

		if opts.MaxWords > 0 && table.Len() >= opts.MaxWords {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("embedding: read: %w", err)
	}

	if table == nil {
		return nil, fmt.Errorf("embedding: no vectors found")
	}
	return table, nil
}
