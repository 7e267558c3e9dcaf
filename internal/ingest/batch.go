package ingest

import "github.com/gregoire78/gtfs-arango-import/internal/gtfs"

// Batch is one release of buffered work: a prefix of mapped documents
// together with the relationship rows derived from those same documents.
type Batch struct {
	Docs  []any
	Edges []gtfs.Edge
}

// Empty reports whether the batch carries no work at all.
func (b Batch) Empty() bool { return len(b.Docs) == 0 && len(b.Edges) == 0 }

// Accumulator buffers mapped documents and edges for one feed table and
// releases them in fixed-size FIFO batches, bounding peak memory for feeds
// with millions of stop_time rows. It is not safe for concurrent use; each
// file's rows are handled sequentially by a single goroutine.
type Accumulator struct {
	threshold   int
	edgesPerRow int
	docs        []any
	edges       []gtfs.Edge
}

// NewAccumulator creates an accumulator that releases batches of threshold
// documents. edgesPerRow is the table's per-row edge bound; a flushed batch
// carries up to threshold*edgesPerRow edges.
func NewAccumulator(threshold, edgesPerRow int) *Accumulator {
	if edgesPerRow < 1 {
		edgesPerRow = 1
	}
	return &Accumulator{threshold: threshold, edgesPerRow: edgesPerRow}
}

// Add buffers one mapped row.
func (a *Accumulator) Add(m gtfs.Mapped) {
	a.docs = append(a.docs, m.Docs...)
	a.edges = append(a.edges, m.Edges...)
}

// Len returns the number of buffered documents.
func (a *Accumulator) Len() int { return len(a.docs) }

// Flush removes and returns the first threshold documents, paired with the
// corresponding edge prefix, once the buffer reaches the threshold. Below
// the threshold it returns nothing; the caller performs a final Drain at
// end of file.
func (a *Accumulator) Flush() (Batch, bool) {
	if len(a.docs) < a.threshold {
		return Batch{}, false
	}
	return a.take(a.threshold), true
}

// Drain removes and returns whatever remains in the buffer, if anything.
func (a *Accumulator) Drain() (Batch, bool) {
	if len(a.docs) == 0 && len(a.edges) == 0 {
		return Batch{}, false
	}
	return a.take(len(a.docs)), true
}

func (a *Accumulator) take(n int) Batch {
	ne := n * a.edgesPerRow
	if ne > len(a.edges) || n == len(a.docs) {
		ne = len(a.edges)
	}
	b := Batch{
		Docs:  append([]any(nil), a.docs[:n]...),
		Edges: append([]gtfs.Edge(nil), a.edges[:ne]...),
	}
	a.docs = a.docs[n:]
	a.edges = a.edges[ne:]
	return b
}
