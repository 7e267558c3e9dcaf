// Package ingest drives the per-file transform-and-load pipeline: read,
// normalize, map, accumulate, flush, and sequences the post-load graph
// enrichment jobs once the files they depend on are fully closed.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gregoire78/gtfs-arango-import/internal/gtfs"
)

// GraphStore is the downstream collaborator: owns the entity and edge
// collections and runs the database-side enrichment queries.
type GraphStore interface {
	// SaveDocument persists one keyed document, ignoring duplicates.
	SaveDocument(ctx context.Context, collection string, doc any) error
	// ImportDocuments bulk-inserts documents, ignoring duplicates.
	ImportDocuments(ctx context.Context, collection string, docs []any) error
	// ImportEdges bulk-inserts relationship rows, ignoring duplicates.
	ImportEdges(ctx context.Context, collection string, edges []gtfs.Edge) error

	// SequenceStopTimes derives precedes edges between consecutive
	// stop-time rows of each trip.
	SequenceStopTimes(ctx context.Context) error
	// LinkServices derives serves edges from calendar rows to the trips
	// sharing their service id.
	LinkServices(ctx context.Context) error
	// LinkStopRoutes derives has_routes edges from each stop to every route
	// reachable through its stop times.
	LinkStopRoutes(ctx context.Context) error
}

// fileState tracks one source table file through its lifecycle.
type fileState int

const (
	stateOpen fileState = iota + 1
	stateDraining
	stateClosed
)

// Ingester loads every recognised feed table file of a directory into the
// graph store and fires the enrichment jobs as their trigger conditions are
// met. Files are processed concurrently, rows within a file sequentially.
type Ingester struct {
	store     GraphStore
	log       *zap.Logger
	batchSize int

	mu         sync.Mutex
	files      map[gtfs.Kind]fileState
	servesDone bool
	routesDone bool
}

// New creates an Ingester flushing accumulated rows to store in batches of
// batchSize documents.
func New(store GraphStore, batchSize int, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{
		store:     store,
		log:       log.Named("ingest"),
		batchSize: batchSize,
		files:     make(map[gtfs.Kind]fileState),
	}
}

// Run ingests every recognised *.txt table file found in dir. A failing
// file aborts only its own remaining rows; the other files keep going, so
// the returned error is the first per-file failure, if any.
func (in *Ingester) Run(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading feed directory: %w", err)
	}

	type work struct {
		table gtfs.Table
		path  string
	}
	var found []work
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		table, ok := gtfs.TableForFile(e.Name())
		if !ok {
			in.log.Debug("Skipping unrecognised feed file", zap.String("file", e.Name()))
			continue
		}
		found = append(found, work{table: table, path: filepath.Join(dir, e.Name())})
	}
	if len(found) == 0 {
		return fmt.Errorf("no recognised feed tables in %s", dir)
	}

	// Mark the whole set open up front so enrichment triggers see every
	// file that will eventually close. A kind absent from the feed is never
	// tracked and therefore counts as already closed.
	in.mu.Lock()
	for _, w := range found {
		in.files[w.table.Kind] = stateOpen
	}
	in.mu.Unlock()

	// One task per file, no shared cancellation: a store failure on one
	// file must not abort the others.
	var g errgroup.Group
	for _, w := range found {
		g.Go(func() error {
			err := in.ingestFile(ctx, w.path, w.table)
			// The file leaves the open set even on failure so the
			// remaining triggers can still be evaluated.
			in.fileClosed(ctx, w.table.Kind)
			if err != nil {
				in.log.Error("Table file aborted",
					zap.String("table", string(w.table.Kind)), zap.Error(err))
				return fmt.Errorf("%s: %w", w.table.Kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ingestFile streams one table file through the pipeline. Rows are strictly
// sequential: the next row is not mapped until the previous flush, if any,
// has completed, keeping one in-flight write per file.
func (in *Ingester) ingestFile(ctx context.Context, path string, table gtfs.Table) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	acc := NewAccumulator(in.batchSize, table.EdgesPerRow)
	rows, skipped := 0, 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Per-row recoverable: drop the row, keep the file going.
			skipped++
			in.log.Debug("Dropping malformed row",
				zap.String("table", string(table.Kind)), zap.Error(err))
			continue
		}
		rows++

		m, err := table.Map(recordFrom(header, row))
		if err != nil {
			return fmt.Errorf("row %d: %w", rows, err)
		}
		acc.Add(m)
		if b, ok := acc.Flush(); ok {
			if err := in.flush(ctx, table, b); err != nil {
				return err
			}
		}
	}

	in.setState(table.Kind, stateDraining)
	if b, ok := acc.Drain(); ok {
		if err := in.flush(ctx, table, b); err != nil {
			return err
		}
	}

	in.log.Info("Table file loaded",
		zap.String("table", string(table.Kind)),
		zap.Int("rows", rows),
		zap.Int("skipped", skipped))
	return nil
}

// flush writes one batch: documents first, then the edge rows grouped per
// relationship kind.
func (in *Ingester) flush(ctx context.Context, table gtfs.Table, b Batch) error {
	if len(b.Docs) > 0 {
		if table.Bulk {
			if err := in.store.ImportDocuments(ctx, table.Kind.Collection(), b.Docs); err != nil {
				return fmt.Errorf("importing %d %s documents: %w", len(b.Docs), table.Kind, err)
			}
		} else {
			for _, doc := range b.Docs {
				if err := in.store.SaveDocument(ctx, table.Kind.Collection(), doc); err != nil {
					return fmt.Errorf("saving %s document: %w", table.Kind, err)
				}
			}
		}
	}
	for _, kind := range groupOrder(b.Edges) {
		edges := edgesOf(b.Edges, kind)
		if err := in.store.ImportEdges(ctx, kind.Collection(), edges); err != nil {
			return fmt.Errorf("importing %d %s edges: %w", len(edges), kind, err)
		}
	}
	return nil
}

func (in *Ingester) setState(kind gtfs.Kind, s fileState) {
	in.mu.Lock()
	in.files[kind] = s
	in.mu.Unlock()
}

// fileClosed transitions kind to CLOSED and evaluates the enrichment
// triggers. Jobs run synchronously in the closing file's goroutine; a
// failed job is reported and skipped, never aborting the run.
func (in *Ingester) fileClosed(ctx context.Context, kind gtfs.Kind) {
	in.mu.Lock()
	in.files[kind] = stateClosed

	fireSequence := kind == gtfs.KindStopTimes

	// serves joins calendar and trips: it may only run once both are no
	// longer open. An untracked kind was never in the feed and counts as
	// closed, but when neither table exists there is nothing to join.
	_, hasCalendar := in.files[gtfs.KindCalendar]
	_, hasTrips := in.files[gtfs.KindTrips]
	fireServes := !in.servesDone &&
		(hasCalendar || hasTrips) &&
		!in.isOpenLocked(gtfs.KindCalendar) &&
		!in.isOpenLocked(gtfs.KindTrips)
	if fireServes {
		in.servesDone = true
	}

	allClosed := true
	for _, s := range in.files {
		if s != stateClosed {
			allClosed = false
			break
		}
	}
	fireRoutes := allClosed && !in.routesDone
	if fireRoutes {
		in.routesDone = true
	}
	in.mu.Unlock()

	if fireSequence {
		in.runJob(ctx, "precedes", in.store.SequenceStopTimes)
	}
	if fireServes {
		in.runJob(ctx, "serves", in.store.LinkServices)
	}
	if fireRoutes {
		in.runJob(ctx, "has_routes", in.store.LinkStopRoutes)
	}
}

func (in *Ingester) isOpenLocked(kind gtfs.Kind) bool {
	s, ok := in.files[kind]
	return ok && s != stateClosed
}

func (in *Ingester) runJob(ctx context.Context, name string, job func(context.Context) error) {
	in.log.Info("Running enrichment job", zap.String("edge", name))
	if err := job(ctx); err != nil {
		// Per-job recoverable: the edge kind stays empty or partial.
		in.log.Error("Enrichment job failed", zap.String("edge", name), zap.Error(err))
		return
	}
	in.log.Info("Enrichment job finished", zap.String("edge", name))
}

// recordFrom pairs a header with one data row. Missing trailing columns are
// simply absent from the record.
func recordFrom(header, row []string) gtfs.Record {
	rec := make(gtfs.Record, len(header))
	for i, col := range header {
		if i >= len(row) {
			break
		}
		rec[col] = strings.TrimSpace(row[i])
	}
	return rec
}

// groupOrder returns the distinct edge kinds of a batch in first-seen
// order, preserving FIFO within each kind.
func groupOrder(edges []gtfs.Edge) []gtfs.EdgeKind {
	var order []gtfs.EdgeKind
	seen := make(map[gtfs.EdgeKind]struct{}, 2)
	for _, e := range edges {
		if _, ok := seen[e.Kind]; !ok {
			seen[e.Kind] = struct{}{}
			order = append(order, e.Kind)
		}
	}
	return order
}

func edgesOf(edges []gtfs.Edge, kind gtfs.EdgeKind) []gtfs.Edge {
	var out []gtfs.Edge
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
