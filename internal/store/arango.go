// Package store is the graph store gateway. It owns one ArangoDB collection
// per entity kind and per relationship kind, their indexes and the
// truncate-or-create lifecycle, and exposes the save, bulk import and
// enrichment-query operations the ingestion pipeline runs against.
package store

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"go.uber.org/zap"

	"github.com/gregoire78/gtfs-arango-import/internal/gtfs"
)

// Config holds the database connection settings plus the intermediate
// commit threshold applied to long-running enrichment write-queries.
type Config struct {
	Endpoint   string
	Database   string
	Username   string
	Password   string
	CommitSize int
}

// vertexKinds are the document collections, one per entity kind. Pathways
// is absent here: it is edge shaped and lives in an edge collection.
var vertexKinds = []gtfs.Kind{
	gtfs.KindAgency,
	gtfs.KindStops,
	gtfs.KindRoutes,
	gtfs.KindTrips,
	gtfs.KindStopTimes,
	gtfs.KindCalendar,
	gtfs.KindCalendarDates,
}

var edgeKinds = []gtfs.EdgeKind{
	gtfs.EdgeKind(gtfs.KindPathways),
	gtfs.EdgePartOfTrip,
	gtfs.EdgeLocatedAt,
	gtfs.EdgeUses,
	gtfs.EdgePartOfStop,
	gtfs.EdgeOperates,
	gtfs.EdgePrecedes,
	gtfs.EdgeServes,
	gtfs.EdgeHasRoutes,
}

// derivedEdgeKinds get a unique (_from,_to) index so re-running an
// enrichment job is a no-op instead of a duplicate insert.
var derivedEdgeKinds = []gtfs.EdgeKind{
	gtfs.EdgePrecedes,
	gtfs.EdgePartOfStop,
	gtfs.EdgeOperates,
	gtfs.EdgeServes,
	gtfs.EdgeHasRoutes,
}

// Store wraps one ArangoDB database and its feed collections.
type Store struct {
	db         arangodb.Database
	log        *zap.Logger
	commitSize int
	cols       map[string]arangodb.Collection
}

// New connects to ArangoDB and opens the configured database, creating it
// if absent.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.Endpoint})
	conn := connection.NewHttpConnection(connection.DefaultHTTPConfigurationWrapper(endpoint, false))
	if cfg.Username != "" {
		if err := conn.SetAuthentication(connection.NewBasicAuth(cfg.Username, cfg.Password)); err != nil {
			return nil, fmt.Errorf("setting authentication: %w", err)
		}
	}
	client := arangodb.NewClient(conn)

	exists, err := client.DatabaseExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("checking database %q: %w", cfg.Database, err)
	}
	var db arangodb.Database
	if exists {
		db, err = client.Database(ctx, cfg.Database)
	} else {
		db, err = client.CreateDatabase(ctx, cfg.Database, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", cfg.Database, err)
	}

	return &Store{
		db:         db,
		log:        logger.Named("store"),
		commitSize: cfg.CommitSize,
		cols:       make(map[string]arangodb.Collection),
	}, nil
}

// Init brings every collection to a clean slate: existing collections are
// truncated, missing ones are created, and the declared indexes are
// ensured. Each run starts from an empty graph.
func (s *Store) Init(ctx context.Context) error {
	for _, k := range vertexKinds {
		if err := s.truncOrCreate(ctx, k.Collection(), arangodb.CollectionTypeDocument); err != nil {
			return err
		}
	}
	for _, k := range edgeKinds {
		if err := s.truncOrCreate(ctx, k.Collection(), arangodb.CollectionTypeEdge); err != nil {
			return err
		}
	}
	return s.ensureIndexes(ctx)
}

func (s *Store) truncOrCreate(ctx context.Context, name string, typ arangodb.CollectionType) error {
	exists, err := s.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", name, err)
	}
	var col arangodb.Collection
	if exists {
		col, err = s.db.Collection(ctx, name)
		if err != nil {
			return fmt.Errorf("opening collection %q: %w", name, err)
		}
		if err := col.Truncate(ctx); err != nil {
			return fmt.Errorf("truncating collection %q: %w", name, err)
		}
	} else {
		props := arangodb.CreateCollectionProperties{Type: typ}
		col, err = s.db.CreateCollection(ctx, name, &props)
		if err != nil {
			return fmt.Errorf("creating collection %q: %w", name, err)
		}
	}
	s.cols[name] = col
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	// Stops are geo-indexed by (lat, lon).
	if _, _, err := s.cols[gtfs.KindStops.Collection()].EnsureGeoIndex(ctx, []string{"lat", "lon"}, nil); err != nil {
		return fmt.Errorf("ensuring geo index on stops: %w", err)
	}

	// The serves join runs over serviceId on both calendar tables.
	for _, k := range []gtfs.Kind{gtfs.KindCalendar, gtfs.KindCalendarDates} {
		opts := arangodb.CreatePersistentIndexOptions{Name: "service"}
		if _, _, err := s.cols[k.Collection()].EnsurePersistentIndex(ctx, []string{"serviceId"}, &opts); err != nil {
			return fmt.Errorf("ensuring service index on %s: %w", k, err)
		}
	}

	unique := true
	for _, k := range derivedEdgeKinds {
		opts := arangodb.CreatePersistentIndexOptions{Name: "fromto", Unique: &unique}
		if _, _, err := s.cols[k.Collection()].EnsurePersistentIndex(ctx, []string{"_from", "_to"}, &opts); err != nil {
			return fmt.Errorf("ensuring fromto index on %s: %w", k, err)
		}
	}
	return nil
}

func (s *Store) collection(name string) (arangodb.Collection, error) {
	col, ok := s.cols[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return col, nil
}

// SaveDocument persists one keyed document. An already existing key is
// ignored, matching the idempotent save semantics of the low-volume kinds.
func (s *Store) SaveDocument(ctx context.Context, collection string, doc any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	mode := arangodb.CollectionDocumentCreateOverwriteModeIgnore
	_, err = col.CreateDocumentWithOptions(ctx, doc, &arangodb.CollectionDocumentCreateOptions{
		OverwriteMode: &mode,
	})
	if err != nil {
		return fmt.Errorf("saving document into %q: %w", collection, err)
	}
	return nil
}

// ImportDocuments bulk-inserts a batch of documents, ignoring keys that
// already exist.
func (s *Store) ImportDocuments(ctx context.Context, collection string, docs []any) error {
	return s.bulkInsert(ctx, collection, docs)
}

// ImportEdges bulk-inserts a batch of relationship rows.
func (s *Store) ImportEdges(ctx context.Context, collection string, edges []gtfs.Edge) error {
	return s.bulkInsert(ctx, collection, edges)
}

func (s *Store) bulkInsert(ctx context.Context, collection string, docs any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	mode := arangodb.CollectionDocumentCreateOverwriteModeIgnore
	_, err = col.CreateDocumentsWithOptions(ctx, docs, &arangodb.CollectionDocumentCreateOptions{
		OverwriteMode: &mode,
	})
	if err != nil {
		return fmt.Errorf("importing into %q: %w", collection, err)
	}
	return nil
}
