package store

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"
)

// The enrichment queries run entirely inside the database. Inserts use
// ignoreErrors against the unique (_from,_to) indexes, so re-running a job
// over an already materialised edge set is a no-op.

// aqlPrecedes links each stop-time row to the row of the same trip whose
// sequence number is exactly one higher. Gaps in the sequence produce no
// edge.
const aqlPrecedes = `
FOR t IN trips
  FOR s1 IN 1 INBOUND t._id part_of_trip
    FOR s2 IN 1 INBOUND CONCAT("trips/", s1.tripId) part_of_trip
      FILTER s2.stopSequence == s1.stopSequence + 1
      INSERT { _from: s1._id, _to: s2._id } INTO precedes OPTIONS { ignoreErrors: true }`

// aqlServes joins calendar rows to trips on serviceId.
const aqlServes = `
FOR c IN calendar
  FOR t IN trips
    FILTER t.serviceId == c.serviceId
    INSERT { _from: c._id, _to: t._id } INTO serves OPTIONS { ignoreErrors: true }`

// aqlHasRoutes walks stop <- located_at stop_time -> part_of_trip trip ->
// uses route and materialises one edge per distinct (stop, route) pair.
const aqlHasRoutes = `
FOR loc IN stops
  LET routes = UNIQUE(
    FOR v, e, p IN 3 INBOUND loc._id located_at, OUTBOUND part_of_trip, OUTBOUND uses
      RETURN p.vertices[3]
  )
  FOR r IN routes
    INSERT { _from: loc._id, _to: r._id } INTO has_routes OPTIONS { ignoreErrors: true }`

// SequenceStopTimes derives the precedes edges.
func (s *Store) SequenceStopTimes(ctx context.Context) error {
	return s.runWriteQuery(ctx, "precedes", aqlPrecedes)
}

// LinkServices derives the serves edges.
func (s *Store) LinkServices(ctx context.Context) error {
	return s.runWriteQuery(ctx, "serves", aqlServes)
}

// LinkStopRoutes derives the has_routes edges.
func (s *Store) LinkStopRoutes(ctx context.Context) error {
	return s.runWriteQuery(ctx, "has_routes", aqlHasRoutes)
}

// queryOptions builds the options every enrichment query runs with: the
// configured intermediate commit threshold, so the database commits
// progress incrementally on very large intermediate result sets.
func (s *Store) queryOptions() *arangodb.QueryOptions {
	return &arangodb.QueryOptions{
		Options: arangodb.QuerySubOptions{
			IntermediateCommitCount: &s.commitSize,
		},
	}
}

func (s *Store) runWriteQuery(ctx context.Context, name, query string) error {
	s.log.Debug("Executing enrichment query", zap.String("edge", name))
	cursor, err := s.db.Query(ctx, query, s.queryOptions())
	if err != nil {
		return fmt.Errorf("enrichment query %s: %w", name, err)
	}
	return cursor.Close()
}
