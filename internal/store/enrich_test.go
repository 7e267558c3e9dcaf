package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoire78/gtfs-arango-import/internal/gtfs"
)

func TestQueryOptionsCarryCommitThreshold(t *testing.T) {
	t.Parallel()

	s := &Store{commitSize: 100_000}
	opts := s.queryOptions()
	require.NotNil(t, opts.Options.IntermediateCommitCount)
	assert.Equal(t, 100_000, *opts.Options.IntermediateCommitCount)
}

func TestEnrichmentQueriesIgnoreConflicts(t *testing.T) {
	t.Parallel()

	// Every job inserts into its own edge collection and relies on the
	// unique (_from,_to) index plus ignoreErrors to stay idempotent.
	queries := map[gtfs.EdgeKind]string{
		gtfs.EdgePrecedes:  aqlPrecedes,
		gtfs.EdgeServes:    aqlServes,
		gtfs.EdgeHasRoutes: aqlHasRoutes,
	}
	for kind, query := range queries {
		assert.Contains(t, query, "INTO "+kind.Collection())
		assert.Contains(t, query, "OPTIONS { ignoreErrors: true }")
	}
}

func TestDerivedEdgeKindsAreDeclared(t *testing.T) {
	t.Parallel()

	declared := make(map[gtfs.EdgeKind]struct{}, len(edgeKinds))
	for _, k := range edgeKinds {
		declared[k] = struct{}{}
	}
	for _, k := range derivedEdgeKinds {
		assert.Contains(t, declared, k, "derived kind %s must have a collection", k)
	}
}
