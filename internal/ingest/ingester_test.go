package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/gregoire78/gtfs-arango-import/internal/gtfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore records every gateway call so tests can assert on persisted
// documents, edge batches and enrichment trigger counts.
type fakeStore struct {
	mu      sync.Mutex
	saves   map[string][]any
	imports map[string][]any
	edges   map[string][]gtfs.Edge

	importErr map[string]error

	sequenceCalls int
	servesCalls   int
	routesCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saves:     make(map[string][]any),
		imports:   make(map[string][]any),
		edges:     make(map[string][]gtfs.Edge),
		importErr: make(map[string]error),
	}
}

func (f *fakeStore) SaveDocument(ctx context.Context, collection string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves[collection] = append(f.saves[collection], doc)
	return nil
}

func (f *fakeStore) ImportDocuments(ctx context.Context, collection string, docs []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.importErr[collection]; err != nil {
		return err
	}
	f.imports[collection] = append(f.imports[collection], docs...)
	return nil
}

func (f *fakeStore) ImportEdges(ctx context.Context, collection string, edges []gtfs.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[collection] = append(f.edges[collection], edges...)
	return nil
}

func (f *fakeStore) SequenceStopTimes(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequenceCalls++
	return nil
}

func (f *fakeStore) LinkServices(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servesCalls++
	return nil
}

func (f *fakeStore) LinkStopRoutes(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routesCalls++
	return nil
}

// writeFeed lays out feed table files in a fresh directory.
func writeFeed(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestIngesterEndToEnd(t *testing.T) {
	t.Parallel()

	dir := writeFeed(t, map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"A1,Metro,https://example.org,Europe/Paris\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_type,route_color\n" +
			"R1,A1,1,1,FF0000\n" +
			"R2,A1,2,1,00FF00\n",
		"stops.txt": "\uFEFFstop_id,stop_name,stop_lat,stop_lon,parent_station\n" +
			"S1,Alpha,48.85,2.35,\n" +
			"S2,Alpha quay,48.85,2.35,S1\n" +
			"S3,Beta,48.86,2.36,\n",
		"trips.txt": "trip_id,route_id,service_id\n" +
			"T1,R1,SVC1\n" +
			"T2,R2,SVC1\n",
		"stop_times.txt": "trip_id,stop_id,stop_sequence,arrival_time,departure_time\n" +
			"T1,S1,1,08:00:00,08:00:30\n" +
			"T1,S2,2,08:05:00,08:05:30\n" +
			"T1,S3,3,08:10:00,08:10:30\n" +
			"T2,S3,1,09:00:00,09:00:30\n" +
			"T2,S2,2,09:05:00,09:05:30\n" +
			"T2,S1,3,09:10:00,09:10:30\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"SVC1,1,1,1,1,1,0,0,20240101,20241231\n",
	})

	store := newFakeStore()
	err := New(store, 50_000, zap.NewNop()).Run(context.Background(), dir)
	require.NoError(t, err)

	// Low-volume kinds are saved document by document.
	assert.Len(t, store.saves["agency"], 1)
	assert.Len(t, store.saves["calendar"], 1)

	// High-volume kinds go through bulk import.
	assert.Len(t, store.imports["routes"], 2)
	assert.Len(t, store.imports["stops"], 3)
	assert.Len(t, store.imports["trips"], 2)
	assert.Len(t, store.imports["stop_times"], 6)

	// The directly mapped relationship rows.
	assert.Len(t, store.edges["part_of_stop"], 1)
	assert.Len(t, store.edges["uses"], 2)
	assert.Len(t, store.edges["operates"], 2)
	assert.Len(t, store.edges["part_of_trip"], 6)
	assert.Len(t, store.edges["located_at"], 6)

	require.NotEmpty(t, store.edges["part_of_stop"])
	assert.Equal(t, "stops/S2", store.edges["part_of_stop"][0].From)
	assert.Equal(t, "stops/S1", store.edges["part_of_stop"][0].To)

	// The BOM on stops.txt must not corrupt the first column name.
	stop := store.imports["stops"][0].(gtfs.Stop)
	assert.NotEmpty(t, stop.Key)

	// Each enrichment job fires exactly once.
	assert.Equal(t, 1, store.sequenceCalls)
	assert.Equal(t, 1, store.servesCalls)
	assert.Equal(t, 1, store.routesCalls)
}

func TestIngesterFlushesInBatches(t *testing.T) {
	t.Parallel()

	feed := "trip_id,stop_id,stop_sequence\n"
	for i := 0; i < 5; i++ {
		feed += "T1,S1," + string(rune('1'+i)) + "\n"
	}
	dir := writeFeed(t, map[string]string{"stop_times.txt": feed})

	store := newFakeStore()
	err := New(store, 2, zap.NewNop()).Run(context.Background(), dir)
	require.NoError(t, err)

	// 5 rows with a batch size of 2: two full flushes plus a final drain.
	assert.Len(t, store.imports["stop_times"], 5)
	assert.Len(t, store.edges["part_of_trip"], 5)
	assert.Len(t, store.edges["located_at"], 5)
}

func TestIngesterSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	dir := writeFeed(t, map[string]string{
		"stops.txt": "stop_id,stop_name\n" +
			"S1,Alpha\n" +
			"S2,bro\"ken\n" +
			"S3,Gamma\n",
	})

	store := newFakeStore()
	err := New(store, 50_000, zap.NewNop()).Run(context.Background(), dir)
	require.NoError(t, err)

	// The row with the bare quote is dropped, the file keeps going.
	assert.Len(t, store.imports["stops"], 2)
}

func TestIngesterMappingErrorAbortsFile(t *testing.T) {
	t.Parallel()

	dir := writeFeed(t, map[string]string{
		"calendar.txt": "service_id,monday,start_date,end_date\n" +
			"SVC1,1,January,20241231\n",
		"agency.txt": "agency_id,agency_name\nA1,Metro\n",
	})

	store := newFakeStore()
	err := New(store, 50_000, zap.NewNop()).Run(context.Background(), dir)
	require.Error(t, err)

	// The other file is unaffected by calendar's failure.
	assert.Len(t, store.saves["agency"], 1)
	assert.Empty(t, store.saves["calendar"])
}

func TestIngesterStoreFailureAbortsOnlyThatFile(t *testing.T) {
	t.Parallel()

	dir := writeFeed(t, map[string]string{
		"trips.txt": "trip_id,route_id,service_id\nT1,R1,SVC1\n",
		"stops.txt": "stop_id,stop_name\nS1,Alpha\n",
	})

	store := newFakeStore()
	store.importErr["trips"] = errors.New("boom")

	err := New(store, 50_000, zap.NewNop()).Run(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "trips")

	assert.Len(t, store.imports["stops"], 1)
	// No retry anywhere: the failing import was attempted exactly once and
	// nothing for trips was persisted.
	assert.Empty(t, store.imports["trips"])
}

func TestServesTrigger(t *testing.T) {
	t.Parallel()

	t.Run("fires once after both calendar and trips close", func(t *testing.T) {
		t.Parallel()
		dir := writeFeed(t, map[string]string{
			"trips.txt":    "trip_id,route_id,service_id\nT1,R1,SVC1\n",
			"calendar.txt": "service_id,monday,start_date,end_date\nSVC1,1,20240101,20241231\n",
		})
		store := newFakeStore()
		require.NoError(t, New(store, 50_000, zap.NewNop()).Run(context.Background(), dir))
		assert.Equal(t, 1, store.servesCalls)
	})

	t.Run("fires when calendar is absent from the feed", func(t *testing.T) {
		t.Parallel()
		dir := writeFeed(t, map[string]string{
			"trips.txt": "trip_id,route_id,service_id\nT1,R1,SVC1\n",
		})
		store := newFakeStore()
		require.NoError(t, New(store, 50_000, zap.NewNop()).Run(context.Background(), dir))
		assert.Equal(t, 1, store.servesCalls)
	})

	t.Run("skipped when neither table exists", func(t *testing.T) {
		t.Parallel()
		dir := writeFeed(t, map[string]string{
			"agency.txt": "agency_id,agency_name\nA1,Metro\n",
		})
		store := newFakeStore()
		require.NoError(t, New(store, 50_000, zap.NewNop()).Run(context.Background(), dir))
		assert.Zero(t, store.servesCalls)
	})
}

func TestSequenceTrigger(t *testing.T) {
	t.Parallel()

	t.Run("fires only when stop_times closes", func(t *testing.T) {
		t.Parallel()
		dir := writeFeed(t, map[string]string{
			"agency.txt": "agency_id,agency_name\nA1,Metro\n",
		})
		store := newFakeStore()
		require.NoError(t, New(store, 50_000, zap.NewNop()).Run(context.Background(), dir))
		assert.Zero(t, store.sequenceCalls)
	})

	t.Run("route reachability waits for the whole feed", func(t *testing.T) {
		t.Parallel()
		dir := writeFeed(t, map[string]string{
			"agency.txt": "agency_id,agency_name\nA1,Metro\n",
			"stops.txt":  "stop_id,stop_name\nS1,Alpha\n",
		})
		store := newFakeStore()
		require.NoError(t, New(store, 50_000, zap.NewNop()).Run(context.Background(), dir))
		assert.Equal(t, 1, store.routesCalls)
	})
}

func TestIngesterRejectsFeedWithoutTables(t *testing.T) {
	t.Parallel()

	dir := writeFeed(t, map[string]string{"readme.md": "not a feed"})
	store := newFakeStore()
	err := New(store, 50_000, zap.NewNop()).Run(context.Background(), dir)
	assert.Error(t, err)
}
