package reachability

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/config"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Manager {
	t.Helper()
	cfg := config.DefaultConfig().Storage
	cfg.Path = filepath.Join(t.TempDir(), "reachability.db")
	cfg.PoolSize = 2
	mgr, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func seedFile(t *testing.T, mgr *storage.Manager, path string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, mgr.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO file_metadata (path, language, size, content_hash, mtime_secs, mtime_nanos, last_scanned_at, scan_duration_us)
			VALUES (?, 'go', 100, 'h', 0, 0, ?, 0)
		`, path, now.Format(time.RFC3339))
		return err
	}))
}

func seedFunction(t *testing.T, mgr *storage.Manager, fn model.Function) {
	t.Helper()
	require.NoError(t, mgr.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO functions (id, file, name, qualified_name, language, line, end_line, parameter_count, return_type, is_exported, is_async, body_hash, signature_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, fn.ID, fn.File, fn.Name, fn.QualifiedName, fn.Language, fn.Line, fn.EndLine, fn.ParameterCount, fn.ReturnType,
			boolInt(fn.IsExported), boolInt(fn.IsAsync), fn.BodyHash, fn.SignatureHash)
		return err
	}))
}

func seedEdge(t *testing.T, mgr *storage.Manager, caller, callee string, resolution model.CallResolution, confidence float64) {
	t.Helper()
	require.NoError(t, mgr.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO call_edges (caller_id, callee_id, resolution, confidence, call_site_line)
			VALUES (?, ?, ?, ?, 1)
		`, caller, callee, string(resolution), confidence)
		return err
	}))
}

func seedDataAccess(t *testing.T, mgr *storage.Manager, functionID, table string, op model.DataAccessOp, fields string) {
	t.Helper()
	require.NoError(t, mgr.WithWriter(context.Background(), func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO data_access (function_id, table_name, operation, fields, framework_hint)
			VALUES (?, ?, ?, ?, '')
		`, functionID, table, string(op), fields)
		return err
	}))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func chainGraph(t *testing.T, mgr *storage.Manager, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = "f" + string(rune('a'+i))
		seedFile(t, mgr, ids[i]+".go")
		seedFunction(t, mgr, model.Function{ID: ids[i], File: ids[i] + ".go", Name: ids[i], Language: "go"})
	}
	for i := 0; i < n-1; i++ {
		seedEdge(t, mgr, ids[i], ids[i+1], model.ResolutionSameFile, 0.9)
	}
	return ids
}

func newTestEngine(t *testing.T, mgr *storage.Manager) *Engine {
	t.Helper()
	cfg := config.DefaultConfig().Reachability
	return NewEngine(mgr, cfg)
}

func TestTraverseBFSForwardAndInverse(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 4)
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	result, err := e.Traverse(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.ReachableNodes)

	result, err = e.Traverse(ctx, ids[3], model.DirectionInverse, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.ReachableNodes)
}

func TestTraverseRespectsMaxDepth(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 5)
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	result, err := e.Traverse(ctx, ids[0], model.DirectionForward, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0], ids[1]}, result.ReachableNodes)
}

func TestTraverseIgnoresSelfLoops(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 2)
	seedEdge(t, mgr, ids[0], ids[0], model.ResolutionSameFile, 0.9)
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	result, err := e.Traverse(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.ReachableNodes)
}

func TestTraverseTerminatesOnCycle(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 3)
	seedEdge(t, mgr, ids[2], ids[0], model.ResolutionSameFile, 0.9) // close the loop
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	result, err := e.Traverse(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.ReachableNodes)
}

func TestTraverseUsesCTEAboveCrossover(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 6)
	cfg := config.DefaultConfig().Reachability
	cfg.CTECrossoverNodes = 1 // force CTE path even for this small graph
	e := NewEngine(mgr, cfg)
	ctx := context.Background()

	result, err := e.computeTraversal(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)
	assert.Equal(t, EngineCTE, result.EngineUsed)
	assert.ElementsMatch(t, ids, result.ReachableNodes)
}

func TestTraverseCachesResult(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 3)
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	first, err := e.Traverse(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)

	second, err := e.Traverse(ctx, ids[0], model.DirectionForward, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.ReachableNodes, second.ReachableNodes)

	require.NoError(t, e.InvalidateNode(ctx, ids[0]))
	var found bool
	err = mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		_, f, err := query.GetReachabilityCache(ctx, db, ids[0], model.DirectionForward)
		found = f
		return err
	})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestShortestPathSameNode(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 2)
	e := newTestEngine(t, mgr)
	ctx := context.Background()

	result, err := e.ShortestPath(ctx, ids[0], ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, result.Nodes)
	assert.Equal(t, 0.0, result.Distance)
}

func TestShortestPathPrefersConfidentEdges(t *testing.T) {
	mgr := newTestStorage(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedFile(t, mgr, id+".go")
		seedFunction(t, mgr, model.Function{ID: id, File: id + ".go", Name: id, Language: "go"})
	}
	// a->d direct, low confidence; a->b->c->d, high confidence throughout.
	seedEdge(t, mgr, "a", "d", model.ResolutionDynamic, 0.1)
	seedEdge(t, mgr, "a", "b", model.ResolutionSameFile, 0.95)
	seedEdge(t, mgr, "b", "c", model.ResolutionSameFile, 0.95)
	seedEdge(t, mgr, "c", "d", model.ResolutionSameFile, 0.95)

	e := newTestEngine(t, mgr)
	result, err := e.ShortestPath(context.Background(), "a", "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, result.Nodes)
}

func TestShortestPathNoPath(t *testing.T) {
	mgr := newTestStorage(t)
	seedFile(t, mgr, "a.go")
	seedFile(t, mgr, "b.go")
	seedFunction(t, mgr, model.Function{ID: "a", File: "a.go", Name: "a", Language: "go"})
	seedFunction(t, mgr, model.Function{ID: "b", File: "b.go", Name: "b", Language: "go"})

	e := newTestEngine(t, mgr)
	result, err := e.ShortestPath(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Empty(t, result.Nodes)
}

func TestKShortestPathsReturnsDistinctPaths(t *testing.T) {
	mgr := newTestStorage(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedFile(t, mgr, id+".go")
		seedFunction(t, mgr, model.Function{ID: id, File: id + ".go", Name: id, Language: "go"})
	}
	seedEdge(t, mgr, "a", "b", model.ResolutionSameFile, 0.9)
	seedEdge(t, mgr, "b", "d", model.ResolutionSameFile, 0.9)
	seedEdge(t, mgr, "a", "c", model.ResolutionSameFile, 0.5)
	seedEdge(t, mgr, "c", "d", model.ResolutionSameFile, 0.5)

	e := newTestEngine(t, mgr)
	results, err := e.KShortestPaths(context.Background(), "a", "d", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEqual(t, results[0].Nodes, results[1].Nodes)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestClassifySensitivityTierRules(t *testing.T) {
	critical := ClassifySensitivityTier(
		[]CallPathNode{{Name: "UserHandler"}},
		[]string{"execCommand"},
	)
	assert.Equal(t, model.SensitivityCritical, critical)

	high := ClassifySensitivityTier(
		[]CallPathNode{{Name: "ProcessRequest"}},
		[]string{"writeToDisk"},
	)
	assert.Equal(t, model.SensitivityHigh, high)

	medium := ClassifySensitivityTier(
		[]CallPathNode{{Name: "AdminPanel"}},
		[]string{"writeToDisk"},
	)
	assert.Equal(t, model.SensitivityMedium, medium)

	low := ClassifySensitivityTier(nil, nil)
	assert.Equal(t, model.SensitivityLow, low)
}

func TestFindUnreachableExcludesEntryPointsAndTestUtilities(t *testing.T) {
	mgr := newTestStorage(t)
	seedFile(t, mgr, "main.go")
	seedFile(t, mgr, "helper_test.go")
	seedFile(t, mgr, "orphan.go")
	seedFunction(t, mgr, model.Function{ID: "main", File: "main.go", Name: "main", Language: "go", IsExported: true})
	seedFunction(t, mgr, model.Function{ID: "reached", File: "main.go", Name: "doWork", Language: "go"})
	seedFunction(t, mgr, model.Function{ID: "testutil", File: "helper_test.go", Name: "setupFixture", Language: "go"})
	seedFunction(t, mgr, model.Function{ID: "orphan", File: "orphan.go", Name: "computeStats", Language: "go"})
	seedEdge(t, mgr, "main", "reached", model.ResolutionSameFile, 0.9)

	e := newTestEngine(t, mgr)
	report, err := e.FindUnreachable(context.Background())
	require.NoError(t, err)

	assert.Contains(t, report.UnreachableIDs, "orphan")
	assert.NotContains(t, report.UnreachableIDs, "main")
	assert.NotContains(t, report.UnreachableIDs, "reached")
	assert.NotContains(t, report.UnreachableIDs, "testutil")
	assert.Equal(t, ExclusionEntryPoint, report.ExcludedIDs["main"])
	assert.Equal(t, ExclusionTestUtility, report.ExcludedIDs["testutil"])
}

func TestTrackFieldFlowSingleNode(t *testing.T) {
	mgr := newTestStorage(t)
	seedFile(t, mgr, "a.go")
	seedFunction(t, mgr, model.Function{ID: "a", File: "a.go", Name: "getUser", Language: "go", IsExported: true})

	e := newTestEngine(t, mgr)
	result, err := e.TrackFieldFlow(context.Background(), "a", "users", "email", 10)
	require.NoError(t, err)
	assert.Len(t, result.Hops, 1)
	assert.Len(t, result.AccessPoints, 1)
}

func TestTrackFieldFlowDetectsTransformation(t *testing.T) {
	mgr := newTestStorage(t)
	for _, f := range []struct{ id, name string }{
		{"a", "getUser"}, {"b", "transformEmail"}, {"c", "sendNotification"},
	} {
		seedFile(t, mgr, f.id+".go")
		seedFunction(t, mgr, model.Function{ID: f.id, File: f.id + ".go", Name: f.name, Language: "go"})
	}
	seedEdge(t, mgr, "a", "b", model.ResolutionImportBased, 0.8)
	seedEdge(t, mgr, "b", "c", model.ResolutionImportBased, 0.8)

	e := newTestEngine(t, mgr)
	result, err := e.TrackFieldFlow(context.Background(), "a", "users", "email", 10)
	require.NoError(t, err)
	require.Len(t, result.Hops, 3)

	var transformHop, sendHop FieldFlowHop
	for _, h := range result.Hops {
		switch h.FunctionID {
		case "b":
			transformHop = h
		case "c":
			sendHop = h
		}
	}
	assert.True(t, transformHop.Transformed)
	assert.False(t, sendHop.Transformed)
}

func TestTrackFieldFlowRecordsDownstreamAccessPoints(t *testing.T) {
	mgr := newTestStorage(t)
	for _, f := range []struct{ id, name string }{
		{"a", "getUser"}, {"b", "forwardToAudit"},
	} {
		seedFile(t, mgr, f.id+".go")
		seedFunction(t, mgr, model.Function{ID: f.id, File: f.id + ".go", Name: f.name, Language: "go"})
	}
	seedEdge(t, mgr, "a", "b", model.ResolutionImportBased, 0.8)
	seedDataAccess(t, mgr, "b", "users", model.DataAccessWrite, `["email"]`)

	e := newTestEngine(t, mgr)
	result, err := e.TrackFieldFlow(context.Background(), "a", "users", "email", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, result.AccessPoints)
	assert.Equal(t, SensitivityPII, result.Sensitivity)
}

func TestTrackFieldFlowDepthLimit(t *testing.T) {
	mgr := newTestStorage(t)
	ids := chainGraph(t, mgr, 20)

	e := newTestEngine(t, mgr)
	result, err := e.TrackFieldFlow(context.Background(), ids[0], "t", "f", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Hops), 7)
}
