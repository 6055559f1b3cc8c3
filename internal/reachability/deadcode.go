package reachability

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"cortexstore/internal/model"
	"cortexstore/internal/query"
)

// ExclusionCategory names one of the ten reasons a function is excluded
// from dead-code detection even though nothing in the call graph calls it.
type ExclusionCategory string

const (
	ExclusionEntryPoint         ExclusionCategory = "entry_point"
	ExclusionEventHandler       ExclusionCategory = "event_handler"
	ExclusionReflectionTarget   ExclusionCategory = "reflection_target"
	ExclusionDITarget           ExclusionCategory = "di_target"
	ExclusionTestUtility        ExclusionCategory = "test_utility"
	ExclusionFrameworkHook      ExclusionCategory = "framework_hook"
	ExclusionDecoratorTarget    ExclusionCategory = "decorator_target"
	ExclusionInterfaceImpl      ExclusionCategory = "interface_impl"
	ExclusionConditionalCompile ExclusionCategory = "conditionally_compiled"
	ExclusionDynamicImport      ExclusionCategory = "dynamic_import"
)

var (
	eventHandlerPatterns = []string{"on", "handle", "listener", "callback", "subscribe"}
	diTargetPatterns     = []string{"provide", "inject", "wire", "factory"}
	testUtilityPatterns  = []string{"test", "benchmark", "fixture", "mock", "stub", "setup", "teardown", "helper"}
	frameworkHookPatterns = []string{"init", "configure", "register", "middleware", "bootstrap"}
	interfaceImplNames    = map[string]bool{
		"string": true, "error": true, "close": true, "read": true, "write": true,
		"marshaljson": true, "unmarshaljson": true, "servehttp": true, "len": true,
		"less": true, "swap": true, "scan": true, "value": true,
	}
	conditionalFileSuffixes = []string{"_linux", "_darwin", "_windows", "_freebsd", "_arm64", "_amd64", "_cgo"}
)

// UnreachableReport is the result of a dead-code/unreachable scan: functions
// with no path from any entry point, minus the ten excluded categories.
type UnreachableReport struct {
	UnreachableIDs []string
	ExcludedIDs    map[string]ExclusionCategory
}

// FindUnreachable computes the unreachable set over the whole call graph:
// every function not reachable forward from any detected entry point, after
// removing functions that fall into one of the ten exclusion categories
// (§4.9's dead-code rules).
func (e *Engine) FindUnreachable(ctx context.Context) (UnreachableReport, error) {
	var report UnreachableReport
	err := e.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		ids, err := query.AllNodeIDs(ctx, db)
		if err != nil {
			return err
		}
		functions := make(map[string]model.Function, len(ids))
		for _, id := range ids {
			fn, err := query.GetFunction(ctx, db, id)
			if err != nil {
				continue
			}
			functions[id] = fn
		}

		incoming := make(map[string]int, len(ids))
		edgeResolution := make(map[string][]model.CallResolution, len(ids))
		for _, id := range ids {
			edges, err := query.ListCallEdgesTo(ctx, db, id)
			if err != nil {
				return err
			}
			incoming[id] = len(edges)
			for _, edge := range edges {
				edgeResolution[id] = append(edgeResolution[id], edge.Resolution)
			}
		}

		excluded := make(map[string]ExclusionCategory)
		var entryPoints []string
		for _, id := range ids {
			fn := functions[id]
			if cat, ok := classifyExclusion(fn, incoming[id], edgeResolution[id]); ok {
				excluded[id] = cat
				if cat == ExclusionEntryPoint {
					entryPoints = append(entryPoints, id)
				}
			}
		}

		idx, err := e.nodeIndex(ctx, db)
		if err != nil {
			return err
		}
		reached := make(map[string]bool, len(ids))
		for _, ep := range entryPoints {
			result, err := bfsTraverse(ctx, db, idx, ep, model.DirectionForward, e.defaultMaxDepth())
			if err != nil {
				return err
			}
			for _, n := range result.ReachableNodes {
				reached[n] = true
			}
		}

		var unreachable []string
		for _, id := range ids {
			if reached[id] {
				continue
			}
			if _, ok := excluded[id]; ok {
				continue
			}
			unreachable = append(unreachable, id)
		}

		report = UnreachableReport{UnreachableIDs: unreachable, ExcludedIDs: excluded}
		return nil
	})
	return report, err
}

// classifyExclusion decides which of the ten exclusion categories fn falls
// into, if any. model.Function carries no explicit entry-point or framework
// metadata, so each category is inferred from name/file conventions and
// call-edge resolution kind — the same pattern-table approach
// ClassifySensitivityTier uses for caller-path classification.
func classifyExclusion(fn model.Function, incomingCount int, resolutions []model.CallResolution) (ExclusionCategory, bool) {
	lowerName := strings.ToLower(fn.Name)
	baseFile := strings.ToLower(filepath.Base(fn.File))

	if fn.IsExported && incomingCount == 0 {
		return ExclusionEntryPoint, true
	}
	if lowerName == "main" || lowerName == "init" {
		return ExclusionEntryPoint, true
	}
	for _, r := range resolutions {
		if r == model.ResolutionReflection {
			return ExclusionReflectionTarget, true
		}
	}
	for _, r := range resolutions {
		if r == model.ResolutionDynamic {
			return ExclusionDynamicImport, true
		}
	}
	if matchesAny(baseFile, []string{"_test"}) {
		return ExclusionTestUtility, true
	}
	for _, p := range testUtilityPatterns {
		if strings.HasPrefix(lowerName, p) {
			return ExclusionTestUtility, true
		}
	}
	for _, suffix := range conditionalFileSuffixes {
		if strings.Contains(baseFile, suffix) {
			return ExclusionConditionalCompile, true
		}
	}
	if interfaceImplNames[lowerName] {
		return ExclusionInterfaceImpl, true
	}
	if matchesAny(lowerName, frameworkHookPatterns) {
		return ExclusionFrameworkHook, true
	}
	if matchesAny(lowerName, diTargetPatterns) {
		return ExclusionDITarget, true
	}
	if matchesAny(lowerName, eventHandlerPatterns) {
		return ExclusionEventHandler, true
	}
	if fn.IsAsync && strings.HasPrefix(lowerName, "wrap") {
		return ExclusionDecoratorTarget, true
	}
	return "", false
}
