package validation

// CollectRefreshRequests scans healing actions for citation updates —
// the only finding cortexstore's data model can detect that implies a
// memory's stored embedding may no longer represent its content — and
// returns one embedding-refresh action per affected memory.
func CollectRefreshRequests(actions []HealingAction) []HealingAction {
	var out []HealingAction
	seen := make(map[string]bool)
	for _, a := range actions {
		if a.ActionType != HealingCitationUpdate || seen[a.MemoryID] {
			continue
		}
		seen[a.MemoryID] = true
		out = append(out, HealingAction{
			ActionType: HealingEmbeddingRefresh,
			MemoryID:   a.MemoryID,
			Reason:     "linked file citations changed",
		})
	}
	return out
}
