package validation

import "cortexstore/internal/model"

// UpdateCitations rewrites mem's LinkedFiles in place according to
// renames, returning the count of paths actually changed. Only file
// links are rewritten — cortexstore's LinkedFunctions is a flat function
// name list with no per-entry file_path, so there is nothing to match a
// rename against and function links are left untouched.
func UpdateCitations(mem *model.BaseMemory, renameDetector RenameDetector) int {
	var updated int
	for i, path := range mem.LinkedFiles {
		renamed := renameDetector(path)
		if renamed == "" || renamed == path {
			continue
		}
		mem.LinkedFiles[i] = renamed
		updated++
	}
	return updated
}
