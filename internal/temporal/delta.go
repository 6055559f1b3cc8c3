package temporal

import (
	"encoding/json"

	"cortexstore/internal/model"
)

// Deltas are opaque JSON (§4.5); these are the shapes this module writes and
// reads. Each event type mutates only the fields its shape carries.

type createdDelta = model.BaseMemory

type contentUpdatedDelta struct {
	Content     json.RawMessage `json:"content"`
	Summary     *string         `json:"summary,omitempty"`
	ContentHash string          `json:"content_hash"`
}

type tagsModifiedDelta struct {
	Tags []string `json:"tags"`
}

type confidenceChangedDelta struct {
	Confidence float64 `json:"confidence"`
}

type importanceChangedDelta struct {
	Importance model.Importance `json:"importance"`
}

type linkDelta struct {
	Kind string `json:"kind"` // "pattern" | "constraint" | "file" | "function"
	ID   string `json:"id"`
}

type supersededDelta struct {
	SupersededBy string `json:"superseded_by"`
}

// NewContentUpdatedDelta builds the delta payload for an EventContentUpdated
// event.
func NewContentUpdatedDelta(content []byte, summary, contentHash string) ([]byte, error) {
	return json.Marshal(contentUpdatedDelta{Content: content, Summary: &summary, ContentHash: contentHash})
}

// NewTagsModifiedDelta builds the delta payload for an EventTagsModified event.
func NewTagsModifiedDelta(tags []string) ([]byte, error) {
	return json.Marshal(tagsModifiedDelta{Tags: tags})
}

// NewConfidenceChangedDelta builds the delta payload for an
// EventConfidenceChanged event.
func NewConfidenceChangedDelta(confidence float64) ([]byte, error) {
	return json.Marshal(confidenceChangedDelta{Confidence: confidence})
}

// NewImportanceChangedDelta builds the delta payload for an
// EventImportanceChanged event.
func NewImportanceChangedDelta(importance model.Importance) ([]byte, error) {
	return json.Marshal(importanceChangedDelta{Importance: importance})
}

// NewLinkDelta builds the delta payload shared by EventLinkAdded/EventLinkRemoved.
func NewLinkDelta(kind, id string) ([]byte, error) {
	return json.Marshal(linkDelta{Kind: kind, ID: id})
}

// NewSupersededDelta builds the delta payload for an EventSuperseded event.
func NewSupersededDelta(supersededBy string) ([]byte, error) {
	return json.Marshal(supersededDelta{SupersededBy: supersededBy})
}

func addLink(links []string, id string) []string {
	for _, l := range links {
		if l == id {
			return links
		}
	}
	return append(links, id)
}

func removeLink(links []string, id string) []string {
	out := links[:0]
	for _, l := range links {
		if l != id {
			out = append(out, l)
		}
	}
	return out
}
