package stores

import (
	"time"
)

// ResolutionStatus is the outcome of a recorded resolution.
type ResolutionStatus string

const (
	ResolutionStatusSucceeded ResolutionStatus = "succeeded"
	ResolutionStatusFailed    ResolutionStatus = "failed"
)

// RepositoryRecord describes an imported repository.
type RepositoryRecord struct {
	Name       string    `json:"name"`
	Installed  bool      `json:"installed"`
	Priority   int       `json:"priority"` // lower wins
	Packages   int       `json:"packages"`
	ImportedAt time.Time `json:"imported_at"`
}

// Resolution is one recorded resolver run.
type Resolution struct {
	ID         string            `json:"id"`
	Targets    []string          `json:"targets"`
	Options    string            `json:"options"` // JSON blob
	Status     ResolutionStatus  `json:"status"`
	Error      *string           `json:"error,omitempty"`
	EntryCount int               `json:"entry_count"`
	Duration   time.Duration     `json:"duration"`
	CreatedAt  time.Time         `json:"created_at"`
	Entries    []ResolutionEntry `json:"entries,omitempty"`
}

// ResolutionEntry is one merge list entry of a recorded resolution.
type ResolutionEntry struct {
	Position   int    `json:"position"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Slot       string `json:"slot"`
	Repository string `json:"repository"`
	Synthetic  bool   `json:"synthetic,omitempty"`
}
