package database

import (
	"time"
)

// StopOverride is a user edit of a stop, keyed by the stop's stable id.
type StopOverride struct {
	BookID       string    `json:"bookId"`
	StableID     string    `json:"stableId"`
	OverrideName *string   `json:"overrideName,omitempty"`
	Hidden       bool      `json:"hidden"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OverridePatch is a single-field-at-a-time update of a stop override.
// Nil fields are left unchanged; an empty OverrideName clears the name.
type OverridePatch struct {
	OverrideName *string `json:"overrideName,omitempty"`
	Hidden       *bool   `json:"hidden,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p OverridePatch) Empty() bool {
	return p.OverrideName == nil && p.Hidden == nil
}

// Apply merges the patch into an existing override.
func (p OverridePatch) Apply(o *StopOverride) {
	if p.OverrideName != nil {
		if *p.OverrideName == "" {
			o.OverrideName = nil
		} else {
			name := *p.OverrideName
			o.OverrideName = &name
		}
	}
	if p.Hidden != nil {
		o.Hidden = *p.Hidden
	}
}

// PicksSource values.
const (
	PicksSourceAuto     = "auto"
	PicksSourceEnhanced = "enhanced"
	PicksSourceUser     = "user"
)

// StoredPicks is the persisted highlight selection of a book.
type StoredPicks struct {
	BookID     string
	Source     string
	Highlights []string
	Gallery    []string
	UpdatedAt  time.Time
}

// StoredPlan is the last successfully generated plan of a book, serialized as JSON.
type StoredPlan struct {
	BookID       string
	GenerationID string
	// StartedAt orders generations; an older generation never replaces a newer plan.
	StartedAt time.Time
	Plan      []byte
	CreatedAt time.Time
}

// StoredPlace is a cached reverse-geocoding result keyed by quantized coordinates.
type StoredPlace struct {
	Key         string
	City        string
	State       string
	Country     string
	DisplayName string
	FetchedAt   time.Time
}
