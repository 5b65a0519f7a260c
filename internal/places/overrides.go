package places

import "slices"

// Override is the persisted user edit of one stop.
type Override struct {
	OverrideName *string
	Hidden       bool
}

// ApplyOverrides re-keys overrides by stable id onto freshly computed stops.
// Overrides whose stop no longer exists are dropped without error. The input
// slice is not modified.
func ApplyOverrides(stops []Stop, overrides map[string]Override) []Stop {
	out := make([]Stop, len(stops))
	copy(out, stops)
	for i := range out {
		o, ok := overrides[out[i].StableID]
		if !ok {
			continue
		}
		if o.OverrideName != nil && *o.OverrideName != "" {
			name := *o.OverrideName
			out[i].OverrideName = &name
		}
		out[i].Hidden = o.Hidden
	}
	return out
}

// Orphaned returns the override keys that match no stop, sorted.
func Orphaned(stops []Stop, overrides map[string]Override) []string {
	known := make(map[string]bool, len(stops))
	for _, s := range stops {
		known[s.StableID] = true
	}
	var out []string
	for id := range overrides {
		if !known[id] {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
