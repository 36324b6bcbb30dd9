package domain

// Availability is the aggregated read-side view of everything that makes a
// seat unavailable for an event. A seat's effective availability is the
// negation of membership in any of the three sets.
type Availability struct {
	Booked       []string `json:"booked"`
	HeldByOthers []string `json:"held_by_others"`
	Blocked      []string `json:"blocked"`
}

// UnavailableSet flattens the three sets into one membership map.
func (a Availability) UnavailableSet() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Booked)+len(a.HeldByOthers)+len(a.Blocked))
	for _, s := range a.Booked {
		set[s] = struct{}{}
	}
	for _, s := range a.HeldByOthers {
		set[s] = struct{}{}
	}
	for _, s := range a.Blocked {
		set[s] = struct{}{}
	}
	return set
}
