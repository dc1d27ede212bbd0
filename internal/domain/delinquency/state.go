// internal/domain/delinquency/state.go
package delinquency

import "fmt"

// LifecycleState is a unit's position on the collections ladder.
type LifecycleState string

const (
	StateCurrent    LifecycleState = "current"
	StatePending    LifecycleState = "pending"      // owes less than 30 days
	StateTier30To60 LifecycleState = "tier_30_60"   // [30,60) days
	StateTier60To90 LifecycleState = "tier_60_90"   // [60,90) days
	StateTier90Plus LifecycleState = "tier_90_plus" // 90 days or more
	StateAttorney   LifecycleState = "attorney"     // set by the board; never left automatically
)

var stateRank = map[LifecycleState]int{
	StateCurrent:    0,
	StatePending:    1,
	StateTier30To60: 2,
	StateTier60To90: 3,
	StateTier90Plus: 4,
	StateAttorney:   5,
}

// Rank orders states from current (0) to attorney (5). Unknown states rank -1.
func (s LifecycleState) Rank() int {
	r, ok := stateRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is one of the known lifecycle states.
func (s LifecycleState) Valid() bool { return s.Rank() >= 0 }

// IsDelinquent is true for every state other than current.
func (s LifecycleState) IsDelinquent() bool { return s.Valid() && s != StateCurrent }

// ParseState converts a stored value into a LifecycleState. An empty value is
// read as current so freshly imported units start at the bottom of the ladder.
func ParseState(v string) (LifecycleState, error) {
	if v == "" {
		return StateCurrent, nil
	}
	s := LifecycleState(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownState, v)
	}
	return s, nil
}
