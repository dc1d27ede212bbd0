package delinquency

// NextState decides what a unit's stored state becomes given this cycle's
// classification. changed is false when nothing should be written.
//
// attorney is a one-way gate: once stored, no classification moves the unit
// out of it. Leaving attorney needs an explicit override outside this engine.
func NextState(previous, computed LifecycleState) (next LifecycleState, changed bool) {
	if previous == StateAttorney {
		return StateAttorney, false
	}
	if computed == previous {
		return previous, false
	}
	return computed, true
}
