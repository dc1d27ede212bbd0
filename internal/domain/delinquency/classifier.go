package delinquency

import (
	"errors"
	"fmt"
)

const daysPerMonth = 30

// ErrInvalidMonthlyCharge is returned when a delinquent balance cannot be
// converted into months because the monthly charge is not positive.
var ErrInvalidMonthlyCharge = errors.New("monthly charge must be greater than zero")

// ErrUnknownState is returned for a stored lifecycle state outside the ladder.
var ErrUnknownState = errors.New("unknown lifecycle state")

// DataIntegrityError marks a snapshot that cannot be classified. It is fatal
// for that unit only.
type DataIntegrityError struct {
	UnitID string
	Err    error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error for unit %s: %v", e.UnitID, e.Err)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// Classify computes days delinquent and the lifecycle state a snapshot calls
// for. Arrears are converted to whole months of monthly charge, so a large
// one-time assessment reads as several months behind; charges are not aged
// individually.
//
// Classify never returns StateAttorney; keeping a unit there is the
// transition step's job.
func Classify(s UnitFinancialSnapshot) (int, LifecycleState, error) {
	if s.LoadErr != nil {
		return 0, "", &DataIntegrityError{UnitID: s.UnitID, Err: s.LoadErr}
	}
	if !s.TotalOwed.IsPositive() {
		return 0, StateCurrent, nil
	}
	if !s.MonthlyCharge.IsPositive() {
		return 0, "", &DataIntegrityError{UnitID: s.UnitID, Err: ErrInvalidMonthlyCharge}
	}

	monthsBehind, _ := s.TotalOwed.QuoRem(s.MonthlyCharge, 0)
	days := int(monthsBehind.IntPart()) * daysPerMonth

	return days, stateForDays(days), nil
}

func stateForDays(days int) LifecycleState {
	switch {
	case days < 30:
		return StatePending
	case days < 60:
		return StateTier30To60
	case days < 90:
		return StateTier60To90
	default:
		return StateTier90Plus
	}
}
