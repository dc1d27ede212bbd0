package delinquency

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitFinancialSnapshot is read fresh from the ledger store every cycle.
type UnitFinancialSnapshot struct {
	UnitID        string
	UnitNumber    string
	OwnerName     string
	TotalOwed     decimal.Decimal // negative means credit balance
	MonthlyCharge decimal.Decimal
	CurrentStatus LifecycleState
	ContactEmail  string // optional

	// LoadErr is set when the stored row could not be read into a valid
	// snapshot. Such a unit is skipped for the cycle; the others proceed.
	LoadErr error
}

// HasContact reports whether owner-facing notices can be delivered.
func (s UnitFinancialSnapshot) HasContact() bool { return s.ContactEmail != "" }

// ChargeLine is one open charge in a unit's outstanding balance.
type ChargeLine struct {
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}
