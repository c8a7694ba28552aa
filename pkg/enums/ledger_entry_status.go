package enums

import "fmt"

// LedgerEntryStatus maps to the ledger_entry_status enum in Postgres.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending   LedgerEntryStatus = "pending"
	LedgerEntryStatusAvailable LedgerEntryStatus = "available"
	LedgerEntryStatusPaid      LedgerEntryStatus = "paid"
	LedgerEntryStatusReversed  LedgerEntryStatus = "reversed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusAvailable,
	LedgerEntryStatusPaid,
	LedgerEntryStatusReversed,
}

// ledgerEntryTransitions is the closed transition table for ledger entries.
// Paid and reversed rows are permanent history.
var ledgerEntryTransitions = map[LedgerEntryStatus][]LedgerEntryStatus{
	LedgerEntryStatusPending:   {LedgerEntryStatusAvailable, LedgerEntryStatusReversed},
	LedgerEntryStatusAvailable: {LedgerEntryStatusPaid, LedgerEntryStatusReversed},
}

// IsValid reports whether the value matches the canonical ledger status enum.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the entry can never change status again.
func (s LedgerEntryStatus) IsTerminal() bool {
	return s.IsValid() && len(ledgerEntryTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition table allows moving to next.
func (s LedgerEntryStatus) CanTransitionTo(next LedgerEntryStatus) bool {
	for _, candidate := range ledgerEntryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseLedgerEntryStatus converts raw input into LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
