package enums

import "fmt"

// LedgerEntryKind maps to the ledger_entry_kind enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryKindEarning           LedgerEntryKind = "earning"
	LedgerEntryKindCommission        LedgerEntryKind = "commission"
	LedgerEntryKindShippingDeduction LedgerEntryKind = "shipping_deduction"
	LedgerEntryKindReversal          LedgerEntryKind = "reversal"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindEarning,
	LedgerEntryKindCommission,
	LedgerEntryKindShippingDeduction,
	LedgerEntryKindReversal,
}

// IsValid reports whether the value matches the canonical ledger kind enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}
