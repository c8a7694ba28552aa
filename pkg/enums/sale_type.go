package enums

import "fmt"

// SaleType distinguishes auction listings from fixed-price ones.
type SaleType string

const (
	SaleTypeAuction SaleType = "auction"
	SaleTypeDirect  SaleType = "direct"
)

var validSaleTypes = []SaleType{SaleTypeAuction, SaleTypeDirect}

// IsValid reports whether the value matches the canonical sale type enum.
func (t SaleType) IsValid() bool {
	for _, candidate := range validSaleTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSaleType converts raw input into SaleType.
func ParseSaleType(value string) (SaleType, error) {
	for _, candidate := range validSaleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale type %q", value)
}
