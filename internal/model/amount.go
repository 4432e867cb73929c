package model

import (
	"fmt"
	"math/big"
)

// ParseAmount parses a non-negative decimal string amount.
func ParseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}

// FormatAmount renders an amount as a decimal string; nil becomes "".
func FormatAmount(value *big.Int) string {
	if value == nil {
		return ""
	}
	return value.String()
}
