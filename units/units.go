// Package units converts between display amounts (decimal strings shown to
// users) and base units (integers sent on-chain). It is the only place in the
// module allowed to perform that conversion.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the precision of the native currency and of every token amount
// the platform contract accepts.
const Decimals = 18

var (
	// ErrInvalidAmount is returned for amounts that cannot be represented on-chain.
	ErrInvalidAmount = errors.New("units: invalid amount")
)

// Amount carries both representations of a monetary value.
type Amount struct {
	Base    *big.Int `json:"base"`
	Display string   `json:"display"`
}

// FromBase builds an Amount from an on-chain integer. A nil input is zero.
func FromBase(base *big.Int) Amount {
	if base == nil {
		base = new(big.Int)
	}
	return Amount{Base: new(big.Int).Set(base), Display: ToDisplayUnits(base)}
}

// IsZero reports whether the amount is zero or unset.
func (a Amount) IsZero() bool {
	return a.Base == nil || a.Base.Sign() == 0
}

func (a Amount) String() string {
	if a.Display == "" {
		return "0"
	}
	return a.Display
}

// Decimal returns the display value as a decimal for arithmetic in display
// space (quotes, ratios).
func (a Amount) Decimal() decimal.Decimal {
	if a.Base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Base, -Decimals)
}

// ToBaseUnits converts a display string such as "1.5" into base units. The
// value must be non-negative, have at most 18 fractional digits and fit in a
// uint256.
func ToBaseUnits(display string) (*big.Int, error) {
	trimmed := strings.TrimSpace(display)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount required", ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, display)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, display)
	}
	shifted := value.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, display, Decimals)
	}
	base := shifted.BigInt()
	if err := CheckUint256(base); err != nil {
		return nil, err
	}
	return base, nil
}

// ToDisplayUnits renders base units as a decimal string without trailing
// zeros.
func ToDisplayUnits(base *big.Int) string {
	if base == nil {
		return "0"
	}
	return decimal.NewFromBigInt(base, -Decimals).String()
}

// ParsePositive converts a display string into an Amount that must be
// strictly greater than zero. label names the field in error messages.
func ParsePositive(label, display string) (Amount, error) {
	base, err := ToBaseUnits(display)
	if err != nil {
		return Amount{}, fmt.Errorf("%s: %w", label, err)
	}
	if base.Sign() <= 0 {
		return Amount{}, fmt.Errorf("%s: %w: must be greater than zero", label, ErrInvalidAmount)
	}
	return FromBase(base), nil
}

// ParseOptional converts an optional display string. An empty string yields a
// zero Amount and ok=false.
func ParseOptional(label, display string) (amount Amount, ok bool, err error) {
	if strings.TrimSpace(display) == "" {
		return FromBase(nil), false, nil
	}
	amount, err = ParsePositive(label, display)
	if err != nil {
		return Amount{}, false, err
	}
	return amount, true, nil
}

// CheckUint256 rejects negative values and values wider than 256 bits.
func CheckUint256(value *big.Int) error {
	if value == nil {
		return fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidAmount)
	}
	if _, overflow := uint256.FromBig(value); overflow {
		return fmt.Errorf("%w: value exceeds uint256", ErrInvalidAmount)
	}
	return nil
}
