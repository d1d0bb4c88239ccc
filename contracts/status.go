package contracts

import (
	"fmt"
	"strings"
)

// LoanStatus mirrors the uint8 status field of the platform's loan record.
type LoanStatus uint8

const (
	LoanPending LoanStatus = iota
	LoanActive
	LoanRepaid
	LoanLiquidated
	LoanDefaulted
)

var loanStatusNames = map[LoanStatus]string{
	LoanPending:    "Pending",
	LoanActive:     "Active",
	LoanRepaid:     "Repaid",
	LoanLiquidated: "Liquidated",
	LoanDefaulted:  "Defaulted",
}

func (s LoanStatus) String() string {
	if name, ok := loanStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LoanStatus(%d)", uint8(s))
}

// Valid reports whether the status is one the contract defines.
func (s LoanStatus) Valid() bool {
	_, ok := loanStatusNames[s]
	return ok
}

// Terminal reports whether the loan can no longer change.
func (s LoanStatus) Terminal() bool {
	return s == LoanRepaid || s == LoanLiquidated || s == LoanDefaulted
}

// MarshalText renders the status name for JSON payloads.
func (s LoanStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown loan status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// ParseLoanStatus resolves a status name case-insensitively.
func ParseLoanStatus(name string) (LoanStatus, error) {
	trimmed := strings.TrimSpace(name)
	for status, label := range loanStatusNames {
		if strings.EqualFold(label, trimmed) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown loan status %q", name)
}
