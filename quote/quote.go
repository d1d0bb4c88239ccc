// Package quote holds display-only arithmetic shown next to loan forms. None
// of it is authoritative; the contract computes the real numbers.
package quote

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownDuration = errors.New("quote: unknown loan duration")
	ErrInvalidInput    = errors.New("quote: invalid input")
)

// Term is one selectable loan duration with its advertised APR in percent.
type Term struct {
	Days int             `json:"days"`
	APR  decimal.Decimal `json:"apr"`
}

func (t Term) Label() string {
	return fmt.Sprintf("%d days", t.Days)
}

var (
	daysPerYear     = decimal.NewFromInt(365)
	hundred         = decimal.NewFromInt(100)
	borrowableShare = decimal.RequireFromString("0.8")
	defaultTermDays = 30
	termsByDays     = map[int]Term{
		7:   {Days: 7, APR: decimal.RequireFromString("6.5")},
		30:  {Days: 30, APR: decimal.RequireFromString("8.2")},
		90:  {Days: 90, APR: decimal.RequireFromString("9.5")},
		180: {Days: 180, APR: decimal.RequireFromString("11.0")},
	}
)

// Terms returns the supported durations ordered by length.
func Terms() []Term {
	out := make([]Term, 0, len(termsByDays))
	for _, term := range termsByDays {
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}

// TermFor resolves a duration in days. Zero selects the default 30 day term.
func TermFor(days int) (Term, error) {
	if days == 0 {
		days = defaultTermDays
	}
	term, ok := termsByDays[days]
	if !ok {
		return Term{}, fmt.Errorf("%w: %d days", ErrUnknownDuration, days)
	}
	return term, nil
}

// Interest returns principal * apr% * days/365 rounded to two decimals.
func Interest(principal, aprPercent decimal.Decimal, days int) (decimal.Decimal, error) {
	if principal.IsNegative() || aprPercent.IsNegative() || days < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative principal, rate or duration", ErrInvalidInput)
	}
	raw := principal.Mul(aprPercent).Mul(decimal.NewFromInt(int64(days))).Div(hundred.Mul(daysPerYear))
	return raw.Round(2), nil
}

// Quote is the rendered summary for a prospective loan.
type Quote struct {
	Principal decimal.Decimal `json:"principal"`
	Term      Term            `json:"term"`
	Interest  decimal.Decimal `json:"interest"`
	Total     decimal.Decimal `json:"total"`
}

// ForLoan quotes a loan of principal (display units) over the given term.
func ForLoan(principal string, days int) (Quote, error) {
	value, err := parseDisplay(principal)
	if err != nil {
		return Quote{}, err
	}
	term, err := TermFor(days)
	if err != nil {
		return Quote{}, err
	}
	interest, err := Interest(value, term.APR, term.Days)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Principal: value,
		Term:      term,
		Interest:  interest,
		Total:     Total(value, interest),
	}, nil
}

// Total is principal plus interest, rounded to two decimals.
func Total(principal, interest decimal.Decimal) decimal.Decimal {
	return principal.Add(interest).Round(2)
}

// MaxBorrow caps the contract's per-user limit at 80% of available token
// liquidity.
func MaxBorrow(maxLoan, liquidity decimal.Decimal) decimal.Decimal {
	capped := liquidity.Mul(borrowableShare)
	if capped.IsNegative() {
		capped = decimal.Zero
	}
	return decimal.Min(maxLoan, capped).Round(2)
}

func parseDisplay(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidInput, value)
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidInput, value)
	}
	return parsed, nil
}
