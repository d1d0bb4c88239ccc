package platform

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// RequestLoan borrows amount of token. ethValue, when non-empty, is attached
// as native-currency payment.
func (c *Client) RequestLoan(ctx context.Context, token, amount, ethValue string) (Result, error) {
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return Result{}, err
	}
	principal, err := parseAmount("amount", amount)
	if err != nil {
		return Result{}, err
	}
	value, err := parseValue("value", ethValue)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodRequestLoan, value,
		keys(KeyLoans, KeySnapshot), tokenAddr, principal.Base)
}

// RepayLoan repays loanID, sending ethValue with the transaction.
func (c *Client) RepayLoan(ctx context.Context, loanID uint64, ethValue string) (Result, error) {
	value, err := parseAmount("value", ethValue)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodRepayLoan, value.Base,
		keys(KeyLoans, KeySnapshot), new(big.Int).SetUint64(loanID))
}

// LiquidateLoan liquidates an overdue loan. Callers must be registered
// liquidators; the contract enforces it.
func (c *Client) LiquidateLoan(ctx context.Context, loanID uint64) (Result, error) {
	return c.transact(ctx, c.platform, contracts.MethodLiquidateLoan, nil,
		keys(KeyLoans, KeySnapshot), new(big.Int).SetUint64(loanID))
}

// UserLoans returns the ids of every loan owned by user.
func (c *Client) UserLoans(ctx context.Context, user string) ([]uint64, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, c.platform, contracts.MethodGetUserLoans, addr)
	if err != nil {
		return nil, err
	}
	raw, err := output[[]*big.Int](contracts.MethodGetUserLoans, out, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		value, err := bigToUint64(contracts.MethodGetUserLoans, id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, value)
	}
	return ids, nil
}

// Loan reads one loan record.
func (c *Client) Loan(ctx context.Context, loanID uint64) (Loan, error) {
	method := contracts.MethodLoans
	out, err := c.call(ctx, c.platform, method, new(big.Int).SetUint64(loanID))
	if err != nil {
		return Loan{}, err
	}
	borrower, err := output[common.Address](method, out, 0)
	if err != nil {
		return Loan{}, err
	}
	token, err := output[common.Address](method, out, 1)
	if err != nil {
		return Loan{}, err
	}
	amount, err := output[*big.Int](method, out, 2)
	if err != nil {
		return Loan{}, err
	}
	interest, err := output[*big.Int](method, out, 3)
	if err != nil {
		return Loan{}, err
	}
	rate, err := output[*big.Int](method, out, 4)
	if err != nil {
		return Loan{}, err
	}
	due, err := output[*big.Int](method, out, 5)
	if err != nil {
		return Loan{}, err
	}
	status, err := output[uint8](method, out, 6)
	if err != nil {
		return Loan{}, err
	}
	nftID, err := output[*big.Int](method, out, 7)
	if err != nil {
		return Loan{}, err
	}

	loan := Loan{
		ID:        loanID,
		Borrower:  borrower,
		Token:     token,
		Principal: units.FromBase(amount),
		Interest:  units.FromBase(interest),
		Status:    contracts.LoanStatus(status),
	}
	if !loan.Status.Valid() {
		return Loan{}, fmt.Errorf("%w: loan %d has unknown status %d", ErrRPC, loanID, status)
	}
	if loan.RateBPS, err = bigToUint64(method, rate); err != nil {
		return Loan{}, err
	}
	dueUnix, err := bigToUint64(method, due)
	if err != nil {
		return Loan{}, err
	}
	if dueUnix > 0 {
		loan.DueDate = time.Unix(int64(dueUnix), 0).UTC()
	}
	if loan.NFTID, err = bigToUint64(method, nftID); err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// LoansOf reads the ids and details of every loan owned by user.
func (c *Client) LoansOf(ctx context.Context, user string) ([]Loan, error) {
	ids, err := c.UserLoans(ctx, user)
	if err != nil {
		return nil, err
	}
	loans := make([]Loan, 0, len(ids))
	for _, id := range ids {
		loan, err := c.Loan(ctx, id)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// MaxLoan returns the most user may currently borrow.
func (c *Client) MaxLoan(ctx context.Context, user string) (units.Amount, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return units.Amount{}, err
	}
	return c.amountView(ctx, contracts.MethodCalculateMaxLoan, addr)
}

// DynamicRate returns the rate in basis points the contract would charge a
// borrower with the given trust score.
func (c *Client) DynamicRate(ctx context.Context, score uint64) (uint64, error) {
	out, err := c.call(ctx, c.platform, contracts.MethodCalculateDynamicRate, new(big.Int).SetUint64(score))
	if err != nil {
		return 0, err
	}
	rate, err := output[*big.Int](contracts.MethodCalculateDynamicRate, out, 0)
	if err != nil {
		return 0, err
	}
	return bigToUint64(contracts.MethodCalculateDynamicRate, rate)
}

func (c *Client) amountView(ctx context.Context, method string, args ...any) (units.Amount, error) {
	out, err := c.call(ctx, c.platform, method, args...)
	if err != nil {
		return units.Amount{}, err
	}
	value, err := output[*big.Int](method, out, 0)
	if err != nil {
		return units.Amount{}, err
	}
	return units.FromBase(value), nil
}
