package platform

import (
	"context"

	"elegentdefi/contracts"
)

// FlashLoan borrows and repays amount of token within one transaction.
// params is forwarded to the receiver untouched; the client does not
// interpret it.
func (c *Client) FlashLoan(ctx context.Context, token, amount string, params []byte) (Result, error) {
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return Result{}, err
	}
	principal, err := parseAmount("amount", amount)
	if err != nil {
		return Result{}, err
	}
	if params == nil {
		params = []byte{}
	}
	return c.transact(ctx, c.platform, contracts.MethodFlashLoan, nil,
		keys(KeySnapshot), tokenAddr, principal.Base, params)
}

// FlashLoanText is FlashLoan with UTF-8 text parameters.
func (c *Client) FlashLoanText(ctx context.Context, token, amount, params string) (Result, error) {
	return c.FlashLoan(ctx, token, amount, []byte(params))
}
