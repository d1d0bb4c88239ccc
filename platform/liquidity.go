package platform

import (
	"context"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// AddLiquidity supplies amount of token to the lending pool. ethValue is
// required when token is the native currency (zero address).
func (c *Client) AddLiquidity(ctx context.Context, token, amount, ethValue string) (Result, error) {
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return Result{}, err
	}
	supplied, err := parseAmount("amount", amount)
	if err != nil {
		return Result{}, err
	}
	value, err := parseValue("value", ethValue)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodAddLiquidity, value,
		keys(KeyLiquidity, KeySnapshot), tokenAddr, supplied.Base)
}

// TokenLiquidity returns the pool balance available for token.
func (c *Client) TokenLiquidity(ctx context.Context, token string) (units.Amount, error) {
	addr, err := parseAddress("token", token)
	if err != nil {
		return units.Amount{}, err
	}
	return c.amountView(ctx, contracts.MethodTokenLiquidity, addr)
}

// SupportedToken reports whether the platform accepts token.
func (c *Client) SupportedToken(ctx context.Context, token string) (bool, error) {
	addr, err := parseAddress("token", token)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, c.platform, contracts.MethodSupportedTokens, addr)
	if err != nil {
		return false, err
	}
	return output[bool](contracts.MethodSupportedTokens, out, 0)
}
