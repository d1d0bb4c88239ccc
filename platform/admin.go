package platform

import (
	"context"

	"elegentdefi/contracts"
)

// AddLiquidator grants liquidator the right to liquidate overdue loans.
func (c *Client) AddLiquidator(ctx context.Context, liquidator string) (Result, error) {
	addr, err := parseAddress("liquidator", liquidator)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodAddLiquidator, nil, nil, addr)
}

// AddSupportedToken opens a liquidity pool for token.
func (c *Client) AddSupportedToken(ctx context.Context, token string) (Result, error) {
	addr, err := parseAddress("token", token)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodAddSupportedToken, nil, keys(KeyLiquidity), addr)
}

// SetPaused toggles the platform's circuit breaker.
func (c *Client) SetPaused(ctx context.Context, paused bool) (Result, error) {
	return c.transact(ctx, c.platform, contracts.MethodSetPaused, nil, keys(KeyPaused, KeySnapshot), paused)
}

// Paused reads the circuit breaker.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	out, err := c.call(ctx, c.platform, contracts.MethodPaused)
	if err != nil {
		return false, err
	}
	return output[bool](contracts.MethodPaused, out, 0)
}
