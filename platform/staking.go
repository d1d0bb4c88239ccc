package platform

import (
	"context"
	"math/big"
	"time"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// Stake deposits amount of native currency into the staking pool.
func (c *Client) Stake(ctx context.Context, amount string) (Result, error) {
	value, err := parseAmount("amount", amount)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodStake, value.Base, keys(KeyStake, KeySnapshot))
}

// Unstake withdraws amount. Balance sufficiency is checked by the contract
// and surfaces as a revert.
func (c *Client) Unstake(ctx context.Context, amount string) (Result, error) {
	value, err := parseAmount("amount", amount)
	if err != nil {
		return Result{}, err
	}
	return c.transact(ctx, c.platform, contracts.MethodUnstake, nil, keys(KeyStake, KeySnapshot), value.Base)
}

// UserStake reads the staking record of user.
func (c *Client) UserStake(ctx context.Context, user string) (Stake, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return Stake{}, err
	}
	method := contracts.MethodStakes
	out, err := c.call(ctx, c.platform, method, addr)
	if err != nil {
		return Stake{}, err
	}
	amount, err := output[*big.Int](method, out, 0)
	if err != nil {
		return Stake{}, err
	}
	rewards, err := output[*big.Int](method, out, 1)
	if err != nil {
		return Stake{}, err
	}
	last, err := output[*big.Int](method, out, 2)
	if err != nil {
		return Stake{}, err
	}
	stake := Stake{Owner: addr, Amount: units.FromBase(amount), Rewards: units.FromBase(rewards)}
	lastUnix, err := bigToUint64(method, last)
	if err != nil {
		return Stake{}, err
	}
	if lastUnix > 0 {
		stake.LastRewardTime = time.Unix(int64(lastUnix), 0).UTC()
	}
	return stake, nil
}

// PendingRewards returns rewards accrued by user since the last claim.
func (c *Client) PendingRewards(ctx context.Context, user string) (units.Amount, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return units.Amount{}, err
	}
	return c.amountView(ctx, contracts.MethodGetPendingRewards, addr)
}
