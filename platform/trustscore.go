package platform

import (
	"context"
	"math/big"

	"elegentdefi/contracts"
)

// CreateTrustScore initialises the caller's trust score on the platform.
func (c *Client) CreateTrustScore(ctx context.Context) (Result, error) {
	return c.transact(ctx, c.platform, contracts.MethodCreateTrustScore, nil, keys(KeyTrustScore, KeyLoans))
}

// UpdateTrustScore sets user's score on the trust-score contract. Only a
// privileged caller succeeds; others get a revert.
func (c *Client) UpdateTrustScore(ctx context.Context, user string, score uint64) (Result, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return Result{}, err
	}
	if score == 0 {
		return Result{}, validationError("score must be greater than zero")
	}
	return c.transact(ctx, c.trust, contracts.MethodUpdateTrustScore, nil,
		keys(KeyTrustScore), addr, new(big.Int).SetUint64(score))
}

// TrustScoreOf reads user's score from the trust-score contract.
func (c *Client) TrustScoreOf(ctx context.Context, user string) (TrustScore, error) {
	addr, err := parseAddress("user", user)
	if err != nil {
		return TrustScore{}, err
	}
	method := contracts.MethodGetUserTrustScore
	out, err := c.call(ctx, c.trust, method, addr)
	if err != nil {
		return TrustScore{}, err
	}
	raw, err := output[*big.Int](method, out, 0)
	if err != nil {
		return TrustScore{}, err
	}
	score, err := bigToUint64(method, raw)
	if err != nil {
		return TrustScore{}, err
	}
	return TrustScore{Owner: addr, Score: score}, nil
}
