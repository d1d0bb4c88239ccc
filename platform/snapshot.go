package platform

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// ContractData reads the platform counters in parallel and assembles one
// Snapshot. If any read fails the whole batch fails and no partial snapshot
// is returned.
func (c *Client) ContractData(ctx context.Context) (Snapshot, error) {
	if c == nil {
		return Snapshot{}, ErrContractNotReady
	}
	methods := contracts.SnapshotMethods()
	results := make([]any, len(methods))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, method := range methods {
		i, method := i, method
		group.Go(func() error {
			out, err := c.call(groupCtx, c.platform, method)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", method, err)
			}
			if len(out) == 0 {
				return fmt.Errorf("%w: snapshot %s returned nothing", ErrRPC, method)
			}
			results[i] = out[0]
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Snapshot{}, err
	}
	return assembleSnapshot(methods, results, c.now())
}

func assembleSnapshot(methods []string, results []any, fetchedAt time.Time) (Snapshot, error) {
	byMethod := make(map[string]any, len(methods))
	for i, method := range methods {
		byMethod[method] = results[i]
	}
	bigOf := func(method string) (*big.Int, error) {
		return output[*big.Int](method, []any{byMethod[method]}, 0)
	}
	countOf := func(method string) (uint64, error) {
		value, err := bigOf(method)
		if err != nil {
			return 0, err
		}
		return bigToUint64(method, value)
	}
	amountOf := func(method string) (units.Amount, error) {
		value, err := bigOf(method)
		if err != nil {
			return units.Amount{}, err
		}
		return units.FromBase(value), nil
	}

	var (
		snap Snapshot
		err  error
	)
	if snap.TotalLoans, err = countOf(contracts.MethodTotalLoans); err != nil {
		return Snapshot{}, err
	}
	if snap.TotalStaked, err = amountOf(contracts.MethodTotalStaked); err != nil {
		return Snapshot{}, err
	}
	if snap.TotalVolume, err = amountOf(contracts.MethodTotalVolume); err != nil {
		return Snapshot{}, err
	}
	if snap.TreasuryBalance, err = amountOf(contracts.MethodTreasuryBalance); err != nil {
		return Snapshot{}, err
	}
	if snap.MaxLoanAmount, err = amountOf(contracts.MethodMaxLoanAmount); err != nil {
		return Snapshot{}, err
	}
	if snap.MinLoanAmount, err = amountOf(contracts.MethodMinLoanAmount); err != nil {
		return Snapshot{}, err
	}
	if snap.PlatformFeeBPS, err = countOf(contracts.MethodPlatformFeeBPS); err != nil {
		return Snapshot{}, err
	}
	if snap.FlashLoanFeeBPS, err = countOf(contracts.MethodFlashLoanFeeBPS); err != nil {
		return Snapshot{}, err
	}
	durationSecs, err := countOf(contracts.MethodLoanDuration)
	if err != nil {
		return Snapshot{}, err
	}
	if durationSecs > uint64(math.MaxInt64/int64(time.Second)) {
		return Snapshot{}, fmt.Errorf("%w: %s value %d seconds out of range", ErrRPC, contracts.MethodLoanDuration, durationSecs)
	}
	snap.LoanDuration = time.Duration(durationSecs) * time.Second
	if snap.MaxTrustScore, err = countOf(contracts.MethodMaxTrustScore); err != nil {
		return Snapshot{}, err
	}
	if snap.Paused, err = output[bool](contracts.MethodPaused, []any{byMethod[contracts.MethodPaused]}, 0); err != nil {
		return Snapshot{}, err
	}
	snap.FetchedAt = fetchedAt
	return snap, nil
}
