package state

import (
	"context"
	"log/slog"

	"elegentdefi/platform"
	"elegentdefi/units"
)

// StakingClient is the slice of the platform client used by Staking.
type StakingClient interface {
	AccountSource
	Stake(ctx context.Context, amount string) (platform.Result, error)
	Unstake(ctx context.Context, amount string) (platform.Result, error)
	UserStake(ctx context.Context, user string) (platform.Stake, error)
	PendingRewards(ctx context.Context, user string) (units.Amount, error)
}

type StakingState struct {
	Stake          platform.Stake `json:"stake"`
	PendingRewards units.Amount   `json:"pendingRewards"`
}

// Staking holds the account's stake record and accrued rewards.
type Staking struct {
	*Store[StakingState]
	client StakingClient
	bus    *Bus
	logger *slog.Logger
	cancel func()
}

func NewStaking(client StakingClient, bus *Bus, opts Options) *Staking {
	s := &Staking{
		Store:  NewStore[StakingState](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
	}
	s.cancel = bus.Register(platform.KeyStake, s.Refresh)
	return s
}

func (s *Staking) Close() {
	s.cancel()
	s.Store.Close()
}

func (s *Staking) Stake(ctx context.Context, amount string) (platform.Result, error) {
	return runAction(ctx, s.Store, s.bus, s.logger, "stake", func(ctx context.Context) (platform.Result, error) {
		return s.client.Stake(ctx, amount)
	})
}

func (s *Staking) Unstake(ctx context.Context, amount string) (platform.Result, error) {
	return runAction(ctx, s.Store, s.bus, s.logger, "unstake", func(ctx context.Context) (platform.Result, error) {
		return s.client.Unstake(ctx, amount)
	})
}

// Refresh reloads the stake record and pending rewards.
func (s *Staking) Refresh(ctx context.Context) error {
	token := s.begin()
	account, ok := currentAccount(s.client)
	if !ok {
		s.succeed(token, StakingState{})
		return nil
	}
	stake, err := s.client.UserStake(ctx, account)
	if err != nil {
		s.fail(token, err)
		return err
	}
	rewards, err := s.client.PendingRewards(ctx, account)
	if err != nil {
		s.fail(token, err)
		return err
	}
	s.succeed(token, StakingState{Stake: stake, PendingRewards: rewards})
	return nil
}
