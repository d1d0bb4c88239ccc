package state

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
	"elegentdefi/units"
)

// SessionClient is the slice of the platform client used by Session.
type SessionClient interface {
	AccountSource
	Connect(ctx context.Context, wallet platform.Wallet) (common.Address, error)
	Disconnect()
	Balance(ctx context.Context, addr common.Address) (units.Amount, error)
}

// SessionState describes the connected wallet.
type SessionState struct {
	Connected bool           `json:"connected"`
	Account   common.Address `json:"account"`
	Balance   units.Amount   `json:"balance"`
}

// Session tracks the wallet connection. A change of account invalidates
// every cache key so all account-scoped stores reload.
type Session struct {
	*Store[SessionState]
	client SessionClient
	bus    *Bus
	logger *slog.Logger
	cancel func()
}

// NewSession returns a session store. The balance is reloaded whenever the
// platform snapshot is invalidated, which every value-moving action does.
func NewSession(client SessionClient, bus *Bus, opts Options) *Session {
	s := &Session{
		Store:  NewStore[SessionState](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
	}
	s.cancel = bus.Register(platform.KeySnapshot, s.Refresh)
	return s
}

// Close unregisters from the bus and freezes the store.
func (s *Session) Close() {
	s.cancel()
	s.Store.Close()
}

// Connect binds wallet through the client and loads the native balance.
func (s *Session) Connect(ctx context.Context, wallet platform.Wallet) (common.Address, error) {
	token := s.begin()
	account, err := s.client.Connect(ctx, wallet)
	if err != nil {
		s.fail(token, err)
		return common.Address{}, err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("load balance after connect", "account", account.Hex(), "error", err)
	}
	// The refetchers read the account from the client, so they pick up the
	// new binding.
	if err := s.bus.Invalidate(ctx, platform.AllCacheKeys()...); err != nil {
		s.logger.Warn("reload after connect", "account", account.Hex(), "error", err)
	}
	return account, nil
}

// Disconnect drops the binding and clears account-scoped data.
func (s *Session) Disconnect(ctx context.Context) {
	s.client.Disconnect()
	s.reset(SessionState{})
	if err := s.bus.Invalidate(ctx, platform.AllCacheKeys()...); err != nil {
		s.logger.Warn("reload after disconnect", "error", err)
	}
}

// Refresh reloads the balance of the bound account.
func (s *Session) Refresh(ctx context.Context) error {
	token := s.begin()
	account, ok := s.client.Account()
	if !ok {
		s.succeed(token, SessionState{})
		return nil
	}
	balance, err := s.client.Balance(ctx, account)
	if err != nil {
		s.fail(token, err)
		return err
	}
	s.succeed(token, SessionState{Connected: true, Account: account, Balance: balance})
	return nil
}
