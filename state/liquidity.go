package state

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
	"elegentdefi/units"
)

// LiquidityClient is the slice of the platform client used by Liquidity.
type LiquidityClient interface {
	AddLiquidity(ctx context.Context, token, amount, ethValue string) (platform.Result, error)
	TokenLiquidity(ctx context.Context, token string) (units.Amount, error)
	SupportedToken(ctx context.Context, token string) (bool, error)
}

// TokenPool is the available liquidity of one token.
type TokenPool struct {
	Token     common.Address `json:"token"`
	Supported bool           `json:"supported"`
	Available units.Amount   `json:"available"`
}

type LiquidityState struct {
	Pools []TokenPool `json:"pools"`
}

// Pool returns the entry for token.
func (s LiquidityState) Pool(token common.Address) (TokenPool, bool) {
	for _, p := range s.Pools {
		if p.Token == token {
			return p, true
		}
	}
	return TokenPool{}, false
}

// Liquidity tracks pool balances for a set of watched tokens.
type Liquidity struct {
	*Store[LiquidityState]
	client LiquidityClient
	bus    *Bus
	logger *slog.Logger
	cancel func()

	mu     sync.Mutex
	tokens map[common.Address]struct{}
}

func NewLiquidity(client LiquidityClient, bus *Bus, opts Options) *Liquidity {
	l := &Liquidity{
		Store:  NewStore[LiquidityState](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
		tokens: make(map[common.Address]struct{}),
	}
	l.cancel = bus.Register(platform.KeyLiquidity, l.Refresh)
	return l
}

func (l *Liquidity) Close() {
	l.cancel()
	l.Store.Close()
}

// Track adds token to the watched set and reloads.
func (l *Liquidity) Track(ctx context.Context, token common.Address) error {
	l.mu.Lock()
	l.tokens[token] = struct{}{}
	l.mu.Unlock()
	return l.Refresh(ctx)
}

// AddLiquidity deposits into a pool. The token is tracked from then on.
func (l *Liquidity) AddLiquidity(ctx context.Context, token, amount, ethValue string) (platform.Result, error) {
	if common.IsHexAddress(token) {
		l.mu.Lock()
		l.tokens[common.HexToAddress(token)] = struct{}{}
		l.mu.Unlock()
	}
	return runAction(ctx, l.Store, l.bus, l.logger, "addLiquidity", func(ctx context.Context) (platform.Result, error) {
		return l.client.AddLiquidity(ctx, token, amount, ethValue)
	})
}

// Refresh reloads every tracked pool.
func (l *Liquidity) Refresh(ctx context.Context) error {
	gen := l.begin()
	l.mu.Lock()
	tokens := make([]common.Address, 0, len(l.tokens))
	for token := range l.tokens {
		tokens = append(tokens, token)
	}
	l.mu.Unlock()
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Hex() < tokens[j].Hex() })

	pools := make([]TokenPool, 0, len(tokens))
	for _, token := range tokens {
		supported, err := l.client.SupportedToken(ctx, token.Hex())
		if err != nil {
			l.fail(gen, err)
			return err
		}
		available, err := l.client.TokenLiquidity(ctx, token.Hex())
		if err != nil {
			l.fail(gen, err)
			return err
		}
		pools = append(pools, TokenPool{Token: token, Supported: supported, Available: available})
	}
	l.succeed(gen, LiquidityState{Pools: pools})
	return nil
}
