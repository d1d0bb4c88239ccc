package state

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
	"elegentdefi/quote"
)

// TrustScoreClient is the slice of the platform client used by TrustScores.
type TrustScoreClient interface {
	AccountSource
	CreateTrustScore(ctx context.Context) (platform.Result, error)
	UpdateTrustScore(ctx context.Context, user string, score uint64) (platform.Result, error)
	TrustScoreOf(ctx context.Context, user string) (platform.TrustScore, error)
}

// TrustState is a score together with its display tier. A zero score means
// no score has been created for the owner.
type TrustState struct {
	Owner    common.Address `json:"owner"`
	Score    uint64         `json:"score"`
	Exists   bool           `json:"exists"`
	Tier     quote.Tier     `json:"tier,omitempty"`
	Benefits []string       `json:"benefits,omitempty"`
}

func trustState(score platform.TrustScore) TrustState {
	st := TrustState{Owner: score.Owner, Score: score.Score}
	if score.Score == 0 {
		return st
	}
	st.Exists = true
	st.Tier = quote.TierFor(score.Score)
	st.Benefits = st.Tier.Benefits()
	return st
}

// TrustScores holds the trust score of the connected account, or of the
// last address passed to Fetch.
type TrustScores struct {
	*Store[TrustState]
	client TrustScoreClient
	bus    *Bus
	logger *slog.Logger
	cancel func()
}

func NewTrustScores(client TrustScoreClient, bus *Bus, opts Options) *TrustScores {
	t := &TrustScores{
		Store:  NewStore[TrustState](opts.Now),
		client: client,
		bus:    bus,
		logger: opts.logger(),
	}
	t.cancel = bus.Register(platform.KeyTrustScore, t.Refresh)
	return t
}

func (t *TrustScores) Close() {
	t.cancel()
	t.Store.Close()
}

func (t *TrustScores) Create(ctx context.Context) (platform.Result, error) {
	return runAction(ctx, t.Store, t.bus, t.logger, "createTrustScore", func(ctx context.Context) (platform.Result, error) {
		return t.client.CreateTrustScore(ctx)
	})
}

func (t *TrustScores) Update(ctx context.Context, user string, score uint64) (platform.Result, error) {
	return runAction(ctx, t.Store, t.bus, t.logger, "updateTrustScore", func(ctx context.Context) (platform.Result, error) {
		return t.client.UpdateTrustScore(ctx, user, score)
	})
}

// Fetch loads the score of an arbitrary address into the store.
func (t *TrustScores) Fetch(ctx context.Context, user string) (TrustState, error) {
	token := t.begin()
	score, err := t.client.TrustScoreOf(ctx, user)
	if err != nil {
		t.fail(token, err)
		return TrustState{}, err
	}
	st := trustState(score)
	t.succeed(token, st)
	return st, nil
}

// Refresh reloads the bound account's score.
func (t *TrustScores) Refresh(ctx context.Context) error {
	account, ok := currentAccount(t.client)
	if !ok {
		t.reset(TrustState{})
		return nil
	}
	_, err := t.Fetch(ctx, account)
	return err
}
