package platform

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"elegentdefi/contracts"
	"elegentdefi/observability"
	"elegentdefi/units"
)

// LogMeta locates an event on chain.
type LogMeta struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Index       uint        `json:"logIndex"`
}

type LoanCreatedEvent struct {
	LoanID   uint64         `json:"loanId"`
	Borrower common.Address `json:"borrower"`
	Amount   units.Amount   `json:"amount"`
	RateBPS  uint64         `json:"rateBps"`
	Meta     LogMeta        `json:"meta"`
}

type LoanRepaidEvent struct {
	LoanID   uint64         `json:"loanId"`
	Borrower common.Address `json:"borrower"`
	Early    bool           `json:"early"`
	Meta     LogMeta        `json:"meta"`
}

type LoanLiquidatedEvent struct {
	LoanID     uint64         `json:"loanId"`
	Liquidator common.Address `json:"liquidator"`
	Meta       LogMeta        `json:"meta"`
}

type StakedEvent struct {
	User   common.Address `json:"user"`
	Amount units.Amount   `json:"amount"`
	Meta   LogMeta        `json:"meta"`
}

type UnstakedEvent struct {
	User   common.Address `json:"user"`
	Amount units.Amount   `json:"amount"`
	Meta   LogMeta        `json:"meta"`
}

type FlashLoanExecutedEvent struct {
	Borrower common.Address `json:"borrower"`
	Token    common.Address `json:"token"`
	Amount   units.Amount   `json:"amount"`
	Fee      units.Amount   `json:"fee"`
	Meta     LogMeta        `json:"meta"`
}

// Field names follow the ABI argument names so the abi package can fill them.
type (
	rawLoanCreated struct {
		LoanId   *big.Int
		Borrower common.Address
		Amount   *big.Int
		Rate     *big.Int
	}
	rawLoanRepaid struct {
		LoanId   *big.Int
		Borrower common.Address
		Early    bool
	}
	rawLoanLiquidated struct {
		LoanId     *big.Int
		Liquidator common.Address
	}
	rawStakeChange struct {
		User   common.Address
		Amount *big.Int
	}
	rawFlashLoan struct {
		Borrower common.Address
		Token    common.Address
		Amount   *big.Int
		Fee      *big.Int
	}
)

func (c *Client) WatchLoanCreated(ctx context.Context, handler func(LoanCreatedEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventLoanCreated, c.decodeLoanCreated, handler)
}

func (c *Client) WatchLoanRepaid(ctx context.Context, handler func(LoanRepaidEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventLoanRepaid, c.decodeLoanRepaid, handler)
}

func (c *Client) WatchLoanLiquidated(ctx context.Context, handler func(LoanLiquidatedEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventLoanLiquidated, c.decodeLoanLiquidated, handler)
}

func (c *Client) WatchStaked(ctx context.Context, handler func(StakedEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventStaked, c.decodeStaked, handler)
}

func (c *Client) WatchUnstaked(ctx context.Context, handler func(UnstakedEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventUnstaked, c.decodeUnstaked, handler)
}

func (c *Client) WatchFlashLoanExecuted(ctx context.Context, handler func(FlashLoanExecutedEvent)) (event.Subscription, error) {
	return watch(ctx, c, contracts.EventFlashLoanExecuted, c.decodeFlashLoan, handler)
}

// LoanCreatedIn finds the LoanCreated event emitted by a requestLoan receipt.
func (c *Client) LoanCreatedIn(receipt *types.Receipt) (LoanCreatedEvent, bool) {
	if c == nil || receipt == nil {
		return LoanCreatedEvent{}, false
	}
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != c.platform.address {
			continue
		}
		if ev, err := c.decodeLoanCreated(*lg); err == nil {
			return ev, true
		}
	}
	return LoanCreatedEvent{}, false
}

// watch subscribes to live logs of one platform event. Only logs emitted
// after the subscription starts are delivered. A malformed log ends the
// subscription with ErrMalformedEvent on its error channel; handler never
// sees it.
func watch[T any](ctx context.Context, c *Client, name string, decode func(types.Log) (T, error), handler func(T)) (event.Subscription, error) {
	if c == nil {
		return nil, ErrContractNotReady
	}
	if handler == nil {
		return nil, validationError("%s handler required", name)
	}
	ev, ok := c.platform.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event %s", ErrContractNotReady, name)
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.platform.address},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	logs := make(chan types.Log, 16)
	sub, err := c.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, classify("subscribe "+name, err)
	}
	metrics := observability.Events()
	metrics.SubscriptionOpened(name)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer metrics.SubscriptionClosed(name)
		defer sub.Unsubscribe()
		for {
			select {
			case lg := <-logs:
				if lg.Removed {
					metrics.RecordDropped(name, "removed")
					continue
				}
				payload, err := decode(lg)
				if err != nil {
					metrics.RecordDropped(name, "malformed")
					c.logger.Warn("malformed contract event", "event", name, "tx_hash", lg.TxHash.Hex(), "error", err)
					return fmt.Errorf("%w: %s: %w", ErrMalformedEvent, name, err)
				}
				metrics.RecordDelivered(name)
				handler(payload)
			case err := <-sub.Err():
				if err == nil {
					return nil
				}
				return classify("subscribe "+name, err)
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Client) unpackLog(out any, name string, lg types.Log) error {
	ev, ok := c.platform.abi.Events[name]
	if !ok {
		return fmt.Errorf("unknown event %s", name)
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
		return errors.New("event signature mismatch")
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(lg.Topics) != len(indexed)+1 {
		return fmt.Errorf("have %d topics, want %d", len(lg.Topics), len(indexed)+1)
	}
	if err := c.platform.abi.UnpackIntoInterface(out, name, lg.Data); err != nil {
		return fmt.Errorf("unpack data: %w", err)
	}
	if err := abi.ParseTopics(out, indexed, lg.Topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func metaOf(lg types.Log) LogMeta {
	return LogMeta{TxHash: lg.TxHash, BlockNumber: lg.BlockNumber, Index: lg.Index}
}

func requireParty(label string, addr common.Address) error {
	if (addr == common.Address{}) {
		return fmt.Errorf("%s is the zero address", label)
	}
	return nil
}

func eventUint64(label string, value *big.Int) (uint64, error) {
	if value == nil || value.Sign() < 0 || !value.IsUint64() {
		return 0, fmt.Errorf("%s %v out of range", label, value)
	}
	return value.Uint64(), nil
}

func eventAmount(label string, value *big.Int) (units.Amount, error) {
	if err := units.CheckUint256(value); err != nil {
		return units.Amount{}, fmt.Errorf("%s: %w", label, err)
	}
	return units.FromBase(value), nil
}

func (c *Client) decodeLoanCreated(lg types.Log) (LoanCreatedEvent, error) {
	var raw rawLoanCreated
	if err := c.unpackLog(&raw, contracts.EventLoanCreated, lg); err != nil {
		return LoanCreatedEvent{}, err
	}
	if err := requireParty("borrower", raw.Borrower); err != nil {
		return LoanCreatedEvent{}, err
	}
	id, err := eventUint64("loanId", raw.LoanId)
	if err != nil {
		return LoanCreatedEvent{}, err
	}
	amount, err := eventAmount("amount", raw.Amount)
	if err != nil {
		return LoanCreatedEvent{}, err
	}
	rate, err := eventUint64("rate", raw.Rate)
	if err != nil {
		return LoanCreatedEvent{}, err
	}
	return LoanCreatedEvent{LoanID: id, Borrower: raw.Borrower, Amount: amount, RateBPS: rate, Meta: metaOf(lg)}, nil
}

func (c *Client) decodeLoanRepaid(lg types.Log) (LoanRepaidEvent, error) {
	var raw rawLoanRepaid
	if err := c.unpackLog(&raw, contracts.EventLoanRepaid, lg); err != nil {
		return LoanRepaidEvent{}, err
	}
	if err := requireParty("borrower", raw.Borrower); err != nil {
		return LoanRepaidEvent{}, err
	}
	id, err := eventUint64("loanId", raw.LoanId)
	if err != nil {
		return LoanRepaidEvent{}, err
	}
	return LoanRepaidEvent{LoanID: id, Borrower: raw.Borrower, Early: raw.Early, Meta: metaOf(lg)}, nil
}

func (c *Client) decodeLoanLiquidated(lg types.Log) (LoanLiquidatedEvent, error) {
	var raw rawLoanLiquidated
	if err := c.unpackLog(&raw, contracts.EventLoanLiquidated, lg); err != nil {
		return LoanLiquidatedEvent{}, err
	}
	if err := requireParty("liquidator", raw.Liquidator); err != nil {
		return LoanLiquidatedEvent{}, err
	}
	id, err := eventUint64("loanId", raw.LoanId)
	if err != nil {
		return LoanLiquidatedEvent{}, err
	}
	return LoanLiquidatedEvent{LoanID: id, Liquidator: raw.Liquidator, Meta: metaOf(lg)}, nil
}

func (c *Client) decodeStakeChange(name string, lg types.Log) (rawStakeChange, units.Amount, error) {
	var raw rawStakeChange
	if err := c.unpackLog(&raw, name, lg); err != nil {
		return raw, units.Amount{}, err
	}
	if err := requireParty("user", raw.User); err != nil {
		return raw, units.Amount{}, err
	}
	amount, err := eventAmount("amount", raw.Amount)
	return raw, amount, err
}

func (c *Client) decodeStaked(lg types.Log) (StakedEvent, error) {
	raw, amount, err := c.decodeStakeChange(contracts.EventStaked, lg)
	if err != nil {
		return StakedEvent{}, err
	}
	return StakedEvent{User: raw.User, Amount: amount, Meta: metaOf(lg)}, nil
}

func (c *Client) decodeUnstaked(lg types.Log) (UnstakedEvent, error) {
	raw, amount, err := c.decodeStakeChange(contracts.EventUnstaked, lg)
	if err != nil {
		return UnstakedEvent{}, err
	}
	return UnstakedEvent{User: raw.User, Amount: amount, Meta: metaOf(lg)}, nil
}

func (c *Client) decodeFlashLoan(lg types.Log) (FlashLoanExecutedEvent, error) {
	var raw rawFlashLoan
	if err := c.unpackLog(&raw, contracts.EventFlashLoanExecuted, lg); err != nil {
		return FlashLoanExecutedEvent{}, err
	}
	if err := requireParty("borrower", raw.Borrower); err != nil {
		return FlashLoanExecutedEvent{}, err
	}
	amount, err := eventAmount("amount", raw.Amount)
	if err != nil {
		return FlashLoanExecutedEvent{}, err
	}
	fee, err := eventAmount("fee", raw.Fee)
	if err != nil {
		return FlashLoanExecutedEvent{}, err
	}
	return FlashLoanExecutedEvent{
		Borrower: raw.Borrower,
		Token:    raw.Token,
		Amount:   amount,
		Fee:      fee,
		Meta:     metaOf(lg),
	}, nil
}
