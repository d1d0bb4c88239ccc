package platform

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"elegentdefi/observability"
	"elegentdefi/units"
)

type submission struct {
	PendingTx
	msg ethereum.CallMsg
}

// transact submits one transaction, waits for it to be mined and reports
// which cache keys it made stale. It never retries.
func (c *Client) transact(ctx context.Context, target contract, method string, value *big.Int, invalidates []CacheKey, args ...any) (Result, error) {
	if c == nil {
		return Result{}, ErrContractNotReady
	}
	if !target.configured() {
		return Result{}, fmt.Errorf("%w: %s contract address not configured", ErrContractNotReady, target.name)
	}
	from, signer, err := c.binding()
	if err != nil {
		return Result{}, err
	}

	ctx, span := c.startSpan(ctx, method, "tx")
	started := time.Now()
	sub, err := c.submit(ctx, target, from, signer, method, value, args...)
	if err != nil {
		c.finish(span, method, "tx", started, err)
		observability.ContractMetrics().RecordTransaction(method, "failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.String("tx.hash", sub.Hash.Hex()))
	c.logger.Info("transaction submitted",
		"method", method,
		"tx_hash", sub.Hash.Hex(),
		"account", from.Hex(),
		"contract", target.address.Hex())

	receipt, err := c.confirm(ctx, sub)
	c.finish(span, method, "tx", started, err)
	switch {
	case errors.Is(err, ErrReverted):
		observability.ContractMetrics().RecordTransaction(method, "reverted")
		c.logger.Warn("transaction reverted", "method", method, "tx_hash", sub.Hash.Hex(), "error", err)
		return Result{}, err
	case err != nil:
		observability.ContractMetrics().RecordTransaction(method, "failed")
		return Result{}, err
	}
	observability.ContractMetrics().RecordTransaction(method, "mined")
	return Result{Tx: sub.PendingTx, Receipt: receipt, Invalidates: invalidates}, nil
}

func (c *Client) submit(ctx context.Context, target contract, from common.Address, signer SignerFn, method string, value *big.Int, args ...any) (submission, error) {
	data, err := target.abi.Pack(method, args...)
	if err != nil {
		return submission{}, validationError("encode %s: %v", method, err)
	}
	chainID, err := c.resolveChainID(ctx)
	if err != nil {
		return submission{}, err
	}
	to := target.address
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return submission{}, classify(method, err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return submission{}, classify(method, err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return submission{}, classify(method, err)
	}

	var tx *types.Transaction
	if head != nil && head.BaseFee != nil {
		tip, err := c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return submission{}, classify(method, err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		price, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return submission{}, classify(method, err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signed, err := signer(from, tx)
	if err != nil {
		return submission{}, walletError(err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return submission{}, classify(method, err)
	}
	return submission{
		PendingTx: PendingTx{Hash: signed.Hash(), Method: method, SubmittedAt: c.now()},
		msg:       msg,
	}, nil
}

// confirm waits for the receipt and, for a failed status, replays the call
// at the mined block to recover the revert reason.
func (c *Client) confirm(ctx context.Context, sub submission) (*types.Receipt, error) {
	receipt, err := c.WaitMined(ctx, sub.PendingTx)
	if !errors.Is(err, ErrReverted) || receipt == nil {
		return receipt, err
	}
	revert := &RevertError{Method: sub.Method, TxHash: sub.Hash}
	if _, callErr := c.backend.CallContract(ctx, sub.msg, receipt.BlockNumber); callErr != nil {
		if reason, ok := revertFromError(callErr); ok {
			revert.Reason = reason
		}
	}
	return receipt, revert
}

// WaitMined polls for the receipt of tx until it is mined or ctx ends. A
// receipt with failed status yields a *RevertError.
func (c *Client) WaitMined(ctx context.Context, tx PendingTx) (*types.Receipt, error) {
	if c == nil {
		return nil, ErrContractNotReady
	}
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, tx.Hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, &RevertError{Method: tx.Method, TxHash: tx.Hash}
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, classify(tx.Method, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for %s: %w", ErrRPC, tx.Hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// call performs a read against target and returns the unpacked outputs.
func (c *Client) call(ctx context.Context, target contract, method string, args ...any) ([]any, error) {
	if c == nil {
		return nil, ErrContractNotReady
	}
	if !target.configured() {
		return nil, fmt.Errorf("%w: %s contract address not configured", ErrContractNotReady, target.name)
	}
	ctx, span := c.startSpan(ctx, method, "view")
	started := time.Now()
	out, err := c.doCall(ctx, target, method, args...)
	c.finish(span, method, "view", started, err)
	return out, err
}

func (c *Client) doCall(ctx context.Context, target contract, method string, args ...any) ([]any, error) {
	data, err := target.abi.Pack(method, args...)
	if err != nil {
		return nil, validationError("encode %s: %v", method, err)
	}
	from, _ := c.Account()
	to := target.address
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, classify(method, err)
	}
	out, err := target.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrRPC, method, err)
	}
	return out, nil
}

func (c *Client) startSpan(ctx context.Context, method, kind string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "platform."+method, trace.WithAttributes(
		attribute.String("contract.method", method),
		attribute.String("contract.kind", kind),
	))
}

func (c *Client) finish(span trace.Span, method, kind string, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	observability.ContractMetrics().Observe(method, kind, time.Since(started), err)
}

func output[T any](method string, out []any, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("%w: %s returned %d values, want at least %d", ErrRPC, method, len(out), i+1)
	}
	value, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s output %d has type %T", ErrRPC, method, i, out[i])
	}
	return value, nil
}

func bigToUint64(method string, value *big.Int) (uint64, error) {
	if value == nil || value.Sign() < 0 || !value.IsUint64() {
		return 0, fmt.Errorf("%w: %s value %v out of range", ErrRPC, method, value)
	}
	return value.Uint64(), nil
}

func parseAddress(label, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, validationError("%s: %q is not a hex address", label, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(label, raw string) (units.Amount, error) {
	amount, err := units.ParsePositive(label, raw)
	if err != nil {
		return units.Amount{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return amount, nil
}

// parseValue reads an optional native-currency payment. It returns nil when
// raw is empty.
func parseValue(label, raw string) (*big.Int, error) {
	amount, ok, err := units.ParseOptional(label, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !ok {
		return nil, nil
	}
	return amount.Base, nil
}
