package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrWalletUnavailable = errors.New("platform: wallet unavailable")
	ErrUserRejected      = errors.New("platform: request rejected by user")
	ErrContractNotReady  = errors.New("platform: contract not ready")
	ErrRPC               = errors.New("platform: rpc failure")
	ErrReverted          = errors.New("platform: transaction reverted")
	ErrValidation        = errors.New("platform: validation failed")
	ErrMalformedEvent    = errors.New("platform: malformed event")
)

// EIP-1193 "user rejected request".
const userRejectedCode = 4001

// RevertError carries the contract's revert reason verbatim. It matches
// ErrReverted under errors.Is.
type RevertError struct {
	Method string
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	var b strings.Builder
	b.WriteString("platform: ")
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
	}
	b.WriteString("reverted")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if (e.TxHash != common.Hash{}) {
		b.WriteString(" (tx ")
		b.WriteString(e.TxHash.Hex())
		b.WriteString(")")
	}
	return b.String()
}

func (e *RevertError) Unwrap() error { return ErrReverted }

// RevertReason extracts the reason from err when it is a revert.
func RevertReason(err error) (string, bool) {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert.Reason, true
	}
	return "", false
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classify maps a provider or wallet error onto the sentinel taxonomy.
// Errors that already carry a sentinel pass through untouched.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrWalletUnavailable, ErrUserRejected, ErrContractNotReady,
		ErrRPC, ErrReverted, ErrValidation, ErrMalformedEvent,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if isUserRejection(err) {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
	if reason, ok := revertFromError(err); ok {
		return &RevertError{Method: method, Reason: reason}
	}
	if method == "" {
		return fmt.Errorf("%w: %w", ErrRPC, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRPC, method, err)
}

func isUserRejection(err error) bool {
	if errors.Is(err, keystore.ErrDecrypt) {
		return true
	}
	var coded rpc.Error
	if errors.As(err, &coded) && coded.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// revertFromError recognises node revert errors. Structured revert data is
// preferred; the message form covers nodes that only return text.
func revertFromError(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	const marker = "execution reverted"
	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), marker)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimSpace(msg[idx+len(marker):])
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	return reason, true
}
