package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type codedError struct {
	code int
	msg  string
	data any
}

func (e codedError) Error() string          { return e.msg }
func (e codedError) ErrorCode() int         { return e.code }
func (e codedError) ErrorData() interface{} { return e.data }

func TestClassify(t *testing.T) {
	require.NoError(t, classify("stake", nil))

	err := classify("stake", codedError{code: 4001, msg: "denied"})
	require.ErrorIs(t, err, ErrUserRejected)

	err = classify("", fmt.Errorf("unlock: %w", keystore.ErrDecrypt))
	require.ErrorIs(t, err, ErrUserRejected)

	err = classify("unstake", errors.New("execution reverted: Insufficient stake"))
	require.ErrorIs(t, err, ErrReverted)
	reason, ok := RevertReason(err)
	require.True(t, ok)
	require.Equal(t, "Insufficient stake", reason)

	// Error(string) "Paused"
	data := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000006" +
		"5061757365640000000000000000000000000000000000000000000000000000"
	err = classify("requestLoan", codedError{code: 3, msg: "execution reverted", data: data})
	reason, ok = RevertReason(err)
	require.True(t, ok)
	require.Equal(t, "Paused", reason)

	err = classify("totalLoans", errors.New("dial tcp: connection refused"))
	require.ErrorIs(t, err, ErrRPC)
	require.Contains(t, err.Error(), "totalLoans")

	already := fmt.Errorf("%w: amount", ErrValidation)
	require.Same(t, already, classify("stake", already))
}

func TestRevertErrorMessage(t *testing.T) {
	err := &RevertError{Method: "unstake", Reason: "Insufficient stake", TxHash: common.HexToHash("0x01")}
	require.ErrorIs(t, err, ErrReverted)
	require.Contains(t, err.Error(), "unstake reverted: Insufficient stake")
	require.Contains(t, err.Error(), "0x0000000000000000000000000000000000000000000000000000000000000001")
	require.Equal(t, "platform: reverted", (&RevertError{}).Error())
}

func TestAllCacheKeys(t *testing.T) {
	require.Len(t, AllCacheKeys(), 6)
	require.Equal(t, "trust-score", KeyTrustScore.String())
}
