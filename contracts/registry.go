package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Mutating platform methods.
const (
	MethodRequestLoan       = "requestLoan"
	MethodRepayLoan         = "repayLoan"
	MethodLiquidateLoan     = "liquidateLoan"
	MethodStake             = "stake"
	MethodUnstake           = "unstake"
	MethodFlashLoan         = "flashLoan"
	MethodAddLiquidity      = "addLiquidity"
	MethodCreateTrustScore  = "createTrustScore"
	MethodAddLiquidator     = "addLiquidator"
	MethodAddSupportedToken = "addSupportedToken"
	MethodSetPaused         = "setPaused"
)

// Platform view methods.
const (
	MethodTotalLoans           = "totalLoans"
	MethodTotalStaked          = "totalStaked"
	MethodTotalVolume          = "totalVolume"
	MethodTreasuryBalance      = "treasuryBalance"
	MethodMaxLoanAmount        = "MAX_LOAN_AMOUNT"
	MethodMinLoanAmount        = "MIN_LOAN_AMOUNT"
	MethodPlatformFeeBPS       = "PLATFORM_FEE_BPS"
	MethodFlashLoanFeeBPS      = "FLASH_LOAN_FEE_BPS"
	MethodLoanDuration         = "LOAN_DURATION"
	MethodMaxTrustScore        = "MAX_TRUST_SCORE"
	MethodPaused               = "paused"
	MethodStakes               = "stakes"
	MethodLoans                = "loans"
	MethodCalculateMaxLoan     = "calculateMaxLoan"
	MethodCalculateDynamicRate = "calculateDynamicRate"
	MethodGetPendingRewards    = "getPendingRewards"
	MethodGetUserLoans         = "getUserLoans"
	MethodTokenLiquidity       = "tokenLiquidity"
	MethodSupportedTokens      = "supportedTokens"
)

// Trust-score contract methods.
const (
	MethodGetUserTrustScore = "getUserTrustScore"
	MethodUpdateTrustScore  = "updateTrustScore"
)

// Platform events.
const (
	EventLoanCreated       = "LoanCreated"
	EventLoanRepaid        = "LoanRepaid"
	EventLoanLiquidated    = "LoanLiquidated"
	EventStaked            = "Staked"
	EventUnstaked          = "Unstaked"
	EventFlashLoanExecuted = "FlashLoanExecuted"
)

var (
	platformOnce sync.Once
	platformABI  abi.ABI
	platformErr  error

	trustOnce sync.Once
	trustABI  abi.ABI
	trustErr  error
)

// Platform returns the parsed platform ABI. The result is cached.
func Platform() (abi.ABI, error) {
	platformOnce.Do(func() {
		platformABI, platformErr = abi.JSON(strings.NewReader(PlatformABI))
		if platformErr != nil {
			platformErr = fmt.Errorf("parse platform abi: %w", platformErr)
		}
	})
	return platformABI, platformErr
}

// TrustScore returns the parsed trust-score ABI. The result is cached.
func TrustScore() (abi.ABI, error) {
	trustOnce.Do(func() {
		trustABI, trustErr = abi.JSON(strings.NewReader(TrustScoreABI))
		if trustErr != nil {
			trustErr = fmt.Errorf("parse trust score abi: %w", trustErr)
		}
	})
	return trustABI, trustErr
}

// MustPlatform is Platform for package initialisation and tests.
func MustPlatform() abi.ABI {
	parsed, err := Platform()
	if err != nil {
		panic(err)
	}
	return parsed
}

// MustTrustScore is TrustScore for package initialisation and tests.
func MustTrustScore() abi.ABI {
	parsed, err := TrustScore()
	if err != nil {
		panic(err)
	}
	return parsed
}

// SnapshotMethods lists the view calls that make up one platform snapshot, in
// the order they are assembled.
func SnapshotMethods() []string {
	return []string{
		MethodTotalLoans,
		MethodTotalStaked,
		MethodTotalVolume,
		MethodTreasuryBalance,
		MethodMaxLoanAmount,
		MethodMinLoanAmount,
		MethodPlatformFeeBPS,
		MethodFlashLoanFeeBPS,
		MethodLoanDuration,
		MethodMaxTrustScore,
		MethodPaused,
	}
}

// Payable reports whether the platform method accepts native currency.
func Payable(method string) bool {
	parsed, err := Platform()
	if err != nil {
		return false
	}
	m, ok := parsed.Methods[method]
	return ok && m.IsPayable()
}
