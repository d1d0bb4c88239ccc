package platform

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"elegentdefi/contracts"
	"elegentdefi/units"
)

// Loan is one record of the platform's loans mapping.
type Loan struct {
	ID        uint64               `json:"id"`
	Borrower  common.Address       `json:"borrower"`
	Token     common.Address       `json:"token"`
	Principal units.Amount         `json:"principal"`
	Interest  units.Amount         `json:"interest"`
	RateBPS   uint64               `json:"rateBps"`
	DueDate   time.Time            `json:"dueDate"`
	Status    contracts.LoanStatus `json:"status"`
	NFTID     uint64               `json:"nftId"`
}

// Stake is the per-address staking record.
type Stake struct {
	Owner          common.Address `json:"owner"`
	Amount         units.Amount   `json:"amount"`
	Rewards        units.Amount   `json:"rewards"`
	LastRewardTime time.Time      `json:"lastRewardTime"`
}

// TrustScore is one account's score on the trust-score contract.
type TrustScore struct {
	Owner common.Address `json:"owner"`
	Score uint64         `json:"score"`
}

// Snapshot is a consistent read of the platform-wide counters. It is only
// ever built from a batch where every read succeeded.
type Snapshot struct {
	TotalLoans      uint64        `json:"totalLoans"`
	TotalStaked     units.Amount  `json:"totalStaked"`
	TotalVolume     units.Amount  `json:"totalVolume"`
	TreasuryBalance units.Amount  `json:"treasuryBalance"`
	MaxLoanAmount   units.Amount  `json:"maxLoanAmount"`
	MinLoanAmount   units.Amount  `json:"minLoanAmount"`
	PlatformFeeBPS  uint64        `json:"platformFeeBps"`
	FlashLoanFeeBPS uint64        `json:"flashLoanFeeBps"`
	LoanDuration    time.Duration `json:"loanDuration"`
	MaxTrustScore   uint64        `json:"maxTrustScore"`
	Paused          bool          `json:"paused"`
	FetchedAt       time.Time     `json:"fetchedAt"`
}

// PendingTx identifies a submitted transaction for the current session.
type PendingTx struct {
	Hash        common.Hash `json:"hash"`
	Method      string      `json:"method"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// Result is returned by every mutating call once the transaction is mined.
type Result struct {
	Tx          PendingTx      `json:"tx"`
	Receipt     *types.Receipt `json:"-"`
	Invalidates []CacheKey     `json:"invalidates"`
}
