package contracts

// PlatformABI is the interface of the deployed ElegentDeFi lending platform.
// Signatures and units are fixed by the deployed contract.
const PlatformABI = `[
	{"inputs": [{"name": "liquidator", "type": "address"}], "name": "addLiquidator", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [{"name": "token", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "addLiquidity", "outputs": [], "stateMutability": "payable", "type": "function"},
	{"inputs": [{"name": "token", "type": "address"}], "name": "addSupportedToken", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "createTrustScore", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [{"name": "token", "type": "address"}, {"name": "amount", "type": "uint256"}, {"name": "params", "type": "bytes"}], "name": "flashLoan", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "stateMutability": "nonpayable", "type": "constructor"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "borrower", "type": "address"}, {"indexed": false, "name": "token", "type": "address"}, {"indexed": false, "name": "amount", "type": "uint256"}, {"indexed": false, "name": "fee", "type": "uint256"}], "name": "FlashLoanExecuted", "type": "event"},
	{"inputs": [{"name": "loanId", "type": "uint256"}], "name": "liquidateLoan", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "loanId", "type": "uint256"}, {"indexed": true, "name": "borrower", "type": "address"}, {"indexed": false, "name": "amount", "type": "uint256"}, {"indexed": false, "name": "rate", "type": "uint256"}], "name": "LoanCreated", "type": "event"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "loanId", "type": "uint256"}, {"indexed": false, "name": "liquidator", "type": "address"}], "name": "LoanLiquidated", "type": "event"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "loanId", "type": "uint256"}, {"indexed": true, "name": "borrower", "type": "address"}, {"indexed": false, "name": "early", "type": "bool"}], "name": "LoanRepaid", "type": "event"},
	{"inputs": [{"name": "loanId", "type": "uint256"}], "name": "repayLoan", "outputs": [], "stateMutability": "payable", "type": "function"},
	{"inputs": [{"name": "token", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "requestLoan", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
	{"inputs": [{"name": "_paused", "type": "bool"}], "name": "setPaused", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "stake", "outputs": [], "stateMutability": "payable", "type": "function"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "user", "type": "address"}, {"indexed": false, "name": "amount", "type": "uint256"}], "name": "Staked", "type": "event"},
	{"inputs": [{"name": "amount", "type": "uint256"}], "name": "unstake", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "user", "type": "address"}, {"indexed": false, "name": "amount", "type": "uint256"}], "name": "Unstaked", "type": "event"},
	{"stateMutability": "payable", "type": "receive"},
	{"inputs": [], "name": "admin", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "BPS_DIVISOR", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "score", "type": "uint256"}], "name": "calculateDynamicRate", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "pure", "type": "function"},
	{"inputs": [{"name": "user", "type": "address"}], "name": "calculateMaxLoan", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "FLASH_LOAN_FEE_BPS", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "user", "type": "address"}], "name": "getPendingRewards", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "user", "type": "address"}], "name": "getUserLoans", "outputs": [{"name": "", "type": "uint256[]"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}], "name": "liquidators", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "LOAN_DURATION", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "loanNFT", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "uint256"}], "name": "loans", "outputs": [{"name": "borrower", "type": "address"}, {"name": "token", "type": "address"}, {"name": "amount", "type": "uint256"}, {"name": "interest", "type": "uint256"}, {"name": "rate", "type": "uint256"}, {"name": "dueDate", "type": "uint256"}, {"name": "status", "type": "uint8"}, {"name": "nftId", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "MAX_LOAN_AMOUNT", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "MAX_TRUST_SCORE", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "MIN_LOAN_AMOUNT", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}], "name": "moderators", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "paused", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "PLATFORM_FEE_BPS", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "uint256"}], "name": "refinancedLoans", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}], "name": "stakes", "outputs": [{"name": "amount", "type": "uint256"}, {"name": "rewards", "type": "uint256"}, {"name": "lastRewardTime", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}], "name": "supportedTokens", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}], "name": "tokenLiquidity", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalLoans", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalStaked", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalVolume", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "treasuryBalance", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "trustScoreNFT", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "", "type": "address"}, {"name": "", "type": "uint256"}], "name": "userLoans", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "WEEK", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// TrustScoreABI covers the trust-score NFT contract calls used for lookups
// and privileged score updates.
const TrustScoreABI = `[
	{"inputs": [{"name": "user", "type": "address"}], "name": "getUserTrustScore", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "user", "type": "address"}, {"name": "newScore", "type": "uint256"}], "name": "updateTrustScore", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"anonymous": false, "inputs": [{"indexed": true, "name": "user", "type": "address"}, {"indexed": false, "name": "score", "type": "uint256"}], "name": "TrustScoreUpdated", "type": "event"}
]`
