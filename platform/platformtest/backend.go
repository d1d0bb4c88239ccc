// Package platformtest provides an in-memory stand-in for a JSON-RPC
// provider serving the platform and trust-score contracts.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"elegentdefi/contracts"
)

var (
	PlatformAddress   = common.HexToAddress("0xd8b934580fcE35a11B58C6D73aDeE468a2833fa8")
	TrustScoreAddress = common.HexToAddress("0x00000000000000000000000000000000000075c0")
	ChainID           = big.NewInt(31337)
)

var ether = big.NewInt(1_000_000_000_000_000_000)

// SentTx is a transaction the backend accepted.
type SentTx struct {
	Hash   common.Hash
	From   common.Address
	To     common.Address
	Method string
	Args   []any
	Value  *big.Int
}

type loanRecord struct {
	borrower common.Address
	token    common.Address
	amount   *big.Int
	interest *big.Int
	rate     *big.Int
	due      *big.Int
	status   uint8
}

// Backend simulates enough of the platform contract to exercise the client:
// stakes, loans, liquidity, trust scores and the platform counters.
type Backend struct {
	platform abi.ABI
	trust    abi.ABI

	mu          sync.Mutex
	nonce       uint64
	lastFrom    common.Address
	sent        []SentTx
	receipts    map[common.Hash]*types.Receipt
	calls       map[string]int
	reverts     map[string]string
	failStatus  map[string]string
	viewErrs    map[string]error
	pendingMiss int
	subs        map[common.Hash][]chan<- types.Log
	emitOnSend  bool

	stakes     map[common.Address]*big.Int
	loans      []loanRecord
	userLoans  map[common.Address][]uint64
	liquidity  map[common.Address]*big.Int
	supported  map[common.Address]bool
	trustScore map[common.Address]*big.Int
	balances   map[common.Address]*big.Int
	paused     bool
	volume     *big.Int
	treasury   *big.Int
}

// NewBackend returns an empty chain with the default platform parameters.
func NewBackend() *Backend {
	return &Backend{
		platform:   contracts.MustPlatform(),
		trust:      contracts.MustTrustScore(),
		receipts:   make(map[common.Hash]*types.Receipt),
		calls:      make(map[string]int),
		reverts:    make(map[string]string),
		failStatus: make(map[string]string),
		viewErrs:   make(map[string]error),
		subs:       make(map[common.Hash][]chan<- types.Log),
		stakes:     make(map[common.Address]*big.Int),
		userLoans:  make(map[common.Address][]uint64),
		liquidity:  make(map[common.Address]*big.Int),
		supported:  map[common.Address]bool{{}: true},
		trustScore: make(map[common.Address]*big.Int),
		balances:   make(map[common.Address]*big.Int),
		volume:     new(big.Int),
		treasury:   new(big.Int),
	}
}

// RevertOn makes gas estimation of method fail with a revert carrying reason.
func (b *Backend) RevertOn(method, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reverts[method] = reason
}

// FailStatusOn mines method with a failed receipt; replaying the call
// reverts with reason.
func (b *Backend) FailStatusOn(method, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus[method] = reason
}

// FailView makes reads of method return err. A nil err clears it.
func (b *Backend) FailView(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.viewErrs, method)
		return
	}
	b.viewErrs[method] = err
}

// DelayReceipts makes the next n receipt lookups report not found.
func (b *Backend) DelayReceipts(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingMiss = n
}

// EmitOnSend makes successful transactions publish the events the contract
// would emit to live subscriptions.
func (b *Backend) EmitOnSend(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitOnSend = enabled
}

// SetTrustScore seeds a trust score.
func (b *Backend) SetTrustScore(user common.Address, score uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trustScore[user] = new(big.Int).SetUint64(score)
}

// SetLiquidity seeds pool liquidity for token.
func (b *Backend) SetLiquidity(token common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.liquidity[token] = new(big.Int).Set(amount)
}

// SetBalance seeds a native balance.
func (b *Backend) SetBalance(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(amount)
}

// Sent returns a copy of the accepted transactions.
func (b *Backend) Sent() []SentTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentTx, len(b.sent))
	copy(out, b.sent)
	return out
}

// Calls reports how many reads of method were served.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// Subscribers reports the live subscriptions for an event.
func (b *Backend) Subscribers(eventName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.platform.Events[eventName]
	if !ok {
		return 0
	}
	return len(b.subs[ev.ID])
}

func (b *Backend) decode(to *common.Address, data []byte) (abi.ABI, *abi.Method, []any, error) {
	if to == nil || len(data) < 4 {
		return abi.ABI{}, nil, nil, errors.New("platformtest: not a contract call")
	}
	parsed := b.platform
	if *to == TrustScoreAddress {
		parsed = b.trust
	} else if *to != PlatformAddress {
		return abi.ABI{}, nil, nil, fmt.Errorf("platformtest: no contract at %s", to.Hex())
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return abi.ABI{}, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return abi.ABI{}, nil, nil, err
	}
	return parsed, method, args, nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, method, args, err := b.decode(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if blockNumber != nil {
		if reason, ok := b.failStatus[method.Name]; ok {
			return nil, newRevert(reason)
		}
	}
	if err := b.viewErrs[method.Name]; err != nil {
		return nil, err
	}
	b.calls[method.Name]++
	out, err := b.view(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (b *Backend) view(name string, args []any) ([]any, error) {
	switch name {
	case contracts.MethodTotalLoans:
		return []any{big.NewInt(int64(len(b.loans)))}, nil
	case contracts.MethodTotalStaked:
		total := new(big.Int)
		for _, amount := range b.stakes {
			total.Add(total, amount)
		}
		return []any{total}, nil
	case contracts.MethodTotalVolume:
		return []any{new(big.Int).Set(b.volume)}, nil
	case contracts.MethodTreasuryBalance:
		return []any{new(big.Int).Set(b.treasury)}, nil
	case contracts.MethodMaxLoanAmount:
		return []any{new(big.Int).Mul(big.NewInt(100), ether)}, nil
	case contracts.MethodMinLoanAmount:
		return []any{new(big.Int).Div(ether, big.NewInt(100))}, nil
	case contracts.MethodPlatformFeeBPS:
		return []any{big.NewInt(100)}, nil
	case contracts.MethodFlashLoanFeeBPS:
		return []any{big.NewInt(9)}, nil
	case contracts.MethodLoanDuration:
		return []any{big.NewInt(30 * 24 * 60 * 60)}, nil
	case contracts.MethodMaxTrustScore:
		return []any{big.NewInt(850)}, nil
	case contracts.MethodPaused:
		return []any{b.paused}, nil
	case contracts.MethodStakes:
		amount := valueOr(b.stakes[args[0].(common.Address)])
		return []any{amount, new(big.Int), new(big.Int)}, nil
	case contracts.MethodGetPendingRewards:
		amount := valueOr(b.stakes[args[0].(common.Address)])
		return []any{new(big.Int).Div(amount, big.NewInt(100))}, nil
	case contracts.MethodGetUserLoans:
		ids := b.userLoans[args[0].(common.Address)]
		out := make([]*big.Int, len(ids))
		for i, id := range ids {
			out[i] = new(big.Int).SetUint64(id)
		}
		return []any{out}, nil
	case contracts.MethodLoans:
		id := args[0].(*big.Int)
		if !id.IsUint64() || id.Uint64() >= uint64(len(b.loans)) {
			return []any{common.Address{}, common.Address{}, new(big.Int), new(big.Int), new(big.Int), new(big.Int), uint8(0), new(big.Int)}, nil
		}
		loan := b.loans[id.Uint64()]
		return []any{loan.borrower, loan.token, loan.amount, loan.interest, loan.rate, loan.due, loan.status, new(big.Int).Set(id)}, nil
	case contracts.MethodCalculateMaxLoan:
		score := valueOr(b.trustScore[args[0].(common.Address)])
		return []any{new(big.Int).Mul(new(big.Int).Div(score, big.NewInt(10)), ether)}, nil
	case contracts.MethodCalculateDynamicRate:
		score := args[0].(*big.Int)
		rate := new(big.Int).Sub(big.NewInt(2000), score)
		if rate.Sign() < 0 {
			rate.SetInt64(0)
		}
		return []any{rate}, nil
	case contracts.MethodTokenLiquidity:
		return []any{valueOr(b.liquidity[args[0].(common.Address)])}, nil
	case contracts.MethodSupportedTokens:
		return []any{b.supported[args[0].(common.Address)]}, nil
	case contracts.MethodGetUserTrustScore:
		return []any{valueOr(b.trustScore[args[0].(common.Address)])}, nil
	}
	return nil, fmt.Errorf("platformtest: view %s not simulated", name)
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, method, args, err := b.decode(msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFrom = msg.From
	if reason, ok := b.reverts[method.Name]; ok {
		return 0, newRevert(reason)
	}
	if method.Name == contracts.MethodUnstake {
		have := valueOr(b.stakes[msg.From])
		if have.Cmp(args[0].(*big.Int)) < 0 {
			return 0, newRevert("Insufficient stake")
		}
	}
	return 120_000, nil
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(int64(len(b.Sent()) + 1))}, nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(ChainID), nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return valueOr(b.balances[account]), nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, method, args, err := b.decode(tx.To(), tx.Data())
	if err != nil {
		return err
	}
	value := valueOr(tx.Value())

	b.mu.Lock()
	from := b.lastFrom
	b.nonce++
	status := types.ReceiptStatusSuccessful
	var logs []types.Log
	if _, failed := b.failStatus[method.Name]; failed {
		status = types.ReceiptStatusFailed
	} else {
		logs = b.apply(from, method.Name, args, value)
	}
	blockNumber := big.NewInt(int64(len(b.sent) + 1))
	receipt := &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: blockNumber}
	for i := range logs {
		logs[i].TxHash = tx.Hash()
		logs[i].BlockNumber = blockNumber.Uint64()
		logs[i].Index = uint(i)
		lg := logs[i]
		receipt.Logs = append(receipt.Logs, &lg)
	}
	b.receipts[tx.Hash()] = receipt
	b.sent = append(b.sent, SentTx{Hash: tx.Hash(), From: from, To: *tx.To(), Method: method.Name, Args: args, Value: value})
	emit := b.emitOnSend
	b.mu.Unlock()

	if emit {
		for _, lg := range logs {
			b.Emit(lg)
		}
	}
	return nil
}

// apply mutates the simulated contract state and returns the logs the
// contract would emit. Callers hold b.mu.
func (b *Backend) apply(from common.Address, name string, args []any, value *big.Int) []types.Log {
	switch name {
	case contracts.MethodStake:
		b.stakes[from] = new(big.Int).Add(valueOr(b.stakes[from]), value)
		return []types.Log{b.log(contracts.EventStaked, []common.Hash{addressTopic(from)}, value)}
	case contracts.MethodUnstake:
		amount := args[0].(*big.Int)
		b.stakes[from] = new(big.Int).Sub(valueOr(b.stakes[from]), amount)
		return []types.Log{b.log(contracts.EventUnstaked, []common.Hash{addressTopic(from)}, amount)}
	case contracts.MethodRequestLoan:
		token, amount := args[0].(common.Address), args[1].(*big.Int)
		id := uint64(len(b.loans))
		rate := big.NewInt(820)
		b.loans = append(b.loans, loanRecord{
			borrower: from,
			token:    token,
			amount:   new(big.Int).Set(amount),
			interest: new(big.Int).Div(new(big.Int).Mul(amount, rate), big.NewInt(10_000)),
			rate:     rate,
			due:      big.NewInt(1_900_000_000),
			status:   uint8(contracts.LoanActive),
		})
		b.userLoans[from] = append(b.userLoans[from], id)
		b.volume.Add(b.volume, amount)
		idTopic := common.BigToHash(new(big.Int).SetUint64(id))
		return []types.Log{b.log(contracts.EventLoanCreated, []common.Hash{idTopic, addressTopic(from)}, amount, rate)}
	case contracts.MethodRepayLoan, contracts.MethodLiquidateLoan:
		id := args[0].(*big.Int).Uint64()
		if id >= uint64(len(b.loans)) {
			return nil
		}
		idTopic := common.BigToHash(new(big.Int).SetUint64(id))
		if name == contracts.MethodRepayLoan {
			b.loans[id].status = uint8(contracts.LoanRepaid)
			b.treasury.Add(b.treasury, value)
			return []types.Log{b.log(contracts.EventLoanRepaid, []common.Hash{idTopic, addressTopic(b.loans[id].borrower)}, false)}
		}
		b.loans[id].status = uint8(contracts.LoanLiquidated)
		return []types.Log{b.log(contracts.EventLoanLiquidated, []common.Hash{idTopic}, from)}
	case contracts.MethodFlashLoan:
		token, amount := args[0].(common.Address), args[1].(*big.Int)
		fee := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(9)), big.NewInt(10_000))
		b.treasury.Add(b.treasury, fee)
		return []types.Log{b.log(contracts.EventFlashLoanExecuted, []common.Hash{addressTopic(from)}, token, amount, fee)}
	case contracts.MethodAddLiquidity:
		token, amount := args[0].(common.Address), args[1].(*big.Int)
		b.liquidity[token] = new(big.Int).Add(valueOr(b.liquidity[token]), amount)
	case contracts.MethodAddSupportedToken:
		b.supported[args[0].(common.Address)] = true
	case contracts.MethodSetPaused:
		b.paused = args[0].(bool)
	case contracts.MethodCreateTrustScore:
		if _, ok := b.trustScore[from]; !ok {
			b.trustScore[from] = big.NewInt(500)
		}
	case contracts.MethodUpdateTrustScore:
		b.trustScore[args[0].(common.Address)] = new(big.Int).Set(args[1].(*big.Int))
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingMiss > 0 {
		b.pendingMiss--
		return nil, ethereum.NotFound
	}
	receipt, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.Topics) == 0 || len(q.Topics[0]) == 0 {
		return nil, errors.New("platformtest: subscription needs an event topic")
	}
	topic := q.Topics[0][0]
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return &subscription{backend: b, topic: topic, ch: ch, errc: make(chan error, 1)}, nil
}

// Emit delivers lg to every live subscription for its first topic.
func (b *Backend) Emit(lg types.Log) {
	if len(lg.Topics) == 0 {
		return
	}
	b.mu.Lock()
	targets := append([]chan<- types.Log(nil), b.subs[lg.Topics[0]]...)
	b.mu.Unlock()
	for _, ch := range targets {
		ch <- lg
	}
}

// Log builds a log for eventName as the platform contract would emit it.
func (b *Backend) Log(eventName string, indexed []common.Hash, data ...any) types.Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.log(eventName, indexed, data...)
}

func (b *Backend) log(eventName string, indexed []common.Hash, data ...any) types.Log {
	ev, ok := b.platform.Events[eventName]
	if !ok {
		panic("platformtest: unknown event " + eventName)
	}
	payload, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(fmt.Sprintf("platformtest: pack %s: %v", eventName, err))
	}
	topics := append([]common.Hash{ev.ID}, indexed...)
	return types.Log{Address: PlatformAddress, Topics: topics, Data: payload}
}

type subscription struct {
	backend *Backend
	topic   common.Hash
	ch      chan<- types.Log
	errc    chan error
	once    sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.backend.mu.Lock()
		list := s.backend.subs[s.topic]
		for i, ch := range list {
			if ch == s.ch {
				s.backend.subs[s.topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
		s.backend.mu.Unlock()
		close(s.errc)
	})
}

func (s *subscription) Err() <-chan error { return s.errc }

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash { return addressTopic(addr) }

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func valueOr(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// revertError mimics a node's JSON-RPC revert error, carrying ABI-encoded
// Error(string) data.
type revertError struct {
	reason string
	data   string
}

var errorStringArgs = func() abi.Arguments {
	typ, _ := abi.NewType("string", "", nil)
	return abi.Arguments{{Type: typ}}
}()

func newRevert(reason string) error {
	packed, _ := errorStringArgs.Pack(reason)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return &revertError{reason: reason, data: hexutil.Encode(append(selector, packed...))}
}

func (e *revertError) Error() string          { return "execution reverted: " + e.reason }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.data }
