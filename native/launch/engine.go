package launch

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"unitmint/core/events"
	"unitmint/core/types"
)

var (
	errNilState = errors.New("launch engine: state not configured")
	errNilUnits = errors.New("launch engine: unit transfer capability not configured")
	errNilToken = errors.New("launch engine: token transfer capability not configured")
)

type engineState interface {
	NextSessionID() (uint64, error)
	SessionPut(*Session) error
	SessionGet(id uint64) (*Session, bool, error)
	DepositGet(sessionID uint64, participant [20]byte) (*Deposit, bool, error)
	DepositPut(sessionID uint64, participant [20]byte, dep *Deposit) error
	RewardGet(coordinator [20]byte, token string) (*big.Int, error)
	RewardPut(coordinator [20]byte, token string, amount *big.Int) error
}

// TokenTransfers moves fungible deposit-asset balances between participants
// and the session custody account. Implementations may execute arbitrary
// external logic before returning, so the engine persists its own ledger
// mutations before invoking either method.
type TokenTransfers interface {
	TransferIn(token string, from [20]byte, amount *big.Int) error
	TransferOut(token string, to [20]byte, amount *big.Int) error
}

// UnitTransfers moves indivisible supply units. Transfer carries the
// recipient-acceptance semantics of the underlying capability and, like
// TokenTransfers, may re-enter the engine.
type UnitTransfers interface {
	BalanceOf(unitRef string, holder [20]byte) (uint64, error)
	Transfer(unitRef string, from, to [20]byte, index uint64) error
}

type launchEvent struct {
	evt *types.Event
}

func (e launchEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e launchEvent) Event() *types.Event { return e.evt }

// Engine wires the session lifecycle and accounting logic with external state,
// transfer capabilities and event emitters. Each exported operation is a
// single state transition: guards are evaluated against the injected clock,
// all internal ledger mutations are persisted before any external transfer
// call, and a failed transfer restores the records touched by the call.
type Engine struct {
	state   engineState
	tokens  TokenTransfers
	units   UnitTransfers
	emitter events.Emitter
	nowFn   func() int64
	penalty PenaltyConfig
}

// NewEngine creates a launch engine with a no-op emitter and a disabled
// penalty configuration. Callers wire dependencies via the Set helpers.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenTransfers configures the fungible transfer capability.
func (e *Engine) SetTokenTransfers(tokens TokenTransfers) { e.tokens = tokens }

// SetUnitTransfers configures the indivisible unit transfer capability.
func (e *Engine) SetUnitTransfers(units UnitTransfers) { e.units = units }

// SetPenaltyConfig configures the loss penalty applied to forgone deposits.
func (e *Engine) SetPenaltyConfig(cfg PenaltyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.penalty = cfg
	return nil
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(launchEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadSession(id uint64) (*Session, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	session, ok, err := e.state.SessionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || !session.Exists() {
		return nil, fmt.Errorf("%w: session %d", ErrInvalidSession, id)
	}
	return session, nil
}

func (e *Engine) loadDeposit(sessionID uint64, participant [20]byte) (*Deposit, error) {
	dep, ok, err := e.state.DepositGet(sessionID, participant)
	if err != nil {
		return nil, err
	}
	if !ok || dep == nil {
		return &Deposit{Balance: big.NewInt(0), Lateness: big.NewInt(0)}, nil
	}
	if dep.Balance == nil {
		dep.Balance = big.NewInt(0)
	}
	if dep.Lateness == nil {
		dep.Lateness = big.NewInt(0)
	}
	return dep, nil
}

// GetSession returns a deep clone of the stored session.
func (e *Engine) GetSession(id uint64) (*Session, error) {
	session, err := e.loadSession(id)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// DepositOf returns a clone of the participant's deposit record. A participant
// without a record reports a zero balance.
func (e *Engine) DepositOf(sessionID uint64, participant [20]byte) (*Deposit, error) {
	if _, err := e.loadSession(sessionID); err != nil {
		return nil, err
	}
	dep, err := e.loadDeposit(sessionID, participant)
	if err != nil {
		return nil, err
	}
	return dep.Clone(), nil
}

// RewardsOf returns the coordinator's accrued reward balance for the token.
func (e *Engine) RewardsOf(coordinator [20]byte, token string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	balance, err := e.state.RewardGet(coordinator, token)
	if err != nil {
		return nil, err
	}
	return copyBigInt(balance), nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit locks `amount` of the deposit asset for the participant. Valid only
// while the session is in its allocation phase.
func (e *Engine) Deposit(sessionID uint64, participant [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilToken
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	session, err := e.loadSession(sessionID)
	if err != nil {
		return err
	}
	now := e.now()
	if phase := session.PhaseAt(now); phase != PhaseAllocation {
		return fmt.Errorf("%w: phase %s at %d", ErrOutsideAllocationWindow, phase, now)
	}
	dep, err := e.loadDeposit(sessionID, participant)
	if err != nil {
		return err
	}
	prevSession := session.Clone()
	prevDeposit := dep.Clone()

	amt := copyBigInt(amount)
	dep.Balance = new(big.Int).Add(dep.Balance, amt)
	lateness := new(big.Int).Mul(amt, big.NewInt(now-session.AllocationStart))
	dep.Lateness = new(big.Int).Add(dep.Lateness, lateness)
	session.TotalDeposits = new(big.Int).Add(session.TotalDeposits, amt)

	if err := e.state.DepositPut(sessionID, participant, dep); err != nil {
		return err
	}
	if err := e.state.SessionPut(session); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		return err
	}
	if err := e.tokens.TransferIn(session.Token, participant, amt); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		e.restoreSession(prevSession)
		return err
	}
	e.emit(newDepositedEvent(session, participant, amt))
	return nil
}

// Withdraw releases `amount` of the participant's locked deposit. Valid during
// the allocation phase, or unconditionally once the minting window has closed
// on a session whose rollover option is Close.
func (e *Engine) Withdraw(sessionID uint64, participant [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilToken
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	session, err := e.loadSession(sessionID)
	if err != nil {
		return err
	}
	now := e.now()
	phase := session.PhaseAt(now)
	deadExit := phase == PhaseConcluded && session.Rollover == RolloverClose
	if phase != PhaseAllocation && !deadExit {
		return fmt.Errorf("%w: phase %s at %d", ErrOutsideAllocationWindow, phase, now)
	}
	dep, err := e.loadDeposit(sessionID, participant)
	if err != nil {
		return err
	}
	amt := copyBigInt(amount)
	if dep.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: requested %s, locked %s", ErrInsufficientBalance, amt, dep.Balance)
	}
	prevSession := session.Clone()
	prevDeposit := dep.Clone()

	dep.Lateness = scaleLateness(dep.Lateness, dep.Balance, amt)
	dep.Balance = new(big.Int).Sub(dep.Balance, amt)
	session.TotalDeposits = new(big.Int).Sub(session.TotalDeposits, amt)

	if err := e.state.DepositPut(sessionID, participant, dep); err != nil {
		return err
	}
	if err := e.state.SessionPut(session); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		return err
	}
	if err := e.tokens.TransferOut(session.Token, participant, amt); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		e.restoreSession(prevSession)
		return err
	}
	e.emit(newWithdrawnEvent(session, participant, amt))
	return nil
}

// fixResultPrice performs the lazy once-per-epoch price discovery
//
//	resultPrice = totalDeposits / maxSupply
//
// and reports whether the price was computed by this call. The session is not
// persisted here; callers persist it together with their other mutations.
func (e *Engine) fixResultPrice(session *Session) bool {
	if session.PriceFixed() {
		return false
	}
	price := new(big.Int).Div(session.TotalDeposits, new(big.Int).SetUint64(session.MaxSupply))
	session.ResultPrice = price
	return true
}

func effectivePrice(session *Session) *big.Int {
	price := copyBigInt(session.ResultPrice)
	if session.MinPrice != nil && price.Cmp(session.MinPrice) < 0 {
		price = copyBigInt(session.MinPrice)
	}
	return price
}

// Mint converts `amount` of the participant's locked deposit into consecutive
// supply units at the effective clearing price. The first settlement call in
// the minting window fixes the clearing price for the epoch. Any remainder
// beyond an exact multiple of the unit price stays locked for a later call.
// The number of minted units is returned.
func (e *Engine) Mint(sessionID uint64, participant [20]byte, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.units == nil {
		return 0, errNilUnits
	}
	if err := checkAmount(amount); err != nil {
		return 0, err
	}
	session, err := e.loadSession(sessionID)
	if err != nil {
		return 0, err
	}
	now := e.now()
	if phase := session.PhaseAt(now); phase != PhaseMinting {
		return 0, fmt.Errorf("%w: phase %s at %d", ErrOutsideMintingWindow, phase, now)
	}
	dep, err := e.loadDeposit(sessionID, participant)
	if err != nil {
		return 0, err
	}
	amt := copyBigInt(amount)
	if dep.Balance.Cmp(amt) < 0 {
		return 0, fmt.Errorf("%w: requested %s, locked %s", ErrInsufficientBalance, amt, dep.Balance)
	}
	prevSession := session.Clone()
	prevDeposit := dep.Clone()

	priceFixed := e.fixResultPrice(session)
	price := effectivePrice(session)
	if price.Sign() == 0 {
		return 0, fmt.Errorf("%w: effective price is zero", ErrBelowUnitPrice)
	}
	if amt.Cmp(price) < 0 {
		return 0, fmt.Errorf("%w: amount %s, unit price %s", ErrBelowUnitPrice, amt, price)
	}
	remaining := session.MaxSupply - session.NextUnitIndex
	if remaining == 0 {
		return 0, fmt.Errorf("%w: all %d units issued", ErrSupplyExhausted, session.MaxSupply)
	}
	units := new(big.Int).Div(amt, price)
	if !units.IsUint64() || units.Uint64() > remaining {
		units = new(big.Int).SetUint64(remaining)
	}
	unitCount := units.Uint64()
	cost := new(big.Int).Mul(units, price)

	dep.Lateness = scaleLateness(dep.Lateness, dep.Balance, cost)
	dep.Balance = new(big.Int).Sub(dep.Balance, cost)
	session.TotalDeposits = new(big.Int).Sub(session.TotalDeposits, cost)
	firstIndex := session.NextUnitIndex
	session.NextUnitIndex += unitCount

	if err := e.state.DepositPut(sessionID, participant, dep); err != nil {
		return 0, err
	}
	if err := e.state.SessionPut(session); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		return 0, err
	}
	for i := uint64(0); i < unitCount; i++ {
		if err := e.units.Transfer(session.UnitRef, session.Coordinator, participant, firstIndex+i); err != nil {
			e.restoreDeposit(sessionID, participant, prevDeposit)
			e.restoreSession(prevSession)
			return 0, err
		}
	}
	// Reward accrual happens only after the unit transfers succeed.
	reward, err := e.state.RewardGet(session.Coordinator, session.Token)
	if err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		e.restoreSession(prevSession)
		return 0, err
	}
	reward = new(big.Int).Add(copyBigInt(reward), cost)
	if err := e.state.RewardPut(session.Coordinator, session.Token, reward); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		e.restoreSession(prevSession)
		return 0, err
	}
	if priceFixed {
		e.emit(newPriceFixedEvent(session))
	}
	e.emit(newMintedEvent(session, participant, firstIndex, unitCount, cost))
	return unitCount, nil
}

// Forgo releases `amount` of the participant's locked deposit during the
// minting window, net of the loss penalty retained by the session. Price
// discovery fires as a side effect so forgoing cannot dodge it. The penalty is
// waived entirely when the participant's full balance cannot afford a single
// unit. The released amount is returned.
func (e *Engine) Forgo(sessionID uint64, participant [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.tokens == nil {
		return nil, errNilToken
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	session, err := e.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if phase := session.PhaseAt(now); phase != PhaseMinting {
		return nil, fmt.Errorf("%w: phase %s at %d", ErrOutsideMintingWindow, phase, now)
	}
	dep, err := e.loadDeposit(sessionID, participant)
	if err != nil {
		return nil, err
	}
	amt := copyBigInt(amount)
	if dep.Balance.Cmp(amt) < 0 {
		return nil, fmt.Errorf("%w: requested %s, locked %s", ErrInsufficientBalance, amt, dep.Balance)
	}
	prevSession := session.Clone()
	prevDeposit := dep.Clone()

	priceFixed := e.fixResultPrice(session)
	price := effectivePrice(session)
	penalty := big.NewInt(0)
	if price.Sign() > 0 && dep.Balance.Cmp(price) >= 0 {
		window := session.AllocationEnd - session.AllocationStart
		penalty = lossPenalty(e.penalty, amt, dep.Balance, dep.Lateness, window)
	}
	released := new(big.Int).Sub(amt, penalty)

	dep.Lateness = scaleLateness(dep.Lateness, dep.Balance, amt)
	dep.Balance = new(big.Int).Sub(dep.Balance, amt)
	session.TotalDeposits = new(big.Int).Sub(session.TotalDeposits, amt)
	session.PenaltyReserve = new(big.Int).Add(session.PenaltyReserve, penalty)

	if err := e.state.DepositPut(sessionID, participant, dep); err != nil {
		return nil, err
	}
	if err := e.state.SessionPut(session); err != nil {
		e.restoreDeposit(sessionID, participant, prevDeposit)
		return nil, err
	}
	if released.Sign() > 0 {
		if err := e.tokens.TransferOut(session.Token, participant, released); err != nil {
			e.restoreDeposit(sessionID, participant, prevDeposit)
			e.restoreSession(prevSession)
			return nil, err
		}
	}
	if priceFixed {
		e.emit(newPriceFixedEvent(session))
	}
	e.emit(newForgoneEvent(session, participant, amt, penalty))
	return released, nil
}

// Rollover applies the session's configured post-window policy. Only the
// coordinator may invoke it, and only once the minting window has closed.
// Close is idempotent; Restart and Extend fail on a second call until a new
// minting window has independently elapsed.
func (e *Engine) Rollover(sessionID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	session, err := e.loadSession(sessionID)
	if err != nil {
		return err
	}
	if caller != session.Coordinator {
		return fmt.Errorf("%w: rollover on session %d", ErrNotCoordinator, sessionID)
	}
	now := e.now()
	if now < session.MintingEnd {
		return fmt.Errorf("%w: now %d, minting ends %d", ErrMintingNotOver, now, session.MintingEnd)
	}
	switch session.Rollover {
	case RolloverClose:
		if session.Closed {
			return nil
		}
		session.Closed = true
		session.RolloverOffset = now
	case RolloverRestart:
		allocDur := session.AllocationEnd - session.AllocationStart
		cooldown := session.MintingStart - session.AllocationEnd
		mintDur := session.MintingEnd - session.MintingStart
		session.AllocationStart = now
		session.AllocationEnd = now + allocDur
		session.MintingStart = session.AllocationEnd + cooldown
		session.MintingEnd = session.MintingStart + mintDur
		session.ResultPrice = big.NewInt(0)
		session.RolloverOffset = now
	case RolloverExtend:
		session.MintingEnd = math.MaxInt64
		session.RolloverOffset = now
	default:
		return fmt.Errorf("launch: invalid rollover option %d", session.Rollover)
	}
	if err := e.state.SessionPut(session); err != nil {
		return err
	}
	e.emit(newRolloverEvent(session))
	return nil
}

// WithdrawRewards pays out the coordinator's accrued reward balance for the
// token. The ledger entry is zeroed and persisted before the external transfer
// so a re-entrant call observes an empty balance. A zero balance is a no-op.
func (e *Engine) WithdrawRewards(coordinator [20]byte, token string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.tokens == nil {
		return nil, errNilToken
	}
	balance, err := e.state.RewardGet(coordinator, token)
	if err != nil {
		return nil, err
	}
	payout := copyBigInt(balance)
	if payout.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.state.RewardPut(coordinator, token, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.tokens.TransferOut(token, coordinator, payout); err != nil {
		if restoreErr := e.state.RewardPut(coordinator, token, payout); restoreErr != nil {
			return nil, errors.Join(err, restoreErr)
		}
		return nil, err
	}
	e.emit(newRewardsWithdrawnEvent(coordinator, token, payout))
	return payout, nil
}

// restoreSession and restoreDeposit undo this call's persisted mutations after
// a failed external transfer. Restore failures are unrecoverable here; the
// original transfer error is what callers act on.
func (e *Engine) restoreSession(prev *Session) {
	if prev == nil {
		return
	}
	_ = e.state.SessionPut(prev)
}

func (e *Engine) restoreDeposit(sessionID uint64, participant [20]byte, prev *Deposit) {
	if prev == nil {
		return
	}
	_ = e.state.DepositPut(sessionID, participant, prev)
}
