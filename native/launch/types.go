package launch

import (
	"fmt"
	"math/big"
	"strings"
)

// RolloverOption selects the post-window behaviour applied when the
// coordinator rolls a session after its minting window closes.
type RolloverOption uint8

const (
	// RolloverRestart re-anchors the session windows at the rollover time and
	// opens a fresh clearing round over the unsold units.
	RolloverRestart RolloverOption = iota
	// RolloverExtend keeps the session in the minting phase indefinitely at
	// the already-fixed clearing price.
	RolloverExtend
	// RolloverClose terminates the session and unlocks unconditional
	// withdrawal for remaining depositors.
	RolloverClose
)

// Valid reports whether the option value is within the supported range.
func (o RolloverOption) Valid() bool {
	switch o {
	case RolloverRestart, RolloverExtend, RolloverClose:
		return true
	default:
		return false
	}
}

func (o RolloverOption) String() string {
	switch o {
	case RolloverRestart:
		return "restart"
	case RolloverExtend:
		return "extend"
	case RolloverClose:
		return "close"
	default:
		return "unknown"
	}
}

// Phase is the lifecycle stage of a session evaluated against a clock reading.
// It is always derived from the window bounds, never stored.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseAllocation
	PhaseCooldown
	PhaseMinting
	PhaseConcluded
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseAllocation:
		return "allocation"
	case PhaseCooldown:
		return "cooldown"
	case PhaseMinting:
		return "minting"
	case PhaseConcluded:
		return "concluded"
	default:
		return "unknown"
	}
}

// Session captures one complete allocation-and-mint cycle: its windows, the
// supply being cleared, the deposit bookkeeping totals and the pricing state.
// A session with an empty UnitRef does not exist; every operation against it
// fails.
type Session struct {
	ID          uint64
	UnitRef     string
	Coordinator [20]byte
	Token       string

	AllocationStart int64
	AllocationEnd   int64
	MintingStart    int64
	MintingEnd      int64

	MinPrice  *big.Int
	MaxSupply uint64
	Rollover  RolloverOption

	TotalDeposits  *big.Int
	ResultPrice    *big.Int
	NextUnitIndex  uint64
	RolloverOffset int64
	Closed         bool
	PenaltyReserve *big.Int
}

// Exists reports whether the session references a real unit supply.
func (s *Session) Exists() bool {
	return s != nil && strings.TrimSpace(s.UnitRef) != ""
}

// PhaseAt evaluates the lifecycle stage for the supplied clock reading. Window
// bounds are inclusive on both ends.
func (s *Session) PhaseAt(now int64) Phase {
	switch {
	case now < s.AllocationStart:
		return PhasePending
	case now <= s.AllocationEnd:
		return PhaseAllocation
	case now < s.MintingStart:
		return PhaseCooldown
	case now <= s.MintingEnd:
		return PhaseMinting
	default:
		return PhaseConcluded
	}
}

// PriceFixed reports whether the clearing price has been discovered for the
// current epoch. A zero result price doubles as the "not yet computed"
// sentinel; the floor computation can only ever re-derive zero in that case
// because total deposits never grow during the minting window.
func (s *Session) PriceFixed() bool {
	return s != nil && s.ResultPrice != nil && s.ResultPrice.Sign() > 0
}

// Clone returns a deep copy of the session so callers can safely mutate the
// copy without affecting the stored instance.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.MinPrice = copyBigInt(s.MinPrice)
	clone.TotalDeposits = copyBigInt(s.TotalDeposits)
	clone.ResultPrice = copyBigInt(s.ResultPrice)
	clone.PenaltyReserve = copyBigInt(s.PenaltyReserve)
	return &clone
}

// SanitizeSession validates and normalises a session record, returning a
// cloned instance with canonical token casing and non-nil amount fields. The
// original value is not mutated.
func SanitizeSession(s *Session) (*Session, error) {
	if s == nil {
		return nil, fmt.Errorf("launch: nil session")
	}
	clone := s.Clone()
	clone.UnitRef = strings.TrimSpace(clone.UnitRef)
	if clone.UnitRef == "" {
		return nil, fmt.Errorf("%w: empty unit reference", ErrInvalidSession)
	}
	token := strings.ToUpper(strings.TrimSpace(clone.Token))
	if token == "" {
		return nil, fmt.Errorf("launch: deposit token required")
	}
	clone.Token = token
	if err := ValidateWindows(clone.AllocationStart, clone.AllocationEnd, clone.MintingStart, clone.MintingEnd); err != nil {
		return nil, err
	}
	if clone.MaxSupply == 0 {
		return nil, fmt.Errorf("launch: max supply must be positive")
	}
	if !clone.Rollover.Valid() {
		return nil, fmt.Errorf("launch: invalid rollover option %d", clone.Rollover)
	}
	if clone.MinPrice.Sign() < 0 {
		return nil, fmt.Errorf("launch: min price must not be negative")
	}
	if clone.TotalDeposits.Sign() < 0 {
		return nil, fmt.Errorf("launch: total deposits must not be negative")
	}
	if clone.NextUnitIndex > clone.MaxSupply {
		return nil, fmt.Errorf("launch: unit index %d beyond supply %d", clone.NextUnitIndex, clone.MaxSupply)
	}
	return clone, nil
}

// ValidateWindows enforces the window ordering invariant
// allocationStart <= allocationEnd <= mintingStart <= mintingEnd.
func ValidateWindows(allocationStart, allocationEnd, mintingStart, mintingEnd int64) error {
	if allocationStart > allocationEnd || allocationEnd > mintingStart || mintingStart > mintingEnd {
		return fmt.Errorf("%w: alloc [%d, %d] mint [%d, %d]", ErrBadSessionBounds, allocationStart, allocationEnd, mintingStart, mintingEnd)
	}
	return nil
}

// Deposit records a participant's locked balance within one session together
// with the amount-weighted lateness accumulator feeding the loss penalty.
type Deposit struct {
	Balance *big.Int
	// Lateness accumulates amount * (depositTime - allocationStart) across
	// deposits and is scaled down proportionally when the balance shrinks.
	Lateness *big.Int
}

// Clone returns a deep copy of the deposit record.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	return &Deposit{
		Balance:  copyBigInt(d.Balance),
		Lateness: copyBigInt(d.Lateness),
	}
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
