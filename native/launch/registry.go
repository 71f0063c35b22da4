package launch

import (
	"fmt"
	"math/big"
	"strings"
)

// CreateSession provisions a new allocation session after enforcing the
// window-ordering invariant and the custody precondition: the coordinator
// must already hold at least maxSupply units of the referenced supply.
// Session identifiers are assigned monotonically by the state backend.
func (e *Engine) CreateSession(unitRef string, coordinator [20]byte, allocationStart, allocationEnd, mintingStart, mintingEnd int64, minPrice *big.Int, token string, maxSupply uint64, option RolloverOption) (*Session, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.units == nil {
		return nil, errNilUnits
	}
	ref := strings.TrimSpace(unitRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty unit reference", ErrInvalidSession)
	}
	if err := ValidateWindows(allocationStart, allocationEnd, mintingStart, mintingEnd); err != nil {
		return nil, err
	}
	if maxSupply == 0 {
		return nil, fmt.Errorf("launch: max supply must be positive")
	}
	if !option.Valid() {
		return nil, fmt.Errorf("launch: invalid rollover option %d", option)
	}
	floor := copyBigInt(minPrice)
	if floor.Sign() < 0 {
		return nil, fmt.Errorf("launch: min price must not be negative")
	}
	held, err := e.units.BalanceOf(ref, coordinator)
	if err != nil {
		return nil, err
	}
	if held < maxSupply {
		return nil, fmt.Errorf("%w: holds %d of %d units", ErrInsufficientCustody, held, maxSupply)
	}
	id, err := e.state.NextSessionID()
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:              id,
		UnitRef:         ref,
		Coordinator:     coordinator,
		Token:           strings.ToUpper(strings.TrimSpace(token)),
		AllocationStart: allocationStart,
		AllocationEnd:   allocationEnd,
		MintingStart:    mintingStart,
		MintingEnd:      mintingEnd,
		MinPrice:        floor,
		MaxSupply:       maxSupply,
		Rollover:        option,
		TotalDeposits:   big.NewInt(0),
		ResultPrice:     big.NewInt(0),
		PenaltyReserve:  big.NewInt(0),
	}
	sanitized, err := SanitizeSession(session)
	if err != nil {
		return nil, err
	}
	if err := e.state.SessionPut(sanitized); err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}
