package launch

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"unitmint/core/types"
)

const (
	// EventTypeCreated is emitted when a session is provisioned.
	EventTypeCreated = "launch.created"
	// EventTypeDeposited is emitted when a participant locks deposit asset.
	EventTypeDeposited = "launch.deposited"
	// EventTypeWithdrawn is emitted when a locked deposit is released.
	EventTypeWithdrawn = "launch.withdrawn"
	// EventTypePriceFixed is emitted once per epoch when the clearing price is discovered.
	EventTypePriceFixed = "launch.price_fixed"
	// EventTypeMinted is emitted when locked deposit converts to supply units.
	EventTypeMinted = "launch.minted"
	// EventTypeForgone is emitted when a participant forgoes locked deposit.
	EventTypeForgone = "launch.forgone"
	// EventTypeRollover is emitted when the coordinator rolls a session.
	EventTypeRollover = "launch.rollover"
	// EventTypeRewardsWithdrawn is emitted when accrued rewards are paid out.
	EventTypeRewardsWithdrawn = "launch.rewards_withdrawn"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newCreatedEvent(s *Session) *types.Event {
	attrs := make(map[string]string)
	if s == nil {
		return &types.Event{Type: EventTypeCreated, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(s.ID, 10)
	attrs["unitRef"] = s.UnitRef
	attrs["coordinator"] = hex.EncodeToString(s.Coordinator[:])
	attrs["token"] = s.Token
	attrs["allocationStart"] = strconv.FormatInt(s.AllocationStart, 10)
	attrs["allocationEnd"] = strconv.FormatInt(s.AllocationEnd, 10)
	attrs["mintingStart"] = strconv.FormatInt(s.MintingStart, 10)
	attrs["mintingEnd"] = strconv.FormatInt(s.MintingEnd, 10)
	attrs["minPrice"] = formatAmount(s.MinPrice)
	attrs["maxSupply"] = strconv.FormatUint(s.MaxSupply, 10)
	attrs["rollover"] = s.Rollover.String()
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

func newDepositedEvent(s *Session, participant [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"id":            strconv.FormatUint(s.ID, 10),
			"participant":   hex.EncodeToString(participant[:]),
			"token":         s.Token,
			"amount":        formatAmount(amount),
			"totalDeposits": formatAmount(s.TotalDeposits),
		},
	}
}

func newWithdrawnEvent(s *Session, participant [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"id":            strconv.FormatUint(s.ID, 10),
			"participant":   hex.EncodeToString(participant[:]),
			"token":         s.Token,
			"amount":        formatAmount(amount),
			"totalDeposits": formatAmount(s.TotalDeposits),
		},
	}
}

func newPriceFixedEvent(s *Session) *types.Event {
	return &types.Event{
		Type: EventTypePriceFixed,
		Attributes: map[string]string{
			"id":          strconv.FormatUint(s.ID, 10),
			"resultPrice": formatAmount(s.ResultPrice),
			"minPrice":    formatAmount(s.MinPrice),
		},
	}
}

func newMintedEvent(s *Session, participant [20]byte, firstIndex, units uint64, cost *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"id":          strconv.FormatUint(s.ID, 10),
			"participant": hex.EncodeToString(participant[:]),
			"token":       s.Token,
			"firstIndex":  strconv.FormatUint(firstIndex, 10),
			"units":       strconv.FormatUint(units, 10),
			"cost":        formatAmount(cost),
		},
	}
}

func newForgoneEvent(s *Session, participant [20]byte, amount, penalty *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeForgone,
		Attributes: map[string]string{
			"id":          strconv.FormatUint(s.ID, 10),
			"participant": hex.EncodeToString(participant[:]),
			"token":       s.Token,
			"amount":      formatAmount(amount),
			"penalty":     formatAmount(penalty),
		},
	}
}

func newRolloverEvent(s *Session) *types.Event {
	return &types.Event{
		Type: EventTypeRollover,
		Attributes: map[string]string{
			"id":         strconv.FormatUint(s.ID, 10),
			"mode":       s.Rollover.String(),
			"offset":     strconv.FormatInt(s.RolloverOffset, 10),
			"mintingEnd": strconv.FormatInt(s.MintingEnd, 10),
		},
	}
}

func newRewardsWithdrawnEvent(coordinator [20]byte, token string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsWithdrawn,
		Attributes: map[string]string{
			"coordinator": hex.EncodeToString(coordinator[:]),
			"token":       token,
			"amount":      formatAmount(amount),
		},
	}
}
