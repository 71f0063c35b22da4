package launch

import (
	"fmt"
	"math/big"
)

// PenaltyBpsDenominator defines the fixed denominator for penalty fractions.
const PenaltyBpsDenominator = 10_000

// PenaltyConfig controls the loss penalty charged when a participant forgoes
// part of their locked deposit during the minting window.
type PenaltyConfig struct {
	// MaxBps caps the penalty fraction, in basis points, reached by deposits
	// made at the very end of the allocation window.
	MaxBps uint64
}

// DefaultPenaltyConfig returns a disabled penalty configuration.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{MaxBps: 0}
}

// Validate ensures the configuration values fall within acceptable bounds.
func (c PenaltyConfig) Validate() error {
	if c.MaxBps > PenaltyBpsDenominator {
		return fmt.Errorf("launch: penalty max bps must be <= %d", PenaltyBpsDenominator)
	}
	return nil
}

// lossPenalty computes the retained penalty for releasing `amount` out of a
// deposit with the supplied balance and lateness accumulator. The curve is
// linear in the amount-weighted deposit time: zero for deposits made at
// allocationStart, rising to MaxBps for deposits made at allocationEnd.
//
//	penalty = amount * MaxBps * lateness / (balance * window * 10000)
//
// The result is clamped to the MaxBps fraction so stale lateness carried
// across a window re-anchor can never exceed the cap.
func lossPenalty(cfg PenaltyConfig, amount, balance, lateness *big.Int, window int64) *big.Int {
	if cfg.MaxBps == 0 || window <= 0 {
		return big.NewInt(0)
	}
	if amount == nil || amount.Sign() <= 0 || balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	if lateness == nil || lateness.Sign() <= 0 {
		return big.NewInt(0)
	}
	maxBps := new(big.Int).SetUint64(cfg.MaxBps)
	numerator := new(big.Int).Mul(amount, maxBps)
	numerator.Mul(numerator, lateness)
	denominator := new(big.Int).Mul(balance, big.NewInt(window))
	denominator.Mul(denominator, big.NewInt(PenaltyBpsDenominator))
	penalty := numerator.Div(numerator, denominator)

	cap := new(big.Int).Mul(amount, maxBps)
	cap.Div(cap, big.NewInt(PenaltyBpsDenominator))
	if penalty.Cmp(cap) > 0 {
		penalty = cap
	}
	if penalty.Cmp(amount) > 0 {
		penalty = new(big.Int).Set(amount)
	}
	return penalty
}

// scaleLateness shrinks the lateness accumulator proportionally when the
// balance drops from `balance` to `balance - removed`, preserving the
// amount-weighted average deposit time of the remaining funds.
func scaleLateness(lateness, balance, removed *big.Int) *big.Int {
	if lateness == nil || lateness.Sign() <= 0 || balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	remaining := new(big.Int).Sub(balance, removed)
	if remaining.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(lateness, remaining)
	return scaled.Div(scaled, balance)
}
