package launch

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func validSession() *Session {
	return &Session{
		ID:              1,
		UnitRef:         "unit/alpha",
		Coordinator:     newTestAddress(0xC0),
		Token:           "nhb",
		AllocationStart: 1000,
		AllocationEnd:   2000,
		MintingStart:    3000,
		MintingEnd:      4000,
		MinPrice:        big.NewInt(1),
		MaxSupply:       100,
		Rollover:        RolloverClose,
		TotalDeposits:   big.NewInt(0),
		ResultPrice:     big.NewInt(0),
		PenaltyReserve:  big.NewInt(0),
	}
}

func TestPhaseAtBoundaries(t *testing.T) {
	s := validSession()
	cases := []struct {
		now  int64
		want Phase
	}{
		{999, PhasePending},
		{1000, PhaseAllocation},
		{2000, PhaseAllocation},
		{2001, PhaseCooldown},
		{2999, PhaseCooldown},
		{3000, PhaseMinting},
		{4000, PhaseMinting},
		{4001, PhaseConcluded},
	}
	for _, tc := range cases {
		if got := s.PhaseAt(tc.now); got != tc.want {
			t.Fatalf("phase at %d: got %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestPhaseAtZeroCooldown(t *testing.T) {
	s := validSession()
	s.MintingStart = s.AllocationEnd
	s.MintingEnd = s.AllocationEnd + 500
	if got := s.PhaseAt(2000); got != PhaseAllocation {
		t.Fatalf("allocation bound wins at the shared instant, got %s", got)
	}
	if got := s.PhaseAt(2001); got != PhaseMinting {
		t.Fatalf("expected minting right after zero cooldown, got %s", got)
	}
}

func TestPhaseAtExtendedMinting(t *testing.T) {
	s := validSession()
	s.MintingEnd = math.MaxInt64
	if got := s.PhaseAt(math.MaxInt64); got != PhaseMinting {
		t.Fatalf("extended session must stay in minting, got %s", got)
	}
}

func TestSanitizeSessionNormalizes(t *testing.T) {
	s := validSession()
	s.Token = "  nhb "
	s.UnitRef = " unit/alpha "
	s.MinPrice = nil
	sanitized, err := SanitizeSession(s)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Token != "NHB" {
		t.Fatalf("token not normalized: %q", sanitized.Token)
	}
	if sanitized.UnitRef != "unit/alpha" {
		t.Fatalf("unit ref not trimmed: %q", sanitized.UnitRef)
	}
	if sanitized.MinPrice == nil || sanitized.MinPrice.Sign() != 0 {
		t.Fatalf("nil min price not defaulted")
	}
	if s.Token != "  nhb " {
		t.Fatalf("sanitize mutated its input")
	}
}

func TestSanitizeSessionRejections(t *testing.T) {
	bad := validSession()
	bad.UnitRef = "  "
	if _, err := SanitizeSession(bad); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for empty unit ref, got %v", err)
	}

	bad = validSession()
	bad.MintingStart = bad.AllocationEnd - 1
	if _, err := SanitizeSession(bad); !errors.Is(err, ErrBadSessionBounds) {
		t.Fatalf("expected ErrBadSessionBounds, got %v", err)
	}

	bad = validSession()
	bad.MaxSupply = 0
	if _, err := SanitizeSession(bad); err == nil {
		t.Fatalf("expected rejection of zero supply")
	}

	bad = validSession()
	bad.NextUnitIndex = bad.MaxSupply + 1
	if _, err := SanitizeSession(bad); err == nil {
		t.Fatalf("expected rejection of pointer beyond supply")
	}

	bad = validSession()
	bad.Rollover = RolloverOption(9)
	if _, err := SanitizeSession(bad); err == nil {
		t.Fatalf("expected rejection of invalid rollover option")
	}
}

func TestSessionCloneIndependence(t *testing.T) {
	s := validSession()
	s.TotalDeposits = big.NewInt(42)
	clone := s.Clone()
	clone.TotalDeposits.SetInt64(7)
	clone.Token = "OTHER"
	if s.TotalDeposits.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("clone shares amount storage")
	}
	if s.Token != "nhb" {
		t.Fatalf("clone shares scalar fields")
	}
}

func TestDepositCloneIndependence(t *testing.T) {
	dep := &Deposit{Balance: big.NewInt(10), Lateness: big.NewInt(20)}
	clone := dep.Clone()
	clone.Balance.SetInt64(0)
	clone.Lateness.SetInt64(0)
	if dep.Balance.Cmp(big.NewInt(10)) != 0 || dep.Lateness.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("clone shares amount storage")
	}
}

func TestValidateWindows(t *testing.T) {
	if err := ValidateWindows(1, 1, 1, 1); err != nil {
		t.Fatalf("degenerate equal bounds are legal: %v", err)
	}
	if err := ValidateWindows(2, 1, 3, 4); !errors.Is(err, ErrBadSessionBounds) {
		t.Fatalf("expected ErrBadSessionBounds, got %v", err)
	}
	if err := ValidateWindows(1, 2, 4, 3); !errors.Is(err, ErrBadSessionBounds) {
		t.Fatalf("expected ErrBadSessionBounds, got %v", err)
	}
}
