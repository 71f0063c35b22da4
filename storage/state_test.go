package storage

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"unitmint/native/launch"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testSession(id uint64) *launch.Session {
	return &launch.Session{
		ID:              id,
		UnitRef:         "unit/alpha",
		Coordinator:     testAddr(0xC0),
		Token:           "NHB",
		AllocationStart: 1000,
		AllocationEnd:   2000,
		MintingStart:    3000,
		MintingEnd:      4000,
		MinPrice:        big.NewInt(1),
		MaxSupply:       100,
		Rollover:        launch.RolloverClose,
		TotalDeposits:   big.NewInt(250),
		ResultPrice:     big.NewInt(0),
		PenaltyReserve:  big.NewInt(0),
	}
}

func TestNextSessionIDMonotonic(t *testing.T) {
	manager := NewManager(NewMemDB())
	for want := uint64(1); want <= 5; want++ {
		id, err := manager.NextSessionID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	last, err := manager.LastSessionID()
	require.NoError(t, err)
	require.Equal(t, uint64(5), last)
}

func TestSessionRoundTrip(t *testing.T) {
	manager := NewManager(NewMemDB())
	session := testSession(7)
	session.NextUnitIndex = 42
	session.RolloverOffset = 9000
	session.Closed = true
	require.NoError(t, manager.SessionPut(session))

	loaded, ok, err := manager.SessionGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, session.UnitRef, loaded.UnitRef)
	require.Equal(t, session.Coordinator, loaded.Coordinator)
	require.Equal(t, session.Token, loaded.Token)
	require.Equal(t, session.AllocationStart, loaded.AllocationStart)
	require.Equal(t, session.MintingEnd, loaded.MintingEnd)
	require.Zero(t, session.TotalDeposits.Cmp(loaded.TotalDeposits))
	require.Equal(t, uint64(42), loaded.NextUnitIndex)
	require.Equal(t, int64(9000), loaded.RolloverOffset)
	require.True(t, loaded.Closed)
	require.Equal(t, launch.RolloverClose, loaded.Rollover)
}

func TestSessionRoundTripExtendedMintingEnd(t *testing.T) {
	manager := NewManager(NewMemDB())
	session := testSession(1)
	session.MintingEnd = math.MaxInt64
	require.NoError(t, manager.SessionPut(session))

	loaded, ok, err := manager.SessionGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(math.MaxInt64), loaded.MintingEnd)
}

func TestSessionGetMissing(t *testing.T) {
	manager := NewManager(NewMemDB())
	_, ok, err := manager.SessionGet(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionPutRejectsInvalid(t *testing.T) {
	manager := NewManager(NewMemDB())
	session := testSession(1)
	session.UnitRef = ""
	require.Error(t, manager.SessionPut(session))
}

func TestDepositRoundTripAndIndex(t *testing.T) {
	manager := NewManager(NewMemDB())
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	require.NoError(t, manager.DepositPut(3, alice, &launch.Deposit{Balance: big.NewInt(100), Lateness: big.NewInt(5000)}))
	require.NoError(t, manager.DepositPut(3, bob, &launch.Deposit{Balance: big.NewInt(50), Lateness: big.NewInt(0)}))
	// Overwrites must not duplicate the index entry.
	require.NoError(t, manager.DepositPut(3, alice, &launch.Deposit{Balance: big.NewInt(75), Lateness: big.NewInt(4000)}))

	dep, ok, err := manager.DepositGet(3, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dep.Balance.Cmp(big.NewInt(75)))
	require.Zero(t, dep.Lateness.Cmp(big.NewInt(4000)))

	_, ok, err = manager.DepositGet(4, alice)
	require.NoError(t, err)
	require.False(t, ok)

	participants, err := manager.DepositParticipants(3)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{alice, bob}, participants)

	participants, err = manager.DepositParticipants(4)
	require.NoError(t, err)
	require.Empty(t, participants)
}

func TestDepositPutRejectsNegative(t *testing.T) {
	manager := NewManager(NewMemDB())
	err := manager.DepositPut(1, testAddr(0x01), &launch.Deposit{Balance: big.NewInt(-1), Lateness: big.NewInt(0)})
	require.Error(t, err)
}

func TestRewardRoundTrip(t *testing.T) {
	manager := NewManager(NewMemDB())
	coordinator := testAddr(0xC0)

	balance, err := manager.RewardGet(coordinator, "NHB")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, manager.RewardPut(coordinator, "nhb", big.NewInt(1234)))
	balance, err = manager.RewardGet(coordinator, "NHB")
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(1234)))

	require.NoError(t, manager.RewardPut(coordinator, "NHB", big.NewInt(0)))
	balance, err = manager.RewardGet(coordinator, "NHB")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.Error(t, manager.RewardPut(coordinator, "NHB", big.NewInt(-5)))
}

func TestListSessions(t *testing.T) {
	manager := NewManager(NewMemDB())
	for i := 0; i < 3; i++ {
		id, err := manager.NextSessionID()
		require.NoError(t, err)
		require.NoError(t, manager.SessionPut(testSession(id)))
	}
	sessions, err := manager.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, uint64(1), sessions[0].ID)
	require.Equal(t, uint64(3), sessions[2].ID)
}

func TestManagerSatisfiesEngineState(t *testing.T) {
	// The engine accepts the manager through its state setter; wiring them
	// end to end over MemDB exercises the full persistence path.
	manager := NewManager(NewMemDB())
	engine := launch.NewEngine()
	engine.SetState(manager)
	engine.SetTokenTransfers(nopTokens{})
	engine.SetUnitTransfers(nopUnits{})
	engine.SetNowFunc(func() int64 { return 1500 })

	session, err := engine.CreateSession("unit/alpha", testAddr(0xC0), 1000, 2000, 3000, 4000, big.NewInt(1), "NHB", 100, launch.RolloverClose)
	require.NoError(t, err)

	alice := testAddr(0x01)
	require.NoError(t, engine.Deposit(session.ID, alice, big.NewInt(100)))

	loaded, ok, err := manager.SessionGet(session.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, loaded.TotalDeposits.Cmp(big.NewInt(100)))

	dep, ok, err := manager.DepositGet(session.ID, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dep.Balance.Cmp(big.NewInt(100)))
}

type nopTokens struct{}

func (nopTokens) TransferIn(string, [20]byte, *big.Int) error  { return nil }
func (nopTokens) TransferOut(string, [20]byte, *big.Int) error { return nil }

type nopUnits struct{}

func (nopUnits) BalanceOf(string, [20]byte) (uint64, error)       { return math.MaxUint64, nil }
func (nopUnits) Transfer(string, [20]byte, [20]byte, uint64) error { return nil }
