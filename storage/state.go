package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"unitmint/native/launch"
)

var (
	sessionSeqKey      = []byte("launch/session/seq")
	sessionPrefix      = []byte("launch/session/")
	depositPrefix      = []byte("launch/deposit/")
	depositIndexPrefix = []byte("launch/deposit-index/")
	rewardPrefix       = []byte("launch/reward/")
)

// Manager persists launch module records in a key-value Database using RLP
// encoded payloads. It satisfies the launch engine's state interface.
type Manager struct {
	db Database
}

// NewManager wraps the supplied database.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

// storedSession mirrors launch.Session with RLP-friendly field types.
// Timestamps are never negative in practice, so they round-trip via uint64.
type storedSession struct {
	ID              uint64
	UnitRef         string
	Coordinator     [20]byte
	Token           string
	AllocationStart uint64
	AllocationEnd   uint64
	MintingStart    uint64
	MintingEnd      uint64
	MinPrice        *big.Int
	MaxSupply       uint64
	Rollover        uint8
	TotalDeposits   *big.Int
	ResultPrice     *big.Int
	NextUnitIndex   uint64
	RolloverOffset  uint64
	Closed          bool
	PenaltyReserve  *big.Int
}

type storedDeposit struct {
	Balance  *big.Int
	Lateness *big.Int
}

func sessionKey(id uint64) []byte {
	key := make([]byte, len(sessionPrefix)+8)
	copy(key, sessionPrefix)
	binary.BigEndian.PutUint64(key[len(sessionPrefix):], id)
	return key
}

func depositKey(sessionID uint64, participant [20]byte) []byte {
	key := make([]byte, len(depositPrefix)+8+20)
	copy(key, depositPrefix)
	binary.BigEndian.PutUint64(key[len(depositPrefix):], sessionID)
	copy(key[len(depositPrefix)+8:], participant[:])
	return key
}

func depositIndexKey(sessionID uint64) []byte {
	key := make([]byte, len(depositIndexPrefix)+8)
	copy(key, depositIndexPrefix)
	binary.BigEndian.PutUint64(key[len(depositIndexPrefix):], sessionID)
	return key
}

func rewardKey(coordinator [20]byte, token string) []byte {
	normalized := strings.ToUpper(strings.TrimSpace(token))
	key := make([]byte, 0, len(rewardPrefix)+20+1+len(normalized))
	key = append(key, rewardPrefix...)
	key = append(key, coordinator[:]...)
	key = append(key, '/')
	key = append(key, normalized...)
	return key
}

func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	raw, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// NextSessionID increments and returns the monotonic session sequence,
// starting at 1.
func (m *Manager) NextSessionID() (uint64, error) {
	var seq uint64
	if _, err := m.get(sessionSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.put(sessionSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// SessionPut persists a sanitized copy of the session.
func (m *Manager) SessionPut(session *launch.Session) error {
	sanitized, err := launch.SanitizeSession(session)
	if err != nil {
		return err
	}
	stored := storedSession{
		ID:              sanitized.ID,
		UnitRef:         sanitized.UnitRef,
		Coordinator:     sanitized.Coordinator,
		Token:           sanitized.Token,
		AllocationStart: uint64(sanitized.AllocationStart),
		AllocationEnd:   uint64(sanitized.AllocationEnd),
		MintingStart:    uint64(sanitized.MintingStart),
		MintingEnd:      uint64(sanitized.MintingEnd),
		MinPrice:        sanitized.MinPrice,
		MaxSupply:       sanitized.MaxSupply,
		Rollover:        uint8(sanitized.Rollover),
		TotalDeposits:   sanitized.TotalDeposits,
		ResultPrice:     sanitized.ResultPrice,
		NextUnitIndex:   sanitized.NextUnitIndex,
		RolloverOffset:  uint64(sanitized.RolloverOffset),
		Closed:          sanitized.Closed,
		PenaltyReserve:  sanitized.PenaltyReserve,
	}
	return m.put(sessionKey(sanitized.ID), &stored)
}

// SessionGet loads a session by identifier.
func (m *Manager) SessionGet(id uint64) (*launch.Session, bool, error) {
	var stored storedSession
	ok, err := m.get(sessionKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	session := &launch.Session{
		ID:              stored.ID,
		UnitRef:         stored.UnitRef,
		Coordinator:     stored.Coordinator,
		Token:           stored.Token,
		AllocationStart: int64(stored.AllocationStart),
		AllocationEnd:   int64(stored.AllocationEnd),
		MintingStart:    int64(stored.MintingStart),
		MintingEnd:      int64(stored.MintingEnd),
		MinPrice:        stored.MinPrice,
		MaxSupply:       stored.MaxSupply,
		Rollover:        launch.RolloverOption(stored.Rollover),
		TotalDeposits:   stored.TotalDeposits,
		ResultPrice:     stored.ResultPrice,
		NextUnitIndex:   stored.NextUnitIndex,
		RolloverOffset:  int64(stored.RolloverOffset),
		Closed:          stored.Closed,
		PenaltyReserve:  stored.PenaltyReserve,
	}
	return session, true, nil
}

// DepositPut persists the participant's deposit record and maintains the
// per-session participant index used for ledger audits.
func (m *Manager) DepositPut(sessionID uint64, participant [20]byte, dep *launch.Deposit) error {
	if dep == nil {
		return fmt.Errorf("storage: nil deposit")
	}
	stored := storedDeposit{
		Balance:  dep.Balance,
		Lateness: dep.Lateness,
	}
	if stored.Balance == nil {
		stored.Balance = big.NewInt(0)
	}
	if stored.Lateness == nil {
		stored.Lateness = big.NewInt(0)
	}
	if stored.Balance.Sign() < 0 {
		return fmt.Errorf("storage: negative deposit balance")
	}
	key := depositKey(sessionID, participant)
	existed, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if err := m.put(key, &stored); err != nil {
		return err
	}
	if !existed {
		return m.indexParticipant(sessionID, participant)
	}
	return nil
}

// DepositGet loads the participant's deposit record.
func (m *Manager) DepositGet(sessionID uint64, participant [20]byte) (*launch.Deposit, bool, error) {
	var stored storedDeposit
	ok, err := m.get(depositKey(sessionID, participant), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &launch.Deposit{Balance: stored.Balance, Lateness: stored.Lateness}, true, nil
}

func (m *Manager) indexParticipant(sessionID uint64, participant [20]byte) error {
	participants, err := m.DepositParticipants(sessionID)
	if err != nil {
		return err
	}
	for _, existing := range participants {
		if existing == participant {
			return nil
		}
	}
	participants = append(participants, participant)
	return m.put(depositIndexKey(sessionID), participants)
}

// DepositParticipants returns every participant that has ever held a deposit
// record in the session.
func (m *Manager) DepositParticipants(sessionID uint64) ([][20]byte, error) {
	var participants [][20]byte
	if _, err := m.get(depositIndexKey(sessionID), &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// RewardGet loads the coordinator's accrued reward balance for the token.
func (m *Manager) RewardGet(coordinator [20]byte, token string) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(rewardKey(coordinator, token), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// RewardPut stores the coordinator's accrued reward balance for the token.
func (m *Manager) RewardPut(coordinator [20]byte, token string, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("storage: negative reward balance")
	}
	return m.put(rewardKey(coordinator, token), amount)
}

// LastSessionID returns the highest identifier handed out so far.
func (m *Manager) LastSessionID() (uint64, error) {
	var seq uint64
	if _, err := m.get(sessionSeqKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// ListSessions loads every provisioned session in identifier order.
func (m *Manager) ListSessions() ([]*launch.Session, error) {
	last, err := m.LastSessionID()
	if err != nil {
		return nil, err
	}
	if last == math.MaxUint64 {
		return nil, fmt.Errorf("storage: session sequence overflow")
	}
	sessions := make([]*launch.Session, 0, last)
	for id := uint64(1); id <= last; id++ {
		session, ok, err := m.SessionGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
