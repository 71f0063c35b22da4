package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"unitmint/config"
	"unitmint/observability/logging"
	"unitmint/storage"
)

type sessionReport struct {
	ID            uint64 `json:"id"`
	UnitRef       string `json:"unitRef"`
	Token         string `json:"token"`
	Phase         string `json:"phase"`
	Rollover      string `json:"rollover"`
	Closed        bool   `json:"closed"`
	Participants  int    `json:"participants"`
	TotalDeposits string `json:"totalDeposits"`
	LedgerSum     string `json:"ledgerSum"`
	Consistent    bool   `json:"consistent"`
	ResultPrice   string `json:"resultPrice"`
	NextUnitIndex uint64 `json:"nextUnitIndex"`
	MaxSupply     uint64 `json:"maxSupply"`
}

type auditReport struct {
	Sessions     []sessionReport `json:"sessions"`
	Inconsistent int             `json:"inconsistent"`
}

func main() {
	configPath := flag.String("config", "./config.toml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("launch-audit", cfg.Env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := storage.NewManager(db)
	sessions, err := manager.ListSessions()
	if err != nil {
		logger.Error("failed to list sessions", "err", err)
		os.Exit(1)
	}

	now := time.Now().Unix()
	report := auditReport{Sessions: make([]sessionReport, 0, len(sessions))}
	for _, session := range sessions {
		participants, err := manager.DepositParticipants(session.ID)
		if err != nil {
			logger.Error("failed to load participants", "session", session.ID, "err", err)
			os.Exit(1)
		}
		sum := big.NewInt(0)
		for _, participant := range participants {
			dep, ok, err := manager.DepositGet(session.ID, participant)
			if err != nil {
				logger.Error("failed to load deposit", "session", session.ID, "err", err)
				os.Exit(1)
			}
			if ok && dep.Balance != nil {
				sum.Add(sum, dep.Balance)
			}
		}
		consistent := sum.Cmp(session.TotalDeposits) == 0
		if !consistent {
			report.Inconsistent++
			logger.Warn("ledger mismatch",
				"session", session.ID,
				"totalDeposits", session.TotalDeposits.String(),
				"ledgerSum", sum.String())
		}
		report.Sessions = append(report.Sessions, sessionReport{
			ID:            session.ID,
			UnitRef:       session.UnitRef,
			Token:         session.Token,
			Phase:         session.PhaseAt(now).String(),
			Rollover:      session.Rollover.String(),
			Closed:        session.Closed,
			Participants:  len(participants),
			TotalDeposits: session.TotalDeposits.String(),
			LedgerSum:     sum.String(),
			Consistent:    consistent,
			ResultPrice:   session.ResultPrice.String(),
			NextUnitIndex: session.NextUnitIndex,
			MaxSupply:     session.MaxSupply,
		})
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("failed to encode report", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
	if report.Inconsistent > 0 {
		os.Exit(2)
	}
}
