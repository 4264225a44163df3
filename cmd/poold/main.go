package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poolchain/config"
	"poolchain/core/events"
	"poolchain/core/types"
	"poolchain/crypto"
	"poolchain/native/governance"
	"poolchain/native/pool"
	"poolchain/native/revenue"
	"poolchain/native/rewards"
	"poolchain/observability"
	"poolchain/observability/logging"
	"poolchain/state"
	"poolchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("POOLCHAIN_ENV"))
	logger := logging.Setup("poold", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open ledger database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := observability.NewEventCounter(&logEmitter{logger: logger})

	gov := governance.NewEngine()
	gov.SetState(manager)
	gov.SetLedger(manager)
	gov.SetEmitter(emitter)
	gov.SetPolicy(cfg.Governance.Policy())
	gov.SetPoolControl(manager)
	if err := seedVetoHolder(manager, cfg.Governance.VetoHolder); err != nil {
		logger.Error("failed to seed veto holder", "err", err)
		os.Exit(1)
	}

	rev := revenue.NewEngine()
	rev.SetState(manager)
	rev.SetVotes(gov)
	rev.SetLedger(manager)
	rev.SetEmitter(emitter)
	rev.SetSnapshotInterval(cfg.Governance.SnapshotIntervalSeconds)

	rew := rewards.NewEngine()
	rew.SetState(manager)
	rew.SetWhitelist(gov)
	rew.SetVoteDepositor(gov, gov.Vault())
	rew.SetLedger(manager)
	rew.SetRewardToken(cfg.Rewards.RewardToken)
	rew.SetEmitter(emitter)

	engines := make(map[string]*pool.Engine, len(cfg.Pools))
	for i := range cfg.Pools {
		params, err := cfg.Pools[i].Params()
		if err != nil {
			logger.Error("invalid pool config", "pool", cfg.Pools[i].PoolID, "err", err)
			os.Exit(1)
		}
		eng := pool.NewEngine(params)
		eng.SetState(manager)
		eng.SetLedger(manager)
		eng.SetRewards(rew)
		eng.SetRevenue(rev, rev.Vault())
		eng.SetController(gov.Vault())
		eng.SetEmitter(emitter)
		engines[params.PoolID] = eng
		logger.Info("pool engine initialised", "pool", params.PoolID,
			"loanToken", params.LoanToken, "collToken", params.CollToken)
	}
	logger.Info("ledger engines ready", "pools", len(engines))

	if cfg.MetricsAddr != "" {
		go serveMetrics(logger, cfg.MetricsAddr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

func seedVetoHolder(manager *state.Manager, encoded string) error {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	current, err := manager.VetoHolder()
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return nil
	}
	holder, err := crypto.DecodeAddress(encoded)
	if err != nil {
		return err
	}
	return manager.SetVetoHolder(holder)
}

func serveMetrics(logger *slog.Logger, addr string) {
	observability.LedgerMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics listener started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics listener stopped", "err", err)
	}
}

// logEmitter mirrors engine events into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	args := []any{"type", evt.EventType()}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if inner := carrier.Event(); inner != nil {
			for k, v := range inner.Attributes {
				args = append(args, k, v)
			}
		}
	}
	l.logger.Info("ledger event", args...)
}
