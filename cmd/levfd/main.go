package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"levfinance/config"
	"levfinance/core/protocol"
	"levfinance/core/state"
	"levfinance/observability/logging"
	"levfinance/storage"
)

const envVar = "LEVF_ENV"

func main() {
	configFile := flag.String("config", "./levf.toml", "Path to the configuration file (created with defaults when missing)")
	scriptFile := flag.String("script", "", "JSON array of operations to apply, or - for stdin")
	dbPath := flag.String("db", "", "Snapshot database: a LevelDB directory or a .bolt file (overrides the config backend)")
	resume := flag.Bool("resume", false, "Restore the latest stored snapshot before applying the script")
	envFlag := flag.String("env", "", "Deployment environment attached to every log line (defaults to "+envVar+")")
	flag.Parse()

	env := strings.TrimSpace(*envFlag)
	if env == "" {
		env = strings.TrimSpace(os.Getenv(envVar))
	}
	runID := uuid.New()
	logger := logging.Setup("levfd", env).With(slog.String("run_id", runID.String()))

	if err := run(logger, runID, *configFile, *scriptFile, *dbPath, *resume); err != nil {
		logger.Error("levfd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, runID uuid.UUID, configFile, scriptFile, dbPath string, resume bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDatabase(cfg, dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	store := state.NewStore(db)

	proto, err := protocol.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("build protocol: %w", err)
	}
	if resume {
		snap, err := store.Latest()
		switch {
		case errors.Is(err, state.ErrNoSnapshot):
			logger.Info("no stored snapshot, starting from genesis")
		case err != nil:
			return fmt.Errorf("load snapshot: %w", err)
		default:
			if err := proto.Restore(snap); err != nil {
				return fmt.Errorf("restore snapshot %s: %w", snap.RunID, err)
			}
			logger.Info("resumed from snapshot", slog.String("snapshot_run", snap.RunID), slog.Uint64("ts", snap.Timestamp))
		}
	}

	var rejected int
	if scriptFile != "" {
		ops, err := protocol.ReadScript(scriptFile)
		if err != nil {
			return err
		}
		for _, op := range ops {
			// Each rejection is logged by the protocol; the script continues.
			if _, err := proto.Apply(op); err != nil {
				rejected++
			}
		}
		logger.Info("script applied", slog.Int("operations", len(ops)), slog.Int("rejected", rejected))
	}

	snap := proto.Snapshot()
	snap.RunID = runID.String()
	if _, err := store.Save(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return writeReport(os.Stdout, proto, snap)
}

// openDatabase picks the snapshot backend. An explicit path wins over the
// configured backend and selects bbolt for .bolt files.
func openDatabase(cfg *config.Config, override string) (storage.Database, error) {
	if override = strings.TrimSpace(override); override != "" {
		if strings.EqualFold(filepath.Ext(override), ".bolt") {
			return storage.NewBoltDB(override)
		}
		return storage.NewLevelDB(override)
	}
	switch cfg.Database {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "levf.bolt"))
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "snapshots"))
	}
}
