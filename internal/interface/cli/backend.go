package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/daemon"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/namer"
)

// openBackend routes mutations to a running recorder when there is one so
// its in-memory ledger stays authoritative, and otherwise applies them to an
// engine in this process.
func openBackend(ctx context.Context) (engine.Backend, error) {
	if sock := cfg.SocketPath(); hostsock.Available(sock) {
		log.Debug().Str("socket", sock).Msg("using running recorder")
		return hostsock.NewClient(sock), nil
	}
	return engine.New(ctx, cfg, engine.Options{})
}

// openReader loads the persisted sessions for read-only commands
func openReader(ctx context.Context) (*engine.Engine, error) {
	return engine.New(ctx, cfg, engine.Options{Namer: namer.Heuristic{}})
}

func openIndex() (*db.DB, error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func recorderManager() (*daemon.Manager, error) {
	dm, err := daemon.NewManager(filepath.Join(config.Dir(), "recorder"))
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder manager: %w", err)
	}
	return dm, nil
}
