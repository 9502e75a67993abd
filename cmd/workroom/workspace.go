// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/workroom-foundation/workroom/lib/config"
	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// workspace is the CLI's view of one replica's document: every shared
// collection registered on a single doc, loaded from the snapshot and
// journal on disk.
type workspace struct {
	Config *config.Config
	Doc    *store.Doc

	Requests         *store.Array[schema.RequestContent]
	Catalog          *store.Array[schema.CatalogItemContent]
	Chat             *store.Array[schema.ChatMessageContent]
	Notifications    *store.Array[schema.NotificationContent]
	Audit            *store.Array[schema.AuditEntryContent]
	Reveals          *store.Map[schema.AddressRevealContent]
	PendingAddresses *store.Map[schema.PendingAddressContent]
	Capacities       *store.Map[schema.CapacityContent]
}

// configFlag registers the shared --config flag on a subcommand flag
// set. An empty value falls back to WORKROOM_CONFIG.
func configFlag(flags *pflag.FlagSet) *string {
	return flags.String("config", "", "path to workroom.yaml (default: $WORKROOM_CONFIG)")
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newWorkspace registers every collection on a fresh document.
func newWorkspace(cfg *config.Config, logger *slog.Logger) *workspace {
	doc := store.NewDoc(logger)
	return &workspace{
		Config:           cfg,
		Doc:              doc,
		Requests:         store.NewArray[schema.RequestContent](doc, "requests"),
		Catalog:          store.NewArray[schema.CatalogItemContent](doc, "catalog"),
		Chat:             store.NewArray[schema.ChatMessageContent](doc, "chat"),
		Notifications:    store.NewArray[schema.NotificationContent](doc, "notifications"),
		Audit:            store.NewArray[schema.AuditEntryContent](doc, "audit"),
		Reveals:          store.NewMap[schema.AddressRevealContent](doc, "reveals"),
		PendingAddresses: store.NewMap[schema.PendingAddressContent](doc, "pending_addresses"),
		Capacities:       store.NewMap[schema.CapacityContent](doc, "capacities"),
	}
}

// openWorkspace loads the document from disk: the snapshot first when
// one exists, then a replay of the journal. A missing journal is an
// empty workspace, not an error.
func openWorkspace(configPath string, logger *slog.Logger) (*workspace, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	ws := newWorkspace(cfg, logger)

	if cfg.Paths.Snapshot != "" {
		file, err := os.Open(cfg.Paths.Snapshot)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// First run, or compaction has never happened.
		case err != nil:
			return nil, err
		default:
			err = store.ReadSnapshot(ws.Doc, file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("reading snapshot %s: %w", cfg.Paths.Snapshot, err)
			}
		}
	}

	journalFile, err := os.Open(cfg.Paths.Journal)
	if errors.Is(err, fs.ErrNotExist) {
		return ws, nil
	}
	if err != nil {
		return nil, err
	}
	defer journalFile.Close()

	// The CLI never commits, so replayed frames have nowhere to go.
	journal := store.NewJournal(ws.Doc, cfg.Workspace.Replica, io.Discard, logger)
	defer journal.Close()
	applied, err := journal.Replay(journalFile)
	if err != nil {
		return nil, fmt.Errorf("replaying journal %s: %w", cfg.Paths.Journal, err)
	}
	logger.Debug("journal replayed", "updates", applied)
	return ws, nil
}
