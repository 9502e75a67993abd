// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/workroom-foundation/workroom/lib/store"
)

func runJournal(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: workroom journal <verify|compact> [flags]")
	}
	switch args[0] {
	case "verify":
		return runJournalVerify(args[1:])
	case "compact":
		return runJournalCompact(args[1:])
	default:
		return fmt.Errorf("unknown journal subcommand: %q", args[0])
	}
}

// runJournalVerify checks every frame of the journal without touching
// any document state. Corruption reports the frame index so the
// operator knows how much of the log is salvageable.
func runJournalVerify(args []string) error {
	flags := pflag.NewFlagSet("journal verify", pflag.ContinueOnError)
	configPath := configFlag(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	file, err := os.Open(cfg.Paths.Journal)
	if err != nil {
		return err
	}
	defer file.Close()

	count, err := store.VerifyStream(file)
	if err != nil {
		return fmt.Errorf("journal %s: %d valid frames, then: %w", cfg.Paths.Journal, count, err)
	}
	fmt.Printf("%s: %d frames OK\n", cfg.Paths.Journal, count)
	return nil
}

// runJournalCompact rebuilds the document from snapshot plus journal
// and writes a fresh snapshot. The journal itself is left in place;
// operators truncate it separately once the snapshot is safely stored.
func runJournalCompact(args []string) error {
	flags := pflag.NewFlagSet("journal compact", pflag.ContinueOnError)
	configPath := configFlag(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := newLogger()
	ws, err := openWorkspace(*configPath, logger)
	if err != nil {
		return err
	}
	if ws.Config.Paths.Snapshot == "" {
		return fmt.Errorf("paths.snapshot is not configured")
	}

	// Write to a sibling temp file and rename, so a crash mid-write
	// never clobbers the previous snapshot.
	tmpPath := ws.Config.Paths.Snapshot + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := store.WriteSnapshot(ws.Doc, file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, ws.Config.Paths.Snapshot); err != nil {
		return err
	}
	fmt.Printf("snapshot written to %s\n", ws.Config.Paths.Snapshot)
	return nil
}
