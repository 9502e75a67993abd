// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// The workroom command is the operator CLI for a workroom replica:
// inspecting the request board, verifying and compacting the journal,
// and managing the encrypted address vault.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch os.Args[1] {
	case "requests":
		return runRequests(os.Args[2:])
	case "journal":
		return runJournal(os.Args[2:])
	case "vault":
		return runVault(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: workroom <subcommand> [flags]

Subcommands:
  requests list      List requests with filters
  requests stats     Summarize the request board
  requests kanban    Show the board grouped by status
  journal verify     Check journal integrity frame by frame
  journal compact    Write a fresh snapshot from the journal
  vault init         Create the encrypted address vault identity
  vault store        Store a delivery address in the vault

Configuration is read from the file named by WORKROOM_CONFIG or the
--config flag. Run 'workroom <subcommand> --help' for subcommand flags.
`)
}

// newLogger builds the CLI logger: human-readable on a terminal,
// JSON when stderr is redirected.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
