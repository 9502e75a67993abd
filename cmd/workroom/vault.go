// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/workroom-foundation/workroom/lib/address"
)

func runVault(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: workroom vault <init|store> [flags]")
	}
	switch args[0] {
	case "init":
		return runVaultInit(args[1:])
	case "store":
		return runVaultStore(args[1:])
	default:
		return fmt.Errorf("unknown vault subcommand: %q", args[0])
	}
}

// runVaultInit generates the age identity that protects the vault and
// writes it to the configured identity file. Refuses to overwrite an
// existing identity: losing it makes the vault unreadable.
func runVaultInit(args []string) error {
	flags := pflag.NewFlagSet("vault init", pflag.ContinueOnError)
	configPath := configFlag(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Paths.VaultIdentity == "" {
		return fmt.Errorf("paths.vault_identity is not configured")
	}
	if _, err := os.Stat(cfg.Paths.VaultIdentity); err == nil {
		return fmt.Errorf("identity file %s already exists; refusing to overwrite", cfg.Paths.VaultIdentity)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	identity, recipient, err := address.GenerateVaultIdentity()
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.VaultIdentity, []byte(identity+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "identity written to %s (back this file up; the vault is unreadable without it)\n",
		cfg.Paths.VaultIdentity)
	fmt.Println(recipient)
	return nil
}

// runVaultStore saves a delivery address in the vault, scoped to the
// caller's identity key. The key material is prompted with echo off;
// it never appears in argv or shell history.
func runVaultStore(args []string) error {
	flags := pflag.NewFlagSet("vault store", pflag.ContinueOnError)
	configPath := configFlag(flags)
	systemID := flags.String("system", "", "system id the address belongs to")
	requestID := flags.String("request", "", "request id the address is for")
	addr := flags.String("address", "", "delivery address text")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *systemID == "" || *requestID == "" || *addr == "" {
		return fmt.Errorf("--system, --request, and --address are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	identityBytes, err := os.ReadFile(cfg.Paths.VaultIdentity)
	if err != nil {
		return fmt.Errorf("reading vault identity (run 'workroom vault init' first): %w", err)
	}

	keyMaterial, err := promptKeyMaterial()
	if err != nil {
		return err
	}

	logger := newLogger()
	vault, err := address.OpenVault(cfg.Paths.Vault, strings.TrimSpace(string(identityBytes)), logger)
	if err != nil {
		return err
	}
	defer vault.Close()

	ctx := context.Background()
	if err := vault.StoreAddress(ctx, keyMaterial, *systemID, *requestID, []byte(*addr)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "address stored for system %s, request %s\n", *systemID, *requestID)
	return nil
}

// promptKeyMaterial reads the caller's base62 secret key from the
// terminal with echo disabled and decodes it to raw key bytes.
func promptKeyMaterial() ([]byte, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for the secret key prompt")
	}

	fmt.Fprint(os.Stderr, "Secret key: ")
	keyBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading secret key: %w", err)
	}

	var provider address.NaclProvider
	keyHex, err := provider.Base62ToHex(string(keyBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding secret key: %w", err)
	}
	return hex.DecodeString(keyHex)
}
