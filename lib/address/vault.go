// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNotFound reports a vault lookup that matched nothing.
var ErrNotFound = errors.New("address: not found in vault")

// Vault is the local encrypted address store. Plaintext addresses
// never enter the shared document; once decrypted they live here,
// age-encrypted at rest in a SQLite database private to this replica.
//
// Rows are scoped by a digest of the owning identity's key material,
// so one vault file can serve several identities without any row
// naming a key. The (systemID, requestID) pair completes the address
// key: systemID first, requestID second, everywhere in this API.
type Vault struct {
	pool     *sqlitex.Pool
	identity *age.X25519Identity
	logger   *slog.Logger
}

const vaultSchema = `
CREATE TABLE IF NOT EXISTS addresses (
	scope      TEXT NOT NULL,
	system_id  TEXT NOT NULL,
	request_id TEXT NOT NULL,
	sealed     TEXT NOT NULL,
	PRIMARY KEY (scope, system_id, request_id)
);
CREATE TABLE IF NOT EXISTS workspace_keys (
	workspace    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	sealed       TEXT NOT NULL,
	PRIMARY KEY (workspace, workspace_id)
);
`

// OpenVault opens (or creates) the vault database at path. identity is
// the age identity string (AGE-SECRET-KEY-1...) that unlocks values at
// rest; generate one with [GenerateVaultIdentity]. A nil logger
// defaults to discard.
func OpenVault(path, identity string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parsed, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("address: parsing vault identity: %w", err)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 2,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, vaultSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("address: opening vault %s: %w", path, err)
	}

	logger.Info("vault opened", "path", path)
	return &Vault{pool: pool, identity: parsed, logger: logger}, nil
}

// GenerateVaultIdentity creates a fresh age identity for a new vault.
// Returns the secret identity string and its public recipient form.
// The identity string is the only way to open the vault; losing it
// loses every stored address.
func GenerateVaultIdentity() (identity, recipient string, err error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("address: generating vault identity: %w", err)
	}
	return generated.String(), generated.Recipient().String(), nil
}

// Close closes the underlying connection pool.
func (v *Vault) Close() error {
	return v.pool.Close()
}

// StoreAddress persists a plaintext address for (systemID, requestID)
// under the identity owning keyMaterial, replacing any previous value.
func (v *Vault) StoreAddress(ctx context.Context, keyMaterial []byte, systemID, requestID string, addr []byte) error {
	sealed, err := v.seal(addr)
	if err != nil {
		return err
	}
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("address: vault connection: %w", err)
	}
	defer v.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR REPLACE INTO addresses (scope, system_id, request_id, sealed) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{scopeDigest(keyMaterial), systemID, requestID, sealed},
		})
	if err != nil {
		return fmt.Errorf("address: storing address: %w", err)
	}
	return nil
}

// GetAddress returns the plaintext address stored for (systemID,
// requestID) under the identity owning keyMaterial, or ErrNotFound.
func (v *Vault) GetAddress(ctx context.Context, keyMaterial []byte, systemID, requestID string) ([]byte, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("address: vault connection: %w", err)
	}
	defer v.pool.Put(conn)

	var sealed string
	found := false
	err = sqlitex.Execute(conn,
		`SELECT sealed FROM addresses WHERE scope = ? AND system_id = ? AND request_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{scopeDigest(keyMaterial), systemID, requestID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sealed = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("address: reading address: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return v.open(sealed)
}

// DeleteAddress removes the stored address for (systemID, requestID).
// Deleting an absent address is a no-op.
func (v *Vault) DeleteAddress(ctx context.Context, keyMaterial []byte, systemID, requestID string) error {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("address: vault connection: %w", err)
	}
	defer v.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM addresses WHERE scope = ? AND system_id = ? AND request_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{scopeDigest(keyMaterial), systemID, requestID},
		})
	if err != nil {
		return fmt.Errorf("address: deleting address: %w", err)
	}
	return nil
}

// StoreWorkspaceKeyMaterial persists the identity key material used in
// the given workspace, replacing any previous value.
func (v *Vault) StoreWorkspaceKeyMaterial(ctx context.Context, workspace, workspaceID string, keyMaterial []byte) error {
	sealed, err := v.seal(keyMaterial)
	if err != nil {
		return err
	}
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("address: vault connection: %w", err)
	}
	defer v.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR REPLACE INTO workspace_keys (workspace, workspace_id, sealed) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{workspace, workspaceID, sealed},
		})
	if err != nil {
		return fmt.Errorf("address: storing workspace key: %w", err)
	}
	return nil
}

// WorkspaceKeyMaterial returns the key material stored for the given
// workspace, or ErrNotFound.
func (v *Vault) WorkspaceKeyMaterial(ctx context.Context, workspace, workspaceID string) ([]byte, error) {
	conn, err := v.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("address: vault connection: %w", err)
	}
	defer v.pool.Put(conn)

	var sealed string
	found := false
	err = sqlitex.Execute(conn,
		`SELECT sealed FROM workspace_keys WHERE workspace = ? AND workspace_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{workspace, workspaceID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sealed = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("address: reading workspace key: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return v.open(sealed)
}

// seal age-encrypts a value to the vault identity and base64-encodes
// the result for storage in a TEXT column.
func (v *Vault) seal(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("address: sealing value: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("address: sealing value: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("address: sealing value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// open reverses seal.
func (v *Vault) open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("address: decoding sealed value: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), v.identity)
	if err != nil {
		return nil, fmt.Errorf("address: opening sealed value: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("address: reading sealed value: %w", err)
	}
	return plaintext, nil
}

// scopeDigest reduces key material to a row scope without storing the
// key itself.
func scopeDigest(keyMaterial []byte) string {
	sum := blake3.Sum256(keyMaterial)
	return fmt.Sprintf("%x", sum[:16])
}
