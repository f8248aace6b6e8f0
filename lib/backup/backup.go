// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package backup exports a namespace to a passphrase-encrypted
// archive file and restores it.
//
// An archive is a CBOR snapshot of the namespace's decrypted entries,
// sealed with age (scrypt recipient). It deliberately does NOT copy
// the stored envelopes: envelopes are bound to their storage keys and
// namespace key, so raw copies would be unreadable anywhere else.
// Exporting decrypts through the vault and re-encrypts under the
// archive passphrase, making the archive portable across
// installations and namespaces.
package backup

import (
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"github.com/satchel-foundation/satchel/lib/codec"
	"github.com/satchel-foundation/satchel/lib/vault"
)

// archiveVersion guards the CBOR schema inside the age layer.
const archiveVersion = 1

// archive is the decrypted snapshot format.
type archive struct {
	Version     int               `cbor:"version"`
	NamespaceID string            `cbor:"namespace_id"`
	CreatedAt   time.Time         `cbor:"created_at"`
	Entries     map[string][]byte `cbor:"entries"`
}

// Export snapshots every entry of the source namespace and writes the
// encrypted archive to w. Fails on the first unreadable entry rather
// than producing a silently partial backup.
func Export(w io.Writer, source *vault.Vault, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("backup: a passphrase is required")
	}

	keys, err := source.Keys()
	if err != nil {
		return fmt.Errorf("backup: listing entries: %w", err)
	}

	snapshot := archive{
		Version:     archiveVersion,
		NamespaceID: source.NamespaceID(),
		CreatedAt:   time.Now().UTC(),
		Entries:     make(map[string][]byte, len(keys)),
	}
	for _, key := range keys {
		plaintext, err := source.Get(key)
		if err != nil {
			return fmt.Errorf("backup: reading %s: %w", key, err)
		}
		snapshot.Entries[key] = plaintext
	}

	encoded, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("backup: encoding archive: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("backup: preparing recipient: %w", err)
	}

	sealed, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("backup: starting encryption: %w", err)
	}
	if _, err := sealed.Write(encoded); err != nil {
		return fmt.Errorf("backup: writing archive: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("backup: finalizing archive: %w", err)
	}
	return nil
}

// Import reads an archive from r and writes its entries into the
// target namespace through its vault, overwriting entries that share
// keys. Returns the number of restored entries and the archive's
// original namespace id.
func Import(r io.Reader, target *vault.Vault, passphrase string) (restored int, originID string, err error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return 0, "", fmt.Errorf("backup: preparing identity: %w", err)
	}

	opened, err := age.Decrypt(r, identity)
	if err != nil {
		return 0, "", fmt.Errorf("backup: decrypting archive: %w", err)
	}
	encoded, err := io.ReadAll(opened)
	if err != nil {
		return 0, "", fmt.Errorf("backup: reading archive: %w", err)
	}

	var snapshot archive
	if err := codec.Unmarshal(encoded, &snapshot); err != nil {
		return 0, "", fmt.Errorf("backup: decoding archive: %w", err)
	}
	if snapshot.Version != archiveVersion {
		return 0, "", fmt.Errorf("backup: archive version %d is not supported", snapshot.Version)
	}

	for key, plaintext := range snapshot.Entries {
		if err := target.Set(key, plaintext); err != nil {
			return restored, snapshot.NamespaceID, fmt.Errorf("backup: restoring %s: %w", key, err)
		}
		restored++
	}
	return restored, snapshot.NamespaceID, nil
}
