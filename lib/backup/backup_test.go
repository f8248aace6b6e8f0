// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"bytes"
	"testing"

	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/storage"
	"github.com/satchel-foundation/satchel/lib/vault"
)

func testVault(t *testing.T, namespaceID string, seed byte) *vault.Vault {
	t.Helper()
	raw := make([]byte, 32)
	for index := range raw {
		raw[index] = seed + byte(index)
	}
	key, err := secret.FromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { key.Close() })

	medium := storage.NewMemory()
	t.Cleanup(func() { medium.Close() })
	return vault.New(medium, namespaceID, key)
}

func TestExportImportRoundTrip(t *testing.T) {
	source := testVault(t, "0123456789abcdef0123456789abcdef", 0x10)
	entries := map[string]string{
		"model":              "gpt-4",
		"credentials/openai": "sk-secret",
		"prompts/summarize":  "Summarize:",
	}
	for key, value := range entries {
		if err := source.Set(key, []byte(value)); err != nil {
			t.Fatal(err)
		}
	}

	var archiveBuffer bytes.Buffer
	if err := Export(&archiveBuffer, source, "backup passphrase"); err != nil {
		t.Fatal(err)
	}

	// Restore into a different namespace with a different key: the
	// archive is portable because it carries plaintext under its own
	// encryption, not key-bound envelopes.
	target := testVault(t, "ffffffffffffffffffffffffffffffff", 0x80)
	restored, originID, err := Import(&archiveBuffer, target, "backup passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if restored != len(entries) {
		t.Errorf("restored %d entries, want %d", restored, len(entries))
	}
	if originID != source.NamespaceID() {
		t.Errorf("origin = %s, want %s", originID, source.NamespaceID())
	}

	for key, value := range entries {
		plaintext, err := target.Get(key)
		if err != nil {
			t.Fatalf("reading restored %s: %v", key, err)
		}
		if string(plaintext) != value {
			t.Errorf("%s = %q, want %q", key, plaintext, value)
		}
	}
}

func TestArchiveIsOpaque(t *testing.T) {
	source := testVault(t, "0123456789abcdef0123456789abcdef", 0x10)
	if err := source.Set("credentials/openai", []byte("sk-very-secret")); err != nil {
		t.Fatal(err)
	}

	var archiveBuffer bytes.Buffer
	if err := Export(&archiveBuffer, source, "backup passphrase"); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(archiveBuffer.Bytes(), []byte("sk-very-secret")) {
		t.Error("plaintext visible in the archive")
	}
}

func TestWrongPassphraseFails(t *testing.T) {
	source := testVault(t, "0123456789abcdef0123456789abcdef", 0x10)
	if err := source.Set("model", []byte("gpt-4")); err != nil {
		t.Fatal(err)
	}

	var archiveBuffer bytes.Buffer
	if err := Export(&archiveBuffer, source, "right"); err != nil {
		t.Fatal(err)
	}

	target := testVault(t, "ffffffffffffffffffffffffffffffff", 0x80)
	if _, _, err := Import(&archiveBuffer, target, "wrong"); err == nil {
		t.Error("wrong passphrase accepted")
	}
}

func TestExportRequiresPassphrase(t *testing.T) {
	source := testVault(t, "0123456789abcdef0123456789abcdef", 0x10)
	var archiveBuffer bytes.Buffer
	if err := Export(&archiveBuffer, source, ""); err == nil {
		t.Error("empty passphrase accepted")
	}
}
