// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"

	"github.com/satchel-foundation/satchel/lib/storage"
)

// The plaintext plane: reads and writes for the fixed allow-list of
// bootstrap keys. Routing these through the vault package — instead of
// letting callers touch the medium directly — keeps the allow-list the
// single enforcement point for what may ever be stored unencrypted.

// SetPlain writes an allow-listed key without encryption. Rejects any
// key not on the allow-list.
func SetPlain(medium storage.Medium, key string, value []byte) error {
	if !AllowPlaintext(key) {
		return fmt.Errorf("vault: %q is not on the plaintext allow-list", key)
	}
	if err := medium.Set(key, value); err != nil {
		return fmt.Errorf("vault: writing plaintext %s: %w", key, err)
	}
	return nil
}

// GetPlain reads an allow-listed key. Returns ErrNotFound when
// absent, and rejects keys not on the allow-list.
func GetPlain(medium storage.Medium, key string) ([]byte, error) {
	if !AllowPlaintext(key) {
		return nil, fmt.Errorf("vault: %q is not on the plaintext allow-list", key)
	}
	value, found, err := medium.Get(key)
	if err != nil {
		return nil, fmt.Errorf("vault: reading plaintext %s: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

// RemovePlain deletes an allow-listed key.
func RemovePlain(medium storage.Medium, key string) error {
	if !AllowPlaintext(key) {
		return fmt.Errorf("vault: %q is not on the plaintext allow-list", key)
	}
	if err := medium.Remove(key); err != nil {
		return fmt.Errorf("vault: removing plaintext %s: %w", key, err)
	}
	return nil
}
