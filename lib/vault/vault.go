// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault is the encrypting key-value layer between Satchel
// components and a storage medium.
//
// Every entry a namespace owns is stored under the namespace prefix
// ("ns/<fingerprint>/") as an encrypted envelope:
//
//	[Version: 1 byte (0x01)]
//	[Plaintext length: 4 bytes big-endian]
//	[Nonce: 24 bytes, random]
//	[XChaCha20-Poly1305 ciphertext + tag]
//
// The version byte, the length field, and the full namespaced storage
// key are all additional authenticated data. Binding the key into the
// AAD means an entry copied under a different key fails
// authentication — entries cannot be swapped, even by a writer with
// raw access to the medium. The plaintext length rides outside the
// ciphertext as debugging metadata, and the AAD binding keeps it
// honest.
//
// A small fixed allow-list of keys bypasses encryption entirely (see
// AllowPlaintext): the storage-medium indicator, the installation
// secret, and namespace catalog descriptors. These are exactly the
// values that must be readable before any key has been derived; the
// list is a reviewed constant, not an inference. Everything else
// written to a medium goes through a Vault.
package vault

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/satchel-foundation/satchel/lib/codec"
	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/storage"
)

// EntryVersion is the envelope version byte. Authenticated via AAD,
// so tampering with it fails decryption rather than selecting a
// different parse.
const EntryVersion byte = 0x01

// EntryOverhead is the fixed per-entry byte overhead:
// version + length field + XChaCha20 nonce + Poly1305 tag.
const EntryOverhead = 1 + 4 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Reserved plaintext keys. These live outside every namespace prefix
// and are the only keys a medium ever holds unencrypted.
const (
	// MediumIndicatorKey selects durable vs ephemeral storage for the
	// session. It must be readable at startup, before any derivation.
	MediumIndicatorKey = "satchel/medium"

	// InstallSecretKey holds the installation secret that local
	// namespace keys are derived from. It never leaves this machine
	// and grants nothing without the per-namespace salt.
	InstallSecretKey = "satchel/install-secret"

	// CatalogKeyPrefix prefixes namespace descriptors: label, salt,
	// kind, creation time. Descriptors contain no key material; they
	// exist so the registry can re-derive or name namespaces before
	// any key is available.
	CatalogKeyPrefix = "satchel/catalog/"
)

// ErrNotFound reports an absent key. Expected during normal
// operation; callers distinguish it from DecryptError, which means
// "present but unreadable".
var ErrNotFound = errors.New("vault: entry not found")

// DecryptError reports an entry that exists but cannot be decrypted:
// wrong key, corrupted ciphertext, or envelope format drift.
type DecryptError struct {
	// Key is the namespaced storage key of the unreadable entry.
	Key string
	// Err is the underlying failure.
	Err error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("vault: decrypting %s: %v", e.Key, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

// IsDecryptError reports whether err is a *DecryptError.
func IsDecryptError(err error) bool {
	var decryptErr *DecryptError
	return errors.As(err, &decryptErr)
}

// NamespacePrefix returns the storage prefix owned by a namespace.
// The full fingerprint is the prefix; it is never truncated.
func NamespacePrefix(namespaceID string) string {
	return "ns/" + namespaceID + "/"
}

// AllowPlaintext reports whether a storage key is on the fixed
// unencrypted allow-list.
func AllowPlaintext(key string) bool {
	return key == MediumIndicatorKey ||
		key == InstallSecretKey ||
		strings.HasPrefix(key, CatalogKeyPrefix)
}

// Vault scopes a medium to one namespace and encrypts everything that
// passes through it. The key is borrowed from the owning session and
// is not closed by the Vault.
type Vault struct {
	medium      storage.Medium
	namespaceID string
	prefix      string
	key         *secret.Buffer
}

// New creates a vault for the given namespace over the given medium.
func New(medium storage.Medium, namespaceID string, key *secret.Buffer) *Vault {
	return &Vault{
		medium:      medium,
		namespaceID: namespaceID,
		prefix:      NamespacePrefix(namespaceID),
		key:         key,
	}
}

// NamespaceID returns the namespace fingerprint this vault serves.
func (v *Vault) NamespaceID() string { return v.namespaceID }

// Medium returns the underlying medium. Subscribers (cross-tab sync)
// need it for change notifications; writes must still go through the
// vault.
func (v *Vault) Medium() storage.Medium { return v.medium }

// StorageKey returns the full namespaced medium key for an entry key.
func (v *Vault) StorageKey(key string) string { return v.prefix + key }

// Set serializes nothing — it encrypts plaintext as given and writes
// the envelope under the namespaced key.
func (v *Vault) Set(key string, plaintext []byte) error {
	storageKey := v.StorageKey(key)
	envelope, err := v.seal(storageKey, plaintext)
	if err != nil {
		return err
	}
	if err := v.medium.Set(storageKey, envelope); err != nil {
		return fmt.Errorf("vault: writing %s: %w", storageKey, err)
	}
	return nil
}

// Get reads and decrypts the entry at key. Returns ErrNotFound when
// absent and *DecryptError when present but unreadable — callers can
// always tell the two apart.
func (v *Vault) Get(key string) ([]byte, error) {
	storageKey := v.StorageKey(key)
	envelope, found, err := v.medium.Get(storageKey)
	if err != nil {
		return nil, fmt.Errorf("vault: reading %s: %w", storageKey, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return v.open(storageKey, envelope)
}

// SetRecord CBOR-encodes a structured value and stores it at key.
func (v *Vault) SetRecord(key string, value any) error {
	encoded, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("vault: encoding record for %s: %w", v.StorageKey(key), err)
	}
	return v.Set(key, encoded)
}

// GetRecord reads the entry at key and CBOR-decodes it into out.
func (v *Vault) GetRecord(key string, out any) error {
	plaintext, err := v.Get(key)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("vault: decoding record at %s: %w", v.StorageKey(key), err)
	}
	return nil
}

// Remove deletes the entry at key. Removing an absent key is a no-op.
func (v *Vault) Remove(key string) error {
	storageKey := v.StorageKey(key)
	if err := v.medium.Remove(storageKey); err != nil {
		return fmt.Errorf("vault: removing %s: %w", storageKey, err)
	}
	return nil
}

// Keys lists the namespace's entry keys (unprefixed), sorted.
func (v *Vault) Keys() ([]string, error) {
	storageKeys, err := v.medium.Keys(v.prefix)
	if err != nil {
		return nil, fmt.Errorf("vault: scanning %s: %w", v.prefix, err)
	}
	keys := make([]string, 0, len(storageKeys))
	for _, storageKey := range storageKeys {
		keys = append(keys, storageKey[len(v.prefix):])
	}
	return keys, nil
}

// seal builds the entry envelope for plaintext stored at storageKey.
func (v *Vault) seal(storageKey string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("vault: generating nonce: %w", err)
	}

	header := make([]byte, 5)
	header[0] = EntryVersion
	binary.BigEndian.PutUint32(header[1:], uint32(len(plaintext)))

	aad := buildAAD(header, storageKey)

	envelope := make([]byte, 5+chacha20poly1305.NonceSizeX, EntryOverhead+len(plaintext))
	copy(envelope, header)
	copy(envelope[5:], nonce[:])

	envelope = aead.Seal(envelope, nonce[:], plaintext, aad)
	return envelope, nil
}

// open decrypts an entry envelope read from storageKey.
func (v *Vault) open(storageKey string, envelope []byte) ([]byte, error) {
	version, declaredLength, err := EntryInfo(envelope)
	if err != nil {
		return nil, &DecryptError{Key: storageKey, Err: err}
	}
	if version != EntryVersion {
		return nil, &DecryptError{
			Key: storageKey,
			Err: fmt.Errorf("envelope version %d is not supported (expected %d)", version, EntryVersion),
		}
	}

	nonce := envelope[5 : 5+chacha20poly1305.NonceSizeX]
	ciphertext := envelope[5+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(v.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}

	aad := buildAAD(envelope[:5], storageKey)

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, &DecryptError{
			Key: storageKey,
			Err: fmt.Errorf("AEAD authentication failed (wrong key or tampered data): %w", err),
		}
	}
	if len(plaintext) != declaredLength {
		// Unreachable when the AAD held, but a mismatch here would
		// mean the metadata lies — treat as unreadable.
		return nil, &DecryptError{
			Key: storageKey,
			Err: fmt.Errorf("plaintext length %d does not match declared %d", len(plaintext), declaredLength),
		}
	}
	return plaintext, nil
}

// EntryInfo parses the unauthenticated-but-AAD-bound envelope header:
// version byte and declared plaintext length. Useful for debugging a
// medium dump without any key.
func EntryInfo(envelope []byte) (version byte, plaintextLength int, err error) {
	if len(envelope) < EntryOverhead {
		return 0, 0, fmt.Errorf("envelope is %d bytes, minimum is %d", len(envelope), EntryOverhead)
	}
	return envelope[0], int(binary.BigEndian.Uint32(envelope[1:5])), nil
}

func buildAAD(header []byte, storageKey string) []byte {
	aad := make([]byte, 0, len(header)+len(storageKey))
	aad = append(aad, header...)
	aad = append(aad, storageKey...)
	return aad
}
