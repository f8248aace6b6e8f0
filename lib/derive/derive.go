// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package derive turns a human-facing secret and a salt into a
// namespace identity: a public fingerprint string and a symmetric
// encryption key.
//
// The derivation tree is:
//
//	root        = argon2id(secret, salt)
//	key         = HKDF-SHA256(root, info="satchel.namespace.key.v1")
//	fingerprint = BLAKE3-keyed(root)("satchel.namespace.fingerprint.v1")[:16]
//
// The fingerprint is a safe-to-log public value; it prefixes every
// storage key the namespace owns. The key never leaves guarded memory.
// Both are derived from the root through independent one-way paths, so
// holding a fingerprint gives no purchase on the key.
//
// Two derivation contexts exist and differ only in their inputs:
//
//   - Local: secret is the stored installation secret, salt comes from
//     LocalSalt(title, subtitle) — deterministic, so the same pair
//     reconnects to the same namespace on the same installation.
//   - Shared link: secret is the user-supplied share password (never
//     stored), salt is random and travels inside the link
//     (NewShareSalt).
//
// This package is mechanism only. An empty secret derives successfully
// but the result is flagged Weak; whether a weak derivation is
// acceptable is the caller's policy.
package derive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/satchel-foundation/satchel/lib/secret"
)

const (
	// KeySize is the size of every symmetric key in Satchel.
	KeySize = 32

	// SaltSize is the size of derivation salts, both local and
	// share-link. Share links embed the salt, so this is a wire
	// format constant.
	SaltSize = 16

	// FingerprintSize is the byte length of the namespace fingerprint
	// before hex encoding. The full fingerprint is used as the
	// storage prefix — never truncated — so prefix collisions between
	// namespaces are structurally impossible.
	FingerprintSize = 16
)

// argon2id parameters: 64 MiB memory, one pass, four lanes (the
// RFC 9106 first recommended option). Changing these invalidates
// every existing namespace and share link.
const (
	argonPasses    = 1
	argonMemoryKiB = 64 * 1024
	argonLanes     = 4
)

// Domain separation constants. Changing any of these invalidates all
// existing ciphertext under the affected derivation path.
var (
	hkdfInfoNamespaceKey = []byte("satchel.namespace.key.v1")
	fingerprintDomain    = []byte("satchel.namespace.fingerprint.v1")
)

const localSaltDomain = "satchel.local.salt.v1"

// Derived is the result of a derivation: the public namespace
// fingerprint and the private encryption key.
type Derived struct {
	// NamespaceID is the hex-encoded fingerprint. Public: safe to
	// log, safe to use as a storage key prefix.
	NamespaceID string

	// Key is the namespace encryption key in guarded memory. The
	// caller owns it and must Close it.
	Key *secret.Buffer

	// Weak is true when the secret was empty. Derivation still
	// succeeded; callers enforce their own policy on weak identities.
	Weak bool
}

// Derive computes the namespace identity for (secret, salt).
// Deterministic: the same inputs always produce the same fingerprint
// and key. The secretMaterial slice is borrowed, not zeroed — the
// caller decides when its copy dies.
func Derive(secretMaterial []byte, salt []byte) (*Derived, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("derive: salt is required")
	}

	weak := len(secretMaterial) == 0

	root := argon2.IDKey(secretMaterial, salt, argonPasses, argonMemoryKiB, argonLanes, KeySize)
	defer secret.Zero(root)

	keyBytes := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, root, nil, hkdfInfoNamespaceKey)
	if _, err := io.ReadFull(reader, keyBytes); err != nil {
		secret.Zero(keyBytes)
		return nil, fmt.Errorf("derive: HKDF expansion failed: %w", err)
	}
	key, err := secret.FromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("derive: protecting namespace key: %w", err)
	}

	hasher, err := blake3.NewKeyed(root)
	if err != nil {
		key.Close()
		return nil, fmt.Errorf("derive: BLAKE3 keyed hash initialization failed: %w", err)
	}
	hasher.Write(fingerprintDomain)
	fingerprint := hasher.Sum(nil)

	return &Derived{
		NamespaceID: hex.EncodeToString(fingerprint[:FingerprintSize]),
		Key:         key,
		Weak:        weak,
	}, nil
}

// LocalSalt derives the deterministic salt for a local namespace from
// its user-chosen title and subtitle. The pair is hashed under a
// domain tag with an unambiguous separator, so ("ab","c") and
// ("a","bc") produce different salts.
func LocalSalt(title, subtitle string) []byte {
	input := make([]byte, 0, len(localSaltDomain)+len(title)+len(subtitle)+2)
	input = append(input, localSaltDomain...)
	input = append(input, 0x00)
	input = append(input, title...)
	input = append(input, 0x1f)
	input = append(input, subtitle...)

	sum := blake3.Sum256(input)
	return sum[:SaltSize]
}

// NewShareSalt returns a fresh random salt for share-link derivation.
func NewShareSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("derive: generating share salt: %w", err)
	}
	return salt, nil
}
