// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package sharelink encodes a configuration payload into a URL
// fragment and back.
//
// The fragment rides after "#", so it never reaches any server: the
// entire secret-bearing portion of a share URL stays client-side.
// Wire shape, inside "gpt=" and URL-safe base64:
//
//	[Version: 1 byte (0x01)]
//	[Salt: 16 bytes, random per link]
//	[Ciphertext length: 4 bytes big-endian]
//	[Nonce: 24 bytes]
//	[XChaCha20-Poly1305 ciphertext + tag]
//
// The ciphertext-length field makes truncation detectable as
// structural corruption before any decryption is attempted, which is
// what keeps the failure taxonomy honest: ErrMalformed is "not a
// link", ErrCorrupt is "a link, but damaged", ErrBadPassword is "a
// well-formed link this password does not open". The plaintext inside
// is a compression frame (tag, raw size, compressed deterministic
// CBOR of the Payload).
//
// The share password is consumed transiently: it derives the link key
// and namespace fingerprint (per the shared-link derivation context)
// and is gone when Encode or Decode returns. Only derived keys may
// outlive the call, and only in the caller's ephemeral session cache.
package sharelink

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/satchel-foundation/satchel/lib/codec"
	"github.com/satchel-foundation/satchel/lib/derive"
	"github.com/satchel-foundation/satchel/lib/namespace"
	"github.com/satchel-foundation/satchel/lib/secret"
)

// FragmentPrefix marks a share fragment. A page URL carries it as
// "#gpt=..."; absence means no shared configuration.
const FragmentPrefix = "gpt="

// linkVersion is the wire version byte.
const linkVersion byte = 0x01

// headerSize is version + salt + ciphertext length.
const headerSize = 1 + derive.SaltSize + 4

// MaxPayloadBytes bounds the decompressed payload. A corrupt or
// hostile fragment fails fast instead of ballooning in memory.
const MaxPayloadBytes = 4 << 20

// MaxFragmentLength bounds the encoded fragment. Links beyond this
// stop being pasteable URLs in practice.
const MaxFragmentLength = 32 << 10

// Decode failure taxonomy. Each failure wraps exactly one of these.
var (
	// ErrMalformed reports input that is not a share fragment at all:
	// wrong prefix, bad base64, impossible structure.
	ErrMalformed = errors.New("sharelink: malformed link")

	// ErrBadPassword reports a structurally valid fragment that no
	// supplied key material opens. Recoverable: re-prompt.
	ErrBadPassword = errors.New("sharelink: wrong password")

	// ErrCorrupt reports a fragment that is recognizably a share link
	// but damaged: truncated ciphertext, or content that decrypted
	// and then failed to decompress or parse. Not recoverable by
	// retyping the password.
	ErrCorrupt = errors.New("sharelink: link is damaged or incomplete")
)

// KeySource supplies already-known namespace keys to try alongside
// the password-derived one. *namespace.Registry satisfies it.
type KeySource interface {
	CachedKeys() ([]namespace.CachedKey, error)
}

// Candidate is one namespace context that authenticated the fragment.
type Candidate struct {
	// NamespaceID is the candidate's fingerprint.
	NamespaceID string
	// Key is the candidate's namespace key, owned by the Decoded.
	// Clone before the Decoded is closed to keep it.
	Key *secret.Buffer
	// FromCache is true when the key came from the KeySource rather
	// than from the supplied password.
	FromCache bool
}

// Decoded is the result of a successful structural decode and
// decryption.
type Decoded struct {
	// Payload is the decoded configuration.
	Payload *Payload

	// Salt is the link's embedded derivation salt, needed to catalog
	// an adopted namespace.
	Salt []byte

	// Candidates lists every namespace context that authenticated
	// the fragment, password-derived first. One entry is the normal
	// case; more than one means the caller must ask the user which
	// namespace this link belongs to — Decode never picks.
	Candidates []Candidate
}

// Single returns the only candidate, or an error when the caller must
// disambiguate.
func (d *Decoded) Single() (Candidate, error) {
	if len(d.Candidates) != 1 {
		return Candidate{}, fmt.Errorf("sharelink: %d namespace contexts match this link, caller must choose", len(d.Candidates))
	}
	return d.Candidates[0], nil
}

// Close releases every candidate key.
func (d *Decoded) Close() {
	for _, candidate := range d.Candidates {
		candidate.Key.Close()
	}
	d.Candidates = nil
}

// Encode serializes, compresses, and encrypts a payload under a key
// derived from password and a fresh random salt, returning the URL
// fragment ("gpt=..."). The password must be non-empty; it is used
// once and never stored.
func Encode(payload *Payload, password []byte) (string, error) {
	if len(password) == 0 {
		return "", fmt.Errorf("sharelink: a password is required to encode a link")
	}

	serialized, err := codec.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sharelink: serializing payload: %w", err)
	}
	if len(serialized) > MaxPayloadBytes {
		return "", fmt.Errorf("sharelink: payload is %d bytes, limit is %d", len(serialized), MaxPayloadBytes)
	}

	tag, compressed := compressPayload(serialized)

	frame := make([]byte, 5+len(compressed))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(serialized)))
	copy(frame[5:], compressed)

	salt, err := derive.NewShareSalt()
	if err != nil {
		return "", err
	}
	derived, err := derive.Derive(password, salt)
	if err != nil {
		return "", fmt.Errorf("sharelink: deriving link key: %w", err)
	}
	defer derived.Key.Close()

	aead, err := chacha20poly1305.NewX(derived.Key.Bytes())
	if err != nil {
		return "", fmt.Errorf("sharelink: creating cipher: %w", err)
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("sharelink: generating nonce: %w", err)
	}

	ciphertextLength := len(frame) + chacha20poly1305.Overhead

	envelope := make([]byte, headerSize+chacha20poly1305.NonceSizeX, headerSize+chacha20poly1305.NonceSizeX+ciphertextLength)
	envelope[0] = linkVersion
	copy(envelope[1:], salt)
	binary.BigEndian.PutUint32(envelope[1+derive.SaltSize:], uint32(ciphertextLength))
	copy(envelope[headerSize:], nonce[:])

	envelope = aead.Seal(envelope, nonce[:], frame, envelope[:headerSize])

	fragment := FragmentPrefix + base64.RawURLEncoding.EncodeToString(envelope)
	if len(fragment) > MaxFragmentLength {
		return "", fmt.Errorf("sharelink: encoded link is %d characters, limit is %d", len(fragment), MaxFragmentLength)
	}
	return fragment, nil
}

// Decode parses and decrypts a fragment. The password-derived key is
// tried first, then every key the source supplies; every context that
// authenticates becomes a Candidate. Password may be empty when the
// caller expects a cached key to open the link. The caller owns the
// returned Decoded and must Close it.
func Decode(fragment string, password []byte, source KeySource) (*Decoded, error) {
	envelope, err := parseFragment(fragment)
	if err != nil {
		return nil, err
	}

	salt := append([]byte(nil), envelope[1:1+derive.SaltSize]...)
	aad := envelope[:headerSize]
	nonce := envelope[headerSize : headerSize+chacha20poly1305.NonceSizeX]
	ciphertext := envelope[headerSize+chacha20poly1305.NonceSizeX:]

	var (
		candidates []Candidate
		frame      []byte
	)
	tryKey := func(namespaceID string, key *secret.Buffer, fromCache bool) bool {
		aead, err := chacha20poly1305.NewX(key.Bytes())
		if err != nil {
			return false
		}
		plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
		if err != nil {
			return false
		}
		if frame == nil {
			frame = plaintext
		}
		candidates = append(candidates, Candidate{NamespaceID: namespaceID, Key: key, FromCache: fromCache})
		return true
	}

	if len(password) > 0 {
		derived, err := derive.Derive(password, salt)
		if err != nil {
			return nil, fmt.Errorf("sharelink: deriving link key: %w", err)
		}
		if !tryKey(derived.NamespaceID, derived.Key, false) {
			derived.Key.Close()
		}
	}

	if source != nil {
		cached, err := source.CachedKeys()
		if err != nil {
			for _, candidate := range candidates {
				candidate.Key.Close()
			}
			return nil, fmt.Errorf("sharelink: listing cached keys: %w", err)
		}
		for _, entry := range cached {
			if alreadyCandidate(candidates, entry.ID) {
				entry.Key.Close()
				continue
			}
			if !tryKey(entry.ID, entry.Key, true) {
				entry.Key.Close()
			}
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no supplied key authenticates this link", ErrBadPassword)
	}

	payload, err := parseFrame(frame)
	if err != nil {
		for _, candidate := range candidates {
			candidate.Key.Close()
		}
		return nil, err
	}

	return &Decoded{Payload: payload, Salt: salt, Candidates: candidates}, nil
}

// parseFragment validates everything visible without a key.
func parseFragment(fragment string) ([]byte, error) {
	trimmed := strings.TrimPrefix(fragment, "#")
	encoded, hasPrefix := strings.CutPrefix(trimmed, FragmentPrefix)
	if !hasPrefix {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformed, FragmentPrefix)
	}

	envelope, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) < headerSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: %d bytes is below the minimum envelope size", ErrMalformed, len(envelope))
	}
	if envelope[0] != linkVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, envelope[0])
	}

	declaredLength := int(binary.BigEndian.Uint32(envelope[1+derive.SaltSize : headerSize]))
	actualLength := len(envelope) - headerSize - chacha20poly1305.NonceSizeX
	if actualLength != declaredLength {
		// A shortened paste or a mangled copy: recognizably a link,
		// but incomplete. Reported before any decryption attempt so
		// the caller does not re-prompt for a password that would
		// never help.
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, link declares %d", ErrCorrupt, actualLength, declaredLength)
	}
	return envelope, nil
}

// parseFrame decompresses and deserializes the decrypted frame.
// Failures here mean the link authenticated but its content is
// damaged, so everything maps to ErrCorrupt.
func parseFrame(frame []byte) (*Payload, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("%w: compression frame is %d bytes", ErrCorrupt, len(frame))
	}
	tag := CompressionTag(frame[0])
	rawSize := int(binary.BigEndian.Uint32(frame[1:5]))

	serialized, err := decompressPayload(tag, frame[5:], rawSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var payload Payload
	if err := codec.Unmarshal(serialized, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &payload, nil
}

func alreadyCandidate(candidates []Candidate, namespaceID string) bool {
	for _, candidate := range candidates {
		if candidate.NamespaceID == namespaceID {
			return true
		}
	}
	return false
}
