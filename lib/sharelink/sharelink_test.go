// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package sharelink

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/satchel-foundation/satchel/lib/derive"
	"github.com/satchel-foundation/satchel/lib/namespace"
	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/storage"
	"github.com/satchel-foundation/satchel/lib/vault"
)

// testPayload builds a payload exercising every section.
func testPayload() *Payload {
	return &Payload{
		Credentials: map[string]string{"openai": "sk-test-credential"},
		Model: &ModelConfig{
			Provider: "openai",
			Name:     "gpt-4-turbo",
			Params:   map[string]any{"temperature": 0.7, "max_tokens": int64(4096)},
		},
		Messages: []Message{
			{Role: "user", Content: "What is the capital of France?"},
			{Role: "assistant", Content: "The capital of France is Paris."},
		},
		Prompts:   []Prompt{{Name: "summarize", Body: "Summarize the following text:"}},
		Functions: []Function{{Name: "add", Description: "adds numbers", Code: "return a + b;"}},
		Connectors: []Connector{{
			Name:     "search",
			Kind:     "http",
			Settings: map[string]string{"endpoint": "https://search.example.com"},
		}},
	}
}

// payloadsEqual compares the sections a test cares about. CBOR
// round-trips numeric Params through any, so Model.Params is compared
// by length only.
func payloadsEqual(t *testing.T, got, want *Payload) {
	t.Helper()
	if len(got.Credentials) != len(want.Credentials) || got.Credentials["openai"] != want.Credentials["openai"] {
		t.Errorf("credentials = %v, want %v", got.Credentials, want.Credentials)
	}
	if (got.Model == nil) != (want.Model == nil) {
		t.Fatalf("model presence mismatch")
	}
	if got.Model != nil {
		if got.Model.Provider != want.Model.Provider || got.Model.Name != want.Model.Name {
			t.Errorf("model = %+v, want %+v", got.Model, want.Model)
		}
		if len(got.Model.Params) != len(want.Model.Params) {
			t.Errorf("model params = %v, want %v", got.Model.Params, want.Model.Params)
		}
	}
	if len(got.Messages) != len(want.Messages) {
		t.Fatalf("messages = %d, want %d", len(got.Messages), len(want.Messages))
	}
	for index := range want.Messages {
		if got.Messages[index].Role != want.Messages[index].Role ||
			got.Messages[index].Content != want.Messages[index].Content {
			t.Errorf("message %d = %+v, want %+v", index, got.Messages[index], want.Messages[index])
		}
	}
	if len(got.Prompts) != 1 || got.Prompts[0] != want.Prompts[0] {
		t.Errorf("prompts = %v, want %v", got.Prompts, want.Prompts)
	}
	if len(got.Functions) != 1 || got.Functions[0] != want.Functions[0] {
		t.Errorf("functions = %v, want %v", got.Functions, want.Functions)
	}
	if len(got.Connectors) != 1 || got.Connectors[0].Name != want.Connectors[0].Name {
		t.Errorf("connectors = %v, want %v", got.Connectors, want.Connectors)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")

	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(fragment, FragmentPrefix) {
		t.Fatalf("fragment %q lacks the %q prefix", fragment[:16], FragmentPrefix)
	}

	decoded, err := Decode(fragment, password, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()

	payloadsEqual(t, decoded.Payload, testPayload())

	candidate, err := decoded.Single()
	if err != nil {
		t.Fatal(err)
	}
	if candidate.FromCache {
		t.Error("password-derived candidate flagged as cached")
	}
	if len(decoded.Salt) != derive.SaltSize {
		t.Errorf("salt length = %d, want %d", len(decoded.Salt), derive.SaltSize)
	}
}

func TestDecodeAcceptsLeadingHash(t *testing.T) {
	password := []byte("pw")
	fragment, err := Encode(&Payload{Prompts: []Prompt{{Name: "p", Body: "b"}}}, password)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode("#"+fragment, password, nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded.Close()
}

func TestFreshSaltPerLink(t *testing.T) {
	password := []byte("pw")
	payload := &Payload{Prompts: []Prompt{{Name: "p", Body: "b"}}}

	first, err := Encode(payload, password)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Encode(payload, password)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("two encodings of the same payload are identical; salt or nonce is not fresh")
	}
}

func TestWrongPasswordIsBadPassword(t *testing.T) {
	fragment, err := Encode(testPayload(), []byte("right password"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = Decode(fragment, []byte("wrong password"), nil)
	if !errors.Is(err, ErrBadPassword) {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}
}

func TestTruncatedCiphertextIsCorruptNotBadPassword(t *testing.T) {
	password := []byte("right password")
	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}

	// Drop the last ciphertext byte — the classic incomplete paste.
	envelope, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(fragment, FragmentPrefix))
	if err != nil {
		t.Fatal(err)
	}
	truncated := FragmentPrefix + base64.RawURLEncoding.EncodeToString(envelope[:len(envelope)-1])

	// The password is correct; the failure must still be Corrupt, so
	// the caller reports "link damaged" instead of re-prompting.
	_, err = Decode(truncated, password, nil)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if errors.Is(err, ErrBadPassword) {
		t.Error("truncation misreported as a password failure")
	}
}

func TestMalformedInputs(t *testing.T) {
	cases := map[string]string{
		"no prefix":      "definitely-not-a-link",
		"bad base64":     FragmentPrefix + "!!!not base64!!!",
		"too short":      FragmentPrefix + base64.RawURLEncoding.EncodeToString([]byte{linkVersion, 1, 2, 3}),
		"wrong version":  FragmentPrefix + base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xff}, 128)),
		"empty fragment": "",
		"prefix only":    FragmentPrefix,
	}
	for name, fragment := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(fragment, []byte("pw"), nil)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestTamperedCiphertextIsBadPassword(t *testing.T) {
	password := []byte("pw")
	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(fragment, FragmentPrefix))
	if err != nil {
		t.Fatal(err)
	}
	envelope[len(envelope)-1] ^= 0x01
	tampered := FragmentPrefix + base64.RawURLEncoding.EncodeToString(envelope)

	// Authentication failure is indistinguishable from a wrong key,
	// and is reported as such.
	_, err = Decode(tampered, password, nil)
	if !errors.Is(err, ErrBadPassword) {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}
}

func TestEncodeRequiresPassword(t *testing.T) {
	if _, err := Encode(testPayload(), nil); err == nil {
		t.Error("empty password accepted")
	}
}

// staticKeySource hands out fresh copies of fixed (id, key) pairs, as
// the registry's ephemeral cache does.
type staticKeySource struct {
	entries map[string][]byte
}

func (s *staticKeySource) CachedKeys() ([]namespace.CachedKey, error) {
	cached := make([]namespace.CachedKey, 0, len(s.entries))
	for id, raw := range s.entries {
		key, err := secret.FromBytes(append([]byte(nil), raw...))
		if err != nil {
			return nil, err
		}
		cached = append(cached, namespace.CachedKey{ID: id, Key: key})
	}
	return cached, nil
}

func TestCachedKeyOpensLinkWithoutPassword(t *testing.T) {
	password := []byte("team password")
	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}

	// Re-derive what the cache would hold after the first decode.
	probe, err := Decode(fragment, password, nil)
	if err != nil {
		t.Fatal(err)
	}
	owner, err := probe.Single()
	if err != nil {
		t.Fatal(err)
	}
	source := &staticKeySource{entries: map[string][]byte{
		owner.NamespaceID: append([]byte(nil), owner.Key.Bytes()...),
	}}
	probe.Close()

	decoded, err := Decode(fragment, nil, source)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()

	candidate, err := decoded.Single()
	if err != nil {
		t.Fatal(err)
	}
	if !candidate.FromCache || candidate.NamespaceID != owner.NamespaceID {
		t.Errorf("candidate = %+v, want cached key for %s", candidate, owner.NamespaceID)
	}
	payloadsEqual(t, decoded.Payload, testPayload())
}

func TestMultipleMatchingContextsRequireDisambiguation(t *testing.T) {
	password := []byte("ambiguous password")
	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}

	probe, err := Decode(fragment, password, nil)
	if err != nil {
		t.Fatal(err)
	}
	owner, err := probe.Single()
	if err != nil {
		t.Fatal(err)
	}
	keyBytes := append([]byte(nil), owner.Key.Bytes()...)
	probe.Close()

	// Engineer the collision: two cached contexts under different
	// fingerprints both hold key material that authenticates the
	// link. Decode must surface both, never pick one.
	source := &staticKeySource{entries: map[string][]byte{
		"11111111111111111111111111111111": keyBytes,
		"22222222222222222222222222222222": keyBytes,
	}}

	decoded, err := Decode(fragment, nil, source)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()

	if len(decoded.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(decoded.Candidates))
	}
	if _, err := decoded.Single(); err == nil {
		t.Error("Single() picked arbitrarily from an ambiguous decode")
	}
}

func TestImportWritesEntriesAndNeverThePassword(t *testing.T) {
	password := []byte("import password xyzzy-unique")
	fragment, err := Encode(testPayload(), password)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(fragment, password, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()
	candidate, err := decoded.Single()
	if err != nil {
		t.Fatal(err)
	}

	medium := storage.NewMemory()
	defer medium.Close()
	target := vault.New(medium, candidate.NamespaceID, candidate.Key)

	if err := Import(target, decoded.Payload); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"credentials/openai", "model", "history", "prompts/summarize", "functions/add", "connectors/search"} {
		if _, err := target.Get(key); err != nil {
			t.Errorf("entry %s missing after import: %v", key, err)
		}
	}

	// The password must not appear anywhere in the medium, in any
	// stored value or key.
	storageKeys, err := medium.Keys("")
	if err != nil {
		t.Fatal(err)
	}
	for _, storageKey := range storageKeys {
		if strings.Contains(storageKey, string(password)) {
			t.Errorf("password appears in storage key %s", storageKey)
		}
		value, _, err := medium.Get(storageKey)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Contains(value, password) {
			t.Errorf("password appears in the stored value of %s", storageKey)
		}
	}
}

func TestCompressionShrinksRealisticPayloads(t *testing.T) {
	// Conversation text: repetitive, JSON-shaped, very compressible.
	raw := bytes.Repeat([]byte(`{"role":"user","content":"please explain this again"},`), 200)

	tag, compressed := compressPayload(raw)
	if tag == CompressionNone {
		t.Fatal("realistic text selected no compression")
	}
	if len(compressed) >= len(raw) {
		t.Fatalf("compressed %d bytes to %d; must shrink", len(raw), len(compressed))
	}

	restored, err := decompressPayload(tag, compressed, len(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, raw) {
		t.Error("decompression does not restore the input")
	}
}

func TestCompressionNeverExpands(t *testing.T) {
	// High-entropy input: incompressible, must fall back to none.
	raw := make([]byte, 512)
	for index := range raw {
		raw[index] = byte(index*7 + index/3)
	}
	tag, framed := compressPayload(raw)
	if len(framed) > len(raw) {
		t.Errorf("compression expanded %d bytes to %d", len(raw), len(framed))
	}
	restored, err := decompressPayload(tag, framed, len(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, raw) {
		t.Error("fallback path does not restore the input")
	}
}

func TestDecompressRejectsOversizedDeclaration(t *testing.T) {
	if _, err := decompressPayload(CompressionZstd, []byte{1, 2, 3}, MaxPayloadBytes+1); err == nil {
		t.Error("declared size beyond the limit accepted")
	}
}
