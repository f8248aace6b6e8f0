// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Satchel's standard serialization: CBOR with
// Core Deterministic Encoding (RFC 8949 §4.2).
//
// Determinism is load-bearing here, not a nicety. Share-link encoding
// compresses and encrypts the serialized payload, and the round-trip
// property (decode(encode(P)) == P, byte-exact at every stage) only
// holds if the same logical payload always serializes to the same
// bytes. Sync variables and catalog records go through the same mode
// so that equality of records implies equality of stored ciphertext
// plaintexts.
//
// Every structured value Satchel persists or transports is marshaled
// through this package; no other package imports fxamacker/cbor
// directly.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are ignored so older
// installations can read entries written by newer ones.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Times serialize as RFC 3339 text rather than floating-point
	// epoch seconds. Sync variable timestamps must survive a
	// round-trip without precision drift.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Satchel never uses non-string map keys. When decoding into
		// an any-typed target (share payload credential maps), pick
		// map[string]any instead of CBOR's map[interface{}]interface{}
		// default so the result interoperates with encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, for delaying decode of
// entry bodies whose type depends on the storage key.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR stream encoder writing to w with Satchel's
// deterministic configuration. Backup files are written as a CBOR
// stream through this.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR stream decoder reading from r with
// Satchel's standard configuration.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
