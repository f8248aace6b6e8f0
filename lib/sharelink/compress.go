// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package sharelink

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the algorithm applied to the serialized
// payload before encryption. Stored as one byte inside the encrypted
// frame — a wire constant; changing values breaks existing links.
type CompressionTag uint8

const (
	// CompressionNone stores the payload as-is. Chosen only when the
	// compressors cannot shrink the input (tiny payloads, high-entropy
	// content), so a link never grows from compression.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. Share payloads
	// are conversation text and JSON-shaped config, which is exactly
	// what zstd is good at, so this wins nearly always.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

var errIncompressible = errors.New("sharelink: input is incompressible")

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("sharelink: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxPayloadBytes),
	)
	if err != nil {
		panic("sharelink: zstd decoder initialization failed: " + err.Error())
	}
}

// compressPayload picks the smallest encoding of raw among the
// supported algorithms. Never returns output larger than the input.
func compressPayload(raw []byte) (CompressionTag, []byte) {
	best, bestTag := raw, CompressionNone

	if compressed, err := compressZstd(raw); err == nil && len(compressed) < len(best) {
		best, bestTag = compressed, CompressionZstd
	}
	if compressed, err := compressLZ4(raw); err == nil && len(compressed) < len(best) {
		best, bestTag = compressed, CompressionLZ4
	}
	return bestTag, best
}

// decompressPayload inverts compressPayload. The uncompressedSize
// comes from the encrypted frame and bounds allocation; a mismatch is
// reported as an error, never a short result.
func decompressPayload(tag CompressionTag, compressed []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize < 0 || uncompressedSize > MaxPayloadBytes {
		return nil, fmt.Errorf("declared payload size %d exceeds the %d byte limit", uncompressedSize, MaxPayloadBytes)
	}

	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match declared %d", len(compressed), uncompressedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		destination := make([]byte, 0, uncompressedSize)
		result, err := zstdDecoder.DecodeAll(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 when it determines the data is
	// incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}
