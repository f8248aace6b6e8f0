// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tabIDBytes sizes the random tab identity. 8 bytes is plenty: the
// identity only disambiguates the handful of live tabs of one
// installation, and collides with nothing persistent.
const tabIDBytes = 8

func newTabID() (string, error) {
	raw := make([]byte, tabIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("tabsync: generating tab identity: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
