// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes the build version stamp for the satchel CLI.
package version

import "fmt"

// value is overridden at build time:
//
//	go build -ldflags "-X github.com/satchel-foundation/satchel/lib/version.value=v0.3.0"
var value = "dev"

// Info returns the version string.
func Info() string { return value }

// Print writes "name version" to stdout, the standard --version output
// shape for satchel binaries.
func Print(name string) {
	fmt.Printf("%s %s\n", name, value)
}
