// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/satchel-foundation/satchel/lib/vault"
)

func (a *app) runGet(arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf("get: exactly one key is required")
	}

	plaintext, err := a.registry.Current().Vault().Get(arguments[0])
	if errors.Is(err, vault.ErrNotFound) {
		return fmt.Errorf("no entry %q in the active namespace", arguments[0])
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(plaintext)
	return err
}

func (a *app) runSet(arguments []string) error {
	if len(arguments) != 2 {
		return fmt.Errorf("set: KEY VALUE required")
	}
	return a.registry.Current().Vault().Set(arguments[0], []byte(arguments[1]))
}

func (a *app) runDel(arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf("del: exactly one key is required")
	}
	return a.registry.Current().Vault().Remove(arguments[0])
}

func (a *app) runKeys(arguments []string) error {
	if len(arguments) != 0 {
		return fmt.Errorf("keys: no arguments expected")
	}
	keys, err := a.registry.Current().Vault().Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}
