// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/satchel-foundation/satchel/lib/backup"
	"github.com/satchel-foundation/satchel/lib/secret"
)

func (a *app) runBackup(arguments []string) error {
	if len(arguments) != 2 {
		return fmt.Errorf("backup: export FILE or import FILE")
	}

	switch arguments[0] {
	case "export":
		return a.backupExport(arguments[1])
	case "import":
		return a.backupImport(arguments[1])
	default:
		return fmt.Errorf("backup: unknown subcommand %q", arguments[0])
	}
}

func (a *app) backupExport(path string) error {
	passphrase, err := promptPassword("Archive passphrase: ", true)
	if err != nil {
		return err
	}
	defer secret.Zero(passphrase)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("backup export: %w", err)
	}

	session := a.registry.Current()
	if err := backup.Export(file, session.Vault(), string(passphrase)); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("backup export: %w", err)
	}
	fmt.Printf("exported namespace %s to %s\n", session.ID(), path)
	return nil
}

func (a *app) backupImport(path string) error {
	passphrase, err := promptPassword("Archive passphrase: ", false)
	if err != nil {
		return err
	}
	defer secret.Zero(passphrase)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup import: %w", err)
	}
	defer file.Close()

	session := a.registry.Current()
	restored, originID, err := backup.Import(file, session.Vault(), string(passphrase))
	if err != nil {
		return err
	}
	fmt.Printf("restored %d entries from namespace %s into %s\n", restored, originID, session.ID())
	return nil
}
