// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// satchel is the command-line surface of the storage engine: it opens
// an installation (a SQLite store plus this process's ephemeral
// medium), activates a namespace, and exposes entry access, share
// links, backups, and a cross-process watch loop.
//
// Every invocation is one "tab": it gets its own tab identity and its
// own ephemeral medium, and talks to other processes only through the
// shared store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/satchel-foundation/satchel/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Handle --version before flag parsing to keep it dependency-free.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("satchel")
		return nil
	}

	var configPath string
	var verbose bool

	flagSet := pflag.NewFlagSet("satchel", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to satchel.yaml (default: $SATCHEL_CONFIG)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage()
			return nil
		}
		return err
	}

	arguments := flagSet.Args()
	if len(arguments) == 0 {
		printUsage()
		return fmt.Errorf("a command is required")
	}

	application, err := openApp(configPath, verbose)
	if err != nil {
		return err
	}
	defer application.Close()

	command, rest := arguments[0], arguments[1:]
	switch command {
	case "namespace":
		return application.runNamespace(rest)
	case "get":
		return application.runGet(rest)
	case "set":
		return application.runSet(rest)
	case "del":
		return application.runDel(rest)
	case "keys":
		return application.runKeys(rest)
	case "share":
		return application.runShare(rest)
	case "backup":
		return application.runBackup(rest)
	case "watch":
		return application.runWatch(rest)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: satchel [--config FILE] [-v] COMMAND

Namespaces:
  namespace list                    list known namespaces
  namespace create TITLE [SUBTITLE] create (or reconnect to) a namespace
  namespace switch ID               activate a namespace
  namespace delete ID               delete a namespace and its entries

Entries (active namespace):
  get KEY                           print a decrypted entry
  set KEY VALUE                     write an entry
  del KEY                           remove an entry
  keys                              list entry keys

Sharing:
  share encode --payload FILE       build a share fragment from a JSONC payload
  share decode FRAGMENT             decode a fragment and print its payload
  share import FRAGMENT             adopt the shared namespace and import

Backups:
  backup export FILE                export the active namespace
  backup import FILE                restore an archive into the active namespace

Other:
  watch VARIABLE...                 print reconciliations as other processes publish
  --version                         print the version
`)
}
