// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/satchel-foundation/satchel/lib/tabsync"
)

func (a *app) runWatch(arguments []string) error {
	if len(arguments) == 0 {
		return fmt.Errorf("watch: at least one variable name is required")
	}

	session := a.registry.Current()
	syncer, err := tabsync.New(tabsync.Config{
		Vault:     session.Vault(),
		Ephemeral: a.ephemeral,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	defer syncer.Close()

	for _, variable := range arguments {
		cancel := syncer.Watch(variable, func(reconcile tabsync.Reconcile) {
			fmt.Printf("%s  %s  hash=%s  from=%s\n",
				reconcile.UpdatedAt.Format("15:04:05"),
				reconcile.Variable, reconcile.Hash, reconcile.TabID)
		})
		defer cancel()
	}

	// Catch up on anything published before this process subscribed.
	if err := syncer.CheckForUpdates(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "watching %v in namespace %s (tab %s), ^C to stop\n",
		arguments, session.ID(), syncer.TabID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
