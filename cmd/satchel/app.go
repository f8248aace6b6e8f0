// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/satchel-foundation/satchel/lib/config"
	"github.com/satchel-foundation/satchel/lib/namespace"
	"github.com/satchel-foundation/satchel/lib/storage"
)

// app holds the open installation: configuration, media, and the
// namespace registry with its active session.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	durable   *storage.SQLite
	ephemeral *storage.Memory
	registry  *namespace.Registry
}

func openApp(configPath string, verbose bool) (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	durable, err := storage.OpenSQLite(storage.SQLiteConfig{
		Path:         cfg.Store.Path,
		PoolSize:     cfg.Store.PoolSize,
		PollInterval: cfg.Store.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	ephemeral := storage.NewMemory()

	registry, err := namespace.Open(namespace.Config{
		Durable:         durable,
		Ephemeral:       ephemeral,
		DefaultTitle:    cfg.Namespace.Title,
		DefaultSubtitle: cfg.Namespace.Subtitle,
		DefaultMedium:   namespace.MediumKind(cfg.Medium),
		Logger:          logger,
	})
	if err != nil {
		durable.Close()
		ephemeral.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		durable:   durable,
		ephemeral: ephemeral,
		registry:  registry,
	}, nil
}

func (a *app) Close() {
	a.registry.Close()
	a.ephemeral.Close()
	a.durable.Close()
}

// promptPassword reads a password from the terminal without echo.
// The prompt goes to stderr so stdout stays pipeable.
func promptPassword(prompt string, confirm bool) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("a password is required and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if !confirm {
		return password, nil
	}

	fmt.Fprint(os.Stderr, "Confirm: ")
	again, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	if string(password) != string(again) {
		return nil, fmt.Errorf("passwords do not match")
	}
	return password, nil
}
