// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package tabsync propagates change signals between tabs of the same
// installation through the shared storage medium.
//
// The design moves signals, not data. For each logical variable (say,
// the conversation history) a tab publishes a small encrypted sync
// record — content hash, publishing tab id, timestamp — under
// "sync/<variable>" inside the active namespace. Other tabs observe
// the write through the medium's change notifications, re-read the
// record, and when the hash differs from what they last saw, reload
// the variable from storage through their own decrypting store. The
// medium never carries plaintext and a tab never trusts another tab's
// payload, only its signal.
//
// Tabs that miss notifications (no subscription support, or a tab
// waking from the background) call CheckForUpdates, which walks the
// watched variables and applies exactly the same comparison. The two
// paths are equivalent: notifications are an optimization, polling is
// the contract.
package tabsync

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/satchel-foundation/satchel/lib/clock"
	"github.com/satchel-foundation/satchel/lib/storage"
	"github.com/satchel-foundation/satchel/lib/vault"
)

// syncKeyPrefix is the entry-key prefix for sync records inside a
// namespace. Full storage key: "ns/<fingerprint>/sync/<variable>".
const syncKeyPrefix = "sync/"

// tabIdentityKey holds this tab's random identity in the ephemeral
// medium. Regenerated whenever the tab (process) restarts.
const tabIdentityKey = "satchel/tab-id"

// syncRecord is the encrypted payload of a sync variable.
type syncRecord struct {
	Hash      string    `cbor:"hash"`
	TabID     string    `cbor:"tab_id"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Reconcile describes a remote change a watcher should apply: reload
// the variable from storage and adopt the newer state.
type Reconcile struct {
	// Variable is the watched variable name, e.g. "history".
	Variable string
	// Hash is the publisher's content hash.
	Hash string
	// TabID identifies the publishing tab.
	TabID string
	// UpdatedAt is the publisher's timestamp. Informational; ordering
	// decisions use the hash comparison, not the clock.
	UpdatedAt time.Time
}

// Config holds Syncer construction parameters.
type Config struct {
	// Vault is the active namespace's encrypting store. Sync records
	// are entries like any other: encrypted, key-bound, invisible
	// outside the namespace. Required.
	Vault *vault.Vault

	// Ephemeral is this tab's private medium, holding the tab
	// identity. Required.
	Ephemeral storage.Medium

	// Clock supplies publish timestamps. Nil means real.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Syncer publishes and observes sync variables for one namespace in
// one tab. Create a new Syncer after switching namespaces; the old one
// keeps watching the old namespace until closed.
type Syncer struct {
	vault     *vault.Vault
	ephemeral storage.Medium
	clk       clock.Clock
	logger    *slog.Logger
	tabID     string

	mu       sync.Mutex
	watchers map[string][]*watcher
	lastSeen map[string]string
	closed   bool

	cancelSubscription func()
}

type watcher struct {
	variable string
	handler  func(Reconcile)
}

// New constructs a Syncer: loads (or mints) the tab identity and
// subscribes to the vault's medium.
func New(cfg Config) (*Syncer, error) {
	if cfg.Vault == nil || cfg.Ephemeral == nil {
		return nil, fmt.Errorf("tabsync: vault and ephemeral medium are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	tabID, err := loadTabIdentity(cfg.Ephemeral)
	if err != nil {
		return nil, err
	}

	syncer := &Syncer{
		vault:     cfg.Vault,
		ephemeral: cfg.Ephemeral,
		clk:       clk,
		logger:    logger.With("tab", tabID),
		tabID:     tabID,
		watchers:  make(map[string][]*watcher),
		lastSeen:  make(map[string]string),
	}
	syncer.cancelSubscription = cfg.Vault.Medium().Subscribe(syncer.onEvent)
	return syncer, nil
}

// TabID returns this tab's identity.
func (s *Syncer) TabID() string { return s.tabID }

// Close stops observing. Pending handler invocations may still
// complete on the writer's goroutine.
func (s *Syncer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancelSubscription
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Publish records that this tab changed a variable: writes the sync
// record (hash, tab id, timestamp) so other tabs reconcile. The
// variable's data itself is written by the caller through the vault
// before publishing.
func (s *Syncer) Publish(variable string, hash string) error {
	if variable == "" || strings.ContainsRune(variable, '/') {
		return fmt.Errorf("tabsync: invalid variable name %q", variable)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("tabsync: syncer is closed")
	}
	// Mark before writing: the medium echoes our own write back, and
	// the hash comparison must already treat it as seen.
	s.lastSeen[variable] = hash
	s.mu.Unlock()

	record := syncRecord{Hash: hash, TabID: s.tabID, UpdatedAt: s.clk.Now()}
	if err := s.vault.SetRecord(syncKeyPrefix+variable, record); err != nil {
		return fmt.Errorf("tabsync: publishing %s: %w", variable, err)
	}
	s.logger.Debug("published", "variable", variable, "hash", hash)
	return nil
}

// Watch registers a handler for remote changes to a variable. The
// handler runs on the notifying goroutine and must not block; it
// typically re-reads the variable through the vault and swaps the
// in-memory state. Returns a cancel function.
func (s *Syncer) Watch(variable string, handler func(Reconcile)) (cancel func()) {
	entry := &watcher{variable: variable, handler: handler}

	s.mu.Lock()
	s.watchers[variable] = append(s.watchers[variable], entry)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		registered := s.watchers[variable]
		for index, candidate := range registered {
			if candidate == entry {
				s.watchers[variable] = append(registered[:index], registered[index+1:]...)
				break
			}
		}
	}
}

// CheckForUpdates reads every watched variable's sync record and fires
// reconciles exactly as the notification path would. Call it when the
// tab regains focus, or on a timer when the medium cannot notify.
func (s *Syncer) CheckForUpdates() error {
	s.mu.Lock()
	variables := make([]string, 0, len(s.watchers))
	for variable := range s.watchers {
		variables = append(variables, variable)
	}
	s.mu.Unlock()

	for _, variable := range variables {
		s.reconcileVariable(variable)
	}
	return nil
}

// onEvent filters medium events down to sync records of this
// namespace and triggers reconciliation.
func (s *Syncer) onEvent(event storage.Event) {
	if event.Op != storage.OpSet {
		return
	}
	prefix := s.vault.StorageKey(syncKeyPrefix)
	if !strings.HasPrefix(event.Key, prefix) {
		return
	}
	s.reconcileVariable(event.Key[len(prefix):])
}

// reconcileVariable is the single comparison both delivery paths
// share: read the record, drop self-echoes and already-seen hashes,
// otherwise fire the watchers.
func (s *Syncer) reconcileVariable(variable string) {
	var record syncRecord
	err := s.vault.GetRecord(syncKeyPrefix+variable, &record)
	switch {
	case err == nil:
	case errors.Is(err, vault.ErrNotFound):
		return
	case vault.IsDecryptError(err):
		// Another namespace's record under a colliding watch, or a
		// writer with a different key. Not actionable by this tab.
		s.logger.Debug("undecryptable sync record", "variable", variable, "error", err)
		return
	default:
		s.logger.Warn("reading sync record", "variable", variable, "error", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if record.TabID == s.tabID || s.lastSeen[variable] == record.Hash {
		s.mu.Unlock()
		return
	}
	s.lastSeen[variable] = record.Hash
	registered := append([]*watcher(nil), s.watchers[variable]...)
	s.mu.Unlock()

	reconcile := Reconcile{
		Variable:  variable,
		Hash:      record.Hash,
		TabID:     record.TabID,
		UpdatedAt: record.UpdatedAt,
	}
	for _, entry := range registered {
		entry.handler(reconcile)
	}
	s.logger.Debug("reconciled", "variable", variable, "hash", record.Hash, "from", record.TabID)
}

// ContentHash returns the canonical hash string for variable content.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// loadTabIdentity reads the tab id from the ephemeral medium, minting
// and storing a fresh one on first use.
func loadTabIdentity(ephemeral storage.Medium) (string, error) {
	existing, found, err := ephemeral.Get(tabIdentityKey)
	if err != nil {
		return "", fmt.Errorf("tabsync: reading tab identity: %w", err)
	}
	if found && len(existing) > 0 {
		return string(existing), nil
	}

	tabID, err := newTabID()
	if err != nil {
		return "", err
	}
	if err := ephemeral.Set(tabIdentityKey, []byte(tabID)); err != nil {
		return "", fmt.Errorf("tabsync: storing tab identity: %w", err)
	}
	return tabID, nil
}
