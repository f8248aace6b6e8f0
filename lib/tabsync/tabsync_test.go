// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package tabsync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/storage"
	"github.com/satchel-foundation/satchel/lib/testutil"
	"github.com/satchel-foundation/satchel/lib/vault"
)

const testNamespaceID = "0123456789abcdef0123456789abcdef"

// testTab is one simulated tab: its own ephemeral medium and syncer
// over the shared medium, holding the shared namespace key.
type testTab struct {
	syncer *Syncer
	vault  *vault.Vault
}

// newTestTab opens a tab against the shared medium. All tabs of one
// test share the namespace key, as real tabs of one namespace do.
func newTestTab(t *testing.T, shared storage.Medium, key *secret.Buffer) *testTab {
	t.Helper()

	ephemeral := storage.NewMemory()
	t.Cleanup(func() { ephemeral.Close() })

	tabVault := vault.New(shared, testNamespaceID, key)
	syncer, err := New(Config{Vault: tabVault, Ephemeral: ephemeral})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { syncer.Close() })
	return &testTab{syncer: syncer, vault: tabVault}
}

func testSharedKey(t *testing.T) *secret.Buffer {
	t.Helper()
	raw := make([]byte, 32)
	for index := range raw {
		raw[index] = byte(index * 3)
	}
	key, err := secret.FromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestPublishReachesOtherTab(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	writer := newTestTab(t, shared, key)
	observer := newTestTab(t, shared, key)

	reconciled := make(chan Reconcile, 1)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	content := []byte(`[{"role":"user","content":"hi"}]`)
	if err := writer.vault.Set("history", content); err != nil {
		t.Fatal(err)
	}
	if err := writer.syncer.Publish("history", ContentHash(content)); err != nil {
		t.Fatal(err)
	}

	r := testutil.RequireReceive(t, reconciled, 5*time.Second, "waiting for reconcile")
	if r.Variable != "history" {
		t.Errorf("variable = %q, want history", r.Variable)
	}
	if r.Hash != ContentHash(content) {
		t.Errorf("hash = %q, want content hash", r.Hash)
	}
	if r.TabID != writer.syncer.TabID() {
		t.Errorf("publisher = %q, want %q", r.TabID, writer.syncer.TabID())
	}

	// The observer reloads through its own vault and sees the data.
	reloaded, err := observer.vault.Get("history")
	if err != nil {
		t.Fatal(err)
	}
	if ContentHash(reloaded) != r.Hash {
		t.Error("reloaded content does not match the published hash")
	}
}

func TestOwnWriteIsSuppressed(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	tab := newTestTab(t, shared, key)

	reconciled := make(chan Reconcile, 1)
	cancel := tab.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	if err := tab.syncer.Publish("history", ContentHash([]byte("mine"))); err != nil {
		t.Fatal(err)
	}

	// The medium echoes the write back to its writer; the publisher
	// must not reconcile against itself.
	testutil.RequireNoReceive(t, reconciled, 100*time.Millisecond, "self-echo must be suppressed")
}

func TestUnchangedHashDoesNotRefire(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	writer := newTestTab(t, shared, key)
	observer := newTestTab(t, shared, key)

	reconciled := make(chan Reconcile, 2)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	hash := ContentHash([]byte("same content"))
	if err := writer.syncer.Publish("history", hash); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, reconciled, 5*time.Second, "first publish reconciles")

	// Republishing the identical hash carries no new information.
	if err := writer.syncer.Publish("history", hash); err != nil {
		t.Fatal(err)
	}
	testutil.RequireNoReceive(t, reconciled, 100*time.Millisecond, "unchanged hash must not refire")
}

func TestCheckForUpdatesMatchesNotificationPath(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	writer := newTestTab(t, shared, key)

	// The polling tab subscribes to nothing it can use: simulate a
	// medium without notifications by publishing BEFORE the observer
	// starts watching, then relying on CheckForUpdates alone.
	hash := ContentHash([]byte("state v2"))
	if err := writer.syncer.Publish("history", hash); err != nil {
		t.Fatal(err)
	}

	observer := newTestTab(t, shared, key)
	reconciled := make(chan Reconcile, 1)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	if err := observer.syncer.CheckForUpdates(); err != nil {
		t.Fatal(err)
	}

	r := testutil.RequireReceive(t, reconciled, 5*time.Second, "poll path reconciles")
	if r.Hash != hash || r.TabID != writer.syncer.TabID() {
		t.Errorf("reconcile = %+v, want hash %s from %s", r, hash, writer.syncer.TabID())
	}

	// A second poll is idempotent.
	if err := observer.syncer.CheckForUpdates(); err != nil {
		t.Fatal(err)
	}
	testutil.RequireNoReceive(t, reconciled, 100*time.Millisecond, "second poll must be quiet")
}

func TestForeignKeyRecordsAreIgnored(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()

	observer := newTestTab(t, shared, testSharedKey(t))
	reconciled := make(chan Reconcile, 1)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	// A writer holding a different key for the same fingerprint (a
	// corrupted installation, or a hostile medium) produces records
	// this tab cannot authenticate. They must be dropped silently.
	otherRaw := make([]byte, 32)
	for index := range otherRaw {
		otherRaw[index] = byte(0x99 - index)
	}
	otherKey, err := secret.FromBytes(otherRaw)
	if err != nil {
		t.Fatal(err)
	}
	defer otherKey.Close()

	foreignVault := vault.New(shared, testNamespaceID, otherKey)
	if err := foreignVault.SetRecord("sync/history", syncRecord{Hash: "h", TabID: "x"}); err != nil {
		t.Fatal(err)
	}

	testutil.RequireNoReceive(t, reconciled, 100*time.Millisecond, "undecryptable record must not reconcile")
}

func TestOtherNamespaceTrafficIsInvisible(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	observer := newTestTab(t, shared, key)
	reconciled := make(chan Reconcile, 1)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	otherVault := vault.New(shared, "ffffffffffffffffffffffffffffffff", key)
	if err := otherVault.SetRecord("sync/history", syncRecord{Hash: "h", TabID: "x"}); err != nil {
		t.Fatal(err)
	}

	testutil.RequireNoReceive(t, reconciled, 100*time.Millisecond, "other namespaces must not trigger reconciles")
}

func TestTabIdentityStableWithinTab(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	key := testSharedKey(t)

	ephemeral := storage.NewMemory()
	defer ephemeral.Close()

	first, err := New(Config{Vault: vault.New(shared, testNamespaceID, key), Ephemeral: ephemeral})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	// A second syncer in the same tab (same ephemeral medium) — say,
	// after a namespace switch — keeps the identity.
	second, err := New(Config{Vault: vault.New(shared, testNamespaceID, key), Ephemeral: ephemeral})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	if first.TabID() != second.TabID() {
		t.Errorf("tab identity changed within a tab: %s vs %s", first.TabID(), second.TabID())
	}

	fresh, err := New(Config{Vault: vault.New(shared, testNamespaceID, key), Ephemeral: storage.NewMemory()})
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()
	if fresh.TabID() == first.TabID() {
		t.Error("distinct tabs share an identity")
	}
}

func TestTwoProcessesConvergeOverSQLite(t *testing.T) {
	// The production path: two processes share one database file and
	// observe each other through the changelog. Pollers are disabled;
	// CheckNow stands in for the tick so delivery is deterministic.
	path := filepath.Join(t.TempDir(), "satchel.db")
	key := testSharedKey(t)

	openMedium := func() *storage.SQLite {
		medium, err := storage.OpenSQLite(storage.SQLiteConfig{
			Path:         path,
			PoolSize:     2,
			PollInterval: -1,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { medium.Close() })
		return medium
	}
	writerMedium := openMedium()
	observerMedium := openMedium()

	writer := newTestTab(t, writerMedium, key)
	observer := newTestTab(t, observerMedium, key)

	reconciled := make(chan Reconcile, 1)
	cancel := observer.syncer.Watch("history", func(r Reconcile) {
		reconciled <- r
	})
	defer cancel()

	content := []byte(`[{"role":"user","content":"cross-process hello"}]`)
	if err := writer.vault.Set("history", content); err != nil {
		t.Fatal(err)
	}
	if err := writer.syncer.Publish("history", ContentHash(content)); err != nil {
		t.Fatal(err)
	}

	if err := observerMedium.CheckNow(); err != nil {
		t.Fatal(err)
	}
	r := testutil.RequireReceive(t, reconciled, 5*time.Second, "cross-process reconcile")
	if r.Hash != ContentHash(content) {
		t.Errorf("hash = %q, want content hash", r.Hash)
	}

	reloaded, err := observer.vault.Get("history")
	if err != nil {
		t.Fatal(err)
	}
	if ContentHash(reloaded) != r.Hash {
		t.Error("observer's reload does not match the published hash")
	}
}

func TestPublishRejectsInvalidVariableNames(t *testing.T) {
	shared := storage.NewMemory()
	defer shared.Close()
	tab := newTestTab(t, shared, testSharedKey(t))

	if err := tab.syncer.Publish("", "h"); err == nil {
		t.Error("empty variable name accepted")
	}
	if err := tab.syncer.Publish("a/b", "h"); err == nil {
		t.Error("variable name with separator accepted")
	}
}
