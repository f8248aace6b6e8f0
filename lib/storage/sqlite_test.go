// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"path/filepath"
	"reflect"
	"testing"
)

// openTestSQLite opens a durable medium on a per-test database file
// with the poller disabled; tests drive delivery with CheckNow so
// nothing depends on wall-clock timing.
func openTestSQLite(t *testing.T, path string) *SQLite {
	t.Helper()
	medium, err := OpenSQLite(SQLiteConfig{
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

func TestSQLiteRoundTrip(t *testing.T) {
	medium := openTestSQLite(t, filepath.Join(t.TempDir(), "satchel.db"))

	if err := medium.Set("ns/abc/model", []byte("gpt-4")); err != nil {
		t.Fatal(err)
	}

	value, found, err := medium.Get("ns/abc/model")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(value) != "gpt-4" {
		t.Fatalf("Get = (%q, %v), want (gpt-4, true)", value, found)
	}

	if err := medium.Remove("ns/abc/model"); err != nil {
		t.Fatal(err)
	}
	_, found, err = medium.Get("ns/abc/model")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("key still found after Remove")
	}
}

func TestSQLiteOverwriteLastWriterWins(t *testing.T) {
	medium := openTestSQLite(t, filepath.Join(t.TempDir(), "satchel.db"))

	if err := medium.Set("k", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := medium.Set("k", []byte("second")); err != nil {
		t.Fatal(err)
	}

	value, _, err := medium.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "second" {
		t.Errorf("value = %q, want %q", value, "second")
	}
}

func TestSQLiteKeysPrefixScan(t *testing.T) {
	medium := openTestSQLite(t, filepath.Join(t.TempDir(), "satchel.db"))

	for _, key := range []string{"ns/b/2", "ns/a/1", "ns/a/0", "satchel/medium"} {
		if err := medium.Set(key, []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := medium.Keys("ns/a/")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ns/a/0", "ns/a/1"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys(ns/a/) = %v, want %v", keys, want)
	}
}

func TestSQLiteChangelogDeliveryAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satchel.db")
	writer := openTestSQLite(t, path)
	observer := openTestSQLite(t, path)

	var observed []Event
	cancel := observer.Subscribe(func(event Event) {
		observed = append(observed, event)
	})
	defer cancel()

	if err := writer.Set("ns/abc/sync/history", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Remove("ns/abc/sync/history"); err != nil {
		t.Fatal(err)
	}

	if err := observer.CheckNow(); err != nil {
		t.Fatal(err)
	}

	want := []Event{
		{Key: "ns/abc/sync/history", Op: OpSet},
		{Key: "ns/abc/sync/history", Op: OpRemove},
	}
	if !reflect.DeepEqual(observed, want) {
		t.Errorf("events = %v, want %v", observed, want)
	}

	// A second check delivers nothing: the cursor advanced.
	observed = nil
	if err := observer.CheckNow(); err != nil {
		t.Fatal(err)
	}
	if len(observed) != 0 {
		t.Errorf("replayed events on second check: %v", observed)
	}
}

func TestSQLiteFreshHandleDoesNotReplayHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satchel.db")
	writer := openTestSQLite(t, path)

	if err := writer.Set("k", []byte("old write")); err != nil {
		t.Fatal(err)
	}

	late := openTestSQLite(t, path)
	var observed []Event
	cancel := late.Subscribe(func(event Event) {
		observed = append(observed, event)
	})
	defer cancel()

	if err := late.CheckNow(); err != nil {
		t.Fatal(err)
	}
	if len(observed) != 0 {
		t.Errorf("fresh handle replayed pre-open history: %v", observed)
	}
}

func TestSQLiteWriterObservesOwnEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satchel.db")
	medium := openTestSQLite(t, path)

	var observed []Event
	cancel := medium.Subscribe(func(event Event) {
		observed = append(observed, event)
	})
	defer cancel()

	if err := medium.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := medium.CheckNow(); err != nil {
		t.Fatal(err)
	}

	// The changelog does not distinguish writers: a tab's own write
	// comes back as an event. Self-echo filtering happens above this
	// layer, keyed on tab identity.
	if len(observed) != 1 || observed[0].Key != "k" {
		t.Errorf("events = %v, want own write echoed", observed)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satchel.db")

	first, err := OpenSQLite(SQLiteConfig{Path: path, PoolSize: 1, PollInterval: -1})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set("durable", []byte("survives")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openTestSQLite(t, path)
	value, found, err := second.Get("durable")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(value) != "survives" {
		t.Fatalf("Get after reopen = (%q, %v), want (survives, true)", value, found)
	}
}
