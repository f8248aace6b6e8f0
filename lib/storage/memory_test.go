// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"reflect"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

	if err := medium.Set("ns/abc/model", []byte("gpt-4")); err != nil {
		t.Fatal(err)
	}

	value, found, err := medium.Get("ns/abc/model")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("key not found after Set")
	}
	if string(value) != "gpt-4" {
		t.Errorf("value = %q, want %q", value, "gpt-4")
	}

	_, found, err = medium.Get("ns/abc/other")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("absent key reported as found")
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

	if err := medium.Set("k", []byte("original")); err != nil {
		t.Fatal(err)
	}
	value, _, err := medium.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'

	again, _, err := medium.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != "original" {
		t.Error("caller mutation leaked into stored value")
	}
}

func TestMemoryKeysPrefixScan(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

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

func TestMemoryNotifiesAllSubscribersIncludingWriter(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

	var observed []Event
	cancel := medium.Subscribe(func(event Event) {
		observed = append(observed, event)
	})
	defer cancel()

	if err := medium.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := medium.Remove("k"); err != nil {
		t.Fatal(err)
	}
	// Removing an absent key produces no event.
	if err := medium.Remove("k"); err != nil {
		t.Fatal(err)
	}

	want := []Event{{Key: "k", Op: OpSet}, {Key: "k", Op: OpRemove}}
	if !reflect.DeepEqual(observed, want) {
		t.Errorf("events = %v, want %v", observed, want)
	}
}

func TestMemoryHandlerSeesNewValue(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

	var seen string
	cancel := medium.Subscribe(func(event Event) {
		value, _, err := medium.Get(event.Key)
		if err != nil {
			t.Errorf("re-read inside handler: %v", err)
			return
		}
		seen = string(value)
	})
	defer cancel()

	if err := medium.Set("k", []byte("fresh")); err != nil {
		t.Fatal(err)
	}
	if seen != "fresh" {
		t.Errorf("handler re-read %q, want %q", seen, "fresh")
	}
}

func TestMemorySubscribeCancel(t *testing.T) {
	medium := NewMemory()
	defer medium.Close()

	fired := 0
	cancel := medium.Subscribe(func(Event) { fired++ })

	if err := medium.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := medium.Set("k", []byte("w")); err != nil {
		t.Fatal(err)
	}

	if fired != 1 {
		t.Errorf("handler fired %d times, want 1", fired)
	}
}
