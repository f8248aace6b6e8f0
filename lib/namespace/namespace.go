// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

// Package namespace manages the isolated, independently-keyed
// partitions of storage that Satchel configurations live in.
//
// A namespace is identified by its derived fingerprint and owns every
// entry under "ns/<fingerprint>/" plus one plaintext catalog
// descriptor ("satchel/catalog/<fingerprint>") holding its label,
// derivation salt, kind, and creation time — and never any key
// material. Local namespaces re-derive their key on demand from the
// installation secret and the cataloged salt; shared namespaces
// (adopted from share links) can only be reopened while their key
// remains cached in the tab's ephemeral medium, because the share
// password is never stored.
//
// The active namespace is not ambient mutable state: it is a *Session,
// an explicit context value bundling the descriptor, the key, and a
// vault bound to the active medium. Switching namespaces constructs a
// new Session.
//
// Listing is reconstructed by scanning storage prefixes rather than
// read from an index, so it self-heals if a catalog entry is lost: a
// namespace with entries but no descriptor still appears (labeled by
// its fingerprint), and a descriptor without entries still names a
// creatable identity.
package namespace

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/satchel-foundation/satchel/lib/clock"
	"github.com/satchel-foundation/satchel/lib/codec"
	"github.com/satchel-foundation/satchel/lib/derive"
	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/storage"
	"github.com/satchel-foundation/satchel/lib/vault"
)

// Errors surfaced by registry operations.
var (
	// ErrNotFound reports an unknown namespace id.
	ErrNotFound = errors.New("namespace: not found")

	// ErrCannotDeleteActive reports a deletion of the active
	// namespace with no safe fallback to switch to first.
	ErrCannotDeleteActive = errors.New("namespace: cannot delete the active namespace")

	// ErrKeyUnavailable reports a shared namespace whose key is not
	// cached in this tab's ephemeral medium. Reopening it requires
	// the share password again.
	ErrKeyUnavailable = errors.New("namespace: key unavailable for shared namespace")
)

// Kind distinguishes how a namespace's key is derived.
type Kind string

const (
	// KindLocal namespaces derive from the installation secret plus
	// a deterministic title/subtitle salt.
	KindLocal Kind = "local"

	// KindShared namespaces derive from a share password plus the
	// salt embedded in the link.
	KindShared Kind = "shared"
)

// MediumKind selects which medium the active sessions read and write.
type MediumKind string

const (
	// MediumDurable survives restarts and is shared by all tabs.
	MediumDurable MediumKind = "durable"

	// MediumEphemeral is scoped to one tab's lifetime.
	MediumEphemeral MediumKind = "ephemeral"
)

// sessionKeyPrefix is the ephemeral-medium key space caching derived
// keys of shared namespaces for the duration of one tab session.
const sessionKeyPrefix = "satchel/session-key/"

// metaEntryKey is the encrypted per-namespace marker entry written at
// creation so the namespace is visible to prefix scans.
const metaEntryKey = "meta"

// Descriptor describes one namespace for listing and selection.
type Descriptor struct {
	// ID is the namespace fingerprint (public, loggable).
	ID string
	// Label is the human-readable name.
	Label string
	// Kind is local or shared.
	Kind Kind
	// CreatedAt is the catalog creation time; zero when the
	// descriptor was reconstructed from a bare prefix scan.
	CreatedAt time.Time
	// Cataloged is false when the namespace was found only by prefix
	// scan (self-healed listing after catalog loss).
	Cataloged bool
}

// catalogRecord is the plaintext catalog descriptor. It carries no
// key material: the salt alone derives nothing without the
// installation secret or share password.
type catalogRecord struct {
	Label     string    `cbor:"label"`
	Kind      Kind      `cbor:"kind"`
	Salt      []byte    `cbor:"salt"`
	CreatedAt time.Time `cbor:"created_at"`
}

// metaRecord is the encrypted marker entry inside the namespace.
type metaRecord struct {
	Label     string    `cbor:"label"`
	CreatedAt time.Time `cbor:"created_at"`
}

// Session is the explicit "current namespace" context: descriptor,
// key, and a vault bound to the active medium. Owned by the Registry;
// replaced wholesale on every switch.
type Session struct {
	descriptor Descriptor
	key        *secret.Buffer
	vault      *vault.Vault
}

// Descriptor returns the session's namespace descriptor.
func (s *Session) Descriptor() Descriptor { return s.descriptor }

// ID returns the namespace fingerprint.
func (s *Session) ID() string { return s.descriptor.ID }

// Vault returns the encrypting store scoped to this namespace.
func (s *Session) Vault() *vault.Vault { return s.vault }

// Key exposes the namespace key for components that must authenticate
// against it (share-link disambiguation, backup export). Borrowed;
// the Session still owns it.
func (s *Session) Key() *secret.Buffer { return s.key }

func (s *Session) close() {
	if s.key != nil {
		s.key.Close()
	}
}

// Config holds the registry construction parameters.
type Config struct {
	// Durable is the installation-wide shared medium. Required.
	// The catalog, the medium indicator, and the installation secret
	// always live here regardless of the active medium.
	Durable storage.Medium

	// Ephemeral is this tab's private medium. Required.
	Ephemeral storage.Medium

	// DefaultTitle and DefaultSubtitle name the fallback namespace.
	// Empty strings are valid and deterministic.
	DefaultTitle    string
	DefaultSubtitle string

	// DefaultMedium is used when no indicator is stored yet.
	// Zero value means durable.
	DefaultMedium MediumKind

	// Clock supplies creation and switch timestamps. Nil means real.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Registry enumerates, creates, switches, and deletes namespaces, and
// owns the active Session. One Registry per tab.
type Registry struct {
	durable   storage.Medium
	ephemeral storage.Medium
	clk       clock.Clock
	logger    *slog.Logger

	defaultTitle    string
	defaultSubtitle string

	mu            sync.Mutex
	mediumKind    MediumKind
	installSecret *secret.Buffer
	current       *Session
}

// Open constructs a registry: loads (or stores) the medium indicator,
// loads (or generates) the installation secret, ensures the default
// namespace exists, and activates it.
func Open(cfg Config) (*Registry, error) {
	if cfg.Durable == nil || cfg.Ephemeral == nil {
		return nil, fmt.Errorf("namespace: both durable and ephemeral media are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	registry := &Registry{
		durable:         cfg.Durable,
		ephemeral:       cfg.Ephemeral,
		clk:             clk,
		logger:          logger,
		defaultTitle:    cfg.DefaultTitle,
		defaultSubtitle: cfg.DefaultSubtitle,
	}

	if err := registry.loadMediumIndicator(cfg.DefaultMedium); err != nil {
		return nil, err
	}
	if err := registry.loadInstallSecret(); err != nil {
		return nil, err
	}

	// Ensure and activate the default namespace.
	descriptor, derived, err := registry.ensureLocal(cfg.DefaultTitle, cfg.DefaultSubtitle, defaultLabel(cfg.DefaultTitle, cfg.DefaultSubtitle))
	if err != nil {
		return nil, err
	}
	registry.current = registry.newSession(descriptor, derived.Key)

	logger.Info("registry opened",
		"namespace", descriptor.ID,
		"medium", string(registry.mediumKind),
	)
	return registry, nil
}

// Close releases the active session key and the installation secret.
// The media themselves belong to the caller.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.close()
		r.current = nil
	}
	if r.installSecret != nil {
		r.installSecret.Close()
		r.installSecret = nil
	}
	return nil
}

// Current returns the active session.
func (r *Registry) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// MediumKind returns the active medium selection.
func (r *Registry) MediumKind() MediumKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mediumKind
}

// ActiveMedium returns the medium sessions currently write to.
func (r *Registry) ActiveMedium() storage.Medium {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeMediumLocked()
}

// DurableMedium returns the installation-wide shared medium.
func (r *Registry) DurableMedium() storage.Medium { return r.durable }

// SwitchMedium stores the indicator and rebinds the active session's
// vault to the selected medium. Opening a shared link switches to the
// durable medium so cross-tab sync inside the shared namespace works.
func (r *Registry) SwitchMedium(kind MediumKind) error {
	if kind != MediumDurable && kind != MediumEphemeral {
		return fmt.Errorf("namespace: unknown medium kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := vault.SetPlain(r.durable, vault.MediumIndicatorKey, []byte(kind)); err != nil {
		return err
	}
	r.mediumKind = kind

	if r.current != nil {
		r.current = &Session{
			descriptor: r.current.descriptor,
			key:        r.current.key,
			vault:      vault.New(r.activeMediumLocked(), r.current.descriptor.ID, r.current.key),
		}
	}
	r.logger.Info("medium switched", "medium", string(kind))
	return nil
}

// List returns all known namespaces: every fingerprint found by
// scanning the active medium's "ns/" prefixes, enriched with catalog
// descriptors, plus cataloged namespaces whose entries live on the
// other medium. Sorted by label, then id.
func (r *Registry) List() ([]Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := make(map[string]*Descriptor)

	storageKeys, err := r.activeMediumLocked().Keys("ns/")
	if err != nil {
		return nil, fmt.Errorf("namespace: scanning prefixes: %w", err)
	}
	for _, storageKey := range storageKeys {
		id := fingerprintFromStorageKey(storageKey)
		if id == "" {
			continue
		}
		if _, ok := found[id]; !ok {
			found[id] = &Descriptor{ID: id, Label: id, Kind: KindLocal}
		}
	}

	catalogKeys, err := r.durable.Keys(vault.CatalogKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("namespace: scanning catalog: %w", err)
	}
	for _, catalogKey := range catalogKeys {
		id := strings.TrimPrefix(catalogKey, vault.CatalogKeyPrefix)
		record, err := r.readCatalog(id)
		if err != nil {
			r.logger.Warn("unreadable catalog entry", "namespace", id, "error", err)
			continue
		}
		descriptor, ok := found[id]
		if !ok {
			descriptor = &Descriptor{ID: id}
			found[id] = descriptor
		}
		descriptor.Label = record.Label
		descriptor.Kind = record.Kind
		descriptor.CreatedAt = record.CreatedAt
		descriptor.Cataloged = true
	}

	descriptors := make([]Descriptor, 0, len(found))
	for _, descriptor := range found {
		descriptors = append(descriptors, *descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Label != descriptors[j].Label {
			return descriptors[i].Label < descriptors[j].Label
		}
		return descriptors[i].ID < descriptors[j].ID
	})
	return descriptors, nil
}

// Create registers a local namespace for (title, subtitle) and
// returns its descriptor without activating it. Creating the same
// pair twice returns the same namespace — that is the mechanism by
// which unrelated tabs of the same installation reconnect.
func (r *Registry) Create(title, subtitle, label string) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if label == "" {
		label = defaultLabel(title, subtitle)
	}
	descriptor, derived, err := r.ensureLocal(title, subtitle, label)
	if err != nil {
		return Descriptor{}, err
	}
	derived.Key.Close()
	return descriptor, nil
}

// AdoptShared registers a namespace derived from a share link: writes
// the catalog descriptor, caches the key in this tab's ephemeral
// medium for the session, and writes the marker entry. The derived
// key is borrowed; the caller keeps ownership.
func (r *Registry) AdoptShared(derived *derive.Derived, salt []byte, label string) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if label == "" {
		label = "Shared " + derived.NamespaceID[:8]
	}

	descriptor := Descriptor{
		ID:        derived.NamespaceID,
		Label:     label,
		Kind:      KindShared,
		CreatedAt: r.clk.Now(),
		Cataloged: true,
	}

	if existing, err := r.readCatalog(derived.NamespaceID); err == nil {
		descriptor.Label = existing.Label
		descriptor.CreatedAt = existing.CreatedAt
	} else {
		record := catalogRecord{
			Label:     label,
			Kind:      KindShared,
			Salt:      append([]byte(nil), salt...),
			CreatedAt: descriptor.CreatedAt,
		}
		if err := r.writeCatalog(derived.NamespaceID, record); err != nil {
			return Descriptor{}, err
		}
	}

	// Cache the derived key for this tab's session. The password
	// itself is never stored anywhere; losing this cache means the
	// password must be entered again.
	if err := r.ephemeral.Set(sessionKeyPrefix+derived.NamespaceID, append([]byte(nil), derived.Key.Bytes()...)); err != nil {
		return Descriptor{}, fmt.Errorf("namespace: caching session key: %w", err)
	}

	if err := r.writeMeta(descriptor, derived.Key); err != nil {
		return Descriptor{}, err
	}

	r.logger.Info("shared namespace adopted", "namespace", descriptor.ID)
	return descriptor, nil
}

// SwitchTo activates the namespace with the given id, constructing a
// fresh Session. Unknown ids fail with ErrNotFound; shared namespaces
// without a cached session key fail with ErrKeyUnavailable.
func (r *Registry) SwitchTo(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.switchToLocked(id)
}

func (r *Registry) switchToLocked(id string) (*Session, error) {
	record, err := r.readCatalog(id)
	if err != nil {
		return nil, ErrNotFound
	}

	descriptor := Descriptor{
		ID:        id,
		Label:     record.Label,
		Kind:      record.Kind,
		CreatedAt: record.CreatedAt,
		Cataloged: true,
	}

	var key *secret.Buffer
	switch record.Kind {
	case KindLocal:
		derived, err := derive.Derive(r.installSecret.Bytes(), record.Salt)
		if err != nil {
			return nil, fmt.Errorf("namespace: deriving key for %s: %w", id, err)
		}
		if derived.NamespaceID != id {
			derived.Key.Close()
			return nil, fmt.Errorf("namespace: catalog salt for %s derives a different fingerprint (%s)", id, derived.NamespaceID)
		}
		key = derived.Key

	case KindShared:
		cached, found, err := r.ephemeral.Get(sessionKeyPrefix + id)
		if err != nil {
			return nil, fmt.Errorf("namespace: reading session key cache: %w", err)
		}
		if !found {
			return nil, ErrKeyUnavailable
		}
		key, err = secret.FromBytes(cached)
		if err != nil {
			return nil, fmt.Errorf("namespace: protecting cached key: %w", err)
		}

	default:
		return nil, fmt.Errorf("namespace: catalog entry for %s has unknown kind %q", id, record.Kind)
	}

	if r.current != nil {
		r.current.close()
	}
	r.current = r.newSession(descriptor, key)
	r.logger.Info("namespace switched", "namespace", id)
	return r.current, nil
}

// Delete removes a namespace: every entry under its prefix on both
// media, its catalog descriptor, and any cached session key. Deleting
// the active namespace first switches to the default namespace; when
// the active namespace IS the default, deletion fails with
// ErrCannotDeleteActive rather than leaving the registry keyless.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	known, err := r.namespaceKnownLocked(id)
	if err != nil {
		return err
	}
	if !known {
		return ErrNotFound
	}

	if r.current != nil && r.current.ID() == id {
		defaultID, err := r.defaultNamespaceIDLocked()
		if err != nil {
			return err
		}
		if defaultID == id {
			return ErrCannotDeleteActive
		}
		if _, err := r.switchToLocked(defaultID); err != nil {
			return fmt.Errorf("namespace: switching to default before delete: %w", err)
		}
	}

	prefix := vault.NamespacePrefix(id)
	for _, medium := range []storage.Medium{r.durable, r.ephemeral} {
		storageKeys, err := medium.Keys(prefix)
		if err != nil {
			return fmt.Errorf("namespace: scanning %s for delete: %w", prefix, err)
		}
		for _, storageKey := range storageKeys {
			if err := medium.Remove(storageKey); err != nil {
				return fmt.Errorf("namespace: removing %s: %w", storageKey, err)
			}
		}
	}

	if err := vault.RemovePlain(r.durable, vault.CatalogKeyPrefix+id); err != nil {
		return err
	}
	if err := r.ephemeral.Remove(sessionKeyPrefix + id); err != nil {
		return fmt.Errorf("namespace: removing cached key: %w", err)
	}

	r.logger.Info("namespace deleted", "namespace", id)
	return nil
}

// CachedKey pairs a namespace id with its session key from the
// ephemeral cache. Used by share-link decoding to detect when more
// than one known namespace can authenticate a fragment.
type CachedKey struct {
	ID  string
	Key *secret.Buffer
}

// CachedKeys returns the shared-namespace keys cached in this tab's
// ephemeral medium. The caller owns and must Close every returned
// key.
func (r *Registry) CachedKeys() ([]CachedKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cacheKeys, err := r.ephemeral.Keys(sessionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("namespace: scanning session key cache: %w", err)
	}

	cached := make([]CachedKey, 0, len(cacheKeys))
	for _, cacheKey := range cacheKeys {
		raw, found, err := r.ephemeral.Get(cacheKey)
		if err != nil || !found {
			continue
		}
		key, err := secret.FromBytes(raw)
		if err != nil {
			continue
		}
		cached = append(cached, CachedKey{
			ID:  strings.TrimPrefix(cacheKey, sessionKeyPrefix),
			Key: key,
		})
	}
	return cached, nil
}

// --- internals ---

func (r *Registry) activeMediumLocked() storage.Medium {
	if r.mediumKind == MediumEphemeral {
		return r.ephemeral
	}
	return r.durable
}

func (r *Registry) newSession(descriptor Descriptor, key *secret.Buffer) *Session {
	return &Session{
		descriptor: descriptor,
		key:        key,
		vault:      vault.New(r.activeMediumLocked(), descriptor.ID, key),
	}
}

func (r *Registry) loadMediumIndicator(fallback MediumKind) error {
	value, err := vault.GetPlain(r.durable, vault.MediumIndicatorKey)
	switch {
	case err == nil:
		kind := MediumKind(value)
		if kind != MediumDurable && kind != MediumEphemeral {
			return fmt.Errorf("namespace: stored medium indicator %q is invalid", value)
		}
		r.mediumKind = kind
		return nil
	case errors.Is(err, vault.ErrNotFound):
		if fallback == "" {
			fallback = MediumDurable
		}
		if err := vault.SetPlain(r.durable, vault.MediumIndicatorKey, []byte(fallback)); err != nil {
			return err
		}
		r.mediumKind = fallback
		return nil
	default:
		return err
	}
}

func (r *Registry) loadInstallSecret() error {
	raw, err := vault.GetPlain(r.durable, vault.InstallSecretKey)
	switch {
	case err == nil:
		r.installSecret, err = secret.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("namespace: protecting installation secret: %w", err)
		}
		return nil
	case errors.Is(err, vault.ErrNotFound):
		generated, err := secret.Random(derive.KeySize)
		if err != nil {
			return fmt.Errorf("namespace: generating installation secret: %w", err)
		}
		if err := vault.SetPlain(r.durable, vault.InstallSecretKey, append([]byte(nil), generated.Bytes()...)); err != nil {
			generated.Close()
			return err
		}
		r.installSecret = generated
		r.logger.Info("installation secret generated")
		return nil
	default:
		return err
	}
}

// ensureLocal creates the catalog descriptor and marker entry for a
// local namespace if they do not exist. Returns the descriptor and
// the live derivation; the caller owns derived.Key.
func (r *Registry) ensureLocal(title, subtitle, label string) (Descriptor, *derive.Derived, error) {
	salt := derive.LocalSalt(title, subtitle)
	derived, err := derive.Derive(r.installSecret.Bytes(), salt)
	if err != nil {
		return Descriptor{}, nil, fmt.Errorf("namespace: deriving local namespace: %w", err)
	}

	if existing, err := r.readCatalog(derived.NamespaceID); err == nil {
		return Descriptor{
			ID:        derived.NamespaceID,
			Label:     existing.Label,
			Kind:      existing.Kind,
			CreatedAt: existing.CreatedAt,
			Cataloged: true,
		}, derived, nil
	}

	descriptor := Descriptor{
		ID:        derived.NamespaceID,
		Label:     label,
		Kind:      KindLocal,
		CreatedAt: r.clk.Now(),
		Cataloged: true,
	}
	record := catalogRecord{
		Label:     label,
		Kind:      KindLocal,
		Salt:      salt,
		CreatedAt: descriptor.CreatedAt,
	}
	if err := r.writeCatalog(derived.NamespaceID, record); err != nil {
		derived.Key.Close()
		return Descriptor{}, nil, err
	}
	if err := r.writeMeta(descriptor, derived.Key); err != nil {
		derived.Key.Close()
		return Descriptor{}, nil, err
	}

	r.logger.Info("namespace created", "namespace", descriptor.ID, "label", label)
	return descriptor, derived, nil
}

func (r *Registry) writeMeta(descriptor Descriptor, key *secret.Buffer) error {
	metaVault := vault.New(r.activeMediumLocked(), descriptor.ID, key)
	record := metaRecord{Label: descriptor.Label, CreatedAt: descriptor.CreatedAt}
	if err := metaVault.SetRecord(metaEntryKey, record); err != nil {
		return fmt.Errorf("namespace: writing marker entry: %w", err)
	}
	return nil
}

func (r *Registry) readCatalog(id string) (catalogRecord, error) {
	raw, err := vault.GetPlain(r.durable, vault.CatalogKeyPrefix+id)
	if err != nil {
		return catalogRecord{}, err
	}
	var record catalogRecord
	if err := codec.Unmarshal(raw, &record); err != nil {
		return catalogRecord{}, fmt.Errorf("namespace: decoding catalog entry %s: %w", id, err)
	}
	return record, nil
}

func (r *Registry) writeCatalog(id string, record catalogRecord) error {
	encoded, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("namespace: encoding catalog entry %s: %w", id, err)
	}
	return vault.SetPlain(r.durable, vault.CatalogKeyPrefix+id, encoded)
}

// namespaceKnownLocked reports whether id has a catalog entry or any
// stored entries on either medium.
func (r *Registry) namespaceKnownLocked(id string) (bool, error) {
	if _, err := r.readCatalog(id); err == nil {
		return true, nil
	}
	prefix := vault.NamespacePrefix(id)
	for _, medium := range []storage.Medium{r.durable, r.ephemeral} {
		storageKeys, err := medium.Keys(prefix)
		if err != nil {
			return false, fmt.Errorf("namespace: scanning %s: %w", prefix, err)
		}
		if len(storageKeys) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) defaultNamespaceIDLocked() (string, error) {
	derived, err := derive.Derive(r.installSecret.Bytes(), derive.LocalSalt(r.defaultTitle, r.defaultSubtitle))
	if err != nil {
		return "", fmt.Errorf("namespace: deriving default namespace: %w", err)
	}
	derived.Key.Close()
	return derived.NamespaceID, nil
}

// fingerprintFromStorageKey extracts the fingerprint from an
// "ns/<fingerprint>/..." storage key, or returns "" for malformed
// keys.
func fingerprintFromStorageKey(storageKey string) string {
	rest := strings.TrimPrefix(storageKey, "ns/")
	if rest == storageKey {
		return ""
	}
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 {
		return ""
	}
	return rest[:slash]
}

func defaultLabel(title, subtitle string) string {
	switch {
	case title == "" && subtitle == "":
		return "Default"
	case subtitle == "":
		return title
	default:
		return title + " / " + subtitle
	}
}
