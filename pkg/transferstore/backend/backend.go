// Package backend defines the pluggable blob-store contract
// pkg/transferstore persists TransferRecords through, and the registry
// its local/s3/gcs/azurerm implementations self-register into. A
// transfer's history must survive the process that started it.
//
// The record-level semantics every backend shares (advisory JSON locks
// with stale-lock takeover, idempotent delete, prefix listing) live here
// once, layered by NewBackend over each provider's raw ObjectStore, so
// the provider packages stay thin SDK adapters.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Read when path does not exist.
var ErrNotFound = errors.New("backend: not found")

// ErrLocked is wrapped in a LockError when a lock is already held.
var ErrLocked = errors.New("backend: already locked")

// LockStaleAfter is how old an unreleased lock must be before a new
// claimant may break it. A writer holds the lock only for one
// read-modify-write of a single transfer record, so a lock this old
// belongs to a process that died mid-write, not to live contention.
const LockStaleAfter = time.Hour

// Backend is a flat, path-addressed blob store. Every implementation
// must make Write durable before returning (local: temp-file-then-rename;
// remote backends: a single synchronous put) so a crash mid-write never
// leaves a reader observing a half-written record.
type Backend interface {
	Type() string

	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, data io.Reader) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)

	// Lock acquires an advisory, path-scoped lock. Implementations
	// return a *LockError wrapping ErrLocked if path is already held.
	Lock(ctx context.Context, path string, info LockInfo) (Lock, error)
}

// ObjectStore is the raw object surface a storage provider supplies:
// flat keys, whole-value reads and writes, nothing richer. NewBackend
// layers the shared record semantics on top, so a provider only has to
// translate these five operations onto its SDK.
type ObjectStore interface {
	Type() string

	// Get opens the object at key, returning ErrNotFound on a miss.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores data at key, overwriting any existing object. The
	// write must be durable before Put returns.
	Put(ctx context.Context, key string, data []byte) error

	// Del removes the object at key, returning ErrNotFound on a miss.
	Del(ctx context.Context, key string) error

	// Keys lists every stored key under prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether key is present without opening it.
	Exists(ctx context.Context, key string) (bool, error)
}

// NewBackend wraps a provider's raw ObjectStore in the shared
// record-level Backend semantics.
func NewBackend(store ObjectStore) Backend {
	return &objectBackend{store: store}
}

type objectBackend struct {
	store ObjectStore
}

func (b *objectBackend) Type() string {
	return b.store.Type()
}

func (b *objectBackend) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return b.store.Get(ctx, path)
}

func (b *objectBackend) Write(ctx context.Context, path string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read record data: %w", err)
	}
	return b.store.Put(ctx, path, content)
}

// Delete is idempotent: removing a record that is already gone is not an
// error, since a transfer's history may be pruned from more than one
// machine.
func (b *objectBackend) Delete(ctx context.Context, path string) error {
	if err := b.store.Del(ctx, path); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (b *objectBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.store.Keys(ctx, prefix)
}

func (b *objectBackend) Exists(ctx context.Context, path string) (bool, error) {
	return b.store.Exists(ctx, path)
}

// Lock stores a JSON LockInfo document at "<path>.lock". A fresh lock
// blocks the claim; one older than LockStaleAfter is taken over.
func (b *objectBackend) Lock(ctx context.Context, path string, info LockInfo) (Lock, error) {
	lockKey := path + ".lock"

	if existing, err := b.readLock(ctx, lockKey); err == nil {
		if time.Since(existing.Created) < LockStaleAfter {
			return nil, &LockError{Info: existing, Err: ErrLocked}
		}
	}

	info.ID = uuid.New().String()
	info.Path = path
	info.Created = time.Now()

	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}
	if err := b.store.Put(ctx, lockKey, data); err != nil {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}

	return &objectLock{store: b.store, key: lockKey, info: info}, nil
}

func (b *objectBackend) readLock(ctx context.Context, key string) (LockInfo, error) {
	rc, err := b.store.Get(ctx, key)
	if err != nil {
		return LockInfo{}, err
	}
	defer rc.Close()

	var info LockInfo
	if err := json.NewDecoder(rc).Decode(&info); err != nil {
		return LockInfo{}, err
	}
	return info, nil
}

// objectLock is the acquired advisory lock over any ObjectStore.
type objectLock struct {
	store ObjectStore
	key   string
	info  LockInfo
}

func (l *objectLock) ID() string {
	return l.info.ID
}

func (l *objectLock) Info() LockInfo {
	return l.info
}

func (l *objectLock) Unlock(ctx context.Context) error {
	if err := l.store.Del(ctx, l.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Lock is an acquired advisory lock; callers must Unlock it.
type Lock interface {
	ID() string
	Info() LockInfo
	Unlock(ctx context.Context) error
}

// LockInfo describes who holds a lock and why, persisted alongside the
// lock itself so a stale lock can be diagnosed without the process that
// created it.
type LockInfo struct {
	ID        string
	Path      string
	Who       string
	Operation string
	Created   time.Time
}

// LockError is returned when a path is already locked.
type LockError struct {
	Info LockInfo
	Err  error
}

func (e *LockError) Error() string {
	return "path locked by " + e.Info.Who + ": " + e.Err.Error()
}

func (e *LockError) Unwrap() error { return e.Err }

// Config selects and configures a Backend by name.
type Config struct {
	Type   string
	Config map[string]string
}

// Factory constructs a Backend from configuration. Implementations
// register themselves under a name via Register, typically from an
// init() func.
type Factory func(config map[string]string) (Backend, error)

var factories = map[string]Factory{}

// Register adds a named Factory to the registry. Called from each
// backend implementation's init().
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create builds a Backend from cfg, looking up cfg.Type in the registry
// populated by Register.
func Create(cfg Config) (Backend, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, errors.New("backend: unknown type " + cfg.Type)
	}
	return factory(cfg.Config)
}
