package resolver

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/mlld-lang/mlld-core/errkind"
)

// FetchResult is what a Fetcher returns for one specifier (spec.md §6:
// "RegistryClient::resolve(specifier) -> { content, integrity, needs,
// dependencies }", generalized to cover filesystem/URL fetches too).
type FetchResult struct {
	Content      string
	Integrity    string // content hash recorded/verified against a lockfile
	Needs        Manifest
	Dependencies []string
	// Path is the resolved absolute filesystem path, set only by
	// FilesystemFetcher — the anchor Watcher.Watch registers for
	// static/cached(ttl) invalidation (spec.md §4.8).
	Path string
}

// Fetcher materializes specifier content from one resolver backend
// (filesystem, URL, registry). Each backend is an injected capability
// per spec.md §6.
type Fetcher interface {
	Fetch(ctx context.Context, spec Specifier) (FetchResult, error)
}

// DiskStore persists cache entries across runs for `module`-modifier
// imports ("cacheable, offline after install"). Grounded on the
// injected-lockfile pattern spec.md §4.8 step 2 describes.
type DiskStore interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, data []byte) error
}

// entry is the cached record for one specifier.
type entry struct {
	Result FetchResult
}

// Cache is the process-wide resolver cache (spec.md §5: "process-wide;
// guarded by an internal mutex; readers may proceed concurrently;
// writers... serialize on the (specifier, integrity) key. Double-fetches
// for the same key are coalesced.").
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	disk    DiskStore
	group   singleflight.Group
}

func NewCache(disk DiskStore) *Cache {
	return &Cache{entries: map[string]entry{}, disk: disk}
}

// Get performs a coalesced, cache-or-fetch lookup for spec, consulting
// the in-memory cache, then the disk store (for `module` specifiers),
// then fetcher, verifying integrity against any previously recorded
// hash.
func (c *Cache) Get(ctx context.Context, spec Specifier, fetcher Fetcher) (FetchResult, error) {
	key := spec.Key()

	if spec.Modifier != ModifierLive {
		c.mu.RLock()
		if e, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return e.Result, nil
		}
		c.mu.RUnlock()
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if spec.Modifier == ModifierModule && c.disk != nil {
			if raw, ok, err := c.disk.Load(key); err == nil && ok {
				var cached entry
				if err := cbor.Unmarshal(raw, &cached); err == nil {
					c.mu.Lock()
					c.entries[key] = cached
					c.mu.Unlock()
					return cached.Result, nil
				}
			}
		}

		res, err := fetcher.Fetch(ctx, spec)
		if err != nil {
			return FetchResult{}, err
		}

		hash := Integrity(res.Content)
		if res.Integrity != "" && res.Integrity != hash {
			return FetchResult{}, errkind.New(errkind.Integrity, "content hash mismatch for "+spec.Raw).
				WithContext("expected", res.Integrity).WithContext("actual", hash)
		}
		res.Integrity = hash

		e := entry{Result: res}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()

		if spec.Modifier == ModifierModule && c.disk != nil {
			if raw, err := cbor.Marshal(e); err == nil {
				_ = c.disk.Save(key, raw)
			}
		}
		return res, nil
	})
	if err != nil {
		return FetchResult{}, err
	}
	return v.(FetchResult), nil
}

// Invalidate drops a cached entry, used by the fsnotify watcher (watch.go)
// when a watched `static`/`cached(ttl)` import file changes on disk
// during development.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Integrity computes the content-addressed hash spec.md §4.8 step 2
// verifies fetched content against, rendered as a "b2-<hex>" record.
func Integrity(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return "b2-" + hexEncode(sum[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
