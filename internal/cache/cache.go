// Package cache implements the content-addressed, TTL-based result cache
// used by the execution step to make repeated operation calls idempotent.
//
// Entries live as JSON files under the cache directory, keyed by a hash of
// the operation name and a canonical serialization of its arguments. Expiry
// is lazy: expired entries read as misses and are unlinked on access.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lyra/internal/logging"
)

// Entry is the persisted form of a cached operation result.
type Entry struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// Store is a file-backed TTL cache. Safe for concurrent use.
type Store struct {
	dir     string
	ttl     time.Duration
	enabled bool

	mu sync.Mutex // serializes writes to the same key

	now func() time.Time // overridable for tests
}

// New creates a cache store rooted at dir with the given TTL.
// A disabled store always misses and swallows writes.
func New(dir string, ttl time.Duration, enabled bool) *Store {
	return &Store{
		dir:     dir,
		ttl:     ttl,
		enabled: enabled,
		now:     time.Now,
	}
}

// Key derives the deterministic cache key for an operation call.
// Arguments are serialized order-independently so logically identical
// calls share an entry. The operation name namespaces the key, so
// entries for different operations never collide.
func Key(operation string, args map[string]any) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write([]byte(canonicalArgs(args)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalArgs renders args as key=json pairs sorted by key.
func canonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		v, err := json.Marshal(args[k])
		if err != nil {
			// Unmarshalable values degrade to their Go formatting;
			// determinism is preserved for any given value.
			b.WriteString(fmt.Sprintf("%v", args[k]))
			continue
		}
		b.Write(v)
	}
	return b.String()
}

// Get returns the cached value for an operation call, or ok=false on
// miss or expiry. Expired entries are removed on access.
func (s *Store) Get(operation string, args map[string]any) (json.RawMessage, bool) {
	if s == nil || !s.enabled {
		return nil, false
	}

	key := Key(operation, args)
	path := s.entryPath(operation, key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.Get(logging.CategoryCache).Warn("corrupt cache entry %s: %v", key, err)
		_ = os.Remove(path)
		return nil, false
	}

	if s.now().Sub(entry.StoredAt) > s.ttl {
		logging.CacheDebug("expired entry for %s (%s)", operation, key[:12])
		_ = os.Remove(path)
		return nil, false
	}

	logging.CacheDebug("hit for %s (%s)", operation, key[:12])
	return entry.Value, true
}

// Put stores an operation result. Writes are best-effort: any failure
// is logged and swallowed so caching never fails the originating call.
func (s *Store) Put(operation string, args map[string]any, value json.RawMessage) {
	if s == nil || !s.enabled {
		return
	}

	key := Key(operation, args)
	entry := Entry{
		Key:      key,
		StoredAt: s.now(),
		Value:    value,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("failed to marshal entry for %s: %v", operation, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.operationDir(operation)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryCache).Warn("failed to create cache dir %s: %v", dir, err)
		return
	}

	// Write-then-rename so concurrent readers never observe a partial entry.
	tmp := filepath.Join(dir, key+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		logging.Get(logging.CategoryCache).Warn("failed to write cache entry: %v", err)
		return
	}
	if err := os.Rename(tmp, s.entryPath(operation, key)); err != nil {
		logging.Get(logging.CategoryCache).Warn("failed to commit cache entry: %v", err)
		_ = os.Remove(tmp)
	}
}

// Clear removes the entire cache directory, forcing full recomputation.
func (s *Store) Clear() error {
	if s == nil || s.dir == "" {
		return nil
	}
	logging.Cache("clearing cache at %s", s.dir)
	return os.RemoveAll(s.dir)
}

// Stats summarizes cache contents for the CLI.
type Stats struct {
	Entries int
	Expired int
	Bytes   int64
}

// Stats walks the cache directory and reports entry counts. Expired
// entries are counted but not removed (removal stays lazy).
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if s == nil || s.dir == "" {
		return st, nil
	}

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		st.Entries++
		st.Bytes += info.Size()

		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		var entry Entry
		if json.Unmarshal(data, &entry) == nil && s.now().Sub(entry.StoredAt) > s.ttl {
			st.Expired++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return st, nil
	}
	return st, err
}

func (s *Store) operationDir(operation string) string {
	return filepath.Join(s.dir, operation)
}

func (s *Store) entryPath(operation, key string) string {
	return filepath.Join(s.operationDir(operation), key+".json")
}
