// Package cachestore implements the crawl engine's content-addressed
// cache (§4.7): a single bbolt database keyed by a hash of the URL plus
// the parts of CrawlerRunConfig that affect the fetched/extracted
// content, storing JSON-encoded CacheEntry values with a TTL.
package cachestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Mode controls how the store is consulted/updated for a given crawl,
// matching the five modes named in the specification.
type Mode string

const (
	ModeEnabled   Mode = "enabled"    // read and write
	ModeBypass    Mode = "bypass"     // ignore cache entirely this call
	ModeReadOnly  Mode = "read_only"  // read, never write
	ModeWriteOnly Mode = "write_only" // write, never read
	ModeDisabled  Mode = "disabled"   // cache not consulted at all
)

var bucketName = []byte("crawlforge_cache")

// Entry is the cached record for one key.
type Entry struct {
	URL         string    `json:"url"`
	HTML        string    `json:"html,omitempty"`
	CleanedHTML string    `json:"cleaned_html,omitempty"`
	Markdown    string    `json:"markdown,omitempty"`
	ExtractedJSON []byte  `json:"extracted_json,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
	TTL         time.Duration `json:"ttl"`
}

// Expired reports whether the entry is stale relative to now.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.StoredAt.Add(e.TTL))
}

// Store is the bbolt-backed cache.
type Store struct {
	db *bolt.DB
}

// Open creates/opens the cache database at path, grounded on the
// spec's requirement that writes be atomic — bbolt's single-writer
// transactions give this for free without a temp-file+rename dance.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key hashes a URL together with the cache-relevant config fields into
// a stable content-address.
func Key(url string, configFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(configFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up an entry by key. Returns ok=false on miss or expiry.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool, error) {
	var entry Entry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode cache entry: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	if !found || entry.Expired(time.Now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put stores an entry under key.
func (s *Store) Put(ctx context.Context, key string, entry Entry) error {
	entry.StoredAt = time.Now()
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

// Remove deletes an entry, used by ModeBypass-adjacent invalidation paths.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// ReadBytes/WriteBytes/Exists implement storagecap.Storage over the raw
// extracted-JSON field, letting the cache double as the generic
// content-addressed byte store the specification describes.
func (s *Store) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	entry, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cachestore: key %q not found", key)
	}
	return entry.ExtractedJSON, nil
}

func (s *Store) WriteBytes(ctx context.Context, key string, data []byte) error {
	return s.Put(ctx, key, Entry{ExtractedJSON: data})
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}
