package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"interview-transcriber/config"
	"interview-transcriber/entities"
	"interview-transcriber/repository"
)

// Fingerprint identifies an expensive, deterministic-given-input
// computation by its semantically relevant inputs only.
type Fingerprint struct {
	Kind   string
	Inputs map[string]string
}

// Key hashes the kind plus sorted key=value pairs, so identical inputs
// always collide to the same cache key.
func (f Fingerprint) Key() string {
	h := sha256.New()
	h.Write([]byte(f.Kind))
	keys := make([]string, 0, len(f.Inputs))
	for k := range f.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, f.Inputs[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Artifact is the product of a cache compute function.
type Artifact struct {
	Data            []byte
	ContentType     string
	DurationSeconds *float64
}

type ComputeFunc func(ctx context.Context) (*Artifact, error)

type ArtifactCache interface {
	// GetOrCompute returns the cached entry for the fingerprint, invoking
	// compute exactly once across concurrent callers on a miss. The bool
	// reports whether the artifact was served from cache.
	GetOrCompute(ctx context.Context, fp Fingerprint, compute ComputeFunc) (*entities.CacheEntry, bool, error)
	Get(ctx context.Context, key string) (*entities.CacheEntry, error)
	Cleanup(ctx context.Context) error
}

type artifactCache struct {
	repo repository.Repository
	cfg  config.Cache

	mu       sync.Mutex
	inflight map[string]*keyLock
}

// keyLock serializes callers of one fingerprint. refs counts the callers
// holding or waiting on it so the entry can be dropped once the last one
// leaves.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewArtifactCache(repo repository.Repository, cfg config.Cache) ArtifactCache {
	return &artifactCache{
		repo:     repo,
		cfg:      cfg,
		inflight: make(map[string]*keyLock),
	}
}

func (c *artifactCache) GetOrCompute(ctx context.Context, fp Fingerprint, compute ComputeFunc) (*entities.CacheEntry, bool, error) {
	key := fp.Key()

	lock := c.lockFor(key)
	lock.mu.Lock()
	defer c.release(key, lock)

	entry, err := c.repo.GetCacheEntry(ctx, key)
	if err == nil {
		if _, statErr := os.Stat(entry.PayloadPath); statErr == nil {
			if err := c.repo.IncrementCacheHit(ctx, key); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to increment cache hit count")
			} else {
				entry.HitCount++
			}
			return entry, true, nil
		}
		// Artifact file vanished under the row; recompute.
		if err := c.repo.DeleteCacheEntry(ctx, key); err != nil {
			return nil, false, err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	artifact, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return nil, false, err
	}
	path := filepath.Join(c.cfg.Dir, key+extForContentType(artifact.ContentType))
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return nil, false, err
	}

	entry = &entities.CacheEntry{
		Key:             key,
		Kind:            fp.Kind,
		PayloadPath:     path,
		ContentType:     artifact.ContentType,
		SizeBytes:       int64(len(artifact.Data)),
		DurationSeconds: artifact.DurationSeconds,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.repo.InsertCacheEntry(ctx, entry); err != nil {
		return nil, false, err
	}

	zerolog.Ctx(ctx).Info().
		Str("key", key).
		Str("kind", fp.Kind).
		Int64("size_bytes", entry.SizeBytes).
		Msg("cache artifact computed")

	return entry, false, nil
}

func (c *artifactCache) Get(ctx context.Context, key string) (*entities.CacheEntry, error) {
	entry, err := c.repo.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, asNotFound(err)
	}
	return entry, nil
}

// Cleanup evicts entries older than the configured max age, and evicts more
// aggressively when the total cache size exceeds the byte threshold. Files
// are removed before their rows so a row never points at a missing file for
// longer than one pass.
func (c *artifactCache) Cleanup(ctx context.Context) error {
	now := time.Now().UTC()

	if err := c.evictOlderThan(ctx, now.Add(-c.cfg.MaxAge)); err != nil {
		return err
	}

	total, err := c.repo.TotalCacheSize(ctx)
	if err != nil {
		return err
	}
	if total > c.cfg.MaxTotalBytes {
		zerolog.Ctx(ctx).Info().
			Int64("total_bytes", total).
			Int64("threshold_bytes", c.cfg.MaxTotalBytes).
			Msg("cache over size threshold, evicting aggressively")
		return c.evictOlderThan(ctx, now.Add(-c.cfg.AggressiveMaxAge))
	}
	return nil
}

func (c *artifactCache) evictOlderThan(ctx context.Context, cutoff time.Time) error {
	entries, err := c.repo.ListCacheEntriesOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Remove(entry.PayloadPath); err != nil && !os.IsNotExist(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", entry.Key).Msg("failed to remove cache artifact file")
			continue
		}
		if err := c.repo.DeleteCacheEntry(ctx, entry.Key); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Debug().Str("key", entry.Key).Msg("cache entry evicted")
	}
	return nil
}

func (c *artifactCache) lockFor(key string) *keyLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.inflight[key]
	if !ok {
		lock = &keyLock{}
		c.inflight[key] = lock
	}
	lock.refs++
	return lock
}

func (c *artifactCache) release(key string, lock *keyLock) {
	lock.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(c.inflight, key)
	}
}

func extForContentType(contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/flac":
		return ".flac"
	case "audio/wav":
		return ".wav"
	default:
		return ".bin"
	}
}
