// Package cachehook implements hooks.EntityCache over a gocloud.dev/blob
// bucket, so the concrete backing store (in-memory, S3, GCS, Azure blob) is
// chosen by the bucket URL the gateway is configured with rather than by
// code here, matching the per-subgraph TTL/enabled policy knobs
// original_source's gateway-config entity-caching module exposes
// (schemaindex.EntityCachePolicy).
package cachehook

import (
	"context"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/singleflight"

	hooks "github.com/fedgraph/gateway/internal/hooks"
)

// expiresAtMetadataKey stores each entry's expiry alongside its bytes, since
// no blob.Bucket driver guarantees server-side TTL expiry; Get enforces it.
const expiresAtMetadataKey = "expires-at"

// Cache is a hooks.EntityCache backed by bucket.
type Cache struct {
	bucket *blob.Bucket
	group  singleflight.Group
}

func New(bucket *blob.Bucket) *Cache { return &Cache{bucket: bucket} }

var _ hooks.EntityCache = (*Cache)(nil)

// cacheEntry carries both of Get's own return values through singleflight.Do,
// which only has room for a single shared result.
type cacheEntry struct {
	data []byte
	hit  bool
}

// Get reads key, collapsing concurrent callers asking for the same key into
// one blob read (a burst of parallel partitions fetching the same entity
// across requests is the common case this guards against): the bucket round
// trip only happens once per distinct in-flight key, and every caller waiting
// on it gets its own copy of the result.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, false, err
	}
	entry := v.(cacheEntry)
	if entry.data == nil {
		return nil, entry.hit, nil
	}
	return append([]byte{}, entry.data...), entry.hit, nil
}

func (c *Cache) fetch(ctx context.Context, key string) (cacheEntry, error) {
	attrs, err := c.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return cacheEntry{}, nil
		}
		return cacheEntry{}, err
	}
	if exp, ok := attrs.Metadata[expiresAtMetadataKey]; ok {
		if t, perr := time.Parse(time.RFC3339Nano, exp); perr == nil && time.Now().After(t) {
			_ = c.bucket.Delete(ctx, key)
			return cacheEntry{}, nil
		}
	}
	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return cacheEntry{}, nil
		}
		return cacheEntry{}, err
	}
	return cacheEntry{data: data, hit: true}, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := &blob.WriterOptions{}
	if ttl > 0 {
		opts.Metadata = map[string]string{expiresAtMetadataKey: time.Now().Add(ttl).Format(time.RFC3339Nano)}
	}
	w, err := c.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
