package cachehook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c := New(bucket)

	require.NoError(t, c.Put(context.Background(), "k1", []byte("v1"), time.Minute))
	v, ok, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestCacheGetMissingKeyIsNotAnError(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c := New(bucket)

	v, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestCacheExpiresEntriesPastTTL(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c := New(bucket)

	require.NoError(t, c.Put(context.Background(), "k1", []byte("v1"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheConcurrentGetsOfSameKeyAgree(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c := New(bucket)

	require.NoError(t, c.Put(context.Background(), "k1", []byte("v1"), time.Minute))

	const n = 20
	var wg sync.WaitGroup
	results := make([][]byte, n)
	oks := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i], errs[i] = c.Get(context.Background(), "k1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.True(t, oks[i])
		require.Equal(t, []byte("v1"), results[i])
	}
}

func TestCacheWithoutTTLNeverExpires(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c := New(bucket)

	require.NoError(t, c.Put(context.Background(), "k1", []byte("v1"), 0))
	v, ok, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}
