package catalog

import (
	"context"
	"fmt"
	"sync"
)

const (
	RecipesKey     = "recipes"
	DeletedSeedKey = "recipes.deletedSeedIds"

	DefaultQuotaBytes = 5 << 20
)

// KV is the key-value persistence store. Every write replaces the previous
// value wholesale.
type KV interface {
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// LimitedKV bounds the total size of keys and values held by the wrapped store.
// Values already in the store under the catalog keys count against the quota
// from the first write on.
type LimitedKV struct {
	KV

	mu       sync.Mutex
	max      int
	sizes    map[string]int
	measured bool
}

func Limit(kv KV, maxBytes int) *LimitedKV {
	if maxBytes <= 0 {
		maxBytes = DefaultQuotaBytes
	}
	return &LimitedKV{KV: kv, max: maxBytes, sizes: map[string]int{}}
}

func (l *LimitedKV) measure(ctx context.Context, key string) error {
	if _, known := l.sizes[key]; known {
		return nil
	}
	v, ok, err := l.KV.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("measure %q: %w", key, err)
	}
	if ok {
		l.sizes[key] = len(key) + len(v)
	}
	return nil
}

func (l *LimitedKV) Write(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.measured {
		for _, k := range []string{RecipesKey, DeletedSeedKey} {
			if err := l.measure(ctx, k); err != nil {
				return err
			}
		}
		l.measured = true
	}
	if err := l.measure(ctx, key); err != nil {
		return err
	}

	used := 0
	for k, n := range l.sizes {
		if k != key {
			used += n
		}
	}
	if need := len(key) + len(value); used+need > l.max {
		return fmt.Errorf("%w: write of %d bytes to %q exceeds %d byte quota", ErrQuotaExceeded, need, key, l.max)
	}

	if err := l.KV.Write(ctx, key, value); err != nil {
		return err
	}
	l.sizes[key] = len(key) + len(value)
	return nil
}
