package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"
)

// Validator decides whether an API key may use the service.
type Validator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// StaticValidator accepts a fixed list of keys
type StaticValidator struct {
	keys []string
}

func NewStaticValidator(keys []string) *StaticValidator {
	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ret = append(ret, k)
		}
	}
	return &StaticValidator{keys: ret}
}

func (v *StaticValidator) Validate(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	for _, k := range v.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// CachedValidator remembers accepted keys for a TTL. Rejections are never cached.
type CachedValidator struct {
	next Validator
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewCachedValidator(next Validator, ttl time.Duration) *CachedValidator {
	return &CachedValidator{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (v *CachedValidator) Validate(ctx context.Context, key string) (bool, error) {
	now := v.now()

	v.mu.Lock()
	expires, ok := v.entries[key]
	if ok && now.Before(expires) {
		v.mu.Unlock()
		return true, nil
	}
	delete(v.entries, key)
	v.mu.Unlock()

	valid, err := v.next.Validate(ctx, key)
	if err != nil || !valid {
		return valid, err
	}

	v.mu.Lock()
	v.entries[key] = now.Add(v.ttl)
	v.mu.Unlock()
	return true, nil
}

// Chain accepts a key when any validator does. Errors only surface when nobody accepted.
type Chain []Validator

func (c Chain) Validate(ctx context.Context, key string) (bool, error) {
	var errs []error
	for _, v := range c {
		ok, err := v.Validate(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
