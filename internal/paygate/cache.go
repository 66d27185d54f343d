package paygate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/x402-foundation/swapgate/internal/types"
)

// SettlementCache deduplicates settlement submissions. The reference
// protocol carries no idempotency key, so a client retry after a network
// partition would double charge; keying on the evidence blob itself closes
// that gap. Successful settlement ids are cached for the TTL, and an
// in-flight marker makes concurrent retries wait for the first submission
// instead of racing it.
type SettlementCache struct {
	mu       sync.Mutex
	results  map[string]string // evidence digest -> settlement id
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	failures map[string]*types.GatewayError
	ttl      time.Duration
}

// NewSettlementCache creates a cache that remembers settlements for ttl.
func NewSettlementCache(ttl time.Duration) *SettlementCache {
	return &SettlementCache{
		results:  make(map[string]string),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		failures: make(map[string]*types.GatewayError),
		ttl:      ttl,
	}
}

// EvidenceKey derives the cache key from the opaque evidence blob. The blob
// embeds the caller's signature, so distinct payment attempts never collide.
func EvidenceKey(blob string) string {
	sum := sha256.Sum256([]byte(blob))
	return hex.EncodeToString(sum[:])
}

// SettlementStatus is the outcome of a cache check.
type SettlementStatus int

const (
	// StatusNotFound means no cached result and no in-flight submission;
	// the caller should settle and then call Complete or Fail.
	StatusNotFound SettlementStatus = iota
	// StatusCached means this evidence already settled.
	StatusCached
	// StatusInFlight means another request is settling this evidence.
	StatusInFlight
)

// CheckAndMark atomically checks the cache and, on a miss, marks the key as
// in-flight. On StatusNotFound the returned channel must be resolved with
// Complete or Fail; on StatusInFlight it is the channel to wait on.
func (c *SettlementCache) CheckAndMark(key string) (SettlementStatus, string, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[key]; exists {
		if time.Now().Before(expiry) {
			if id, ok := c.results[key]; ok {
				return StatusCached, id, nil
			}
		}
		delete(c.results, key)
		delete(c.expiry, key)
	}

	if done, exists := c.inFlight[key]; exists {
		return StatusInFlight, "", done
	}

	delete(c.failures, key)
	done := make(chan struct{})
	c.inFlight[key] = done
	return StatusNotFound, "", done
}

// Complete records a successful settlement and releases waiters.
func (c *SettlementCache) Complete(key, settlementID string, done chan struct{}) {
	c.mu.Lock()
	c.results[key] = settlementID
	c.expiry[key] = time.Now().Add(c.ttl)
	delete(c.inFlight, key)
	c.mu.Unlock()
	close(done)
}

// Fail releases waiters without caching a result, so the next attempt
// submits again. The failure cause is kept until that next attempt so
// waiters surface the same error class as the request that settled.
func (c *SettlementCache) Fail(key string, cause error, done chan struct{}) {
	c.mu.Lock()
	var gwErr *types.GatewayError
	switch {
	case errors.As(cause, &gwErr):
		c.failures[key] = gwErr
	case cause != nil:
		c.failures[key] = types.Upstreamf("settlement failed: %v", cause)
	}
	delete(c.inFlight, key)
	c.mu.Unlock()
	close(done)
}

// WaitForResult blocks until the in-flight settlement for key resolves.
// Returns the cached settlement id if the other request succeeded.
func (c *SettlementCache) WaitForResult(ctx context.Context, key string, done chan struct{}) (string, error) {
	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if id, ok := c.results[key]; ok {
			return id, nil
		}
		if cause, ok := c.failures[key]; ok {
			return "", cause
		}
		return "", types.NewGatewayError(types.ErrCodePaymentRejected,
			"concurrent settlement attempt failed", nil)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
