package swap

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"

	"github.com/x402-foundation/swapgate/internal/types"
)

// retainAfterExpiry keeps expired records around long enough for the
// execute path to report stale_quote instead of treating the envelope as
// unknown.
const retainAfterExpiry = 10 * time.Minute

// EnvelopeTracker remembers, per transaction envelope, the expiry of the
// quote it was built from. Keys are digests of the transaction message, so
// the caller's signature does not change the key between build and execute.
type EnvelopeTracker struct {
	mu      sync.Mutex
	expiry  map[string]time.Time
	now     func() time.Time
}

// NewEnvelopeTracker creates an empty tracker.
func NewEnvelopeTracker() *EnvelopeTracker {
	return &EnvelopeTracker{
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// MessageDigest decodes a base64 transaction and returns the hex digest of
// its serialized message. Signatures are excluded, so the digest is stable
// across signing.
func MessageDigest(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", types.Validationf("transaction is not valid base64: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", types.Validationf("failed to decode transaction: %v", err)
	}
	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", types.Validationf("failed to serialize transaction message: %v", err)
	}
	sum := sha256.Sum256(msgBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Record stores the quote expiry for an envelope and prunes records that
// expired long ago.
func (t *EnvelopeTracker) Record(txBase64 string, expiresAt time.Time) error {
	digest, err := MessageDigest(txBase64)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-retainAfterExpiry)
	for key, exp := range t.expiry {
		if exp.Before(cutoff) {
			delete(t.expiry, key)
		}
	}

	t.expiry[digest] = expiresAt
	return nil
}

// Lookup returns the recorded expiry for a (possibly signed) envelope.
// found is false when the envelope was never recorded, e.g. after a process
// restart.
func (t *EnvelopeTracker) Lookup(txBase64 string) (expiresAt time.Time, found bool, err error) {
	digest, err := MessageDigest(txBase64)
	if err != nil {
		return time.Time{}, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.expiry[digest]
	return exp, ok, nil
}
