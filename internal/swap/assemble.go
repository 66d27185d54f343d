package swap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/aggregator"
	"github.com/x402-foundation/swapgate/internal/types"
)

// Assembler turns a prepared quote into an unsigned transaction envelope.
// It never signs and never talks to the fee sponsor.
type Assembler struct {
	backend aggregator.SwapBackend
	tracker *EnvelopeTracker
	now     func() time.Time
	log     *zap.Logger
}

// NewAssembler creates an assembler that records each envelope's quote
// expiry in the given tracker.
func NewAssembler(backend aggregator.SwapBackend, tracker *EnvelopeTracker, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		backend: backend,
		tracker: tracker,
		now:     time.Now,
		log:     log,
	}
}

// Assemble requests an unsigned transaction for the prepared quote and the
// requester's wallet. A quote past its expiry is rejected rather than
// silently built.
func (a *Assembler) Assemble(ctx context.Context, prepared *Prepared, userWallet string) (*types.UnsignedTransactionEnvelope, error) {
	if prepared.Quote.Expired(a.now()) {
		return nil, types.NewGatewayError(types.ErrCodeStaleQuote,
			"quote has expired; request a new quote", nil)
	}

	txBase64, err := a.backend.BuildSwapTransaction(ctx, prepared.Route, userWallet, prepared.Quote.FeePayer)
	if err != nil {
		return nil, err
	}

	if err := a.tracker.Record(txBase64, prepared.Quote.ExpiresAt); err != nil {
		// The aggregator handed back something we cannot decode; surface it
		// as an upstream fault rather than returning an untracked envelope.
		return nil, types.Upstreamf("aggregator returned undecodable transaction: %v", err)
	}

	a.log.Debug("assembled envelope",
		zap.String("userWallet", userWallet),
		zap.Time("expiresAt", prepared.Quote.ExpiresAt),
	)

	return &types.UnsignedTransactionEnvelope{
		Transaction: txBase64,
		Quote:       prepared.Quote,
	}, nil
}
