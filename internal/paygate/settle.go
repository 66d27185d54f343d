package paygate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/types"
)

// Submitter is the slice of the fee-sponsor interface settlement needs.
type Submitter interface {
	SignAndSubmit(ctx context.Context, signedTransaction string) (string, error)
}

// SettlementVerifier submits payment transactions to the fee sponsor for
// countersignature and broadcast. A sponsor rejection is a protocol-level
// expected outcome; only transport failures are upstream faults.
type SettlementVerifier struct {
	sponsor Submitter
	log     *zap.Logger
}

// NewSettlementVerifier creates a verifier backed by the given sponsor.
func NewSettlementVerifier(submitter Submitter, log *zap.Logger) *SettlementVerifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementVerifier{sponsor: submitter, log: log}
}

// Submit hands the opaque signed payment transaction to the sponsor and
// returns its settlement identifier. Error codes distinguish a sponsor
// rejection (payment_rejected) from an unreachable sponsor
// (upstream_unavailable).
func (v *SettlementVerifier) Submit(ctx context.Context, blob string) (string, error) {
	settlementID, err := v.sponsor.SignAndSubmit(ctx, blob)
	if err != nil {
		var rpcErr *sponsor.RPCError
		if errors.As(err, &rpcErr) {
			v.log.Info("sponsor rejected settlement", zap.String("reason", rpcErr.Message))
			return "", types.NewGatewayError(types.ErrCodePaymentRejected, rpcErr.Message,
				map[string]interface{}{"sponsorCode": rpcErr.Code})
		}
		v.log.Warn("settlement submission failed", zap.Error(err))
		return "", err
	}
	return settlementID, nil
}
