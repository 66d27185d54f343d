// Package paygate implements the x402 payment gate: per-route 402
// challenges, payment-evidence settlement through the fee sponsor, and
// request receipts.
package paygate

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/metrics"
	"github.com/x402-foundation/swapgate/internal/types"
)

// receiptContextKey is where the middleware stores the PaymentReceipt on
// the gin context.
const receiptContextKey = "swapgate.paymentReceipt"

// DefaultSettlementTTL is how long settled evidence stays deduplicated.
const DefaultSettlementTTL = 5 * time.Minute

// Gate decides, per route, whether payment evidence is required, issues
// 402 challenges, and settles evidence before the downstream handler runs.
type Gate struct {
	requirements []types.RouteRequirement
	verifier     *SettlementVerifier
	cache        *SettlementCache
	network      string
	recorder     metrics.Recorder
	log          *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(g *Gate) { g.recorder = recorder }
}

// WithSettlementTTL overrides the idempotency-cache TTL.
func WithSettlementTTL(ttl time.Duration) Option {
	return func(g *Gate) { g.cache = NewSettlementCache(ttl) }
}

// NewGate creates a payment gate over an immutable requirements table.
func NewGate(
	requirements []types.RouteRequirement,
	verifier *SettlementVerifier,
	network string,
	log *zap.Logger,
	opts ...Option,
) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gate{
		requirements: requirements,
		verifier:     verifier,
		cache:        NewSettlementCache(DefaultSettlementTTL),
		network:      network,
		recorder:     metrics.NoopRecorder{},
		log:          log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// match returns the requirement for a request line, if any.
func (g *Gate) match(method, path string) *types.RouteRequirement {
	for i := range g.requirements {
		if g.requirements[i].Matches(method, path) {
			return &g.requirements[i]
		}
	}
	return nil
}

// Middleware returns the gin handler enforcing the gate. The downstream
// handler of a priced route is never invoked without a prior successful
// settlement in the same request.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := g.match(c.Request.Method, c.Request.URL.Path)
		if req == nil {
			c.Next()
			return
		}

		header := c.GetHeader(types.HeaderPayment)
		if header == "" {
			header = c.GetHeader(types.HeaderPaymentAlias)
		}
		if header == "" {
			g.challenge(c, req, "Payment required")
			return
		}

		blob, err := DecodeEvidence(header)
		if err != nil {
			g.recorder.IncCounter("evidence", map[string]string{"outcome": "invalid"})
			abortWithError(c, http.StatusBadRequest, err)
			return
		}

		settlementID, err := g.settle(c, blob)
		if err != nil {
			var gwErr *types.GatewayError
			if isCode(err, types.ErrCodePaymentRejected, &gwErr) {
				g.recorder.IncCounter("settlement", map[string]string{"outcome": "rejected"})
				g.challenge(c, req, gwErr.Message)
				return
			}
			g.recorder.IncCounter("settlement", map[string]string{"outcome": "error"})
			abortWithError(c, http.StatusBadGateway, err)
			return
		}

		g.recorder.IncCounter("settlement", map[string]string{"outcome": "success"})

		receipt := types.PaymentReceipt{
			SettlementID: settlementID,
			Network:      g.network,
			Amount:       req.Amount,
			Asset:        req.Asset,
			Timestamp:    time.Now().UTC(),
		}
		c.Set(receiptContextKey, receipt)

		respBody, _ := json.Marshal(types.PaymentResponseHeader{
			Success:         true,
			TransactionHash: settlementID,
		})
		c.Header(types.HeaderPaymentResponse, base64.StdEncoding.EncodeToString(respBody))

		c.Next()
	}
}

// settle runs the evidence through the idempotency cache and the verifier.
// Settlement is attempted at most once per distinct evidence blob; retries
// of already-settled evidence return the original settlement id.
func (g *Gate) settle(c *gin.Context, blob string) (string, error) {
	ctx := c.Request.Context()
	key := EvidenceKey(blob)
	started := time.Now()

	status, cached, done := g.cache.CheckAndMark(key)
	switch status {
	case StatusCached:
		g.log.Debug("settlement served from cache", zap.String("key", key))
		return cached, nil
	case StatusInFlight:
		return g.cache.WaitForResult(ctx, key, done)
	}

	settlementID, err := g.verifier.Submit(ctx, blob)
	g.recorder.ObserveLatency("settle", time.Since(started), map[string]string{
		"outcome": outcomeLabel(err),
	})
	if err != nil {
		g.cache.Fail(key, err, done)
		return "", err
	}
	g.cache.Complete(key, settlementID, done)
	return settlementID, nil
}

// challenge aborts the request with a 402 carrying the base64 challenge in
// both header spellings.
func (g *Gate) challenge(c *gin.Context, req *types.RouteRequirement, reason string) {
	challenge := types.PaymentChallenge{
		X402Version:       types.X402Version,
		Scheme:            types.SchemeExact,
		Network:           g.network,
		PayTo:             req.PayTo,
		Amount:            req.Amount,
		Asset:             req.Asset,
		Description:       req.Description,
		MaxTimeoutSeconds: req.MaxTimeoutSeconds,
	}
	if req.FeePayerHint != "" {
		challenge.Extra = map[string]string{"feePayer": req.FeePayerHint}
	}

	body, err := json.Marshal(challenge)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError,
			types.NewGatewayError(types.ErrCodeInternal, "failed to encode payment challenge", nil))
		return
	}
	encoded := base64.StdEncoding.EncodeToString(body)
	c.Header(types.HeaderPaymentRequired, encoded)
	c.Header(types.HeaderPaymentRequiredAlias, encoded)

	g.recorder.IncCounter("challenge", map[string]string{"outcome": "issued"})
	c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
		"error": reason,
		"code":  types.ErrCodePaymentRequired,
	})
}

// ReceiptFromContext returns the payment receipt attached by the gate, if
// settlement happened for this request.
func ReceiptFromContext(c *gin.Context) (types.PaymentReceipt, bool) {
	v, ok := c.Get(receiptContextKey)
	if !ok {
		return types.PaymentReceipt{}, false
	}
	receipt, ok := v.(types.PaymentReceipt)
	return receipt, ok
}

func abortWithError(c *gin.Context, status int, err error) {
	var gwErr *types.GatewayError
	if isCode(err, "", &gwErr) {
		c.AbortWithStatusJSON(status, gin.H{"error": gwErr.Message, "code": gwErr.Code})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": types.ErrCodeInternal})
}

// isCode unwraps err into target and, when code is non-empty, additionally
// checks the code matches.
func isCode(err error, code string, target **types.GatewayError) bool {
	var gwErr *types.GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}
	if code != "" && gwErr.Code != code {
		return false
	}
	*target = gwErr
	return true
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}
