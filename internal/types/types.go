package types

import (
	"time"
)

// Protocol version carried in payment challenges.
const X402Version = 1

// SchemeExact is the only payment scheme the gateway issues challenges for.
const SchemeExact = "exact"

// Header names used by the payment gate. Each concern has a primary and a
// legacy alias; both are honored on ingest and both are set on egress.
const (
	HeaderPaymentRequired      = "X-Payment-Required"
	HeaderPaymentRequiredAlias = "Payment-Required"
	HeaderPayment              = "X-Payment"
	HeaderPaymentAlias         = "Payment-Signature"
	HeaderPaymentResponse      = "X-Payment-Response"
)

// RouteRequirement prices a single (method, path) route. The table of
// requirements is immutable after startup; routes are matched by structural
// equality, never by concatenated string keys.
type RouteRequirement struct {
	Method            string `json:"method"`
	Path              string `json:"path"`
	Amount            string `json:"amount"` // minor units, decimal string
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	FeePayerHint      string `json:"feePayer,omitempty"`
	Description       string `json:"description,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// Matches reports whether the requirement applies to the given request line.
func (r RouteRequirement) Matches(method, path string) bool {
	return r.Method == method && r.Path == path
}

// PaymentChallenge is the JSON body carried (base64-encoded) in the
// X-Payment-Required header of a 402 response.
type PaymentChallenge struct {
	X402Version       int               `json:"x402Version"`
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	PayTo             string            `json:"payTo"`
	Amount            string            `json:"amount"`
	Asset             string            `json:"asset"`
	Description       string            `json:"description,omitempty"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// PaymentReceipt records a successful settlement for one request. It is
// attached to the request context at most once and dies with the request.
type PaymentReceipt struct {
	SettlementID string    `json:"settlementId"`
	Network      string    `json:"network"`
	Amount       string    `json:"amount"`
	Asset        string    `json:"asset"`
	Timestamp    time.Time `json:"timestamp"`
}

// PaymentResponseHeader is the JSON body carried (base64-encoded) in the
// X-Payment-Response header after successful settlement.
type PaymentResponseHeader struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
}

// SwapQuoteRequest is the caller-facing input for quote and build calls.
type SwapQuoteRequest struct {
	InputMint   string `json:"inputMint" binding:"required" validate:"required"`
	OutputMint  string `json:"outputMint" binding:"required" validate:"required"`
	Amount      string `json:"amount" binding:"required" validate:"required"`
	UserWallet  string `json:"userWallet" binding:"required" validate:"required"`
	SlippageBps int    `json:"slippageBps,omitempty" validate:"gte=0,lte=10000"`
	FeeToken    string `json:"feeToken,omitempty"`
}

// GasFee describes the sponsor's fee estimate for one swap.
type GasFee struct {
	Token          string `json:"token"`
	AmountInToken  string `json:"amountInToken"`
	AmountLamports uint64 `json:"amountLamports"`
}

// QuoteTTL bounds how long a quote may be used after issuance.
const QuoteTTL = 30 * time.Second

// SwapQuote is a time-bounded swap estimate. Consumers must reject any use
// past ExpiresAt.
type SwapQuote struct {
	InputMint      string    `json:"inputMint"`
	OutputMint     string    `json:"outputMint"`
	InputAmount    string    `json:"inputAmount"`
	OutputAmount   string    `json:"outputAmount"`
	PriceImpactPct string    `json:"priceImpactPct"`
	Route          string    `json:"route"`
	GasFee         GasFee    `json:"gasFee"`
	FeePayer       string    `json:"feePayer"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Expired reports whether the quote is stale at the given instant.
func (q SwapQuote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// UnsignedTransactionEnvelope pairs opaque serialized-transaction bytes with
// the quote they were derived from. Built once per quote, never mutated.
type UnsignedTransactionEnvelope struct {
	Transaction string    `json:"transaction"` // base64
	Quote       SwapQuote `json:"quote"`
}
