// Package aggregator talks to the external swap aggregator that selects the
// best-price route across liquidity venues. The gateway never re-specifies
// pricing math; it consumes the aggregator through the SwapBackend interface.
package aggregator

import (
	"context"
	"encoding/json"
)

// QuoteParams are the raw-unit inputs to a route quote.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // raw units of the input mint
	SlippageBps int
}

// RouteQuote is the aggregator's best-price route for a QuoteParams.
// Raw preserves the aggregator's full response because the build endpoint
// requires it verbatim.
type RouteQuote struct {
	InputMint      string
	InAmount       string
	OutputMint     string
	OutAmount      string
	PriceImpactPct string
	Venues         []string
	Raw            json.RawMessage
}

// SwapBackend abstracts the swap venue used to quote and assemble
// transactions. Implementations are interchangeable and selected once at
// startup.
type SwapBackend interface {
	// Name identifies the backend in status responses and logs.
	Name() string

	// Quote fetches the best-price route for the given parameters.
	Quote(ctx context.Context, params QuoteParams) (*RouteQuote, error)

	// BuildSwapTransaction assembles an unsigned transaction executing the
	// quoted route on behalf of userWallet. Returns base64 transaction
	// bytes. Never signs.
	BuildSwapTransaction(ctx context.Context, quote *RouteQuote, userWallet, feePayer string) (string, error)
}
