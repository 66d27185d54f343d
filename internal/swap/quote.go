// Package swap builds time-bounded swap quotes and unsigned transaction
// envelopes on top of the aggregator and fee-sponsor clients.
package swap

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/aggregator"
	"github.com/x402-foundation/swapgate/internal/asset"
	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/types"
)

// DefaultSlippageBps is applied when the caller does not specify slippage.
const DefaultSlippageBps = 50

var validate = validator.New()

// sponsorAPI is the slice of the fee-sponsor interface the quote path needs.
type sponsorAPI interface {
	GetFeePayer(ctx context.Context) (string, error)
	EstimateFee(ctx context.Context, transaction, feeToken string) (*sponsor.FeeEstimate, error)
}

// Prepared pairs the caller-facing quote with the aggregator route it was
// derived from. The route is required verbatim by the build endpoint.
type Prepared struct {
	Quote types.SwapQuote
	Route *aggregator.RouteQuote
}

// QuoteBuilder composes the asset resolver, swap backend, and fee sponsor
// into quote responses.
type QuoteBuilder struct {
	resolver        *asset.Resolver
	backend         aggregator.SwapBackend
	sponsor         sponsorAPI
	defaultFeeToken string
	now             func() time.Time
	log             *zap.Logger
}

// NewQuoteBuilder creates a quote builder. defaultFeeToken is the mint used
// for fee estimates when the caller does not request one.
func NewQuoteBuilder(
	resolver *asset.Resolver,
	backend aggregator.SwapBackend,
	sponsorClient sponsorAPI,
	defaultFeeToken string,
	log *zap.Logger,
) *QuoteBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuoteBuilder{
		resolver:        resolver,
		backend:         backend,
		sponsor:         sponsorClient,
		defaultFeeToken: defaultFeeToken,
		now:             time.Now,
		log:             log,
	}
}

// BuildQuote resolves assets, fetches the aggregator's best route, prices
// the sponsor fee, and stamps the 30-second expiry.
func (b *QuoteBuilder) BuildQuote(ctx context.Context, req types.SwapQuoteRequest) (*Prepared, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, types.Validationf("invalid quote request: %v", err)
	}

	inputMint := b.resolver.Resolve(req.InputMint)
	outputMint := b.resolver.Resolve(req.OutputMint)
	if inputMint == outputMint {
		return nil, types.Validationf("input and output assets must differ")
	}

	inDecimals, err := b.resolver.Decimals(ctx, inputMint)
	if err != nil {
		return nil, err
	}
	outDecimals, err := b.resolver.Decimals(ctx, outputMint)
	if err != nil {
		return nil, err
	}

	rawAmount, err := ToRawAmount(req.Amount, inDecimals)
	if err != nil {
		return nil, err
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = DefaultSlippageBps
	}

	route, err := b.backend.Quote(ctx, aggregator.QuoteParams{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      rawAmount,
		SlippageBps: slippage,
	})
	if err != nil {
		return nil, err
	}

	inputAmount, err := FromRawAmount(route.InAmount, inDecimals)
	if err != nil {
		return nil, err
	}
	outputAmount, err := FromRawAmount(route.OutAmount, outDecimals)
	if err != nil {
		return nil, err
	}

	feeToken := req.FeeToken
	if feeToken == "" {
		feeToken = b.defaultFeeToken
	}
	feeToken = b.resolver.Resolve(feeToken)

	feePayer, err := b.sponsor.GetFeePayer(ctx)
	if err != nil {
		return nil, err
	}
	estimate, err := b.sponsor.EstimateFee(ctx, "", feeToken)
	if err != nil {
		return nil, err
	}

	quote := types.SwapQuote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		InputAmount:    inputAmount,
		OutputAmount:   outputAmount,
		PriceImpactPct: route.PriceImpactPct,
		Route:          DescribeRoute(route.Venues),
		GasFee: types.GasFee{
			Token:          feeToken,
			AmountInToken:  estimate.FeeInToken,
			AmountLamports: estimate.FeeLamports,
		},
		FeePayer:  feePayer,
		ExpiresAt: b.now().Add(types.QuoteTTL),
	}

	b.log.Debug("built quote",
		zap.String("inputMint", inputMint),
		zap.String("outputMint", outputMint),
		zap.String("outputAmount", outputAmount),
		zap.String("route", quote.Route),
	)

	return &Prepared{Quote: quote, Route: route}, nil
}
