package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/types"
)

// DefaultJupiterBaseURL is the public Jupiter v6 quote API.
const DefaultJupiterBaseURL = "https://quote-api.jup.ag/v6"

// DefaultTimeout bounds each aggregator round trip.
const DefaultTimeout = 15 * time.Second

const (
	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// JupiterConfig configures the Jupiter backend.
type JupiterConfig struct {
	// BaseURL of the quote API. Defaults to the public v6 endpoint.
	BaseURL string
	// Timeout for each HTTP round trip. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// JupiterBackend implements SwapBackend against the Jupiter aggregator HTTP
// API.
type JupiterBackend struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewJupiterBackend creates a Jupiter-backed SwapBackend.
func NewJupiterBackend(config JupiterConfig, log *zap.Logger) *JupiterBackend {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultJupiterBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JupiterBackend{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Name implements SwapBackend.
func (b *JupiterBackend) Name() string { return "jupiter" }

// quoteResponse mirrors the fields of the aggregator quote the gateway
// consumes; the full body is carried through in RouteQuote.Raw.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// Quote implements SwapBackend.
func (b *JupiterBackend) Quote(ctx context.Context, params QuoteParams) (*RouteQuote, error) {
	q := url.Values{}
	q.Set("inputMint", params.InputMint)
	q.Set("outputMint", params.OutputMint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(params.SlippageBps))

	endpoint := fmt.Sprintf("%s/quote?%s", b.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, types.Upstreamf("aggregator quote request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Upstreamf("failed to read aggregator response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.Upstreamf("aggregator quote returned %s: %s", resp.Status, truncate(body, 256))
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, types.Upstreamf("malformed aggregator quote: %v", err)
	}
	if quote.OutAmount == "" {
		return nil, types.Upstreamf("aggregator quote missing outAmount")
	}

	venues := make([]string, 0, len(quote.RoutePlan))
	for _, leg := range quote.RoutePlan {
		venues = append(venues, leg.SwapInfo.Label)
	}

	b.log.Debug("aggregator quote",
		zap.String("inputMint", quote.InputMint),
		zap.String("outputMint", quote.OutputMint),
		zap.String("outAmount", quote.OutAmount),
		zap.Int("legs", len(venues)),
	)

	return &RouteQuote{
		InputMint:      quote.InputMint,
		InAmount:       quote.InAmount,
		OutputMint:     quote.OutputMint,
		OutAmount:      quote.OutAmount,
		PriceImpactPct: quote.PriceImpactPct,
		Venues:         venues,
		Raw:            json.RawMessage(body),
	}, nil
}

// swapResponse is the build endpoint's response envelope.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error,omitempty"`
}

// BuildSwapTransaction implements SwapBackend.
func (b *JupiterBackend) BuildSwapTransaction(ctx context.Context, quote *RouteQuote, userWallet, feePayer string) (string, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return "", types.Validationf("quote is required to build a swap transaction")
	}

	reqBody := map[string]interface{}{
		"quoteResponse":    json.RawMessage(quote.Raw),
		"userPublicKey":    userWallet,
		"wrapAndUnwrapSol": true,
	}
	if feePayer != "" {
		reqBody["feeAccount"] = feePayer
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/swap", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create swap request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", types.Upstreamf("aggregator swap request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Upstreamf("failed to read aggregator response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.Upstreamf("aggregator swap returned %s: %s", resp.Status, truncate(body, 256))
	}

	var swap swapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return "", types.Upstreamf("malformed aggregator swap response: %v", err)
	}
	if swap.SwapTransaction == "" {
		msg := swap.Error
		if msg == "" {
			msg = "missing swapTransaction"
		}
		return "", types.Upstreamf("aggregator swap failed: %s", msg)
	}

	return swap.SwapTransaction, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
