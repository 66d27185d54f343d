// Package sponsor wraps the fee-sponsor relayer's remote interface. The
// sponsor pays network fees on the caller's behalf and is reimbursed in an
// SPL token; every operation is a single JSON-RPC-style round trip keyed by
// method name.
package sponsor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/types"
)

// DefaultTimeout bounds each sponsor round trip.
const DefaultTimeout = 20 * time.Second

// RPCError is an error reported by the sponsor itself, as opposed to a
// transport failure reaching it. Callers use this distinction to separate
// protocol-expected rejections from upstream outages.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("sponsor rejected request (%d): %s", e.Code, e.Message)
}

// Config configures the sponsor client.
type Config struct {
	// URL of the sponsor's RPC endpoint.
	URL string
	// Timeout for each HTTP round trip. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client is a stateless request/response wrapper over the sponsor's remote
// interface. No session or connection state is retained between calls.
type Client struct {
	url        string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a sponsor client.
func NewClient(config Config, log *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:        strings.TrimSuffix(config.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	jsonBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Upstreamf("sponsor %s request failed: %v", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Upstreamf("sponsor %s returned %s", method, resp.Status)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return types.Upstreamf("malformed sponsor %s response: %v", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return types.Upstreamf("malformed sponsor %s result: %v", method, err)
		}
	}
	return nil
}

// GetFeePayer returns the sponsor's fee-payer address.
func (c *Client) GetFeePayer(ctx context.Context) (string, error) {
	var result struct {
		FeePayer string `json:"feePayer"`
	}
	if err := c.call(ctx, "getFeePayer", nil, &result); err != nil {
		return "", err
	}
	if result.FeePayer == "" {
		return "", types.Upstreamf("sponsor returned empty fee payer")
	}
	return result.FeePayer, nil
}

// SupportedToken is a token the sponsor accepts as fee reimbursement.
type SupportedToken struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// GetSupportedTokens lists the fee tokens the sponsor accepts.
func (c *Client) GetSupportedTokens(ctx context.Context) ([]SupportedToken, error) {
	var result struct {
		Tokens []SupportedToken `json:"tokens"`
	}
	if err := c.call(ctx, "getSupportedTokens", nil, &result); err != nil {
		return nil, err
	}
	return result.Tokens, nil
}

// FeeEstimate is the sponsor's price for relaying one transaction.
type FeeEstimate struct {
	FeeLamports uint64 `json:"feeLamports"`
	FeeInToken  string `json:"feeInToken"`
	FeeToken    string `json:"feeToken"`
}

// EstimateFee asks the sponsor what it would charge, in feeToken, to relay
// the given base64 transaction.
func (c *Client) EstimateFee(ctx context.Context, transaction, feeToken string) (*FeeEstimate, error) {
	params := map[string]string{
		"transaction": transaction,
		"feeToken":    feeToken,
	}
	var result FeeEstimate
	if err := c.call(ctx, "estimateFee", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignAndSubmit hands a caller-signed base64 transaction to the sponsor for
// countersignature and broadcast. Returns the network transaction signature.
func (c *Client) SignAndSubmit(ctx context.Context, signedTransaction string) (string, error) {
	params := map[string]string{
		"signedTransaction": signedTransaction,
	}
	var result struct {
		Signature string `json:"signature"`
	}
	if err := c.call(ctx, "signAndSubmit", params, &result); err != nil {
		return "", err
	}
	if result.Signature == "" {
		return "", types.Upstreamf("sponsor returned empty signature")
	}
	c.log.Info("sponsor submitted transaction", zap.String("signature", result.Signature))
	return result.Signature, nil
}
