package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/types"
)

// handleGaslessStatus reports sponsor availability and capabilities.
func (s *Server) handleGaslessStatus(c *gin.Context) {
	ctx := c.Request.Context()

	feePayer, err := s.sponsor.GetFeePayer(ctx)
	if err != nil {
		s.log.Warn("sponsor unavailable", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"available":   false,
			"swapBackend": s.backendName,
		})
		return
	}

	tokens, err := s.sponsor.GetSupportedTokens(ctx)
	if err != nil {
		tokens = nil
	}
	symbols := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Symbol != "" {
			symbols = append(symbols, t.Symbol)
		} else {
			symbols = append(symbols, t.Mint)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"available":       true,
		"feePayer":        feePayer,
		"supportedTokens": symbols,
		"swapBackend":     s.backendName,
	})
}

// gaslessRequest is the wire shape of quote and build calls. The field
// names mirror the public API; FeeToken defaults to the process-configured
// fee asset.
type gaslessRequest struct {
	InputMint   string `json:"inputMint" binding:"required"`
	OutputMint  string `json:"outputMint" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	UserWallet  string `json:"userWallet" binding:"required"`
	SlippageBps int    `json:"slippage,omitempty"`
	FeeToken    string `json:"feeToken,omitempty"`
}

func (r gaslessRequest) toQuoteRequest() types.SwapQuoteRequest {
	return types.SwapQuoteRequest{
		InputMint:   r.InputMint,
		OutputMint:  r.OutputMint,
		Amount:      r.Amount,
		UserWallet:  r.UserWallet,
		SlippageBps: r.SlippageBps,
		FeeToken:    r.FeeToken,
	}
}

func (s *Server) bindGaslessRequest(c *gin.Context) (*gaslessRequest, bool) {
	var req gaslessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewGatewayError(types.ErrCodeValidation,
			fmt.Sprintf("invalid request body: %v", err), nil))
		return nil, false
	}
	if req.SlippageBps < 0 || req.SlippageBps > 10000 {
		respondError(c, types.Validationf("slippage must be between 0 and 10000 bps"))
		return nil, false
	}
	return &req, true
}

// handleGaslessQuote returns a 30-second swap quote with the sponsor's fee
// estimate.
func (s *Server) handleGaslessQuote(c *gin.Context) {
	req, ok := s.bindGaslessRequest(c)
	if !ok {
		return
	}

	prepared, err := s.quotes.BuildQuote(c.Request.Context(), req.toQuoteRequest())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, prepared.Quote)
}

// handleGaslessBuild quotes and assembles an unsigned transaction envelope
// in one call.
func (s *Server) handleGaslessBuild(c *gin.Context) {
	req, ok := s.bindGaslessRequest(c)
	if !ok {
		return
	}

	prepared, err := s.quotes.BuildQuote(c.Request.Context(), req.toQuoteRequest())
	if err != nil {
		respondError(c, err)
		return
	}

	envelope, err := s.assembler.Assemble(c.Request.Context(), prepared, req.UserWallet)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": envelope.Transaction,
		"quote":       envelope.Quote,
	})
}

// executeRequest carries the caller-signed envelope.
type executeRequest struct {
	SignedTransaction string `json:"signedTransaction" binding:"required"`
}

// handleGaslessExecute submits a caller-signed envelope to the sponsor. A
// submission whose quote has expired fails with a stale-quote error instead
// of being silently processed.
func (s *Server) handleGaslessExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewGatewayError(types.ErrCodeValidation,
			"missing required field: signedTransaction", nil))
		return
	}

	expiresAt, found, err := s.tracker.Lookup(req.SignedTransaction)
	if err != nil {
		respondError(c, err)
		return
	}
	if found && time.Now().After(expiresAt) {
		respondError(c, types.NewGatewayError(types.ErrCodeStaleQuote,
			"quote expired before execution; request a new quote", nil))
		return
	}

	signature, err := s.sponsor.SignAndSubmit(c.Request.Context(), req.SignedTransaction)
	if err != nil {
		var rpcErr *sponsor.RPCError
		if errors.As(err, &rpcErr) {
			respondError(c, types.NewGatewayError(types.ErrCodeExecutionFailed,
				rpcErr.Message, map[string]interface{}{"sponsorCode": rpcErr.Code}))
			return
		}
		respondError(c, err)
		return
	}

	s.log.Info("sponsored swap executed", zap.String("signature", signature))

	c.JSON(http.StatusOK, gin.H{
		"signature":   signature,
		"explorerUrl": fmt.Sprintf("%s/%s", s.explorerBaseURL, signature),
	})
}
