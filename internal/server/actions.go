package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/types"
)

// handleActionsManifest serves the discovery manifest mapping client-facing
// paths to API paths.
func (s *Server) handleActionsManifest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rules": []gin.H{
			{
				"pathPattern": "/actions/swap",
				"apiPath":     "/actions/swap",
			},
		},
	})
}

// handleActionMetadata serves the action descriptor with parameterized link
// templates, so wallets can render a swap form from the URL alone.
func (s *Server) handleActionMetadata(c *gin.Context) {
	base := "/actions/swap"
	c.JSON(http.StatusOK, gin.H{
		"title":       "Token Swap",
		"icon":        "https://swapgate.dev/icon.png",
		"description": "Swap tokens at the best available route, fees sponsored.",
		"label":       "Swap",
		"links": gin.H{
			"actions": []gin.H{
				{
					"label": "Swap 1 SOL to USDC",
					"href":  base + "?inputMint=SOL&outputMint=USDC&amount=1",
				},
				{
					"label": "Swap",
					"href":  base + "?inputMint={inputMint}&outputMint={outputMint}&amount={amount}",
					"parameters": []gin.H{
						{"name": "inputMint", "label": "Token to sell"},
						{"name": "outputMint", "label": "Token to buy"},
						{"name": "amount", "label": "Amount"},
					},
				},
			},
		},
	})
}

// actionSwapBody is the POST body of the Actions convention: the requester
// account only; everything else rides in the query string.
type actionSwapBody struct {
	Account string `json:"account" binding:"required"`
}

// handleActionSwap builds an unsigned swap transaction per the Actions
// convention.
func (s *Server) handleActionSwap(c *gin.Context) {
	inputMint := c.Query("inputMint")
	outputMint := c.Query("outputMint")
	amount := c.Query("amount")

	var missing []string
	for _, p := range []struct{ name, value string }{
		{"inputMint", inputMint},
		{"outputMint", outputMint},
		{"amount", amount},
	} {
		if p.value == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		respondError(c, types.NewGatewayError(types.ErrCodeValidation,
			"missing required query parameters",
			map[string]interface{}{"fields": missing}))
		return
	}

	var body actionSwapBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, types.NewGatewayError(types.ErrCodeValidation,
			"missing required field: account", nil))
		return
	}

	slippageBps := 0
	if raw := c.Query("slippage"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 10000 {
			respondError(c, types.Validationf("invalid slippage %q", raw))
			return
		}
		slippageBps = n
	}

	prepared, err := s.quotes.BuildQuote(c.Request.Context(), types.SwapQuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		UserWallet:  body.Account,
		SlippageBps: slippageBps,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	envelope, err := s.assembler.Assemble(c.Request.Context(), prepared, body.Account)
	if err != nil {
		respondError(c, err)
		return
	}

	s.log.Info("action swap built",
		zap.String("inputMint", inputMint),
		zap.String("outputMint", outputMint),
		zap.String("account", body.Account),
	)

	c.JSON(http.StatusOK, gin.H{
		"type":        "transaction",
		"transaction": envelope.Transaction,
		"message":     swapMessage(amount, inputMint, outputMint, prepared.Quote.OutputAmount, prepared.Quote.Route),
	})
}

// swapMessage builds the human-readable confirmation line shown by wallets.
// Symbols are echoed as the caller wrote them.
func swapMessage(amount, input, output, outputAmount, route string) string {
	msg := fmt.Sprintf("Swap %s %s for ~%s %s", amount, input, strings.TrimRight(strings.TrimRight(outputAmount, "0"), "."), output)
	if route != "" {
		msg += " via " + route
	}
	return msg
}
