// Package server assembles the HTTP surface: the Actions endpoints, the
// sponsored-swap endpoints, and the payment gate in front of priced routes.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/paygate"
	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/swap"
	"github.com/x402-foundation/swapgate/internal/types"
)

// Version is the service version reported by the descriptor endpoint.
const Version = "0.3.0"

// sponsorAPI is the slice of the fee-sponsor interface the handlers need.
type sponsorAPI interface {
	GetFeePayer(ctx context.Context) (string, error)
	GetSupportedTokens(ctx context.Context) ([]sponsor.SupportedToken, error)
	SignAndSubmit(ctx context.Context, signedTransaction string) (string, error)
}

// Server holds the wired gateway components.
type Server struct {
	quotes          *swap.QuoteBuilder
	assembler       *swap.Assembler
	tracker         *swap.EnvelopeTracker
	sponsor         sponsorAPI
	gate            *paygate.Gate
	network         string
	backendName     string
	defaultFeeToken string
	explorerBaseURL string
	metricsEnabled  bool
	log             *zap.Logger
}

// Deps are the constructor inputs for New.
type Deps struct {
	Quotes          *swap.QuoteBuilder
	Assembler       *swap.Assembler
	Tracker         *swap.EnvelopeTracker
	Sponsor         sponsorAPI
	Gate            *paygate.Gate // nil disables payment gating
	Network         string
	BackendName     string
	DefaultFeeToken string
	ExplorerBaseURL string
	MetricsEnabled  bool
	Log             *zap.Logger
}

// New creates a server from its dependencies.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		quotes:          deps.Quotes,
		assembler:       deps.Assembler,
		tracker:         deps.Tracker,
		sponsor:         deps.Sponsor,
		gate:            deps.Gate,
		network:         deps.Network,
		backendName:     deps.BackendName,
		defaultFeeToken: deps.DefaultFeeToken,
		explorerBaseURL: deps.ExplorerBaseURL,
		metricsEnabled:  deps.MetricsEnabled,
		log:             log,
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(s.cors())
	if s.gate != nil {
		router.Use(s.gate.Middleware())
	}

	router.GET("/", s.handleDescriptor)
	router.GET("/healthz", s.handleHealth)
	router.GET("/actions.json", s.handleActionsManifest)
	router.GET("/actions/swap", s.handleActionMetadata)
	router.POST("/actions/swap", s.handleActionSwap)

	gasless := router.Group("/gasless")
	{
		gasless.GET("/status", s.handleGaslessStatus)
		gasless.POST("/quote", s.handleGaslessQuote)
		gasless.POST("/build", s.handleGaslessBuild)
		gasless.POST("/execute", s.handleGaslessExecute)
	}

	if s.metricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}

// requestID tags every request with a correlation id for logs and clients.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-Id", id)
		c.Set("requestID", id)
		c.Next()
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers",
			"Content-Type, "+types.HeaderPayment+", "+types.HeaderPaymentAlias)
		c.Header("Access-Control-Expose-Headers",
			types.HeaderPaymentRequired+", "+types.HeaderPaymentRequiredAlias+", "+types.HeaderPaymentResponse)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleDescriptor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "swapgate",
		"version":     Version,
		"network":     s.network,
		"swapBackend": s.backendName,
		"endpoints": []string{
			"/actions.json",
			"/actions/swap",
			"/gasless/status",
			"/gasless/quote",
			"/gasless/build",
			"/gasless/execute",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
