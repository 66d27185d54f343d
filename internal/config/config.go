// Package config loads process configuration from the environment. The
// configuration is read once at startup and treated as immutable.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/x402-foundation/swapgate/internal/types"
)

var validate = validator.New()

// Config is the process configuration.
type Config struct {
	ListenAddr      string `validate:"required"`
	RPCURL          string `validate:"required,url"`
	AggregatorURL   string `validate:"required,url"`
	SponsorURL      string `validate:"required,url"`
	Network         string `validate:"required"`
	DefaultFeeToken string `validate:"required"`
	ExplorerBaseURL string `validate:"required,url"`
	LogLevel        string
	MetricsEnabled  bool

	// Payment gating. Routes with an empty price are free.
	PayTo             string
	PriceAsset        string
	PriceQuote        string
	PriceBuild        string
	PriceExecute      string
	PaymentTimeoutSec int
}

// Defaults
const (
	DefaultListenAddr      = ":8080"
	DefaultRPCURL          = "https://api.mainnet-beta.solana.com"
	DefaultNetwork         = "solana"
	DefaultFeeToken        = "USDC"
	DefaultExplorerBaseURL = "https://solscan.io/tx"
	DefaultPriceAsset      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" // USDC
	DefaultPaymentTimeout  = 60
)

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("LISTEN_ADDR", DefaultListenAddr),
		RPCURL:            envOr("SOLANA_RPC_URL", DefaultRPCURL),
		AggregatorURL:     envOr("AGGREGATOR_URL", "https://quote-api.jup.ag/v6"),
		SponsorURL:        os.Getenv("SPONSOR_RPC_URL"),
		Network:           envOr("NETWORK", DefaultNetwork),
		DefaultFeeToken:   envOr("DEFAULT_FEE_TOKEN", DefaultFeeToken),
		ExplorerBaseURL:   envOr("EXPLORER_BASE_URL", DefaultExplorerBaseURL),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		MetricsEnabled:    envBool("METRICS_ENABLED", false),
		PayTo:             os.Getenv("PAYMENT_RECIPIENT"),
		PriceAsset:        envOr("PAYMENT_ASSET", DefaultPriceAsset),
		PriceQuote:        os.Getenv("PRICE_GASLESS_QUOTE"),
		PriceBuild:        os.Getenv("PRICE_GASLESS_BUILD"),
		PriceExecute:      os.Getenv("PRICE_GASLESS_EXECUTE"),
		PaymentTimeoutSec: envInt("PAYMENT_TIMEOUT_SECONDS", DefaultPaymentTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.HasPricedRoutes() && c.PayTo == "" {
		return fmt.Errorf("PAYMENT_RECIPIENT is required when any route is priced")
	}
	return nil
}

// HasPricedRoutes reports whether any route carries a price.
func (c *Config) HasPricedRoutes() bool {
	return c.PriceQuote != "" || c.PriceBuild != "" || c.PriceExecute != ""
}

// RouteRequirements builds the immutable pricing table. feePayer is the
// sponsor's fee-payer address, advertised in challenges so clients can
// construct sponsor-compatible payment transactions.
func (c *Config) RouteRequirements(feePayer string) []types.RouteRequirement {
	priced := []struct {
		method, path, price, description string
	}{
		{"POST", "/gasless/quote", c.PriceQuote, "Sponsored swap quote"},
		{"POST", "/gasless/build", c.PriceBuild, "Sponsored swap transaction build"},
		{"POST", "/gasless/execute", c.PriceExecute, "Sponsored swap execution"},
	}

	var requirements []types.RouteRequirement
	for _, p := range priced {
		if p.price == "" {
			continue
		}
		requirements = append(requirements, types.RouteRequirement{
			Method:            p.method,
			Path:              p.path,
			Amount:            p.price,
			Asset:             c.PriceAsset,
			PayTo:             c.PayTo,
			FeePayerHint:      feePayer,
			Description:       p.description,
			MaxTimeoutSeconds: c.PaymentTimeoutSec,
		})
	}
	return requirements
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
