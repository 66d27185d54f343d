package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/x402-foundation/swapgate/internal/aggregator"
	"github.com/x402-foundation/swapgate/internal/asset"
	"github.com/x402-foundation/swapgate/internal/config"
	"github.com/x402-foundation/swapgate/internal/metrics"
	"github.com/x402-foundation/swapgate/internal/paygate"
	"github.com/x402-foundation/swapgate/internal/server"
	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/swap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync() //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)

	rpcClient := rpc.New(cfg.RPCURL)
	resolver := asset.NewResolver(rpcClient, log.Named("asset"))

	backend := aggregator.NewJupiterBackend(aggregator.JupiterConfig{
		BaseURL: cfg.AggregatorURL,
	}, log.Named("aggregator"))

	sponsorClient := sponsor.NewClient(sponsor.Config{URL: cfg.SponsorURL}, log.Named("sponsor"))

	tracker := swap.NewEnvelopeTracker()
	quotes := swap.NewQuoteBuilder(resolver, backend, sponsorClient, cfg.DefaultFeeToken, log.Named("swap"))
	assembler := swap.NewAssembler(backend, tracker, log.Named("swap"))

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.MetricsEnabled {
		recorder = metrics.NewPrometheusRecorder(nil)
	}

	var gate *paygate.Gate
	if cfg.HasPricedRoutes() {
		// The sponsor's fee-payer address is advertised in challenges; a
		// startup failure here degrades the hint, not the gate.
		startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		feePayer, err := sponsorClient.GetFeePayer(startupCtx)
		cancel()
		if err != nil {
			log.Warn("could not fetch sponsor fee payer at startup", zap.Error(err))
		}

		verifier := paygate.NewSettlementVerifier(sponsorClient, log.Named("paygate"))
		gate = paygate.NewGate(
			cfg.RouteRequirements(feePayer),
			verifier,
			cfg.Network,
			log.Named("paygate"),
			paygate.WithMetrics(recorder),
		)
	}

	srv := server.New(server.Deps{
		Quotes:          quotes,
		Assembler:       assembler,
		Tracker:         tracker,
		Sponsor:         sponsorClient,
		Gate:            gate,
		Network:         cfg.Network,
		BackendName:     backend.Name(),
		DefaultFeeToken: cfg.DefaultFeeToken,
		ExplorerBaseURL: cfg.ExplorerBaseURL,
		MetricsEnabled:  cfg.MetricsEnabled,
		Log:             log.Named("server"),
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("swapgate listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("network", cfg.Network),
			zap.Bool("paymentGating", gate != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	log.Info("swapgate stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return log
}
