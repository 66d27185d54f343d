package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/swapgate/internal/aggregator"
	"github.com/x402-foundation/swapgate/internal/asset"
	"github.com/x402-foundation/swapgate/internal/sponsor"
	"github.com/x402-foundation/swapgate/internal/types"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type failFetcher struct{}

func (failFetcher) GetAccountInfo(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return nil, errors.New("ledger not available in tests")
}

type mockBackend struct {
	lastParams aggregator.QuoteParams
	quote      *aggregator.RouteQuote
	quoteErr   error
	tx         string
	buildErr   error
	buildCalls int
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Quote(_ context.Context, params aggregator.QuoteParams) (*aggregator.RouteQuote, error) {
	m.lastParams = params
	return m.quote, m.quoteErr
}

func (m *mockBackend) BuildSwapTransaction(_ context.Context, _ *aggregator.RouteQuote, _, _ string) (string, error) {
	m.buildCalls++
	return m.tx, m.buildErr
}

type mockSponsor struct {
	feePayer     string
	estimate     *sponsor.FeeEstimate
	err          error
	lastFeeToken string
}

func (m *mockSponsor) GetFeePayer(context.Context) (string, error) {
	return m.feePayer, m.err
}

func (m *mockSponsor) EstimateFee(_ context.Context, _, feeToken string) (*sponsor.FeeEstimate, error) {
	m.lastFeeToken = feeToken
	return m.estimate, m.err
}

func defaultRouteQuote() *aggregator.RouteQuote {
	return &aggregator.RouteQuote{
		InputMint:      solMint,
		InAmount:       "1000000000",
		OutputMint:     usdcMint,
		OutAmount:      "150000000",
		PriceImpactPct: "0.01",
		Venues:         []string{"Orca", "Orca", "Raydium"},
		Raw:            json.RawMessage(`{"outAmount":"150000000"}`),
	}
}

func newTestBuilder(backend *mockBackend, sp *mockSponsor) *QuoteBuilder {
	resolver := asset.NewResolver(failFetcher{}, nil)
	return NewQuoteBuilder(resolver, backend, sp, "USDC", nil)
}

func TestBuildQuote_ConvertsAmounts(t *testing.T) {
	backend := &mockBackend{quote: defaultRouteQuote()}
	sp := &mockSponsor{
		feePayer: "FeePayer1111111111111111111111111111111111",
		estimate: &sponsor.FeeEstimate{FeeLamports: 5000, FeeInToken: "0.002"},
	}
	builder := newTestBuilder(backend, sp)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	builder.now = func() time.Time { return now }

	prepared, err := builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "usdc",
		Amount:     "1",
		UserWallet: "Wallet11111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000_000_000), backend.lastParams.Amount)
	assert.Equal(t, DefaultSlippageBps, backend.lastParams.SlippageBps)
	assert.Equal(t, solMint, backend.lastParams.InputMint)
	assert.Equal(t, usdcMint, backend.lastParams.OutputMint)

	quote := prepared.Quote
	assert.Equal(t, "1.000000000", quote.InputAmount)
	assert.Equal(t, "150.000000", quote.OutputAmount)
	assert.Equal(t, "Orca → Raydium", quote.Route)
	assert.Equal(t, "FeePayer1111111111111111111111111111111111", quote.FeePayer)
	assert.Equal(t, uint64(5000), quote.GasFee.AmountLamports)
	assert.Equal(t, now.Add(types.QuoteTTL), quote.ExpiresAt)
}

func TestBuildQuote_DefaultFeeToken(t *testing.T) {
	backend := &mockBackend{quote: defaultRouteQuote()}
	sp := &mockSponsor{
		feePayer: "FeePayer1111111111111111111111111111111111",
		estimate: &sponsor.FeeEstimate{FeeLamports: 5000, FeeInToken: "0.002"},
	}
	builder := newTestBuilder(backend, sp)

	prepared, err := builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "USDC",
		Amount:     "0.1",
		UserWallet: "Wallet11111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	// No feeToken requested: the process-configured default applies.
	assert.Equal(t, usdcMint, prepared.Quote.GasFee.Token)
	assert.Equal(t, usdcMint, sp.lastFeeToken)
}

func TestBuildQuote_ExplicitFeeToken(t *testing.T) {
	backend := &mockBackend{quote: defaultRouteQuote()}
	sp := &mockSponsor{
		feePayer: "FeePayer1111111111111111111111111111111111",
		estimate: &sponsor.FeeEstimate{FeeLamports: 5000, FeeInToken: "12.5"},
	}
	builder := newTestBuilder(backend, sp)

	prepared, err := builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "USDC",
		Amount:     "0.1",
		UserWallet: "Wallet11111111111111111111111111111111111111",
		FeeToken:   "bonk",
	})
	require.NoError(t, err)
	assert.Equal(t, "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", prepared.Quote.GasFee.Token)
}

func TestBuildQuote_Rejections(t *testing.T) {
	backend := &mockBackend{quote: defaultRouteQuote()}
	sp := &mockSponsor{
		feePayer: "FeePayer1111111111111111111111111111111111",
		estimate: &sponsor.FeeEstimate{FeeLamports: 5000},
	}
	builder := newTestBuilder(backend, sp)

	// Same asset on both sides.
	_, err := builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "sol",
		Amount:     "1",
		UserWallet: "Wallet11111111111111111111111111111111111111",
	})
	requireCode(t, err, types.ErrCodeValidation)

	// Unparsable amount.
	_, err = builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "USDC",
		Amount:     "one",
		UserWallet: "Wallet11111111111111111111111111111111111111",
	})
	requireCode(t, err, types.ErrCodeValidation)

	// Missing required fields.
	_, err = builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint: "SOL",
	})
	requireCode(t, err, types.ErrCodeValidation)
}

func TestBuildQuote_AggregatorFailure(t *testing.T) {
	backend := &mockBackend{quoteErr: types.Upstreamf("aggregator down")}
	sp := &mockSponsor{feePayer: "x", estimate: &sponsor.FeeEstimate{}}
	builder := newTestBuilder(backend, sp)

	_, err := builder.BuildQuote(context.Background(), types.SwapQuoteRequest{
		InputMint:  "SOL",
		OutputMint: "USDC",
		Amount:     "1",
		UserWallet: "Wallet11111111111111111111111111111111111111",
	})
	requireCode(t, err, types.ErrCodeUpstreamUnavailable)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var gwErr *types.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, code, gwErr.Code)
}

// testTxBase64 builds a minimal valid transaction for envelope tests.
func testTxBase64(t *testing.T) string {
	t.Helper()
	payer := solana.NewWallet()
	dest := solana.NewWallet()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, payer.PublicKey(), dest.PublicKey()).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

// signedVariant re-encodes a transaction with a signature attached, leaving
// the message untouched.
func signedVariant(t *testing.T, txBase64 string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)

	tx.Signatures = []solana.Signature{{1, 2, 3}}
	out, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(out)
}

func TestAssemble_RecordsEnvelope(t *testing.T) {
	txBase64 := testTxBase64(t)
	backend := &mockBackend{quote: defaultRouteQuote(), tx: txBase64}
	tracker := NewEnvelopeTracker()
	assembler := NewAssembler(backend, tracker, nil)

	expiresAt := time.Now().Add(types.QuoteTTL)
	prepared := &Prepared{
		Quote: types.SwapQuote{FeePayer: "fp", ExpiresAt: expiresAt},
		Route: defaultRouteQuote(),
	}

	envelope, err := assembler.Assemble(context.Background(), prepared, "Wallet11111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, txBase64, envelope.Transaction)
	assert.Equal(t, expiresAt, envelope.Quote.ExpiresAt)

	// The signed variant of the envelope maps to the same record.
	got, found, err := tracker.Lookup(signedVariant(t, txBase64))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(expiresAt))
}

func TestAssemble_StaleQuote(t *testing.T) {
	backend := &mockBackend{quote: defaultRouteQuote(), tx: testTxBase64(t)}
	assembler := NewAssembler(backend, NewEnvelopeTracker(), nil)

	prepared := &Prepared{
		Quote: types.SwapQuote{ExpiresAt: time.Now().Add(-time.Second)},
		Route: defaultRouteQuote(),
	}

	_, err := assembler.Assemble(context.Background(), prepared, "Wallet11111111111111111111111111111111111111")
	requireCode(t, err, types.ErrCodeStaleQuote)
	assert.Zero(t, backend.buildCalls)
}

func TestTracker_UnknownEnvelope(t *testing.T) {
	tracker := NewEnvelopeTracker()
	_, found, err := tracker.Lookup(testTxBase64(t))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMessageDigest_InvalidInputs(t *testing.T) {
	_, err := MessageDigest("not base64!!")
	requireCode(t, err, types.ErrCodeValidation)

	garbage := base64.StdEncoding.EncodeToString([]byte{0xff, 0x01})
	_, err = MessageDigest(garbage)
	requireCode(t, err, types.ErrCodeValidation)
}
