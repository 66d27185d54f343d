package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-foundation/swapgate/internal/types"
)

func TestResolveSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SOL", "So11111111111111111111111111111111111111112"},
		{"usdc", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
		{" Bonk ", "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"},
		// Unknown strings pass through untouched.
		{"So11111111111111111111111111111111111111112", "So11111111111111111111111111111111111111112"},
		{"NOTATOKEN", "NOTATOKEN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveSymbol(tt.in), "input %q", tt.in)
	}
}

func TestKnownSymbols(t *testing.T) {
	symbols := KnownSymbols()
	assert.Contains(t, symbols, "SOL")
	assert.Contains(t, symbols, "USDC")
	assert.Len(t, symbols, len(registry))
}

type fakeFetcher struct {
	result *rpc.GetAccountInfoResult
	err    error
	calls  int
}

func (f *fakeFetcher) GetAccountInfo(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.calls++
	return f.result, f.err
}

func mintAccount(t *testing.T, owner solana.PublicKey, decimals uint8) *rpc.GetAccountInfoResult {
	t.Helper()

	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(token.Mint{
		Decimals:      decimals,
		IsInitialized: true,
	}))

	// The RPC client only exposes account data through its wire decoding, so
	// round-trip through the JSON shape the ledger returns.
	wire, err := json.Marshal([]string{base64.StdEncoding.EncodeToString(buf.Bytes()), "base64"})
	require.NoError(t, err)
	var data rpc.DataBytesOrJSON
	require.NoError(t, json.Unmarshal(wire, &data))

	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{Owner: owner, Data: &data},
	}
}

func TestDecimals_RegistrySeeded(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("should not be called")}
	resolver := NewResolver(fetcher, nil)

	d, err := resolver.Decimals(context.Background(), "So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), d)
	assert.Zero(t, fetcher.calls)
}

func TestDecimals_FetchesAndCaches(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	fetcher := &fakeFetcher{result: mintAccount(t, solana.TokenProgramID, 4)}
	resolver := NewResolver(fetcher, nil)

	for i := 0; i < 3; i++ {
		d, err := resolver.Decimals(context.Background(), mint)
		require.NoError(t, err)
		assert.Equal(t, uint8(4), d)
	}
	assert.Equal(t, 1, fetcher.calls)
}

// slowFetcher holds every call open long enough for lookups to overlap.
type slowFetcher struct {
	mu     sync.Mutex
	count  int
	result *rpc.GetAccountInfoResult
	delay  time.Duration
}

func (f *slowFetcher) GetAccountInfo(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	time.Sleep(f.delay)
	return f.result, nil
}

func (f *slowFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func TestDecimals_ConcurrentFirstFill(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	fetcher := &slowFetcher{
		result: mintAccount(t, solana.TokenProgramID, 4),
		delay:  10 * time.Millisecond,
	}
	resolver := NewResolver(fetcher, nil)

	const workers = 8
	results := make([]uint8, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = resolver.Decimals(context.Background(), mint)
		}(i)
	}
	wg.Wait()

	// Every overlapping first lookup of the same mint succeeds and reports
	// the same precision, no matter which caller filled the cache.
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, uint8(4), results[i], "caller %d", i)
	}

	// Once filled, the cache answers without another ledger call.
	before := fetcher.calls()
	d, err := resolver.Decimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), d)
	assert.Equal(t, before, fetcher.calls())
}

func TestDecimals_Token2022Owner(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	fetcher := &fakeFetcher{result: mintAccount(t, solana.Token2022ProgramID, 2)}
	resolver := NewResolver(fetcher, nil)

	d, err := resolver.Decimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), d)
}

func TestDecimals_Failures(t *testing.T) {
	t.Run("invalid mint address", func(t *testing.T) {
		resolver := NewResolver(&fakeFetcher{}, nil)
		_, err := resolver.Decimals(context.Background(), "!!not-base58!!")
		assertCode(t, err, types.ErrCodeUnknownAsset)
	})

	t.Run("missing account", func(t *testing.T) {
		resolver := NewResolver(&fakeFetcher{result: &rpc.GetAccountInfoResult{}}, nil)
		_, err := resolver.Decimals(context.Background(), solana.NewWallet().PublicKey().String())
		assertCode(t, err, types.ErrCodeUnknownAsset)
	})

	t.Run("wrong owner", func(t *testing.T) {
		account := mintAccount(t, solana.SystemProgramID, 6)
		resolver := NewResolver(&fakeFetcher{result: account}, nil)
		_, err := resolver.Decimals(context.Background(), solana.NewWallet().PublicKey().String())
		assertCode(t, err, types.ErrCodeUnknownAsset)
	})

	t.Run("ledger unavailable", func(t *testing.T) {
		resolver := NewResolver(&fakeFetcher{err: errors.New("rpc timeout")}, nil)
		_, err := resolver.Decimals(context.Background(), solana.NewWallet().PublicKey().String())
		assertCode(t, err, types.ErrCodeUpstreamUnavailable)
	})
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var gwErr *types.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, code, gwErr.Code)
}
