package asset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/x402-foundation/swapgate/internal/types"
)

// tokenInfo describes a well-known SPL token.
type tokenInfo struct {
	Mint     string
	Decimals uint8
}

// registry maps upper-cased symbols to mainnet mints. Callers may also pass
// raw mint addresses, which bypass the table entirely.
var registry = map[string]tokenInfo{
	"SOL":  {Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
	"USDC": {Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	"USDT": {Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
	"JUP":  {Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
	"BONK": {Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	"RAY":  {Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6},
	"MSOL": {Mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Decimals: 9},
}

// ResolveSymbol resolves a token symbol to its canonical mint address.
// Lookup is case-insensitive; anything not in the registry is returned
// unchanged on the assumption it is already a mint address.
func ResolveSymbol(s string) string {
	if info, ok := registry[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return info.Mint
	}
	return s
}

// KnownSymbols returns the symbols in the static registry, for status
// endpoints.
func KnownSymbols() []string {
	symbols := make([]string, 0, len(registry))
	for s := range registry {
		symbols = append(symbols, s)
	}
	return symbols
}

// MintFetcher fetches raw mint account data from the ledger.
type MintFetcher interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Resolver resolves symbols and mint precision. The decimals cache is
// explicitly constructed and injected at startup; concurrent first-time
// lookups of the same mint are safe because the stored value is a pure
// function of the mint.
type Resolver struct {
	ledger MintFetcher
	log    *zap.Logger

	mu       sync.RWMutex
	decimals map[string]uint8
}

// NewResolver creates a resolver backed by the given ledger client. The
// cache is pre-seeded with the static registry so well-known tokens never
// hit the ledger.
func NewResolver(ledger MintFetcher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	decimals := make(map[string]uint8, len(registry))
	for _, info := range registry {
		decimals[info.Mint] = info.Decimals
	}
	return &Resolver{
		ledger:   ledger,
		log:      log,
		decimals: decimals,
	}
}

// Resolve resolves a symbol or mint address to its canonical mint.
func (r *Resolver) Resolve(symbolOrMint string) string {
	return ResolveSymbol(symbolOrMint)
}

// Decimals returns the fractional-unit precision of a mint, fetching and
// caching it on first use.
func (r *Resolver) Decimals(ctx context.Context, mint string) (uint8, error) {
	r.mu.RLock()
	d, ok := r.decimals[mint]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := r.fetchDecimals(ctx, mint)
	if err != nil {
		return 0, err
	}

	// Last writer wins; the value is identical regardless of which
	// concurrent caller filled it first.
	r.mu.Lock()
	r.decimals[mint] = d
	r.mu.Unlock()

	r.log.Debug("cached mint decimals", zap.String("mint", mint), zap.Uint8("decimals", d))
	return d, nil
}

func (r *Resolver) fetchDecimals(ctx context.Context, mint string) (uint8, error) {
	pubkey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, types.NewGatewayError(types.ErrCodeUnknownAsset,
			fmt.Sprintf("invalid mint address %q", mint), nil)
	}

	account, err := r.ledger.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return 0, types.Upstreamf("failed to fetch mint account %s: %v", mint, err)
	}
	if account == nil || account.Value == nil {
		return 0, types.NewGatewayError(types.ErrCodeUnknownAsset,
			fmt.Sprintf("mint account %s does not exist", mint), nil)
	}

	owner := account.Value.Owner
	if owner != solana.TokenProgramID && owner != solana.Token2022ProgramID {
		return 0, types.NewGatewayError(types.ErrCodeUnknownAsset,
			fmt.Sprintf("account %s was not created by a known token program", mint), nil)
	}

	var mintData token.Mint
	if err := bin.NewBinDecoder(account.Value.Data.GetBinary()).Decode(&mintData); err != nil {
		return 0, types.Upstreamf("failed to decode mint data for %s: %v", mint, err)
	}

	return mintData.Decimals, nil
}
