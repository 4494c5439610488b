package symbols

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tradebridge/models"
)

const (
	suffixPerp = "-PERP"
	suffixSpot = "-SPOT"
	suffixSwap = "-SWAP"
)

// Native converts a unified symbol (BASE-QUOTE-PERP or BASE-QUOTE-SPOT) to
// the exchange's own instrument id. Symbols that are not unified are
// returned unchanged.
func Native(exchange, sym string) string {
	sym = strings.TrimSpace(sym)
	switch strings.ToLower(exchange) {
	case "hyperliquid":
		if strings.HasSuffix(sym, suffixPerp) {
			base, _, _ := strings.Cut(sym, "-")
			return base
		}
	case "okx":
		if strings.HasSuffix(sym, suffixPerp) {
			return strings.TrimSuffix(sym, suffixPerp) + suffixSwap
		}
		if strings.HasSuffix(sym, suffixSpot) {
			return strings.TrimSuffix(sym, suffixSpot)
		}
	}
	return sym
}

// Unified converts an exchange instrument id to BASE-QUOTE-PERP or
// BASE-QUOTE-SPOT.
func Unified(exchange, native string) string {
	switch strings.ToLower(exchange) {
	case "hyperliquid":
		if native == "" || strings.Contains(native, "-") {
			return native
		}
		return native + "-USDC" + suffixPerp
	case "okx":
		if strings.HasSuffix(native, suffixSwap) {
			return strings.TrimSuffix(native, suffixSwap) + suffixPerp
		}
		if strings.Count(native, "-") == 1 {
			return native + suffixSpot
		}
	}
	return native
}

// AssetTable maps Hyperliquid coins to the integer asset index used in
// order actions.
type AssetTable struct {
	mu      sync.RWMutex
	byCoin  map[string]int
	byIndex map[int]string
}

func NewAssetTable(assets map[string]int) *AssetTable {
	t := &AssetTable{byCoin: map[string]int{}, byIndex: map[int]string{}}
	t.Merge(assets)
	return t
}

// FromUniverse builds a table where each coin's index is its position.
func FromUniverse(coins []string) *AssetTable {
	assets := make(map[string]int, len(coins))
	for i, coin := range coins {
		assets[coin] = i
	}
	return NewAssetTable(assets)
}

// Merge adds or overrides entries.
func (t *AssetTable) Merge(assets map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for coin, index := range assets {
		t.byCoin[strings.ToUpper(coin)] = index
		t.byIndex[index] = strings.ToUpper(coin)
	}
}

// Index resolves a coin, unified symbol or numeric asset id to the asset
// index.
func (t *AssetTable) Index(symbol string) (int, error) {
	if n, err := strconv.Atoi(symbol); err == nil && n >= 0 {
		return n, nil
	}
	coin := strings.ToUpper(Native("hyperliquid", symbol))
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index, ok := t.byCoin[coin]; ok {
		return index, nil
	}
	return 0, fmt.Errorf("%w: %s", models.ErrUnknownInstrument, symbol)
}

// Coin returns the coin at index.
func (t *AssetTable) Coin(index int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	coin, ok := t.byIndex[index]
	return coin, ok
}

func (t *AssetTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byCoin)
}
