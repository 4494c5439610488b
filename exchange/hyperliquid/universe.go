package hyperliquid

import (
	"fmt"
	"net/http"

	"tradebridge/exchange"
	"tradebridge/internal/symbols"
	"tradebridge/internal/wire"
	"tradebridge/models"
)

// MetadataRequest asks for the perpetual universe. An asset's index is its
// position in the universe list.
func (p *Protocol) MetadataRequest() *exchange.Outbound {
	return &exchange.Outbound{
		Method: http.MethodPost,
		Path:   pathInfo,
		Body:   wire.Object{{Key: "type", Value: "meta"}},
	}
}

// LoadMetadata merges a meta response into the asset table.
func (p *Protocol) LoadMetadata(body []byte) error {
	table, err := ParseUniverse(body)
	if err != nil {
		return err
	}
	assets := make(map[string]int, table.Len())
	for i := 0; i < table.Len(); i++ {
		if coin, ok := table.Coin(i); ok {
			assets[coin] = i
		}
	}
	p.assets.Merge(assets)
	return nil
}

// ParseUniverse builds an asset table from a meta response.
func ParseUniverse(body []byte) (*symbols.AssetTable, error) {
	var m meta
	if err := exchange.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if len(m.Universe) == 0 {
		return nil, fmt.Errorf("%w: empty universe", models.ErrMalformedWireMessage)
	}
	coins := make([]string, len(m.Universe))
	for i, asset := range m.Universe {
		coins[i] = asset.Name
	}
	return symbols.FromUniverse(coins), nil
}
