// Package hyperliquid speaks the Hyperliquid websocket and REST dialect.
package hyperliquid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tradebridge/exchange"
	"tradebridge/internal/symbols"
	"tradebridge/models"
	"tradebridge/signer"
)

const (
	CredentialWalletAddress = "HYPERLIQUID_API_WALLET_ADDRESS"
	CredentialPrivateKey    = "HYPERLIQUID_API_PRIVATE_KEY"

	channelBook         = "l2Book"
	channelTrades       = "trades"
	channelOrderUpdates = "orderUpdates"
	channelUserFills    = "userFills"
	channelPost         = "post"
	channelPong         = "pong"
	channelError        = "error"
	channelAck          = "subscriptionResponse"

	pathExchange = "/exchange"
	pathInfo     = "/info"

	exchangeName = string(exchange.Hyperliquid)
)

var _ exchange.Protocol = (*Protocol)(nil)

// Options configure the dialect.
type Options struct {
	Testnet bool
	Assets  *symbols.AssetTable
	// NewClientOrderID generates a cloid when the caller did not set one.
	NewClientOrderID func() string
}

// Protocol implements exchange.Protocol for Hyperliquid.
type Protocol struct {
	testnet  bool
	assets   *symbols.AssetTable
	newCloid func() string
	// info queries carry the wallet in the body and are otherwise unsigned
	keyed signer.Keyed
}

func New(opts Options) *Protocol {
	p := &Protocol{
		testnet:  opts.Testnet,
		assets:   opts.Assets,
		newCloid: opts.NewClientOrderID,
		keyed:    signer.Keyed{KeyCredential: CredentialWalletAddress, KeyField: "user"},
	}
	if p.assets == nil {
		p.assets = symbols.NewAssetTable(nil)
	}
	if p.newCloid == nil {
		p.newCloid = NewClientOrderID
	}
	return p
}

func (p *Protocol) Kind() exchange.Kind {
	return exchange.Hyperliquid
}

// Assets exposes the coin to asset index table used for orders.
func (p *Protocol) Assets() *symbols.AssetTable {
	return p.assets
}

// NewClientOrderID returns a random 128-bit cloid in 0x-prefixed hex.
func NewClientOrderID() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}

func channelFor(field string) (string, error) {
	switch field {
	case models.SubscriptionFieldMarketDepth:
		return channelBook, nil
	case models.SubscriptionFieldTrade:
		return channelTrades, nil
	case models.SubscriptionFieldOrderUpdate:
		return channelOrderUpdates, nil
	case models.SubscriptionFieldPrivateTrade:
		return channelUserFills, nil
	}
	return "", fmt.Errorf("%w: field %s", models.ErrUnsupportedOperation, field)
}

func canonicalSide(side string) string {
	switch strings.ToUpper(side) {
	case "B":
		return models.SideBuy
	case "A":
		return models.SideSell
	}
	return side
}
