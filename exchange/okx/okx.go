// Package okx speaks the OKX v5 public websocket and REST dialect.
package okx

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"tradebridge/exchange"
	"tradebridge/models"
	"tradebridge/signer"
)

const (
	CredentialKey        = "OKX_API_KEY"
	CredentialSecret     = "OKX_API_SECRET"
	CredentialPassphrase = "OKX_API_PASSPHRASE"

	channelBooks  = "books"
	channelBooks5 = "books5"
	channelTrades = "trades"

	// books5 pushes full top-five snapshots.
	books5Depth = 5

	exchangeName = string(exchange.Okx)
)

var _ exchange.Protocol = (*Protocol)(nil)

// Options configure the dialect.
type Options struct {
	NewClientOrderID func() string
}

// Protocol implements exchange.Protocol for OKX.
type Protocol struct {
	keyed      signer.Keyed
	newClOrdID func() string
}

func New(opts Options) *Protocol {
	p := &Protocol{
		keyed: signer.Keyed{
			KeyCredential:        CredentialKey,
			SecretCredential:     CredentialSecret,
			PassphraseCredential: CredentialPassphrase,
			KeyHeader:            "OK-ACCESS-KEY",
			TimestampHeader:      "OK-ACCESS-TIMESTAMP",
			SignatureHeader:      "OK-ACCESS-SIGN",
			PassphraseHeader:     "OK-ACCESS-PASSPHRASE",
			Timestamp:            signer.ISOMillis,
		},
		newClOrdID: opts.NewClientOrderID,
	}
	if p.newClOrdID == nil {
		p.newClOrdID = NewClientOrderID
	}
	return p
}

func (p *Protocol) Kind() exchange.Kind {
	return exchange.Okx
}

// NewClientOrderID returns 32 alphanumeric characters, the longest clOrdId
// OKX accepts.
func NewClientOrderID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func channelFor(sub models.Subscription, depth int) (string, error) {
	switch sub.Field {
	case models.SubscriptionFieldMarketDepth:
		if depth <= books5Depth {
			return channelBooks5, nil
		}
		return channelBooks, nil
	case models.SubscriptionFieldTrade:
		return channelTrades, nil
	}
	return "", fmt.Errorf("%w: %s on okx public streams", models.ErrUnsupportedOperation, sub.Field)
}
