package signer

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"tradebridge/internal/wire"
	"tradebridge/models"
)

const testKey = "0x0123456789012345678901234567890123456789012345678901234567890123"

func orderAction() wire.Object {
	return wire.Object{
		{Key: "type", Value: "order"},
		{Key: "orders", Value: []wire.Object{{
			{Key: "a", Value: 4},
			{Key: "b", Value: true},
			{Key: "p", Value: "1100"},
			{Key: "s", Value: "0.2"},
			{Key: "r", Value: false},
			{Key: "t", Value: wire.Object{{Key: "limit", Value: wire.Object{{Key: "tif", Value: "Gtc"}}}}},
		}}},
		{Key: "grouping", Value: "na"},
	}
}

func TestSignL1ActionDeterministic(t *testing.T) {
	a, err := SignL1Action(testKey, orderAction(), 1700000000000, true)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, err := SignL1Action(testKey, orderAction(), 1700000000000, true)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if a != b {
		t.Fatalf("signatures differ: %+v vs %+v", a, b)
	}
	if len(a.R) != 66 || len(a.S) != 66 || !strings.HasPrefix(a.R, "0x") {
		t.Fatalf("unexpected r/s encoding %+v", a)
	}
	if a.V != 27 && a.V != 28 {
		t.Fatalf("unexpected v %d", a.V)
	}
}

func TestSignL1ActionNonceAndNetworkChangeSignature(t *testing.T) {
	a, _ := SignL1Action(testKey, orderAction(), 1700000000000, true)
	b, _ := SignL1Action(testKey, orderAction(), 1700000000001, true)
	c, _ := SignL1Action(testKey, orderAction(), 1700000000000, false)
	if a == b {
		t.Fatalf("nonce must change the signature")
	}
	if a == c {
		t.Fatalf("source must change the signature")
	}
}

func TestSignatureRecoversSigner(t *testing.T) {
	nonce := uint64(1700000000000)
	sig, err := SignL1Action(testKey, orderAction(), nonce, true)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	connectionID, _ := ActionHash(orderAction(), nonce)
	digest, _ := AgentDigest(SourceMainnet, connectionID)

	r, _ := hex.DecodeString(strings.TrimPrefix(sig.R, "0x"))
	s, _ := hex.DecodeString(strings.TrimPrefix(sig.S, "0x"))
	raw := append(append(r, s...), byte(sig.V-27))
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	key, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if got := crypto.PubkeyToAddress(*pub).Hex(); got != want {
		t.Fatalf("recovered %s, want %s", got, want)
	}
}

func TestActionHashLayout(t *testing.T) {
	action := wire.Object{{Key: "type", Value: "dummy"}}
	got, err := ActionHash(action, 1)
	if err != nil {
		t.Fatalf("ActionHash: %v", err)
	}
	preimage := []byte{0x81, 0xa4, 't', 'y', 'p', 'e', 0xa5, 'd', 'u', 'm', 'm', 'y',
		0, 0, 0, 0, 0, 0, 0, 1, 0}
	if want := crypto.Keccak256(preimage); hex.EncodeToString(got) != hex.EncodeToString(want) {
		t.Fatalf("hash mismatch")
	}
}

func TestTypeStrings(t *testing.T) {
	if got := domainType.encodeType(); got != "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)" {
		t.Fatalf("domain type %s", got)
	}
	if got := agentType.encodeType(); got != "Agent(string source,bytes32 connectionId)" {
		t.Fatalf("agent type %s", got)
	}
}

func TestSignL1ActionKeyErrors(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"", models.ErrMissingCredential},
		{"0x1234", models.ErrInvalidCredentialFormat},
		{"not-hex", models.ErrInvalidCredentialFormat},
		{"0x" + strings.Repeat("00", 32), models.ErrInvalidCredentialFormat},
	}
	for _, tt := range tests {
		if _, err := SignL1Action(tt.key, orderAction(), 1, true); !errors.Is(err, tt.want) {
			t.Errorf("key %q: err = %v, want %v", tt.key, err, tt.want)
		}
	}
}

func TestNonceSourceStrictlyIncreases(t *testing.T) {
	fixed := time.UnixMilli(1000)
	n := &NonceSource{now: func() time.Time { return fixed }}
	if a, b := n.Next(), n.Next(); a != 1000 || b != 1001 {
		t.Fatalf("got %d, %d", a, b)
	}
	fixed = time.UnixMilli(5000)
	if c := n.Next(); c != 5000 {
		t.Fatalf("clock advance ignored: %d", c)
	}
}

func TestCredentialsRequireAndRedact(t *testing.T) {
	creds := Credentials{"OKX_API_KEY": "k", "OKX_API_SECRET": "super-secret"}
	err := creds.Require("OKX_API_KEY", "OKX_API_PASSPHRASE")
	if !errors.Is(err, models.ErrMissingCredential) || !strings.Contains(err.Error(), "OKX_API_PASSPHRASE") {
		t.Fatalf("unexpected error %v", err)
	}
	if strings.Contains(creds.String(), "super-secret") {
		t.Fatalf("secret leaked: %s", creds.String())
	}
}

func TestKeyedHeaders(t *testing.T) {
	k := Keyed{
		KeyCredential:        "OKX_API_KEY",
		SecretCredential:     "OKX_API_SECRET",
		PassphraseCredential: "OKX_API_PASSPHRASE",
		KeyHeader:            "OK-ACCESS-KEY",
		TimestampHeader:      "OK-ACCESS-TIMESTAMP",
		SignatureHeader:      "OK-ACCESS-SIGN",
		PassphraseHeader:     "OK-ACCESS-PASSPHRASE",
		Timestamp:            ISOMillis,
	}
	creds := Credentials{"OKX_API_KEY": "key", "OKX_API_SECRET": "secret", "OKX_API_PASSPHRASE": "pass"}
	body := []byte(`{"instId":"BTC-USDT"}`)
	headers, err := k.Headers(creds, 1700000000123, "POST", "/api/v5/trade/order", body)
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if headers["OK-ACCESS-TIMESTAMP"] != "2023-11-14T22:13:20.123Z" {
		t.Fatalf("timestamp %s", headers["OK-ACCESS-TIMESTAMP"])
	}
	want, _ := HmacSHA256("secret", "2023-11-14T22:13:20.123Z"+"POST"+"/api/v5/trade/order"+string(body))
	if headers["OK-ACCESS-SIGN"] != want || headers["OK-ACCESS-KEY"] != "key" || headers["OK-ACCESS-PASSPHRASE"] != "pass" {
		t.Fatalf("unexpected headers %v", headers)
	}

	delete(creds, "OKX_API_SECRET")
	if _, err := k.Headers(creds, 1, "GET", "/", nil); !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestKeyedAttachBody(t *testing.T) {
	k := Keyed{KeyCredential: "ACCOUNT", KeyField: "account"}
	body := wire.Object{{Key: "type", Value: "order"}}
	if err := k.AttachBody(&body, Credentials{"ACCOUNT": "acct-1"}); err != nil {
		t.Fatalf("AttachBody: %v", err)
	}
	got, _ := body.MarshalJSON()
	if string(got) != `{"type":"order","account":"acct-1"}` {
		t.Fatalf("body %s", got)
	}
	if err := k.AttachBody(&body, nil); !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if err := (Keyed{}).AttachBody(&body, nil); err != nil {
		t.Fatalf("header-only keyed signer must leave the body alone: %v", err)
	}
}
