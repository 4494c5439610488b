package signer

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tradebridge/internal/wire"
	"tradebridge/models"
)

const (
	agentDomainName    = "Exchange"
	agentDomainVersion = "1"
	agentChainID       = 1337

	SourceMainnet = "a"
	SourceTestnet = "b"
)

// Signature is the (r, s, v) triple attached to signed actions.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Object renders the signature in r, s, v order.
func (s Signature) Object() wire.Object {
	return wire.Object{{Key: "r", Value: s.R}, {Key: "s", Value: s.S}, {Key: "v", Value: s.V}}
}

type typedField struct {
	name string
	typ  string
}

type typedStruct struct {
	name   string
	fields []typedField
}

var (
	domainType = typedStruct{name: "EIP712Domain", fields: []typedField{
		{name: "name", typ: "string"},
		{name: "version", typ: "string"},
		{name: "chainId", typ: "uint256"},
		{name: "verifyingContract", typ: "address"},
	}}
	agentType = typedStruct{name: "Agent", fields: []typedField{
		{name: "source", typ: "string"},
		{name: "connectionId", typ: "bytes32"},
	}}
)

func (t typedStruct) encodeType() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.typ + " " + f.name
	}
	return t.name + "(" + strings.Join(parts, ",") + ")"
}

func (t typedStruct) hash(values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(crypto.Keccak256([]byte(t.encodeType())))
	for _, f := range t.fields {
		enc, err := encodeValue(f.typ, values[f.name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.name, f.name, err)
		}
		buf.Write(enc)
	}
	return crypto.Keccak256(buf.Bytes()), nil
}

func encodeValue(typ string, v any) ([]byte, error) {
	switch typ {
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return crypto.Keccak256([]byte(s)), nil
	case "uint256":
		n, ok := v.(*big.Int)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("expected unsigned *big.Int, got %T", v)
		}
		return common.LeftPadBytes(n.Bytes(), 32), nil
	case "address":
		a, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("expected address, got %T", v)
		}
		return common.LeftPadBytes(a.Bytes(), 32), nil
	case "bytes32":
		b, ok := v.([]byte)
		if !ok || len(b) != 32 {
			return nil, fmt.Errorf("expected 32 bytes, got %T", v)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported type %s", typ)
}

// ActionHash is keccak256(msgpack(action) || nonce as 8 bytes big endian || 0x00).
func ActionHash(action wire.Object, nonce uint64) ([]byte, error) {
	packed, err := wire.Msgpack(action)
	if err != nil {
		return nil, err
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	packed = append(packed, n[:]...)
	packed = append(packed, 0x00)
	return crypto.Keccak256(packed), nil
}

// AgentDigest returns the typed-data digest signed for an Agent message.
func AgentDigest(source string, connectionID []byte) ([]byte, error) {
	domainSeparator, err := domainType.hash(map[string]any{
		"name":              agentDomainName,
		"version":           agentDomainVersion,
		"chainId":           big.NewInt(agentChainID),
		"verifyingContract": common.Address{},
	})
	if err != nil {
		return nil, err
	}
	structHash, err := agentType.hash(map[string]any{
		"source":       source,
		"connectionId": connectionID,
	})
	if err != nil {
		return nil, err
	}
	preimage := make([]byte, 0, 2+32+32)
	preimage = append(preimage, 0x19, 0x01)
	preimage = append(preimage, domainSeparator...)
	preimage = append(preimage, structHash...)
	return crypto.Keccak256(preimage), nil
}

// ParsePrivateKey decodes a hex secp256k1 key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("%w: private key", models.ErrMissingCredential)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex", models.ErrInvalidCredentialFormat)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", models.ErrInvalidCredentialFormat, len(raw))
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredentialFormat, err)
	}
	return key, nil
}

// SignL1Action signs an action with the struct-hash scheme. The same key,
// action and nonce always produce the same signature.
func SignL1Action(hexKey string, action wire.Object, nonce uint64, mainnet bool) (Signature, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return Signature{}, err
	}
	connectionID, err := ActionHash(action, nonce)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", models.ErrSigningFailed, err)
	}
	source := SourceMainnet
	if !mainnet {
		source = SourceTestnet
	}
	digest, err := AgentDigest(source, connectionID)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", models.ErrSigningFailed, err)
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", models.ErrSigningFailed, err)
	}
	return Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}
