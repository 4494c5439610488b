package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"tradebridge/internal/wire"
	"tradebridge/models"
)

// Keyed attaches an account identifier and a nonce to a request and, when a
// secret credential is configured, an HMAC-SHA256 signature over
// timestamp + method + path + body. The nonce travels in the timestamp header.
type Keyed struct {
	KeyCredential        string
	SecretCredential     string
	PassphraseCredential string

	KeyHeader        string
	TimestampHeader  string
	SignatureHeader  string
	PassphraseHeader string

	// KeyField places the account id inside the payload instead of a header.
	KeyField string

	// Timestamp renders the nonce for the timestamp header and prehash.
	// Defaults to the decimal millisecond value.
	Timestamp func(nonce int64) string
}

// ISOMillis renders a millisecond nonce as an RFC3339 UTC timestamp with
// millisecond precision.
func ISOMillis(nonce int64) string {
	return time.UnixMilli(nonce).UTC().Format("2006-01-02T15:04:05.000Z")
}

func (k Keyed) timestamp(nonce int64) string {
	if k.Timestamp != nil {
		return k.Timestamp(nonce)
	}
	return strconv.FormatInt(nonce, 10)
}

// AttachBody places the account id into body when KeyField is set.
func (k Keyed) AttachBody(body *wire.Object, creds Credentials) error {
	if k.KeyField == "" {
		return nil
	}
	if err := creds.Require(k.KeyCredential); err != nil {
		return err
	}
	body.Set(k.KeyField, creds.Get(k.KeyCredential))
	return nil
}

// Headers returns the authentication headers for a serialized request.
func (k Keyed) Headers(creds Credentials, nonce int64, method, path string, body []byte) (map[string]string, error) {
	required := []string{k.KeyCredential}
	if k.SecretCredential != "" {
		required = append(required, k.SecretCredential)
	}
	if k.PassphraseCredential != "" {
		required = append(required, k.PassphraseCredential)
	}
	if err := creds.Require(required...); err != nil {
		return nil, err
	}

	ts := k.timestamp(nonce)
	headers := map[string]string{}
	if k.KeyHeader != "" {
		headers[k.KeyHeader] = creds.Get(k.KeyCredential)
	}
	if k.TimestampHeader != "" {
		headers[k.TimestampHeader] = ts
	}
	if k.PassphraseHeader != "" && k.PassphraseCredential != "" {
		headers[k.PassphraseHeader] = creds.Get(k.PassphraseCredential)
	}
	if k.SignatureHeader != "" && k.SecretCredential != "" {
		sig, err := HmacSHA256(creds.Get(k.SecretCredential), ts+method+path+string(body))
		if err != nil {
			return nil, err
		}
		headers[k.SignatureHeader] = sig
	}
	return headers, nil
}

// HmacSHA256 returns the base64 HMAC-SHA256 of payload.
func HmacSHA256(secret, payload string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", models.ErrMissingCredential)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
