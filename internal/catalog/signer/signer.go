// Package signer produces the per-request RSA-SHA256 signature the retailer's
// affiliate API requires on every product-search call.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
)

// Signature is the header material for one outbound request.
type Signature struct {
	ConsumerID string
	KeyVersion string
	Timestamp  string
	Value      string
}

// Signer holds the parsed private key and the identifiers that go into the
// canonical string. It is safe for concurrent use.
type Signer struct {
	consumerID string
	keyVersion string
	key        *rsa.PrivateKey
	now        func() time.Time
}

// New parses keyPEM (PKCS#1 or PKCS#8) and returns a Signer. Any parse
// failure is reported as ErrConfig.
func New(consumerID, keyVersion, keyPEM string) (*Signer, error) {
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrConfig, 500, "catalog private key: %v", err)
	}
	return &Signer{
		consumerID: consumerID,
		keyVersion: keyVersion,
		key:        key,
		now:        time.Now,
	}, nil
}

// Sign reads the clock and signs the canonical string for that instant.
func (s *Signer) Sign() (Signature, error) {
	ts := strconv.FormatInt(s.now().UTC().UnixMilli(), 10)
	digest := sha256.Sum256([]byte(CanonicalString(s.consumerID, ts, s.keyVersion)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", apperrors.ErrSign, err)
	}
	return Signature{
		ConsumerID: s.consumerID,
		KeyVersion: s.keyVersion,
		Timestamp:  ts,
		Value:      base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// CanonicalString is the exact byte sequence the retailer verifies. The
// trailing newline is part of it.
func CanonicalString(consumerID, timestamp, keyVersion string) string {
	return consumerID + "\n" + timestamp + "\n" + keyVersion + "\n"
}

func parsePrivateKey(keyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", block.Type, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s is not an RSA key", block.Type)
	}
	return key, nil
}
