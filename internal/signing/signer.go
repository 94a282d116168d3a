// Package signing produces the integrity tags attached to audit events.
//
// A tag is HMAC-SHA-256 over the RFC 8785 canonical JSON form of a payload,
// encoded as URL-safe base64. It proves the payload was not altered by anyone
// who does not hold the shared key. It is not a digital signature: there are
// no asymmetric keys, no key rotation and no replay protection.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
)

// DefaultKey is the demo key used when no key is configured.
const DefaultKey = "demo_secret_key"

// ErrEmptyKey is returned by NewSigner for an empty key.
var ErrEmptyKey = errors.New("signing: key must not be empty")

// Signer computes and checks integrity tags under one shared key.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed with key.
func NewSigner(key string) (*Signer, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &Signer{key: []byte(key)}, nil
}

// Canonicalize returns the canonical byte encoding of payload: JSON with
// object keys sorted recursively, no insignificant whitespace and RFC 8785
// number formatting.
func Canonicalize(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("signing: encode payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("signing: canonicalize payload: %w", err)
	}
	return canonical, nil
}

// Sign returns the tag for payload. Two payloads equal by value produce the
// same tag whatever order their map keys were inserted in.
func (s *Signer) Sign(payload any) (string, error) {
	mac, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(mac), nil
}

// Verify reports whether sig is the tag for payload.
func (s *Signer) Verify(payload any, sig string) (bool, error) {
	provided, err := base64.URLEncoding.DecodeString(sig)
	if err != nil {
		return false, nil
	}
	expected, err := s.mac(payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, provided), nil
}

func (s *Signer) mac(payload any) ([]byte, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	m := hmac.New(sha256.New, s.key)
	_, _ = m.Write(canonical)
	return m.Sum(nil), nil
}
