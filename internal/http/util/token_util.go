package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("token secret is not configured")
)

// TokenSigner encapsulates HMAC issuance/validation of session tokens so
// handlers stay small. Tokens are stateless: payload is expiry plus the
// principal id, signed and truncated.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner returns a signer that issues compact HMAC tokens.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: secret,
		ttl:    ttl,
	}
}

// Issue mints a session token for the given user.
func (s *TokenSigner) Issue(userID int64) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	payload := make([]byte, 12) // 4 bytes expiry + 8 bytes user id
	expires := uint32(time.Now().Add(s.ttl).Unix())
	binary.BigEndian.PutUint32(payload[:4], expires)
	binary.BigEndian.PutUint64(payload[4:], uint64(userID))

	payloadEnc := base64.RawURLEncoding.EncodeToString(payload)
	signature := s.sign(payload)
	sigEnc := base64.RawURLEncoding.EncodeToString(signature[:16])
	return fmt.Sprintf("%s.%s", payloadEnc, sigEnc), nil
}

// Validate checks signature integrity and TTL, returning the user id the
// token was issued for.
func (s *TokenSigner) Validate(token string) (int64, error) {
	if len(s.secret) == 0 {
		return 0, ErrMissingSecret
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return 0, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(payload) != 12 {
		return 0, ErrInvalidToken
	}

	sigProvided, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(sigProvided) != 16 {
		return 0, ErrInvalidToken
	}

	expected := s.sign(payload)
	if !hmac.Equal(sigProvided, expected[:16]) {
		return 0, ErrInvalidToken
	}

	expires := binary.BigEndian.Uint32(payload[:4])
	if time.Now().Unix() > int64(expires) {
		return 0, ErrInvalidToken
	}

	return int64(binary.BigEndian.Uint64(payload[4:])), nil
}

func (s *TokenSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
