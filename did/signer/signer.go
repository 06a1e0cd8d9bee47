package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs 32-byte digests with a secp256k1 key and returns [r, s, v] signatures.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
}

type DefaultSigner struct {
	priv *ecdsa.PrivateKey
}

func NewDefaultSigner(privHex string) (Signer, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, err
	}
	return &DefaultSigner{priv: priv}, nil
}

func (s *DefaultSigner) Sign(hashPayload []byte) ([]byte, error) {
	signature, err := crypto.Sign(hashPayload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature, nil
}

// JWTSignature signs a JWT signing input (header.payload) with s and returns the raw
// ES256K [r, s] signature.
func JWTSignature(s Signer, signingInput string) ([]byte, error) {
	digest := sha256.Sum256([]byte(signingInput))

	sig, err := s.Sign(digest[:])
	if err != nil {
		return nil, err
	}

	return sig[:64], nil
}

// EncodeJWTSignature is JWTSignature followed by base64url encoding.
func EncodeJWTSignature(s Signer, signingInput string) (string, error) {
	sig, err := JWTSignature(s, signingInput)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(sig), nil
}
