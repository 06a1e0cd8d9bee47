package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyToBytes decodes a hex key, with or without the 0x prefix.
func KeyToBytes(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key is empty")
	}

	return hex.DecodeString(strings.TrimPrefix(key, "0x"))
}

// ParsePrivateKeyHex parses a hex-encoded secp256k1 private key of 32 bytes.
func ParsePrivateKeyHex(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	keyBytes, err := KeyToBytes(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	if len(keyBytes) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}

	return crypto.ToECDSA(keyBytes)
}

// ParsePublicKeyHex parses a hex-encoded secp256k1 public key in compressed
// (33 bytes) or uncompressed (65 bytes) form.
func ParsePublicKeyHex(publicKeyHex string) (*ecdsa.PublicKey, error) {
	keyBytes, err := KeyToBytes(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key hex: %w", err)
	}

	pub, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return crypto.UnmarshalPubkey(pub.SerializeUncompressed())
}

// CompressedPublicKeyHex returns the 0x-prefixed compressed public key of privateKey.
func CompressedPublicKeyHex(privateKey *ecdsa.PrivateKey) string {
	return "0x" + hex.EncodeToString(crypto.CompressPubkey(&privateKey.PublicKey))
}
