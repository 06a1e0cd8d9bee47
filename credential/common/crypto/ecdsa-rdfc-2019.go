package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ECDSASign signs a 32-byte digest with secp256k1, producing a 65-byte [r, s, v] signature.
func ECDSASign(digest []byte, hexPrivateKey string) ([]byte, error) {
	privKey, err := ParsePrivateKeyHex(hexPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: invalid private key: %w", err)
	}

	signature, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("ecdsa: invalid signature length, expected 65 bytes")
	}

	return signature, nil
}

// ECDSAVerifySignature verifies a hex signature, [r, s] or [r, s, v], over a 32-byte digest.
func ECDSAVerifySignature(publicKey, signature string, digest []byte) (bool, error) {
	pubKey, err := ParsePublicKeyHex(publicKey)
	if err != nil {
		return false, err
	}

	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	switch len(sigBytes) {
	case 65:
		sigBytes = sigBytes[:64]
	case 64:
	default:
		return false, fmt.Errorf("invalid signature length: got %d, want 64 or 65 bytes", len(sigBytes))
	}

	return crypto.VerifySignature(crypto.FromECDSAPub(pubKey), digest, sigBytes), nil
}

// VerifyKeyPair verifies if a private key and public key match
func VerifyKeyPair(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) bool {
	return privateKey.PublicKey.X.Cmp(publicKey.X) == 0 &&
		privateKey.PublicKey.Y.Cmp(publicKey.Y) == 0
}

// VerifyKeyPairFromHex verifies if a private key (hex) and public key (hex) match.
func VerifyKeyPairFromHex(privateKeyHex, publicKeyHex string) (bool, error) {
	privateKey, err := ParsePrivateKeyHex(privateKeyHex)
	if err != nil {
		return false, fmt.Errorf("failed to convert private key hex: %w", err)
	}

	publicKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return false, err
	}

	return VerifyKeyPair(privateKey, publicKey), nil
}
