package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	pcrypto "github.com/pilacorp/go-pex-sdk/credential/common/crypto"
)

// SigningMethodES256K implements ES256K signing
type SigningMethodES256K struct{}

// ES256K is the ES256K signing method instance
var ES256K = &SigningMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(ES256K.Alg(), func() jwt.SigningMethod {
		return ES256K
	})
}

// Alg returns the algorithm name
func (m *SigningMethodES256K) Alg() string {
	return "ES256K"
}

// Sign signs a string with a private key, given as hex or *ecdsa.PrivateKey.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	var privKey *ecdsa.PrivateKey

	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		privKey = k
	case string:
		parsed, err := pcrypto.ParsePrivateKeyHex(k)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		privKey = parsed
	default:
		return nil, jwt.ErrInvalidKeyType
	}

	hash := sha256.Sum256([]byte(signingString))
	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	return sig[:64], nil // R and S, without the recovery id
}

// Verify verifies a signature
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	publicKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}

	if len(signature) != 64 {
		return fmt.Errorf("invalid signature length")
	}

	hash := sha256.Sum256([]byte(signingString))
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), hash[:], signature) {
		return jwt.ErrSignatureInvalid
	}

	return nil
}
