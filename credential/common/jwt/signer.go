package jwt

import (
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTSigner handles JWT signing operations for verifiable documents
type JWTSigner struct {
	privKeyHex string
	issuerDID  string
	keyID      string
}

// SignerOpt configures a JWTSigner.
type SignerOpt func(*JWTSigner)

// WithKeyID sets the verification method fragment of the kid header (default: "key-1").
func WithKeyID(keyID string) SignerOpt {
	return func(s *JWTSigner) {
		if keyID != "" {
			s.keyID = keyID
		}
	}
}

// NewJWTSigner creates a new JWT signer instance
func NewJWTSigner(privKeyHex, issuerDID string, opts ...SignerOpt) *JWTSigner {
	s := &JWTSigner{
		privKeyHex: privKeyHex,
		issuerDID:  issuerDID,
		keyID:      "key-1",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignDocument signs a verifiable document (VC or VP) as a JWT whose docType
// claim ("vc" or "vp") carries the document.
func (s *JWTSigner) SignDocument(doc map[string]interface{}, docType string, additionalClaims ...map[string]interface{}) (string, error) {
	claims := jwt.MapClaims{
		docType: doc,
	}

	if id, ok := doc["id"].(string); ok && id != "" {
		claims["jti"] = id
	} else {
		claims["jti"] = "urn:uuid:" + uuid.NewString()
	}

	if len(additionalClaims) > 0 && additionalClaims[0] != nil {
		for key, value := range additionalClaims[0] {
			claims[key] = value
		}
	}

	token := jwt.NewWithClaims(ES256K, claims)
	token.Header["typ"] = "JWT"
	token.Header["kid"] = s.GetKeyID()

	signedString, err := token.SignedString(s.privKeyHex)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedString, nil
}

// SignString signs a JWT signing input (header.payload) and returns the
// base64url signature segment.
func (s *JWTSigner) SignString(signingInput string) (string, error) {
	sig, err := ES256K.Sign(signingInput, s.privKeyHex)
	if err != nil {
		return "", fmt.Errorf("failed to sign signing input: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// GetKeyID returns the Key ID for this signer
func (s *JWTSigner) GetKeyID() string {
	return fmt.Sprintf("%s#%s", s.issuerDID, s.keyID)
}
