package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-pex-sdk/credential/common/crypto"
	verificationmethod "github.com/pilacorp/go-pex-sdk/credential/common/verification-method"
)

// JWTVerifier handles JWT verification operations
type JWTVerifier struct {
	resolver *verificationmethod.Resolver
}

// NewJWTVerifier creates a new JWT verifier with DID resolver
func NewJWTVerifier(didResolverURL string, opts ...verificationmethod.ResolverOpt) *JWTVerifier {
	return &JWTVerifier{
		resolver: verificationmethod.NewResolver(didResolverURL, opts...),
	}
}

// VerifyJWT verifies the ES256K signature of a JWT against the key named by its kid header.
func (v *JWTVerifier) VerifyJWT(tokenString string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{ES256K.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("kid not found in header")
		}

		publicKeyHex, err := v.resolver.GetPublicKey(kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}

		return crypto.ParsePublicKeyHex(publicKeyHex)
	})
	if err != nil {
		return fmt.Errorf("failed to verify JWT: %w", err)
	}

	return nil
}

// VerifyDocument verifies a JWT and checks that it carries a docType claim.
func (v *JWTVerifier) VerifyDocument(tokenString, docType string) error {
	if err := v.VerifyJWT(tokenString); err != nil {
		return err
	}

	if _, err := GetDocumentFromJWT(tokenString, docType); err != nil {
		return err
	}

	return nil
}
