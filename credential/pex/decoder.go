package pex

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pilacorp/go-pex-sdk/credential/vc"
)

// Claim format designations.
const (
	FormatJWTVC = "jwt_vc"
	FormatLDPVC = "ldp_vc"
	FormatJWTVP = "jwt_vp"
	FormatLDPVP = "ldp_vp"
)

// Decoded is the claims view of a candidate credential.
type Decoded struct {
	// Format is the claim format of the credential, jwt_vc or ldp_vc.
	Format string
	// Claims is the credential data model: the "vc" claim of a JWT, or the
	// embedded credential itself.
	Claims map[string]interface{}
	// Envelope is the full JWT payload. It is nil for embedded credentials.
	Envelope map[string]interface{}
	// Value is the credential as it is placed in a presentation: the compact
	// JWT string, or the embedded credential object.
	Value interface{}
}

// views returns the documents field paths are evaluated against, in order.
func (d *Decoded) views() []map[string]interface{} {
	if d.Envelope == nil {
		return []map[string]interface{}{d.Claims}
	}

	return []map[string]interface{}{d.Claims, d.Envelope}
}

// TokenDecoder turns a credential token into its claims view.
type TokenDecoder interface {
	Decode(token string) (*Decoded, error)
}

// DecoderFunc adapts a function to TokenDecoder.
type DecoderFunc func(token string) (*Decoded, error)

func (f DecoderFunc) Decode(token string) (*Decoded, error) {
	return f(token)
}

// DecodeToken decodes a compact JWT credential or an embedded JSON credential.
// Signatures are not verified.
func DecodeToken(token string) (*Decoded, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("credential token is empty")
	}

	cred, err := vc.ParseCredential([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}

	contents, err := cred.GetContents()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential contents: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(contents, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential contents: %w", err)
	}

	if jwtCred, ok := cred.(*vc.JWTCredential); ok {
		serialized, err := jwtCred.Serialize()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize credential: %w", err)
		}

		return &Decoded{
			Format:   FormatJWTVC,
			Claims:   claims,
			Envelope: jwtCred.Claims(),
			Value:    serialized,
		}, nil
	}

	value := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		value[k] = v
	}

	return &Decoded{
		Format: FormatLDPVC,
		Claims: claims,
		Value:  value,
	}, nil
}

var defaultDecoder TokenDecoder = DecoderFunc(DecodeToken)
