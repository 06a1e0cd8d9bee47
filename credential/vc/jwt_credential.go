package vc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-pex-sdk/credential/common/jwt"
)

type JWTHeaders map[string]interface{}

type JWTCredential struct {
	SigningInput string         // JWT header.payload (base64 encoded)
	PayloadData  CredentialData // The "vc" claim
	Signature    string         // JWT signature (if signed)

	payload jsonmap.JSONMap // Full JWT payload
}

func NewJWTCredential(vcc CredentialContents, opts ...CredentialOpt) (Credential, error) {
	options := GetOptions(opts...)

	m, err := serializeCredentialContents(&vcc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential contents: %w", err)
	}

	if options.isValidateSchema {
		if err := validateCredential(m); err != nil {
			return nil, fmt.Errorf("failed to validate credential: %w", err)
		}
	}

	payload := jsonmap.JSONMap{
		"vc": m,
	}
	if vcc.Issuer != "" {
		payload["iss"] = vcc.Issuer
	}
	if len(vcc.Subject) > 0 && vcc.Subject[0].ID != "" {
		payload["sub"] = vcc.Subject[0].ID
	}
	if !vcc.ValidUntil.IsZero() {
		payload["exp"] = vcc.ValidUntil.Unix()
	}
	if !vcc.ValidFrom.IsZero() {
		payload["iat"] = vcc.ValidFrom.Unix()
		payload["nbf"] = vcc.ValidFrom.Unix()
	}
	if vcc.ID != "" {
		payload["jti"] = vcc.ID
	}

	header := JWTHeaders{
		"typ": "JWT",
		"alg": jwt.ES256K.Alg(),
		"kid": fmt.Sprintf("%s#%s", vcc.Issuer, options.verificationMethodKey),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return newJWTCredential(
		base64.RawURLEncoding.EncodeToString(headerJSON)+"."+base64.RawURLEncoding.EncodeToString(payloadJSON),
		"",
	)
}

// newJWTCredential decodes the payload of signingInput into a JWTCredential.
func newJWTCredential(signingInput, signature string) (*JWTCredential, error) {
	parts := strings.Split(signingInput, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid JWT format")
	}

	payloadMap, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	vcMap, ok := payloadMap["vc"].(map[string]interface{})
	if !ok {
		if _, exists := payloadMap["vc"]; !exists {
			return nil, fmt.Errorf("vc claim not found in JWT payload")
		}
		return nil, fmt.Errorf("vc claim is not a valid JSON object")
	}

	return &JWTCredential{
		SigningInput: signingInput,
		PayloadData:  CredentialData(vcMap),
		Signature:    signature,
		payload:      jsonmap.JSONMap(payloadMap),
	}, nil
}

func ParseCredentialJWT(rawJWT string, opts ...CredentialOpt) (Credential, error) {
	// Remove JSON quotes if present (from json.Marshal of a string)
	rawJWT = strings.Trim(strings.TrimSpace(rawJWT), `"`)

	if !isJWTCredential(rawJWT) {
		return nil, fmt.Errorf("invalid JWT format")
	}

	options := GetOptions(opts...)

	parts := strings.Split(rawJWT, ".")
	signature := ""
	if len(parts) == 3 {
		signature = parts[2]
	}

	cred, err := newJWTCredential(parts[0]+"."+parts[1], signature)
	if err != nil {
		return nil, err
	}

	if options.isValidateSchema {
		if err := validateCredential(jsonmap.JSONMap(cred.PayloadData)); err != nil {
			return nil, fmt.Errorf("failed to validate credential: %w", err)
		}
	}

	return cred, nil
}

func (j *JWTCredential) AddProof(priv string, opts ...CredentialOpt) error {
	options := GetOptions(opts...)

	issuer, ok := j.PayloadData["issuer"].(string)
	if !ok {
		return fmt.Errorf("issuer not found in credential")
	}

	signer := jwt.NewJWTSigner(priv, issuer, jwt.WithKeyID(options.verificationMethodKey))

	signature, err := signer.SignString(j.SigningInput)
	if err != nil {
		return fmt.Errorf("failed to sign signing input: %w", err)
	}

	j.Signature = signature
	return nil
}

func (j *JWTCredential) GetSigningInput() ([]byte, error) {
	return []byte(j.SigningInput), nil
}

func (j *JWTCredential) AddCustomProof(proof *dto.Proof) error {
	if proof == nil {
		return fmt.Errorf("proof cannot be nil")
	}

	if len(proof.Signature) == 0 {
		return fmt.Errorf("proof signature cannot be empty")
	}

	j.Signature = base64.RawURLEncoding.EncodeToString(proof.Signature)

	return nil
}

func (j *JWTCredential) Verify(opts ...CredentialOpt) error {
	options := GetOptions(opts...)

	if j.Signature == "" {
		return fmt.Errorf("credential is not signed")
	}

	serialized, err := j.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}

	verifier := jwt.NewJWTVerifier(options.didBaseURL)
	if err := verifier.VerifyJWT(serialized.(string)); err != nil {
		return err
	}

	if options.isValidateSchema {
		if err := validateCredential(jsonmap.JSONMap(j.PayloadData)); err != nil {
			return fmt.Errorf("failed to validate credential: %w", err)
		}
	}

	return nil
}

func (j *JWTCredential) Serialize() (interface{}, error) {
	if j.Signature != "" {
		return j.SigningInput + "." + j.Signature, nil
	}

	return j.SigningInput, nil
}

func (j *JWTCredential) GetContents() ([]byte, error) {
	return (*jsonmap.JSONMap)(&j.PayloadData).ToJSON()
}

func (j *JWTCredential) GetType() string {
	return TypeJWT
}

// Claims returns the full JWT payload: the "vc" claim with the registered claims around it.
func (j *JWTCredential) Claims() map[string]interface{} {
	return j.payload
}
