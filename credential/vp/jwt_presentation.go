package vp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-pex-sdk/credential/common/jwt"
)

type JWTPresentation struct {
	signingInput string           // JWT header.payload (base64 encoded)
	payloadData  PresentationData // The "vp" claim
	signature    string           // JWT signature (if signed)
}

func NewJWTPresentation(vpc PresentationContents, opts ...PresentationOpt) (Presentation, error) {
	options := GetOptions(opts...)

	m, err := serializePresentationContents(&vpc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize presentation contents: %w", err)
	}

	payloadData := PresentationData(m)

	if options.isValidateVC {
		if err := verifyCredentials(payloadData, options.didBaseURL); err != nil {
			return nil, fmt.Errorf("failed to validate presentation: %w", err)
		}
	}

	payload := map[string]interface{}{
		"vp": payloadData,
	}
	if vpc.Holder != "" {
		payload["iss"] = vpc.Holder
		payload["sub"] = vpc.Holder
	}
	if vpc.ID != "" {
		payload["jti"] = vpc.ID
	}

	header := map[string]interface{}{
		"typ": "JWT",
		"alg": jwt.ES256K.Alg(),
		"kid": fmt.Sprintf("%s#%s", vpc.Holder, options.verificationMethodKey),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &JWTPresentation{
		signingInput: base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON),
		payloadData:  payloadData,
	}, nil
}

func ParsePresentationJWT(rawJWT string, opts ...PresentationOpt) (Presentation, error) {
	options := GetOptions(opts...)

	// prevent " from marshalling to json
	rawJWT = strings.Trim(strings.TrimSpace(rawJWT), `"`)

	if !isJWTPresentation(rawJWT) {
		return nil, fmt.Errorf("invalid JWT format")
	}

	parts := strings.Split(rawJWT, ".")
	signature := ""
	if len(parts) == 3 {
		signature = parts[2]
	}

	payloadMap, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	vpData, ok := payloadMap["vp"]
	if !ok {
		return nil, fmt.Errorf("vp claim not found in JWT payload")
	}

	vpMap, ok := vpData.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vp claim is not a valid JSON object")
	}

	if options.isValidateVC {
		if err := verifyCredentials(PresentationData(vpMap), options.didBaseURL); err != nil {
			return nil, fmt.Errorf("failed to validate presentation: %w", err)
		}
	}

	return &JWTPresentation{
		signingInput: parts[0] + "." + parts[1],
		payloadData:  PresentationData(vpMap),
		signature:    signature,
	}, nil
}

func (j *JWTPresentation) AddProof(priv string, opts ...PresentationOpt) error {
	options := GetOptions(opts...)

	holder, ok := j.payloadData["holder"].(string)
	if !ok || holder == "" {
		return fmt.Errorf("holder not found in presentation")
	}

	signer := jwt.NewJWTSigner(priv, holder, jwt.WithKeyID(options.verificationMethodKey))

	signature, err := signer.SignString(j.signingInput)
	if err != nil {
		return fmt.Errorf("failed to sign signing input: %w", err)
	}

	j.signature = signature

	return nil
}

func (j *JWTPresentation) GetSigningInput() ([]byte, error) {
	return []byte(j.signingInput), nil
}

func (j *JWTPresentation) AddCustomProof(proof *dto.Proof) error {
	if proof == nil {
		return fmt.Errorf("proof cannot be nil")
	}

	if len(proof.Signature) == 0 {
		return fmt.Errorf("proof signature cannot be empty")
	}

	j.signature = base64.RawURLEncoding.EncodeToString(proof.Signature)

	return nil
}

func (j *JWTPresentation) Verify(opts ...PresentationOpt) error {
	options := GetOptions(opts...)

	if j.signature == "" {
		return fmt.Errorf("presentation is not signed")
	}

	serialized, err := j.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize presentation: %w", err)
	}

	verifier := jwt.NewJWTVerifier(options.didBaseURL)
	if err := verifier.VerifyJWT(serialized.(string)); err != nil {
		return err
	}

	if options.isValidateVC {
		if err := verifyCredentials(j.payloadData, options.didBaseURL); err != nil {
			return fmt.Errorf("failed to verify credentials: %w", err)
		}
	}

	return nil
}

func (j *JWTPresentation) Serialize() (interface{}, error) {
	if j.signature != "" {
		return j.signingInput + "." + j.signature, nil
	}

	return j.signingInput, nil
}

func (j *JWTPresentation) GetContents() ([]byte, error) {
	return (*jsonmap.JSONMap)(&j.payloadData).ToJSON()
}

func (j *JWTPresentation) GetType() string {
	return TypeJWT
}
