package vp

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-pex-sdk/credential/vc"
	"github.com/pilacorp/go-pex-sdk/did/config"
)

// Presentation formats returned by GetType.
const (
	TypeJWT  = "JWT"
	TypeJSON = "JSON"
)

// Config holds package configuration.
var pkgConfig = struct {
	BaseURL string
}{
	BaseURL: config.ResolverURL(),
}

// Init initializes the package with a base URL.
func Init(baseURL string) {
	if baseURL != "" {
		pkgConfig.BaseURL = baseURL
	}
}

type Presentation interface {
	AddProof(priv string, opts ...PresentationOpt) error

	GetSigningInput() ([]byte, error)
	AddCustomProof(proof *dto.Proof) error

	Verify(opts ...PresentationOpt) error

	// Serialize returns the presentation in its native format
	// - For JWT presentations: returns the JWT string
	// - For JSON presentations: returns the JSON object with proof
	Serialize() (interface{}, error)

	GetContents() ([]byte, error)

	GetType() string
}

// PresentationData represents presentation data in JSON format (suitable for both JWT and JSON presentations).
type PresentationData jsonmap.JSONMap

// PresentationContents represents the structured contents of a Presentation.
type PresentationContents struct {
	Context               []interface{}
	ID                    string
	Types                 []string
	Holder                string
	VerifiableCredentials []vc.Credential
	// CustomFields holds members such as presentation_submission.
	CustomFields map[string]interface{}
}

// PresentationOpt configures presentation processing options.
type PresentationOpt func(*presentationOptions)

// presentationOptions holds configuration for presentation processing.
type presentationOptions struct {
	isValidateVC          bool
	didBaseURL            string
	verificationMethodKey string
}

// WithVCValidation enables proof verification of the credentials in the presentation.
func WithVCValidation() PresentationOpt {
	return func(p *presentationOptions) {
		p.isValidateVC = true
	}
}

// WithBaseURL sets the DID base URL for presentation processing.
func WithBaseURL(baseURL string) PresentationOpt {
	return func(p *presentationOptions) {
		p.didBaseURL = baseURL
	}
}

// WithVerificationMethodKey sets the verification method key (default: "key-1").
func WithVerificationMethodKey(key string) PresentationOpt {
	return func(p *presentationOptions) {
		p.verificationMethodKey = key
	}
}

// GetOptions returns the presentation options.
func GetOptions(opts ...PresentationOpt) *presentationOptions {
	options := &presentationOptions{
		isValidateVC:          false,
		didBaseURL:            pkgConfig.BaseURL,
		verificationMethodKey: "key-1",
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ParsePresentation parses a compact JWT or a JSON presentation.
func ParsePresentation(rawPresentation []byte, opts ...PresentationOpt) (Presentation, error) {
	trimmed := bytes.TrimSpace(rawPresentation)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("presentation is empty")
	}

	if isJSONPresentation(trimmed) {
		return ParsePresentationJSON(trimmed, opts...)
	}

	valStr := strings.Trim(string(trimmed), `"`)
	if isJWTPresentation(valStr) {
		return ParsePresentationJWT(valStr, opts...)
	}

	return nil, fmt.Errorf("failed to parse presentation: not a valid JWT or JSON presentation")
}

func isJSONPresentation(rawPresentation []byte) bool {
	return len(rawPresentation) > 0 && rawPresentation[0] == '{'
}

var jwtPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]*)?$`)

func isJWTPresentation(valStr string) bool {
	return jwtPattern.MatchString(valStr)
}
