package wallet

import (
	"fmt"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/pex"
	"github.com/pilacorp/go-pex-sdk/credential/vp"
	"github.com/pilacorp/go-pex-sdk/did/signer"
)

// Presentation is a JWT presentation built from the store.
type Presentation struct {
	// Token is the compact jwt_vp, signed when a signer was given.
	Token string
	// Submission is the presentation submission, also embedded in Token
	// unless the external submission location was requested.
	Submission *pex.PresentationSubmission
	// Credentials holds the presented tokens in presentation order.
	Credentials []string
}

// PresentOpt configures Present.
type PresentOpt func(*presentOptions)

type presentOptions struct {
	holder  string
	keyID   string
	signer  signer.Signer
	pexOpts []pex.PresentationOpt
}

// WithHolder sets the holder DID of the presentation.
func WithHolder(holder string) PresentOpt {
	return func(o *presentOptions) {
		o.holder = holder
	}
}

// WithSigner signs the presentation with s under the holder key keyID (default: "key-1").
func WithSigner(s signer.Signer, keyID string) PresentOpt {
	return func(o *presentOptions) {
		o.signer = s
		if keyID != "" {
			o.keyID = keyID
		}
	}
}

// WithPresentationOptions forwards assembly options to the engine.
func WithPresentationOptions(opts ...pex.PresentationOpt) PresentOpt {
	return func(o *presentOptions) {
		o.pexOpts = append(o.pexOpts, opts...)
	}
}

// Present selects the stored credentials that satisfy pd and wraps them in a
// jwt_vp carrying the presentation submission.
func (s *CredentialStore) Present(pd *pex.PresentationDefinition, opts ...PresentOpt) (*Presentation, error) {
	options := &presentOptions{keyID: "key-1"}
	for _, opt := range opts {
		opt(options)
	}

	if options.signer != nil && options.holder == "" {
		return nil, fmt.Errorf("holder is required to sign a presentation")
	}

	pexOpts := options.pexOpts
	if options.holder != "" {
		pexOpts = append(pexOpts, pex.WithHolder(options.holder))
	}

	result, err := s.engine.CreatePresentationFromCredentials(s.Candidates(), pd, pexOpts...)
	if err != nil {
		return nil, err
	}

	contents, err := vp.ContentsFromData(vp.PresentationData(result.Presentation))
	if err != nil {
		return nil, fmt.Errorf("failed to read presentation contents: %w", err)
	}

	presentation, err := vp.NewJWTPresentation(contents, vp.WithVerificationMethodKey(options.keyID))
	if err != nil {
		return nil, fmt.Errorf("failed to create presentation: %w", err)
	}

	if options.signer != nil {
		signingInput, err := presentation.GetSigningInput()
		if err != nil {
			return nil, fmt.Errorf("failed to get signing input: %w", err)
		}

		sig, err := signer.JWTSignature(options.signer, string(signingInput))
		if err != nil {
			return nil, fmt.Errorf("failed to sign presentation: %w", err)
		}

		if err := presentation.AddCustomProof(&dto.Proof{Signature: sig}); err != nil {
			return nil, fmt.Errorf("failed to add proof: %w", err)
		}
	}

	serialized, err := presentation.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize presentation: %w", err)
	}

	return &Presentation{
		Token:       serialized.(string),
		Submission:  result.PresentationSubmission,
		Credentials: result.Credentials,
	}, nil
}
