package vp

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
)

type JSONPresentation struct {
	presentationData PresentationData
	proof            *dto.Proof
}

func NewJSONPresentation(vpc PresentationContents, opts ...PresentationOpt) (Presentation, error) {
	options := GetOptions(opts...)

	m, err := serializePresentationContents(&vpc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize presentation contents: %w", err)
	}

	if options.isValidateVC {
		if err := verifyCredentials(PresentationData(m), options.didBaseURL); err != nil {
			return nil, fmt.Errorf("failed to validate presentation: %w", err)
		}
	}

	return &JSONPresentation{presentationData: PresentationData(m)}, nil
}

func ParsePresentationJSON(rawJSON []byte, opts ...PresentationOpt) (Presentation, error) {
	if len(rawJSON) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	options := GetOptions(opts...)

	var m PresentationData
	if err := json.Unmarshal(rawJSON, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation: %w", err)
	}

	if options.isValidateVC {
		if err := verifyCredentials(m, options.didBaseURL); err != nil {
			return nil, fmt.Errorf("failed to validate presentation: %w", err)
		}
	}

	return &JSONPresentation{presentationData: m}, nil
}

func (e *JSONPresentation) AddProof(priv string, opts ...PresentationOpt) error {
	options := GetOptions(opts...)

	holder, ok := e.presentationData["holder"].(string)
	if !ok || holder == "" {
		return fmt.Errorf("holder not found in presentation")
	}

	vm := fmt.Sprintf("%s#%s", holder, options.verificationMethodKey)

	return (*jsonmap.JSONMap)(&e.presentationData).AddECDSAProof(priv, vm, "authentication", options.didBaseURL)
}

func (e *JSONPresentation) GetSigningInput() ([]byte, error) {
	return (*jsonmap.JSONMap)(&e.presentationData).Canonicalize()
}

func (e *JSONPresentation) AddCustomProof(proof *dto.Proof) error {
	if proof == nil {
		return fmt.Errorf("proof cannot be nil")
	}

	e.proof = proof

	return (*jsonmap.JSONMap)(&e.presentationData).AddCustomProof(e.proof)
}

func (e *JSONPresentation) Verify(opts ...PresentationOpt) error {
	options := GetOptions(opts...)

	isValid, err := (*jsonmap.JSONMap)(&e.presentationData).VerifyProof(options.didBaseURL)
	if err != nil {
		return err
	}
	if !isValid {
		return fmt.Errorf("invalid proof")
	}

	if options.isValidateVC {
		if err := verifyCredentials(e.presentationData, options.didBaseURL); err != nil {
			return fmt.Errorf("failed to verify credentials: %w", err)
		}
	}

	return nil
}

func (e *JSONPresentation) Serialize() (interface{}, error) {
	if e.presentationData["proof"] == nil {
		return nil, fmt.Errorf("presentation must have proof before serialization")
	}

	return map[string]interface{}(e.presentationData), nil
}

func (e *JSONPresentation) GetContents() ([]byte, error) {
	return (*jsonmap.JSONMap)(&e.presentationData).ToJSON()
}

func (e *JSONPresentation) GetType() string {
	return TypeJSON
}
