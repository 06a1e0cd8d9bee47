package vc

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
)

type JSONCredential struct {
	credentialData CredentialData
	proof          *dto.Proof
}

func NewJSONCredential(vcc CredentialContents, opts ...CredentialOpt) (Credential, error) {
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

	data, err := m.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential contents: %w", err)
	}

	return &JSONCredential{credentialData: CredentialData(data)}, nil
}

func ParseJSONCredential(rawJSON []byte, opts ...CredentialOpt) (Credential, error) {
	if len(rawJSON) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	options := GetOptions(opts...)

	var m CredentialData
	if err := json.Unmarshal(rawJSON, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	if options.isValidateSchema {
		if err := validateCredential(jsonmap.JSONMap(m)); err != nil {
			return nil, fmt.Errorf("failed to validate credential: %w", err)
		}
	}

	return &JSONCredential{credentialData: m}, nil
}

func (e *JSONCredential) AddProof(priv string, opts ...CredentialOpt) error {
	options := GetOptions(opts...)

	vm, err := e.getVerificationMethod(options.verificationMethodKey)
	if err != nil {
		return err
	}

	return (*jsonmap.JSONMap)(&e.credentialData).AddECDSAProof(priv, vm, "assertionMethod", options.didBaseURL)
}

func (e *JSONCredential) getVerificationMethod(key string) (string, error) {
	issuer, ok := e.credentialData["issuer"].(string)
	if !ok || issuer == "" {
		return "", fmt.Errorf("issuer not found in credential")
	}

	return fmt.Sprintf("%s#%s", issuer, key), nil
}

func (e *JSONCredential) GetSigningInput() ([]byte, error) {
	return (*jsonmap.JSONMap)(&e.credentialData).Canonicalize()
}

func (e *JSONCredential) AddCustomProof(proof *dto.Proof) error {
	if proof == nil {
		return fmt.Errorf("proof cannot be nil")
	}

	e.proof = proof

	return (*jsonmap.JSONMap)(&e.credentialData).AddCustomProof(e.proof)
}

func (e *JSONCredential) Verify(opts ...CredentialOpt) error {
	options := GetOptions(opts...)

	isValid, err := (*jsonmap.JSONMap)(&e.credentialData).VerifyProof(options.didBaseURL)
	if err != nil {
		return err
	}
	if !isValid {
		return fmt.Errorf("invalid proof")
	}

	if options.isValidateSchema {
		if err := validateCredential(jsonmap.JSONMap(e.credentialData)); err != nil {
			return fmt.Errorf("failed to validate credential: %w", err)
		}
	}

	return nil
}

func (e *JSONCredential) Serialize() (interface{}, error) {
	if e.credentialData["proof"] == nil {
		return nil, fmt.Errorf("credential must have proof before serialization")
	}

	return map[string]interface{}(e.credentialData), nil
}

func (e *JSONCredential) GetContents() ([]byte, error) {
	return (*jsonmap.JSONMap)(&e.credentialData).ToJSON()
}

func (e *JSONCredential) GetType() string {
	return TypeJSON
}
