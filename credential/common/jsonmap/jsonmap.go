package jsonmap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilacorp/go-pex-sdk/credential/common/crypto"
	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
	"github.com/pilacorp/go-pex-sdk/credential/common/processor"
	"github.com/pilacorp/go-pex-sdk/credential/common/util"
	verificationmethod "github.com/pilacorp/go-pex-sdk/credential/common/verification-method"
)

// JSONMap represents a JSON object as a map.
type JSONMap map[string]interface{}

// ToJSON serializes the JSONMap to JSON.
func (m *JSONMap) ToJSON() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONMap: %w", err)
	}

	return data, nil
}

// Clone returns a deep copy of the JSONMap made through a JSON round trip.
func (m *JSONMap) Clone() (JSONMap, error) {
	data, err := m.ToJSON()
	if err != nil {
		return nil, err
	}

	var out JSONMap
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSONMap: %w", err)
	}

	return out, nil
}

// Canonicalize returns the digest of the URDNA2015 canonical form of the
// JSONMap, excluding the proof field.
func (m *JSONMap) Canonicalize(opts ...processor.ProcessorOpt) ([]byte, error) {
	mCopy := make(JSONMap)
	for k, v := range *m {
		if k != "proof" {
			mCopy[k] = v
		}
	}

	doc, err := mCopy.Clone()
	if err != nil {
		return nil, err
	}

	canonicalDoc, err := processor.CanonicalizeDocument(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}

	return processor.ComputeDigest(canonicalDoc)
}

// AddECDSAProof adds an ecdsa-rdfc-2019 DataIntegrityProof to the JSONMap after
// checking that priv belongs to verificationMethod.
func (m *JSONMap) AddECDSAProof(priv, verificationMethod, proofPurpose, didBaseURL string, opts ...processor.ProcessorOpt) error {
	if m == nil {
		return fmt.Errorf("JSONMap is nil")
	}
	if verificationMethod == "" {
		return fmt.Errorf("verification method is required")
	}
	if proofPurpose == "" {
		return fmt.Errorf("proof purpose is required")
	}

	resolver := verificationmethod.NewResolver(didBaseURL)
	isValid, err := resolver.CheckVerificationMethod(priv, verificationMethod)
	if err != nil {
		return fmt.Errorf("failed to verify Private key and verification method: %w", err)
	}
	if !isValid {
		return fmt.Errorf("private key and verification method do not match")
	}

	proof := &dto.Proof{
		Type:               "DataIntegrityProof",
		Created:            time.Now().UTC().Format(time.RFC3339),
		VerificationMethod: verificationMethod,
		ProofPurpose:       proofPurpose,
		Cryptosuite:        "ecdsa-rdfc-2019",
	}

	signData, err := m.Canonicalize(opts...)
	if err != nil {
		return fmt.Errorf("failed to canonicalize JSONMap: %w", err)
	}

	signature, err := crypto.ECDSASign(signData, priv)
	if err != nil {
		return fmt.Errorf("failed to sign ECDSA proof: %w", err)
	}

	proof.ProofValue = hex.EncodeToString(signature)
	(*m)["proof"] = util.SerializeProofs([]dto.Proof{*proof})

	return nil
}

// AddCustomProof adds custom proof to the JSONMap.
func (m *JSONMap) AddCustomProof(proof *dto.Proof) error {
	if m == nil {
		return fmt.Errorf("JSONMap is nil")
	}
	if proof == nil {
		return fmt.Errorf("proof is nil")
	}

	(*m)["proof"] = util.SerializeProofs([]dto.Proof{*proof})

	return nil
}

// VerifyProof verifies the first ECDSA proof of the JSONMap against the key
// of its verification method.
func (m *JSONMap) VerifyProof(didBaseURL string, opts ...processor.ProcessorOpt) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("JSONMap is nil")
	}

	raw := (*m)["proof"]
	if proofs, ok := raw.([]interface{}); ok {
		raw = nil
		if len(proofs) > 0 {
			raw = proofs[0]
		}
	}
	if raw == nil {
		return false, fmt.Errorf("JSONMap has no proof")
	}

	proof, err := ParseRawToProof(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse proof: %w", err)
	}

	doc, err := m.Canonicalize(opts...)
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize JSONMap: %w", err)
	}

	resolver := verificationmethod.NewResolver(didBaseURL)
	publicKey, err := resolver.GetPublicKey(proof.VerificationMethod)
	if err != nil {
		return false, fmt.Errorf("failed to resolve public key: %w", err)
	}

	return crypto.ECDSAVerifySignature(publicKey, proof.ProofValue, doc)
}

// ParseRawToProof reads a proof object.
func ParseRawToProof(raw interface{}) (dto.Proof, error) {
	var obj map[string]interface{}
	switch p := raw.(type) {
	case map[string]interface{}:
		obj = p
	case JSONMap:
		obj = p
	default:
		return dto.Proof{}, fmt.Errorf("invalid proof format: expected an object, got %T", raw)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return dto.Proof{}, fmt.Errorf("failed to marshal proof: %w", err)
	}

	var proof dto.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return dto.Proof{}, fmt.Errorf("failed to unmarshal proof: %w", err)
	}

	return proof, nil
}
