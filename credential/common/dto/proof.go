package dto

// Proof is a data integrity proof, or the signature of an externally signed JWT.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created,omitempty"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue,omitempty"`
	Cryptosuite        string `json:"cryptosuite,omitempty"`

	// Signature is the raw [R || S] signature of a JWT signing input.
	Signature []byte `json:"-"`
}
