package did

// KeyPair represents a generated secp256k1 key and its DID identifier
type KeyPair struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Identifier string `json:"identifier"`
}

type DIDDocument struct {
	Context            []string               `json:"@context"`
	Id                 string                 `json:"id"`
	Controller         string                 `json:"controller"`
	VerificationMethod []VerificationMethod   `json:"verificationMethod"`
	Authentication     []string               `json:"authentication"` //=id
	AssertionMethod    []string               `json:"assertionMethod"`
	DocumentMetadata   map[string]interface{} `json:"didDocumentMetadata,omitempty"`
}

type VerificationMethod struct {
	Id           string `json:"id"`
	Type         string `json:"type"`
	Controller   string `json:"controller"`
	PublicKeyHex string `json:"publicKeyHex,omitempty"`
}
