package did

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-pex-sdk/did/config"
)

const (
	verificationKeyType = "EcdsaSecp256k1VerificationKey2019"
	defaultKeyID        = "key-1"
)

// GenerateKeyPair creates a fresh secp256k1 key and the DID ${method}:${address} bound to it.
// An empty method falls back to config.Method().
func GenerateKeyPair(method string) (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	return newKeyPair(method, privateKey)
}

// KeyPairFromHex rebuilds the key pair of an existing hex private key (with or without 0x).
func KeyPairFromHex(method, privateKeyHex string) (*KeyPair, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return newKeyPair(method, privateKey)
}

func newKeyPair(method string, privateKey *ecdsa.PrivateKey) (*KeyPair, error) {
	if method == "" {
		method = config.Method()
	}

	privBytes := crypto.FromECDSA(privateKey)
	pub := secp256k1.PrivKeyFromBytes(privBytes).PubKey()

	address := strings.ToLower(crypto.PubkeyToAddress(privateKey.PublicKey).Hex())

	return &KeyPair{
		Address:    address,
		PublicKey:  fmt.Sprintf("0x%x", pub.SerializeCompressed()),
		PrivateKey: fmt.Sprintf("0x%x", privBytes),
		Identifier: strings.ToLower(fmt.Sprintf("%s:%s", method, address)),
	}, nil
}

// KeyID returns the verification method id of the key pair.
func (k *KeyPair) KeyID() string {
	return k.Identifier + "#" + defaultKeyID
}

// Document returns the DID document that a resolver serves for the key pair.
func (k *KeyPair) Document() *DIDDocument {
	return &DIDDocument{
		Context: []string{"https://w3id.org/security/v1",
			"https://www.w3.org/ns/did/v1"},
		Id:         k.Identifier,
		Controller: k.Identifier,
		VerificationMethod: []VerificationMethod{{
			Id:           k.KeyID(),
			Type:         verificationKeyType,
			Controller:   k.Identifier,
			PublicKeyHex: k.PublicKey,
		}},
		Authentication:  []string{k.KeyID()},
		AssertionMethod: []string{k.KeyID()},
	}
}
