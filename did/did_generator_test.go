package did

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-pex-sdk/credential/common/crypto"
	"github.com/pilacorp/go-pex-sdk/did/config"
)

const testPrivateKeyHex = "e5c9a597b20e13627a3850d38439b61ec9ee7aefd77c7cb6c01dc3866e1db19a"

func TestKeyPairFromHex(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		priv    string
		prefix  string
		wantErr bool
	}{
		{name: "explicit method", method: "did:example", priv: testPrivateKeyHex, prefix: "did:example:0x"},
		{name: "0x prefixed key", method: "did:example", priv: "0x" + testPrivateKeyHex, prefix: "did:example:0x"},
		{name: "default method", priv: testPrivateKeyHex, prefix: config.DefaultMethod + ":0x"},
		{name: "invalid key", method: "did:example", priv: "zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp, err := KeyPairFromHex(tt.method, tt.priv)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(kp.Identifier, tt.prefix), kp.Identifier)
			assert.Equal(t, kp.Address, strings.TrimPrefix(kp.Identifier, strings.TrimSuffix(tt.prefix, "0x")))
			assert.Equal(t, "0x"+testPrivateKeyHex, kp.PrivateKey)

			priv, err := crypto.ParsePrivateKeyHex(testPrivateKeyHex)
			require.NoError(t, err)
			assert.Equal(t, crypto.CompressedPublicKeyHex(priv), kp.PublicKey)
		})
	}
}

func TestGenerateKeyPairUsesEnvMethod(t *testing.T) {
	t.Setenv(config.EnvMethod, "did:test")

	kp, err := GenerateKeyPair("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kp.Identifier, "did:test:0x"))

	ok, err := crypto.VerifyKeyPairFromHex(kp.PrivateKey, kp.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDocument(t *testing.T) {
	kp, err := KeyPairFromHex("did:example", testPrivateKeyHex)
	require.NoError(t, err)

	doc := kp.Document()
	assert.Equal(t, kp.Identifier, doc.Id)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Equal(t, kp.Identifier+"#key-1", doc.VerificationMethod[0].Id)
	assert.Equal(t, kp.PublicKey, doc.VerificationMethod[0].PublicKeyHex)
	assert.Equal(t, []string{kp.KeyID()}, doc.AssertionMethod)
	assert.Equal(t, []string{kp.KeyID()}, doc.Authentication)
}
