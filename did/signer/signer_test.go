package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-pex-sdk/credential/common/crypto"
	"github.com/pilacorp/go-pex-sdk/credential/common/jwt"
)

const testPrivateKeyHex = "e5c9a597b20e13627a3850d38439b61ec9ee7aefd77c7cb6c01dc3866e1db19a"

func TestDefaultSignerJWTSignature(t *testing.T) {
	s, err := NewDefaultSigner("0x" + testPrivateKeyHex)
	require.NoError(t, err)

	signingInput := "eyJhbGciOiJFUzI1NksifQ.eyJ2cCI6e319"
	sig, err := JWTSignature(s, signingInput)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	priv, err := crypto.ParsePrivateKeyHex(testPrivateKeyHex)
	require.NoError(t, err)
	assert.NoError(t, jwt.ES256K.Verify(signingInput, sig, &priv.PublicKey))
	assert.Error(t, jwt.ES256K.Verify(signingInput+"x", sig, &priv.PublicKey))
}

func TestRemoteSigner(t *testing.T) {
	local, err := NewDefaultSigner(testPrivateKeyHex)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var in struct {
			PayloadHex string `json:"payload_hex"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		payload, _ := hex.DecodeString(in.PayloadHex)
		sig, err := local.Sign(payload)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"signature_hex": "0x" + hex.EncodeToString(sig)})
	}))
	defer srv.Close()

	digest := sha256.Sum256([]byte("payload"))

	tests := []struct {
		name    string
		apiKey  string
		payload []byte
		wantErr string
	}{
		{name: "signs digest", apiKey: "secret", payload: digest[:]},
		{name: "unauthorized", apiKey: "wrong", payload: digest[:], wantErr: "remote signer returned status 401"},
		{name: "short payload", apiKey: "secret", payload: []byte("short"), wantErr: "payload must be 32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote, err := NewRemoteSigner(srv.URL, tt.apiKey, WithTimeout(5*time.Second))
			require.NoError(t, err)

			sig, err := remote.Sign(tt.payload)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			want, err := local.Sign(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, want, sig)
		})
	}

	_, err = NewRemoteSigner(" ", "")
	assert.ErrorContains(t, err, "endpoint required")
}
