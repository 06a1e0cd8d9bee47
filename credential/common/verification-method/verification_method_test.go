package verificationmethod

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "c6f8cf675b77523c3d3157d322b3c7c4cc14874f290407398361be1a4c1ed7d0"
	testDID        = "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0"
)

func newTestServer(t *testing.T, doc DIDDocument) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		did, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/"))
		if err != nil || did != doc.ID {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestResolver(t *testing.T) {
	doc := DIDDocument{
		ID: testDID,
		VerificationMethod: []VerificationMethodEntry{{
			ID:           testDID + "#key-1",
			Type:         "EcdsaSecp256k1VerificationKey2019",
			Controller:   testDID,
			PublicKeyHex: "0x" + "02" + strings.Repeat("ab", 32),
		}},
	}
	srv := newTestServer(t, doc)
	resolver := NewResolver(srv.URL + "/")

	t.Run("resolve document", func(t *testing.T) {
		got, err := resolver.ResolveToDoc(testDID)
		require.NoError(t, err)
		assert.Equal(t, testDID, got.ID)
		assert.Len(t, got.VerificationMethod, 1)
	})

	t.Run("public key without prefix", func(t *testing.T) {
		key, err := resolver.GetPublicKey(testDID + "#key-1")
		require.NoError(t, err)
		assert.Equal(t, "02"+strings.Repeat("ab", 32), key)
	})

	t.Run("unknown verification method", func(t *testing.T) {
		_, err := resolver.GetPublicKey(testDID + "#key-9")
		assert.ErrorContains(t, err, "not found in DID document")
	})

	t.Run("unknown DID", func(t *testing.T) {
		_, err := resolver.ResolveToDoc("did:nda:testnet:0x00")
		assert.ErrorContains(t, err, "non-200 status")
	})
}

func TestGetDIDFromVerificationMethod(t *testing.T) {
	r := NewResolver("http://localhost")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "valid", input: testDID + "#key-1", want: testDID},
		{name: "empty", input: "", wantErr: "verification method is empty"},
		{name: "no fragment", input: testDID, wantErr: "could not extract DID"},
		{name: "not a DID", input: "urn:x#key-1", wantErr: "must start with 'did:'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.GetDIDFromVerificationMethod(tt.input)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
