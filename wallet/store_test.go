package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-pex-sdk/credential/pex"
	"github.com/pilacorp/go-pex-sdk/credential/vc"
	"github.com/pilacorp/go-pex-sdk/credential/vp"
	"github.com/pilacorp/go-pex-sdk/did"
	"github.com/pilacorp/go-pex-sdk/did/signer"
)

const holderPrivateKeyHex = "e5c9a597b20e13627a3850d38439b61ec9ee7aefd77c7cb6c01dc3866e1db19a"

func newCredential(t *testing.T, id string, fields map[string]interface{}) string {
	t.Helper()

	cred, err := vc.NewJWTCredential(vc.CredentialContents{
		Context: []interface{}{"https://www.w3.org/2018/credentials/v1"},
		ID:      id,
		Types:   []string{"VerifiableCredential"},
		Issuer:  "did:example:issuer",
		Subject: []vc.Subject{{ID: "did:example:holder", CustomFields: fields}},
	})
	require.NoError(t, err)

	serialized, err := cred.Serialize()
	require.NoError(t, err)

	return serialized.(string)
}

const nameDefinition = `{
	"id": "name-check",
	"input_descriptors": [{
		"id": "name",
		"constraints": {"fields": [{"path": ["$.credentialSubject.name"], "filter": {"type": "string"}}]}
	}]
}`

func TestCredentialStore(t *testing.T) {
	store := NewCredentialStore()

	first := newCredential(t, "urn:uuid:first", map[string]interface{}{"name": "Alice"})
	second := newCredential(t, "urn:uuid:second", map[string]interface{}{"age": 30})

	id1, err := store.Add(first)
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:first", id1)

	id2, err := store.Add(second)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, store.Candidates())

	token, err := store.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, second, token)

	dec, err := store.Claims(id1)
	require.NoError(t, err)
	assert.Equal(t, pex.FormatJWTVC, dec.Format)

	replaced := newCredential(t, "urn:uuid:first", map[string]interface{}{"name": "Bob"})
	_, err = store.Add(replaced)
	require.NoError(t, err)
	assert.Equal(t, []string{replaced, second}, store.Candidates())

	dec, err = store.Claims(id1)
	require.NoError(t, err)
	subject := dec.Claims["credentialSubject"].(map[string]interface{})
	assert.Equal(t, "Bob", subject["name"])

	require.NoError(t, store.Delete(id1))
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(id1)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.ErrorIs(t, store.Delete(id1), ErrCredentialNotFound)

	_, err = store.Claims(id1)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	_, err = store.Add("  ")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = store.Add("not a credential")
	assert.ErrorContains(t, err, "failed to decode credential")
}

func TestCredentialStoreAddWithoutID(t *testing.T) {
	store := NewCredentialStore()

	token := `{"type": ["VerifiableCredential"], "credentialSubject": {"name": "Alice"}}`

	id, err := store.Add(token)
	require.NoError(t, err)
	assert.Regexp(t, `^urn:uuid:[0-9a-f-]{36}$`, id)

	again, err := store.Add(token)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{token}, store.Candidates())

	other, err := store.Add(`{"type": ["VerifiableCredential"], "credentialSubject": {"name": "Bob"}}`)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	require.NoError(t, store.Delete(id))
	assert.Equal(t, 1, store.Len())
	_, err = store.Claims(other)
	assert.NoError(t, err)
}

func TestClaimsDecodesOnce(t *testing.T) {
	var calls atomic.Int32
	decoder := pex.DecoderFunc(func(token string) (*pex.Decoded, error) {
		calls.Add(1)
		return pex.DecodeToken(token)
	})

	store := NewCredentialStore(WithDecoder(decoder))
	require.NoError(t, store.Put("cred-1", newCredential(t, "urn:uuid:cred-1", map[string]interface{}{"name": "Alice"})))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := store.Claims("cred-1")
			assert.NoError(t, err)
			assert.NotNil(t, dec)
		}()
	}
	wg.Wait()

	_, err := store.Claims("cred-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, calls.Load(), int32(16))

	before := calls.Load()
	_, err = store.Engine().Match(store.Candidates(), mustDefinition(t, nameDefinition))
	require.NoError(t, err)
	assert.Equal(t, before, calls.Load(), "engine decodes through the cache")
}

func TestClaimsDecodeError(t *testing.T) {
	failing := errors.New("boom")
	store := NewCredentialStore(WithDecoder(pex.DecoderFunc(func(string) (*pex.Decoded, error) {
		return nil, failing
	})))

	require.NoError(t, store.Put("cred-1", "token"))
	_, err := store.Claims("cred-1")
	assert.ErrorIs(t, err, failing)

	assert.Error(t, store.Put("", "token"))
}

func mustDefinition(t *testing.T, data string) *pex.PresentationDefinition {
	t.Helper()

	pd, err := pex.ParseDefinition([]byte(data))
	require.NoError(t, err)

	return pd
}

func TestPresent(t *testing.T) {
	holder, err := did.KeyPairFromHex("did:example", holderPrivateKeyHex)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(holder.Document())
	}))
	defer srv.Close()

	holderSigner, err := signer.NewDefaultSigner(holder.PrivateKey)
	require.NoError(t, err)

	store := NewCredentialStore()
	_, err = store.Add(newCredential(t, "urn:uuid:age", map[string]interface{}{"age": 30}))
	require.NoError(t, err)
	nameToken := newCredential(t, "urn:uuid:name", map[string]interface{}{"name": "Alice"})
	_, err = store.Add(nameToken)
	require.NoError(t, err)

	pd := mustDefinition(t, nameDefinition)

	presented, err := store.Present(pd,
		WithHolder(holder.Identifier),
		WithSigner(holderSigner, ""),
		WithPresentationOptions(pex.WithPresentationID("urn:uuid:vp-1")),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{nameToken}, presented.Credentials)
	assert.Equal(t, "name-check", presented.Submission.DefinitionID)

	parsed, err := vp.ParsePresentation([]byte(presented.Token))
	require.NoError(t, err)
	require.NoError(t, parsed.Verify(vp.WithBaseURL(srv.URL)))

	raw, err := parsed.GetContents()
	require.NoError(t, err)

	var presentation map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &presentation))
	assert.Equal(t, holder.Identifier, presentation["holder"])
	assert.Equal(t, "urn:uuid:vp-1", presentation["id"])

	res, err := pex.NewEngine().EvaluatePresentation(pd, presentation)
	require.NoError(t, err)
	assert.True(t, res.Satisfied)
}

func TestPresentErrors(t *testing.T) {
	store := NewCredentialStore()
	_, err := store.Add(newCredential(t, "urn:uuid:age", map[string]interface{}{"age": 30}))
	require.NoError(t, err)

	pd := mustDefinition(t, nameDefinition)

	_, err = store.Present(pd)
	assert.ErrorIs(t, err, pex.ErrUnsatisfied)

	holderSigner, err := signer.NewDefaultSigner(holderPrivateKeyHex)
	require.NoError(t, err)

	_, err = store.Present(pd, WithSigner(holderSigner, "key-1"))
	assert.ErrorContains(t, err, "holder is required")
}
