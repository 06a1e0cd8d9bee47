package verificationmethod

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-pex-sdk/credential/common/crypto"
)

// VerificationMethodEntry represents a single verification method in a DID Document.
type VerificationMethodEntry struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Controller   string `json:"controller"`
	PublicKeyHex string `json:"publicKeyHex"`
}

// DIDDocument represents the structure of a resolved DID Document.
type DIDDocument struct {
	Context             []string                  `json:"@context"`
	ID                  string                    `json:"id"`
	VerificationMethod  []VerificationMethodEntry `json:"verificationMethod"`
	Authentication      []string                  `json:"authentication"`
	AssertionMethod     []string                  `json:"assertionMethod"`
	Controller          string                    `json:"controller,omitempty"`
	DIDDocumentMetadata map[string]interface{}    `json:"didDocumentMetadata,omitempty"`
}

// Resolver is a client for resolving DIDs from a specific endpoint.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// ResolverOpt configures a Resolver.
type ResolverOpt func(*Resolver)

// WithHTTPClient replaces the HTTP client used to reach the resolver.
func WithHTTPClient(client *http.Client) ResolverOpt {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// NewResolver creates a new DID resolver with a given base URL. Requests are
// traced through an otelhttp transport.
func NewResolver(baseURL string, opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetPublicKey retrieves the public key in hex format for a given verification method URL.
func (r *Resolver) GetPublicKey(verificationMethodURL string) (string, error) {
	didPart, err := r.GetDIDFromVerificationMethod(verificationMethodURL)
	if err != nil {
		return "", err
	}

	doc, err := r.ResolveToDoc(didPart)
	if err != nil {
		return "", fmt.Errorf("failed to resolve DID '%s': %w", didPart, err)
	}

	for _, vm := range doc.VerificationMethod {
		if vm.ID == verificationMethodURL {
			return strings.TrimPrefix(vm.PublicKeyHex, "0x"), nil
		}
	}

	return "", fmt.Errorf("verification method '%s' not found in DID document", verificationMethodURL)
}

// ResolveToDoc fetches and parses a DID document from the resolver endpoint.
func (r *Resolver) ResolveToDoc(did string) (*DIDDocument, error) {
	return r.Resolve(context.Background(), did)
}

// Resolve fetches and parses a DID document, honoring ctx.
func (r *Resolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	apiURL := r.baseURL + "/" + url.PathEscape(did)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DID resolver request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}

	var doc DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}

	return &doc, nil
}

// GetDIDFromVerificationMethod extracts the DID from a verification method URL.
func (r *Resolver) GetDIDFromVerificationMethod(verificationMethod string) (string, error) {
	if verificationMethod == "" {
		return "", fmt.Errorf("verification method is empty")
	}

	didPart, _, found := strings.Cut(verificationMethod, "#")
	if !found || didPart == "" {
		return "", fmt.Errorf("invalid verification method URL, could not extract DID: %s", verificationMethod)
	}

	if !strings.HasPrefix(didPart, "did:") {
		return "", fmt.Errorf("extracted DID '%s' is invalid, must start with 'did:'", didPart)
	}

	return didPart, nil
}

// CheckVerificationMethod verifies if the provided private key matches the public key
// associated with the given verification method in its DID document.
func (r *Resolver) CheckVerificationMethod(privateKey, verificationMethod string) (bool, error) {
	if privateKey == "" || verificationMethod == "" {
		return false, fmt.Errorf("private key or verification method is empty")
	}

	publicKey, err := r.GetPublicKey(verificationMethod)
	if err != nil {
		return false, fmt.Errorf("failed to Get Public Key pair for '%s': %w", verificationMethod, err)
	}

	isValid, err := crypto.VerifyKeyPairFromHex(privateKey, publicKey)
	if err != nil {
		return false, fmt.Errorf("failed to verify key pair for '%s': %w", verificationMethod, err)
	}

	return isValid, nil
}
