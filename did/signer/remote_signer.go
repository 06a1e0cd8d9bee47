package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteSigner signs digests through a key custody service, so holder keys
// never leave it.
type RemoteSigner struct {
	endpoint string
	apiKey   string
	client   *http.Client
	timeout  time.Duration
}

// RemoteOpt configures a RemoteSigner.
type RemoteOpt func(*RemoteSigner)

// WithTimeout bounds Sign calls (default: 10s).
func WithTimeout(d time.Duration) RemoteOpt {
	return func(s *RemoteSigner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) RemoteOpt {
	return func(s *RemoteSigner) {
		if client != nil {
			s.client = client
		}
	}
}

type signRequest struct {
	PayloadHex string `json:"payload_hex"`
}

type signResponse struct {
	SignatureHex string `json:"signature_hex"`
}

// NewRemoteSigner creates a signer for the service at endpoint. apiKey, when
// set, is sent in the x-api-key header.
func NewRemoteSigner(endpoint, apiKey string, opts ...RemoteOpt) (Signer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}

	s := &RemoteSigner{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:  defaultRemoteTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *RemoteSigner) Sign(payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.SignContext(ctx, payload)
}

// SignContext is Sign bounded by ctx.
func (s *RemoteSigner) SignContext(ctx context.Context, payload []byte) ([]byte, error) {
	if len(payload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}

	body, err := json.Marshal(signRequest{PayloadHex: hex.EncodeToString(payload)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote signer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer returned status %d", resp.StatusCode)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(sig))
	}

	return sig, nil
}
