package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-pex-sdk/credential/pex"
)

var (
	// ErrCredentialNotFound is returned for an unknown credential id.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrEmptyToken is returned when adding an empty credential token.
	ErrEmptyToken = errors.New("credential token cannot be empty")
)

// CredentialStore holds credential tokens in insertion order and caches their
// decoded claims. It is safe for concurrent use.
type CredentialStore struct {
	mu      sync.RWMutex
	tokens  map[string]string
	ids     map[string]string // token -> id
	order   []string
	claims  map[string]*pex.Decoded
	group   singleflight.Group
	decoder pex.TokenDecoder
	engine  *pex.Engine
	logger  *slog.Logger
}

// StoreOpt configures a CredentialStore.
type StoreOpt func(*CredentialStore)

// WithDecoder replaces the token decoder (default: pex.DecodeToken).
func WithDecoder(decoder pex.TokenDecoder) StoreOpt {
	return func(s *CredentialStore) {
		if decoder != nil {
			s.decoder = decoder
		}
	}
}

// WithLogger sets the logger of the store and of its engine.
func WithLogger(logger *slog.Logger) StoreOpt {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCredentialStore initializes a new CredentialStore. Its engine decodes
// candidates through the store cache.
func NewCredentialStore(opts ...StoreOpt) *CredentialStore {
	s := &CredentialStore{
		tokens:  make(map[string]string),
		ids:     make(map[string]string),
		claims:  make(map[string]*pex.Decoded),
		decoder: pex.DecoderFunc(pex.DecodeToken),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine = pex.NewEngine(pex.WithLogger(s.logger), pex.WithTokenDecoder(s))

	return s
}

// Engine returns the engine bound to the store cache.
func (s *CredentialStore) Engine() *pex.Engine {
	return s.engine
}

// Add decodes token and stores it under the credential id (the "id" claim, then
// the JWT "jti", then a random urn:uuid). Adding an id again replaces its token,
// and adding a token without an id again returns the id it is stored under.
func (s *CredentialStore) Add(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}

	dec, err := s.decoder.Decode(token)
	if err != nil {
		return "", fmt.Errorf("failed to decode credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := credentialID(dec)
	if id == "" {
		if stored, exists := s.ids[token]; exists {
			id = stored
		} else {
			id = "urn:uuid:" + uuid.NewString()
		}
	}

	if old, exists := s.tokens[id]; exists {
		delete(s.ids, old)
	} else {
		s.order = append(s.order, id)
	}

	s.tokens[id] = token
	s.ids[token] = id
	s.claims[id] = dec

	s.logger.Debug("credential stored", "id", id, "format", dec.Format)

	return id, nil
}

// Put stores token under a known id without decoding it, as when restoring a
// wallet. Its claims are decoded on first use.
func (s *CredentialStore) Put(id, token string) error {
	token = strings.TrimSpace(token)
	if id == "" || token == "" {
		return fmt.Errorf("id and credential token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.tokens[id]; exists {
		delete(s.ids, old)
	} else {
		s.order = append(s.order, id)
	}

	s.tokens[id] = token
	s.ids[token] = id
	delete(s.claims, id)

	return nil
}

func credentialID(dec *pex.Decoded) string {
	if id, ok := dec.Claims["id"].(string); ok && id != "" {
		return id
	}
	if jti, ok := dec.Envelope["jti"].(string); ok && jti != "" {
		return jti
	}

	return ""
}

// Get retrieves a credential token by id.
func (s *CredentialStore) Get(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[id]
	if !exists {
		return "", ErrCredentialNotFound
	}
	return token, nil
}

// Delete removes a credential by id.
func (s *CredentialStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, exists := s.tokens[id]
	if !exists {
		return ErrCredentialNotFound
	}

	delete(s.tokens, id)
	delete(s.ids, token)
	delete(s.claims, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Candidates returns the stored tokens in insertion order.
func (s *CredentialStore) Candidates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tokens[id])
	}
	return out
}

// Claims returns the decoded claims of a credential. Concurrent misses for the
// same id share one decode.
func (s *CredentialStore) Claims(id string) (*pex.Decoded, error) {
	s.mu.RLock()
	dec, cached := s.claims[id]
	token, exists := s.tokens[id]
	s.mu.RUnlock()

	if cached {
		return dec, nil
	}
	if !exists {
		return nil, ErrCredentialNotFound
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		dec, err := s.decoder.Decode(token)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if current, ok := s.tokens[id]; ok && current == token {
			s.claims[id] = dec
		}
		s.mu.Unlock()

		return dec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode credential %s: %w", id, err)
	}

	return v.(*pex.Decoded), nil
}

// Decode implements pex.TokenDecoder, serving stored tokens from the cache.
func (s *CredentialStore) Decode(token string) (*pex.Decoded, error) {
	s.mu.RLock()
	id, stored := s.ids[strings.TrimSpace(token)]
	s.mu.RUnlock()

	if !stored {
		return s.decoder.Decode(token)
	}

	return s.Claims(id)
}
