package config

import (
	"os"
)

// Default values
const (
	DefaultMethod      = "did:nda:testnet"
	DefaultResolverURL = "https://api.ndadid.vn/api/v1/did"
)

// Environment variable names
const (
	EnvMethod      = "DID_METHOD"
	EnvResolverURL = "DID_RESOLVER_URL"
)

// Method returns the DID method prefix from environment variable or default value
func Method() string {
	if method := os.Getenv(EnvMethod); method != "" {
		return method
	}
	return DefaultMethod
}

// ResolverURL returns the DID resolver base URL from environment variable or default value
func ResolverURL() string {
	if url := os.Getenv(EnvResolverURL); url != "" {
		return url
	}
	return DefaultResolverURL
}
