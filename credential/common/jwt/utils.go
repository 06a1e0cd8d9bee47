package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var compactJWT = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`)

// IsCompact reports whether token has the header.payload.signature form.
// The signature segment may be empty for unsigned tokens.
func IsCompact(token string) bool {
	return compactJWT.MatchString(token)
}

// DecodeSegment decodes a base64url JWT segment into a JSON object.
func DecodeSegment(segment string) (map[string]interface{}, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode segment: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment: %w", err)
	}

	return m, nil
}

// DecodePayload returns the payload of a compact JWT without verifying it.
func DecodePayload(tokenString string) (map[string]interface{}, error) {
	parts := strings.Split(strings.Trim(tokenString, `"`), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid JWT format")
	}

	return DecodeSegment(parts[1])
}

// GetDocumentFromJWT returns the docType claim ("vc" or "vp") of a compact JWT.
func GetDocumentFromJWT(tokenString string, docType string) (map[string]interface{}, error) {
	payload, err := DecodePayload(tokenString)
	if err != nil {
		return nil, err
	}

	documentData, ok := payload[docType]
	if !ok {
		return nil, fmt.Errorf("document type %s not found in JWT", docType)
	}

	documentMap, ok := documentData.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("document is not a valid JSON object")
	}

	return documentMap, nil
}
