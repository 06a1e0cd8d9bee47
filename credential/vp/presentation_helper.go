package vp

import (
	"encoding/json"
	"fmt"

	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-pex-sdk/credential/common/util"
	"github.com/pilacorp/go-pex-sdk/credential/vc"
)

// reservedFields are the presentation members with a dedicated PresentationContents field.
var reservedFields = []string{"@context", "id", "type", "holder", "verifiableCredential", "proof"}

// verifyCredentials verifies the proofs of the credentials embedded in a presentation.
func verifyCredentials(data PresentationData, baseURL string) error {
	contents, err := ContentsFromData(data)
	if err != nil {
		return err
	}

	for i, cred := range contents.VerifiableCredentials {
		if err := cred.Verify(vc.WithBaseURL(baseURL)); err != nil {
			return fmt.Errorf("failed to verify credential at index %d: %w", i, err)
		}
	}

	return nil
}

// serializeCredential returns the form a credential takes inside verifiableCredential.
func serializeCredential(cred vc.Credential) (interface{}, error) {
	if cred.GetType() == vc.TypeJWT {
		return cred.Serialize()
	}

	raw, err := cred.GetContents()
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return m, nil
}

// serializePresentationContents serializes PresentationContents into a JSON map.
func serializePresentationContents(vpc *PresentationContents) (jsonmap.JSONMap, error) {
	if vpc == nil {
		return nil, fmt.Errorf("presentation contents is nil")
	}

	vpJSON := make(jsonmap.JSONMap)

	for k, v := range vpc.CustomFields {
		vpJSON[k] = v
	}
	if len(vpc.Context) > 0 {
		validatedContext, err := util.SerializeContexts(vpc.Context)
		if err != nil {
			return nil, fmt.Errorf("invalid @context: %w", err)
		}
		vpJSON["@context"] = validatedContext
	}
	if vpc.ID != "" {
		vpJSON["id"] = vpc.ID
	}
	if len(vpc.Types) > 0 {
		vpJSON["type"] = util.SerializeTypes(vpc.Types)
	}
	if vpc.Holder != "" {
		vpJSON["holder"] = vpc.Holder
	}
	if len(vpc.VerifiableCredentials) > 0 {
		creds := make([]interface{}, 0, len(vpc.VerifiableCredentials))
		for i, cred := range vpc.VerifiableCredentials {
			if cred == nil {
				return nil, fmt.Errorf("credential at index %d is nil", i)
			}
			serialized, err := serializeCredential(cred)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize credential at index %d: %w", i, err)
			}
			creds = append(creds, serialized)
		}
		vpJSON["verifiableCredential"] = creds
	}

	return vpJSON, nil
}

// ContentsFromData parses presentation data into its structured contents.
func ContentsFromData(data PresentationData) (PresentationContents, error) {
	var contents PresentationContents

	parsers := []func(PresentationData, *PresentationContents) error{
		parseContext,
		parseID,
		parseTypes,
		parseHolder,
		parseVerifiableCredentials,
		parseCustomFields,
	}
	for _, parse := range parsers {
		if err := parse(data, &contents); err != nil {
			return PresentationContents{}, err
		}
	}

	return contents, nil
}

// parseContext extracts the @context field from a Presentation.
func parseContext(data PresentationData, contents *PresentationContents) error {
	if context, ok := data["@context"].([]interface{}); ok {
		for _, ctx := range context {
			switch v := ctx.(type) {
			case string, map[string]interface{}:
				contents.Context = append(contents.Context, v)
			default:
				return fmt.Errorf("unsupported context type: %T", v)
			}
		}
	}
	return nil
}

// parseID extracts the ID field from a Presentation.
func parseID(data PresentationData, contents *PresentationContents) error {
	if id, ok := data["id"].(string); ok {
		contents.ID = id
	}
	return nil
}

// parseTypes extracts the type field from a Presentation.
func parseTypes(data PresentationData, contents *PresentationContents) error {
	switch v := data["type"].(type) {
	case nil:
	case string:
		contents.Types = append(contents.Types, v)
	case []interface{}:
		for _, t := range v {
			if typeStr, ok := t.(string); ok {
				contents.Types = append(contents.Types, typeStr)
			}
		}
	default:
		return fmt.Errorf("unsupported type field: %T", v)
	}
	return nil
}

// parseHolder extracts the holder field from a Presentation.
func parseHolder(data PresentationData, contents *PresentationContents) error {
	if holder, ok := data["holder"].(string); ok {
		contents.Holder = holder
	}
	return nil
}

// parseVerifiableCredentials extracts the verifiableCredential field from a Presentation.
func parseVerifiableCredentials(data PresentationData, contents *PresentationContents) error {
	var items []interface{}
	switch v := data["verifiableCredential"].(type) {
	case nil:
		return nil
	case []interface{}:
		items = v
	default:
		items = []interface{}{v}
	}

	for i, item := range items {
		var raw []byte
		switch v := item.(type) {
		case string:
			raw = []byte(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal credential at index %d: %w", i, err)
			}
			raw = b
		}

		credential, err := vc.ParseCredential(raw)
		if err != nil {
			return fmt.Errorf("failed to parse credential at index %d: %w", i, err)
		}
		contents.VerifiableCredentials = append(contents.VerifiableCredentials, credential)
	}
	return nil
}

// parseCustomFields keeps every member without a dedicated field.
func parseCustomFields(data PresentationData, contents *PresentationContents) error {
	_, rest := util.SplitJSONObj(data, reservedFields...)
	if len(rest) > 0 {
		contents.CustomFields = rest
	}
	return nil
}
