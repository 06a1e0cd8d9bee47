package vc

import (
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pilacorp/go-pex-sdk/credential/common/jsonmap"
	"github.com/pilacorp/go-pex-sdk/credential/common/util"
)

// serializeCredentialContents renders contents as a credential data model object.
func serializeCredentialContents(vcc *CredentialContents) (jsonmap.JSONMap, error) {
	if vcc == nil {
		return nil, fmt.Errorf("credential contents is nil")
	}

	out := make(jsonmap.JSONMap)

	if len(vcc.Context) > 0 {
		contexts, err := util.SerializeContexts(vcc.Context)
		if err != nil {
			return nil, fmt.Errorf("invalid @context: %w", err)
		}
		out["@context"] = contexts
	}

	setString(out, "id", vcc.ID)
	setString(out, "issuer", vcc.Issuer)
	setValue(out, "type", util.SerializeTypes(vcc.Types))
	setValue(out, "credentialSubject", util.OneOrMany(vcc.Subject, serializeSubject))
	setValue(out, "credentialSchema", util.OneOrMany(vcc.Schemas, serializeSchema))
	setValue(out, "credentialStatus", util.OneOrMany(vcc.CredentialStatus, serializeStatus))

	if !vcc.ValidFrom.IsZero() {
		out["validFrom"] = vcc.ValidFrom.Format(time.RFC3339)
	}
	if !vcc.ValidUntil.IsZero() {
		out["validUntil"] = vcc.ValidUntil.Format(time.RFC3339)
	}

	return out, nil
}

func setString(obj jsonmap.JSONMap, key, value string) {
	if value != "" {
		obj[key] = value
	}
}

func setValue(obj jsonmap.JSONMap, key string, value interface{}) {
	if value != nil {
		obj[key] = value
	}
}

func serializeSubject(subject Subject) jsonmap.JSONMap {
	obj := util.CopyObj(subject.CustomFields)
	setString(obj, "id", subject.ID)

	return obj
}

func serializeSchema(schema Schema) jsonmap.JSONMap {
	return jsonmap.JSONMap{"id": schema.ID, "type": schema.Type}
}

func serializeStatus(status Status) jsonmap.JSONMap {
	obj := make(jsonmap.JSONMap)
	for key, field := range statusFields(&status) {
		setString(obj, key, *field)
	}

	return obj
}

// statusFields maps the members of a credentialStatus entry to their fields.
func statusFields(s *Status) map[string]*string {
	return map[string]*string{
		"id":                   &s.ID,
		"type":                 &s.Type,
		"statusPurpose":        &s.StatusPurpose,
		"statusListIndex":      &s.StatusListIndex,
		"statusListCredential": &s.StatusListCredential,
	}
}

// ParseCredentialContents reads the structured contents of credential data.
func ParseCredentialContents(c CredentialData) (CredentialContents, error) {
	var contents CredentialContents

	parsers := []func(CredentialData, *CredentialContents) error{
		parseContext,
		parseTypes,
		parseDates,
		parseSubject,
		parseSchema,
		parseStatus,
	}
	for _, parse := range parsers {
		if err := parse(c, &contents); err != nil {
			return CredentialContents{}, err
		}
	}

	contents.ID, _ = c["id"].(string)
	contents.Issuer, _ = c["issuer"].(string)

	return contents, nil
}

func parseContext(c CredentialData, contents *CredentialContents) error {
	entries, _ := c["@context"].([]interface{})

	for _, entry := range entries {
		switch entry.(type) {
		case string, map[string]interface{}:
			contents.Context = append(contents.Context, entry)
		default:
			return fmt.Errorf("unsupported context type: %T", entry)
		}
	}

	return nil
}

func parseTypes(c CredentialData, contents *CredentialContents) error {
	switch v := c["type"].(type) {
	case nil:
	case string:
		contents.Types = []string{v}
	case []interface{}:
		for _, t := range v {
			if s, ok := t.(string); ok {
				contents.Types = append(contents.Types, s)
			}
		}
	default:
		return fmt.Errorf("unsupported type field: %T", v)
	}

	return nil
}

func parseDates(c CredentialData, contents *CredentialContents) error {
	dates := []struct {
		key    string
		target *time.Time
	}{
		{"validFrom", &contents.ValidFrom},
		{"validUntil", &contents.ValidUntil},
	}

	for _, d := range dates {
		raw, ok := c[d.key].(string)
		if !ok {
			continue
		}

		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", d.key, err)
		}
		*d.target = t
	}

	return nil
}

// objects normalizes a one-or-many JSON value to a list of objects.
func objects(value interface{}, what string) ([]map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("unsupported %s format: %T", what, item)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported %s format: %T", what, value)
	}
}

func parseSubject(c CredentialData, contents *CredentialContents) error {
	if id, ok := c["credentialSubject"].(string); ok {
		contents.Subject = []Subject{{ID: id}}
		return nil
	}

	objs, err := objects(c["credentialSubject"], "subject")
	if err != nil {
		return err
	}

	for _, obj := range objs {
		subject, err := SubjectFromJSON(obj)
		if err != nil {
			return fmt.Errorf("failed to parse subject: %w", err)
		}
		contents.Subject = append(contents.Subject, subject)
	}

	return nil
}

// SubjectFromJSON creates a credential subject from a JSON object.
func SubjectFromJSON(obj jsonmap.JSONMap) (Subject, error) {
	picked, rest := util.SplitJSONObj(obj, "id")

	id, err := parseStringField(picked, "id")
	if err != nil {
		return Subject{}, fmt.Errorf("failed to parse subject id: %w", err)
	}

	return Subject{ID: id, CustomFields: rest}, nil
}

func parseSchema(c CredentialData, contents *CredentialContents) error {
	raw := c["credentialSchema"]

	items, ok := raw.([]interface{})
	if !ok && raw != nil {
		items = []interface{}{raw}
	}

	for _, item := range items {
		switch v := item.(type) {
		case string:
			contents.Schemas = append(contents.Schemas, Schema{ID: v})
		case map[string]interface{}:
			var schema Schema
			schema.ID, _ = v["id"].(string)
			schema.Type, _ = v["type"].(string)
			contents.Schemas = append(contents.Schemas, schema)
		default:
			return fmt.Errorf("failed to parse schema: invalid schema format: %T", v)
		}
	}

	return nil
}

func parseStatus(c CredentialData, contents *CredentialContents) error {
	objs, err := objects(c["credentialStatus"], "status")
	if err != nil {
		return fmt.Errorf("failed to parse status: %w", err)
	}

	for _, obj := range objs {
		status, err := parseStatusEntry(obj)
		if err != nil {
			return fmt.Errorf("failed to parse status: %w", err)
		}
		contents.CredentialStatus = append(contents.CredentialStatus, status)
	}

	return nil
}

func parseStatusEntry(obj map[string]interface{}) (Status, error) {
	var s Status

	for key, field := range statusFields(&s) {
		value, err := parseStringField(obj, key)
		if err != nil {
			return Status{}, err
		}
		*field = value
	}

	return s, nil
}

// parseStringField returns the named string member of obj, or "" when it is absent.
func parseStringField(obj jsonmap.JSONMap, name string) (string, error) {
	value, ok := obj[name]
	if !ok {
		return "", nil
	}

	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %T", name, value)
	}

	return s, nil
}

// validateCredential validates the credential against every JSON schema named by credentialSchema.
func validateCredential(m jsonmap.JSONMap) error {
	schemas, err := objects(m["credentialSchema"], "credentialSchema")
	if err != nil {
		return fmt.Errorf("credentialSchema.id is required")
	}
	if len(schemas) == 0 {
		return fmt.Errorf("credentialSchema is required")
	}

	for _, schema := range schemas {
		id, _ := schema["id"].(string)
		if id == "" {
			return fmt.Errorf("credentialSchema.id must be a non-empty string")
		}

		result, err := gojsonschema.Validate(gojsonschema.NewReferenceLoader(id), gojsonschema.NewGoLoader(m))
		if err != nil {
			return fmt.Errorf("failed to validate schema: %w", err)
		}
		if !result.Valid() {
			return fmt.Errorf("credential validation failed: %v", result.Errors())
		}
	}

	return nil
}
