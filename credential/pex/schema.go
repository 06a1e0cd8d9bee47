package pex

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// DefinitionJSONSchema is the structural schema of the presentation definitions
// this package evaluates. Filters are closed: a filter keyword that cannot be
// evaluated is rejected instead of being ignored.
const DefinitionJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Presentation Definition",
  "type": "object",
  "definitions": {
    "claim_format": {
      "type": "object",
      "patternProperties": {
        "^jwt$|^jwt_vc$|^jwt_vc_json$|^jwt_vp$": {
          "type": "object",
          "properties": {
            "alg": {"type": "array", "minItems": 1, "items": {"type": "string"}}
          },
          "required": ["alg"],
          "additionalProperties": false
        },
        "^ldp$|^ldp_vc$|^ldp_vp$": {
          "type": "object",
          "properties": {
            "proof_type": {"type": "array", "minItems": 1, "items": {"type": "string"}}
          },
          "required": ["proof_type"],
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "filter": {
      "type": "object",
      "properties": {
        "type": {"type": "string", "enum": ["string", "number", "integer", "boolean"]},
        "pattern": {"type": "string"},
        "const": {"type": ["string", "number", "boolean"]},
        "enum": {"type": "array", "minItems": 1, "items": {"type": ["string", "number", "boolean"]}}
      },
      "additionalProperties": false
    },
    "field": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "purpose": {"type": "string"},
        "optional": {"type": "boolean"},
        "path": {"type": "array", "minItems": 1, "items": {"type": "string"}},
        "filter": {"$ref": "#/definitions/filter"}
      },
      "required": ["path"]
    },
    "input_descriptor": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "purpose": {"type": "string"},
        "group": {"type": "array", "items": {"type": "string"}},
        "format": {"$ref": "#/definitions/claim_format"},
        "constraints": {
          "type": "object",
          "properties": {
            "fields": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/field"}}
          }
        }
      },
      "required": ["id"]
    },
    "submission_requirement": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "purpose": {"type": "string"},
        "rule": {"type": "string", "enum": ["all", "pick"]},
        "count": {"type": "integer", "minimum": 0},
        "min": {"type": "integer", "minimum": 0},
        "max": {"type": "integer", "minimum": 0},
        "from": {"type": "string"},
        "from_nested": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/submission_requirement"}}
      },
      "required": ["rule"],
      "oneOf": [
        {"required": ["from"]},
        {"required": ["from_nested"]}
      ]
    }
  },
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "purpose": {"type": "string"},
    "format": {"$ref": "#/definitions/claim_format"},
    "submission_requirements": {"type": "array", "items": {"$ref": "#/definitions/submission_requirement"}},
    "input_descriptors": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/input_descriptor"}}
  },
  "required": ["id", "input_descriptors"]
}`

var definitionSchemaLoader = gojsonschema.NewStringLoader(DefinitionJSONSchema)

// validateSchema checks a definition document against DefinitionJSONSchema and
// returns one message per violation.
func validateSchema(document interface{}) ([]string, error) {
	result, err := gojsonschema.Validate(definitionSchemaLoader, gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to validate presentation definition schema: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}

	return messages, nil
}

// schemaDocument re-reads a typed definition as generic JSON so it is checked
// exactly as it would be serialized.
func schemaDocument(pd *PresentationDefinition) (interface{}, error) {
	data, err := json.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presentation definition: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation definition: %w", err)
	}

	return doc, nil
}
