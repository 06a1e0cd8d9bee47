package util

import (
	"fmt"

	"github.com/pilacorp/go-pex-sdk/credential/common/dto"
)

// JSONMap represents a JSON object as a map.
type JSONMap = map[string]interface{}

// OneOrMany renders items the JSON-LD way: nothing for no items, a single
// object for one item and an array otherwise.
func OneOrMany[T any, U any](items []T, fn func(T) U) interface{} {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return fn(items[0])
	}

	out := make([]U, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}

	return out
}

// SerializeTypes renders a "type" value.
func SerializeTypes(types []string) interface{} {
	return OneOrMany(types, func(t string) interface{} { return t })
}

// SerializeContexts checks the entries of an @context value. Entries are
// either non-empty IRIs or flat context objects.
func SerializeContexts(contexts []interface{}) ([]interface{}, error) {
	out := make([]interface{}, 0, len(contexts))

	for i, entry := range contexts {
		switch v := entry.(type) {
		case string:
			if v == "" {
				return nil, fmt.Errorf("failed to validate context: context string at index %d is empty", i)
			}
		case JSONMap:
			if err := checkContextObject(v); err != nil {
				return nil, fmt.Errorf("failed to validate context: context object at index %d %w", i, err)
			}
		case nil:
			return nil, fmt.Errorf("failed to validate context: context entry at index %d is nil", i)
		default:
			return nil, fmt.Errorf("failed to validate context: invalid context entry at index %d: must be string or map, got %T", i, v)
		}

		out = append(out, entry)
	}

	return out, nil
}

func checkContextObject(obj JSONMap) error {
	if _, nested := obj["@context"]; nested {
		return fmt.Errorf("must not contain nested @context")
	}

	for key, value := range obj {
		if key == "" {
			return fmt.Errorf("has empty key")
		}
		if s, ok := value.(string); ok && s == "" {
			return fmt.Errorf("has empty string value for key %q", key)
		}
	}

	return nil
}

// SerializeProofs renders proofs as a single object or an array, omitting empty members.
func SerializeProofs(proofs []dto.Proof) interface{} {
	return OneOrMany(proofs, func(p dto.Proof) JSONMap {
		members := []struct {
			key, value string
		}{
			{"type", p.Type},
			{"created", p.Created},
			{"verificationMethod", p.VerificationMethod},
			{"proofPurpose", p.ProofPurpose},
			{"proofValue", p.ProofValue},
			{"cryptosuite", p.Cryptosuite},
		}

		obj := make(JSONMap, len(members))
		for _, m := range members {
			if m.value != "" {
				obj[m.key] = m.value
			}
		}

		return obj
	})
}

// CopyObj returns a shallow copy of obj; the copy of nil is an empty object.
func CopyObj(obj JSONMap) JSONMap {
	out := make(JSONMap, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	return out
}

// SplitJSONObj splits obj into the named fields and the rest.
func SplitJSONObj(obj JSONMap, fields ...string) (picked, rest JSONMap) {
	picked = make(JSONMap)
	rest = CopyObj(obj)

	for _, f := range fields {
		if v, ok := rest[f]; ok {
			picked[f] = v
			delete(rest, f)
		}
	}

	return picked, rest
}
