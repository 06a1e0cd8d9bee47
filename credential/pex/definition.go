package pex

import (
	"encoding/json"
	"fmt"
)

const (
	// All requires every input descriptor (or nested requirement) of the pool.
	All Selection = "all"
	// Pick requires a cardinality of the pool given by count or min/max.
	Pick Selection = "pick"
)

// Selection is the rule of a submission requirement: "all" or "pick".
type Selection string

// PresentationDefinition describes the proofs a verifier requires
// (https://identity.foundation/presentation-exchange/#presentation-definition).
type PresentationDefinition struct {
	// ID unique resource identifier.
	ID string `json:"id"`
	// Name human-friendly name that describes what the definition pertains to.
	Name string `json:"name,omitempty"`
	// Purpose describes why the inputs are being requested.
	Purpose string `json:"purpose,omitempty"`
	// Format lists the claim formats (jwt_vc, ldp_vc, ...) the verifier can process.
	Format Format `json:"format,omitempty"`
	// SubmissionRequirements, when absent, means every input descriptor is required.
	SubmissionRequirements []*SubmissionRequirement `json:"submission_requirements,omitempty"`
	InputDescriptors       []*InputDescriptor       `json:"input_descriptors"`
}

// Format maps a claim format designation to its algorithm constraints.
type Format map[string]ClaimFormat

// ClaimFormat holds the jwt "alg" or the ldp "proof_type" constraints of a claim format.
type ClaimFormat struct {
	Alg       []string `json:"alg,omitempty"`
	ProofType []string `json:"proof_type,omitempty"`
}

// SubmissionRequirement is a rule over a group of input descriptors, or over nested requirements.
type SubmissionRequirement struct {
	Name       string                   `json:"name,omitempty"`
	Purpose    string                   `json:"purpose,omitempty"`
	Rule       Selection                `json:"rule"`
	Count      *int                     `json:"count,omitempty"`
	Min        *int                     `json:"min,omitempty"`
	Max        *int                     `json:"max,omitempty"`
	From       string                   `json:"from,omitempty"`
	FromNested []*SubmissionRequirement `json:"from_nested,omitempty"`
}

// InputDescriptor is one named requirement of a definition.
type InputDescriptor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Purpose     string       `json:"purpose,omitempty"`
	Group       []string     `json:"group,omitempty"`
	Format      Format       `json:"format,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// Constraints holds the field constraints of an input descriptor.
type Constraints struct {
	Fields []*Field `json:"fields,omitempty"`
}

// Field is a constraint on one logical claim. Path entries are alternate
// locations of the claim and are tried in order.
type Field struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Purpose  string   `json:"purpose,omitempty"`
	Path     []string `json:"path"`
	Optional bool     `json:"optional,omitempty"`
	Filter   *Filter  `json:"filter,omitempty"`
}

// Filter is the wire form of a field predicate. It is compiled once into a
// predicate before any credential is evaluated.
type Filter struct {
	Type    string            `json:"type,omitempty"`
	Pattern string            `json:"pattern,omitempty"`
	Const   json.RawMessage   `json:"const,omitempty"`
	Enum    []json.RawMessage `json:"enum,omitempty"`
}

// ParseDefinition parses a presentation definition document. Both a bare
// definition and one wrapped in a "presentation_definition" object are accepted.
// Every path and filter is compiled and the definition is validated, so a
// definition that cannot be evaluated is rejected here rather than during matching.
func ParseDefinition(data []byte) (*PresentationDefinition, error) {
	raw, err := unwrapDefinition(data)
	if err != nil {
		return nil, err
	}

	var pd PresentationDefinition
	if err := json.Unmarshal(raw, &pd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation definition: %w", err)
	}

	if _, err := prepare(&pd); err != nil {
		return nil, err
	}

	return &pd, nil
}

func unwrapDefinition(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("presentation definition is empty")
	}

	var wrapper struct {
		PD json.RawMessage `json:"presentation_definition"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation definition: %w", err)
	}

	if len(wrapper.PD) > 0 {
		return wrapper.PD, nil
	}

	return data, nil
}

// groupMembers returns the indices of the descriptors tagged with group, in definition order.
func (pd *PresentationDefinition) groupMembers(group string) []int {
	var members []int

	for i, desc := range pd.InputDescriptors {
		for _, g := range desc.Group {
			if g == group {
				members = append(members, i)
				break
			}
		}
	}

	return members
}

func (pd *PresentationDefinition) descriptorIndex(id string) int {
	for i, desc := range pd.InputDescriptors {
		if desc.ID == id {
			return i
		}
	}

	return -1
}

type compiledField struct {
	field *Field
	paths []*Path
	pred  predicate
}

type compiledDescriptor struct {
	descriptor *InputDescriptor
	fields     []*compiledField
}

// compiledDefinition is the evaluable form of a definition. It is built per
// operation and never cached on the definition itself.
type compiledDefinition struct {
	pd          *PresentationDefinition
	descriptors []*compiledDescriptor
}

// prepare compiles pd and rejects it when ValidateDefinition reports an error.
func prepare(pd *PresentationDefinition) (*compiledDefinition, error) {
	cd, err := compile(pd)
	if err != nil {
		return nil, err
	}

	if results := ValidateDefinition(pd); results[0].Status == StatusError {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDefinition, results[0].Message)
	}

	return cd, nil
}

func compile(pd *PresentationDefinition) (*compiledDefinition, error) {
	if pd == nil {
		return nil, fmt.Errorf("%w: definition is nil", ErrMalformedDefinition)
	}

	cd := &compiledDefinition{pd: pd}

	for i, desc := range pd.InputDescriptors {
		if desc == nil {
			return nil, fmt.Errorf("%w: input descriptor %d is nil", ErrMalformedDefinition, i)
		}

		compiled, err := compileDescriptor(desc)
		if err != nil {
			return nil, fmt.Errorf("%w: input descriptor %q: %w", ErrMalformedDefinition, desc.ID, err)
		}

		cd.descriptors = append(cd.descriptors, compiled)
	}

	return cd, nil
}

func compileDescriptor(desc *InputDescriptor) (*compiledDescriptor, error) {
	cd := &compiledDescriptor{descriptor: desc}

	if desc.Constraints == nil {
		return cd, nil
	}

	for i, field := range desc.Constraints.Fields {
		if field == nil {
			return nil, fmt.Errorf("field %d is nil", i)
		}

		compiled, err := compileField(field)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}

		cd.fields = append(cd.fields, compiled)
	}

	return cd, nil
}

func compileField(field *Field) (*compiledField, error) {
	if len(field.Path) == 0 {
		return nil, fmt.Errorf("path must contain at least one expression")
	}

	cf := &compiledField{field: field}

	for _, expr := range field.Path {
		p, err := CompilePath(expr)
		if err != nil {
			return nil, err
		}

		cf.paths = append(cf.paths, p)
	}

	pred, err := compileFilter(field.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	cf.pred = pred

	return cf, nil
}
