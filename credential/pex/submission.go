package pex

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/pilacorp/go-pex-sdk/credential/common/jwt"
)

const (
	// VCContextV1 is the base context of verifiable presentations.
	VCContextV1 = "https://www.w3.org/2018/credentials/v1"
	// SubmissionContextV1 is the context of presentations that embed a submission.
	SubmissionContextV1 = "https://identity.foundation/presentation-exchange/submission/v1"

	TypeVerifiablePresentation = "VerifiablePresentation"
	TypePresentationSubmission = "PresentationSubmission"
)

// SubmissionLocation tells where the presentation submission is carried.
type SubmissionLocation string

const (
	// SubmissionPresentation embeds the submission in the presentation.
	SubmissionPresentation SubmissionLocation = "presentation"
	// SubmissionExternal returns the submission next to the presentation,
	// for transports that carry it out of band.
	SubmissionExternal SubmissionLocation = "external"
)

// PresentationSubmission describes how the presented credentials satisfy a definition.
type PresentationSubmission struct {
	ID            string                    `json:"id"`
	DefinitionID  string                    `json:"definition_id"`
	DescriptorMap []*InputDescriptorMapping `json:"descriptor_map"`
}

// InputDescriptorMapping binds an input descriptor to the credential at Path.
type InputDescriptorMapping struct {
	ID         string                  `json:"id"`
	Format     string                  `json:"format"`
	Path       string                  `json:"path"`
	PathNested *InputDescriptorMapping `json:"path_nested,omitempty"`
}

// PresentationResult is an unsigned presentation with its submission.
type PresentationResult struct {
	Presentation           map[string]interface{}
	PresentationSubmission *PresentationSubmission
	SubmissionLocation     SubmissionLocation
	// Credentials holds the selected tokens in presentation order.
	Credentials []string
}

// PresentationOpt configures presentation assembly.
type PresentationOpt func(*presentationOptions)

type presentationOptions struct {
	holder   string
	id       string
	location SubmissionLocation
}

// WithHolder sets the holder of the presentation.
func WithHolder(holder string) PresentationOpt {
	return func(o *presentationOptions) {
		o.holder = holder
	}
}

// WithPresentationID sets the presentation id (default: a random urn:uuid).
func WithPresentationID(id string) PresentationOpt {
	return func(o *presentationOptions) {
		o.id = id
	}
}

// WithSubmissionLocation sets where the submission is carried (default: in the presentation).
func WithSubmissionLocation(location SubmissionLocation) PresentationOpt {
	return func(o *presentationOptions) {
		o.location = location
	}
}

func getPresentationOptions(opts ...PresentationOpt) *presentationOptions {
	options := &presentationOptions{
		id:       "urn:uuid:" + uuid.NewString(),
		location: SubmissionPresentation,
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// assemble wraps the credentials of a satisfied resolution into a presentation.
func assemble(pd *PresentationDefinition, res *Resolution, candidates []string, decoded []*Decoded, opts ...PresentationOpt) (*PresentationResult, error) {
	options := getPresentationOptions(opts...)

	order := res.Credentials()
	position := make(map[int]int, len(order))
	vcs := make([]interface{}, 0, len(order))
	tokens := make([]string, 0, len(order))

	for i, ci := range order {
		position[ci] = i
		vcs = append(vcs, decoded[ci].Value)
		tokens = append(tokens, candidates[ci])
	}

	submission := &PresentationSubmission{
		ID:            uuid.NewString(),
		DefinitionID:  pd.ID,
		DescriptorMap: make([]*InputDescriptorMapping, 0, len(res.Assignments)),
	}

	for _, a := range res.Assignments {
		submission.DescriptorMap = append(submission.DescriptorMap, &InputDescriptorMapping{
			ID:     a.DescriptorID,
			Format: decoded[a.Credential].Format,
			Path:   fmt.Sprintf("$.verifiableCredential[%d]", position[a.Credential]),
		})
	}

	presentation := map[string]interface{}{
		"@context":             []interface{}{VCContextV1},
		"type":                 []interface{}{TypeVerifiablePresentation},
		"verifiableCredential": vcs,
	}

	if options.id != "" {
		presentation["id"] = options.id
	}

	if options.holder != "" {
		presentation["holder"] = options.holder
	}

	switch options.location {
	case SubmissionPresentation:
		embedded, err := submission.toMap()
		if err != nil {
			return nil, err
		}

		presentation["@context"] = []interface{}{VCContextV1, SubmissionContextV1}
		presentation["type"] = []interface{}{TypeVerifiablePresentation, TypePresentationSubmission}
		presentation["presentation_submission"] = embedded
	case SubmissionExternal:
	default:
		return nil, fmt.Errorf("unsupported submission location %q", options.location)
	}

	return &PresentationResult{
		Presentation:           presentation,
		PresentationSubmission: submission,
		SubmissionLocation:     options.location,
		Credentials:            tokens,
	}, nil
}

func (s *PresentationSubmission) toMap() (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presentation submission: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presentation submission: %w", err)
	}

	return m, nil
}

// SubmissionOpt configures submission checks on the verifier side.
type SubmissionOpt func(*submissionOptions)

type submissionOptions struct {
	external *PresentationSubmission
}

// WithExternalSubmission evaluates a submission received next to the presentation
// instead of the one embedded in it.
func WithExternalSubmission(submission *PresentationSubmission) SubmissionOpt {
	return func(o *submissionOptions) {
		o.external = submission
	}
}

func getSubmissionOptions(opts ...SubmissionOpt) *submissionOptions {
	options := &submissionOptions{}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// submissionOf returns the external submission, or the one embedded in presentation.
func submissionOf(presentation map[string]interface{}, options *submissionOptions) (*PresentationSubmission, error) {
	if options.external != nil {
		return options.external, nil
	}

	raw, ok := presentation["presentation_submission"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("presentation has no presentation_submission")
	}

	if s, ok := raw.(*PresentationSubmission); ok {
		return s, nil
	}

	var s PresentationSubmission

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &s,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create presentation_submission decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode presentation_submission: %w", err)
	}

	return &s, nil
}

// selectMapping returns the value a descriptor mapping points at, following path_nested.
func selectMapping(doc interface{}, m *InputDescriptorMapping) (interface{}, string, error) {
	for depth := 0; ; depth++ {
		if depth > maxRequirementDepth {
			return nil, "", fmt.Errorf("path_nested of %q nests deeper than %d levels", m.ID, maxRequirementDepth)
		}

		values, err := Extract(doc, m.Path)
		if err != nil {
			return nil, "", err
		}

		var (
			value interface{}
			found bool
		)
		for v := range values {
			value, found = v, true
			break
		}

		if !found {
			return nil, "", fmt.Errorf("path %q selects nothing", m.Path)
		}

		if m.PathNested == nil {
			return value, m.Format, nil
		}

		if doc, err = nestedDocument(value); err != nil {
			return nil, "", err
		}
		m = m.PathNested
	}
}

// nestedDocument opens an enveloped value so a nested path can address into it.
func nestedDocument(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case string:
		payload, err := jwt.DecodePayload(v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode nested JWT: %w", err)
		}

		return map[string]interface{}(payload), nil
	default:
		return nil, fmt.Errorf("cannot follow path_nested into %T", value)
	}
}

// tokenOf renders a presented credential as a token for decoding.
func tokenOf(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal credential: %w", err)
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported credential value %T", value)
	}
}
