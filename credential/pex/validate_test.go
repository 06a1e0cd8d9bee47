package pex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const employmentDefinition = `{
	"id": "employment-check",
	"submission_requirements": [{"name": "Employment", "rule": "all", "from": "A"}],
	"input_descriptors": [
		{
			"id": "employment",
			"group": ["A"],
			"constraints": {"fields": [{"path": ["$.credentialSubject.employer"], "filter": {"type": "string"}}]}
		},
		{
			"id": "citizenship",
			"constraints": {"fields": [{"path": ["$.credentialSubject.country"], "filter": {"type": "string"}}]}
		}
	]
}`

func intPtr(v int) *int {
	return &v
}

func validDefinition() *PresentationDefinition {
	return &PresentationDefinition{
		ID: "pd",
		InputDescriptors: []*InputDescriptor{{
			ID:    "name",
			Group: []string{"A"},
			Constraints: &Constraints{Fields: []*Field{{
				Path:   []string{"$.credentialSubject.name"},
				Filter: &Filter{Type: TypeString},
			}}},
		}},
	}
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(pd *PresentationDefinition)
		tag     string
		message string
		count   int
	}{
		{name: "valid", mutate: func(*PresentationDefinition) {}, tag: TagRoot, message: "ok"},
		{
			name:    "missing id",
			mutate:  func(pd *PresentationDefinition) { pd.ID = "" },
			tag:     TagID,
			message: "presentation definition id must not be empty",
		},
		{
			name:    "no input descriptors",
			mutate:  func(pd *PresentationDefinition) { pd.InputDescriptors = nil },
			tag:     TagInputDescriptors,
			message: "presentation definition must have at least one input descriptor",
		},
		{
			name: "duplicate descriptor ids",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors = append(pd.InputDescriptors, pd.InputDescriptors[0])
			},
			tag:     TagInputDescriptors,
			message: `input descriptor id "name" is not unique`,
		},
		{
			name: "descriptor without id",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].ID = ""
			},
			tag:     TagInputDescriptors,
			message: "input descriptor 0 has no id",
		},
		{
			name: "descriptor without fields",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].Constraints = nil
			},
			tag:     TagConstraints,
			message: `input descriptor "name" must have at least one constraints field`,
		},
		{
			name: "invalid path",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].Constraints.Fields[0].Path = []string{"credentialSubject.name"}
			},
			tag:     TagConstraints,
			message: `input descriptor "name": field 0: path "credentialSubject.name" must start with $`,
		},
		{
			name: "invalid filter",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].Constraints.Fields[0].Filter = &Filter{Pattern: "("}
			},
			tag: TagConstraints,
		},
		{
			name: "format without alg",
			mutate: func(pd *PresentationDefinition) {
				pd.Format = Format{FormatJWTVC: {}}
			},
			tag:     TagFormat,
			message: "presentation definition: format jwt_vc must list at least one alg",
		},
		{
			name: "unknown descriptor format",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].Format = Format{"mso_mdoc": {}}
			},
			tag:     TagFormat,
			message: `input descriptor "name": unknown format "mso_mdoc"`,
		},
		{
			name: "group is not a single character",
			mutate: func(pd *PresentationDefinition) {
				pd.InputDescriptors[0].Group = []string{"AB"}
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: All, From: "AB"}}
			},
			tag:     TagGroup,
			message: `input descriptor "name": group "AB" must be a single character`,
		},
		{
			name: "requirement from unused group",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: All, From: "B"}}
			},
			tag:     TagSubmissionRequirements,
			message: `submission_requirements[0]: group "B" is not used by any input descriptor`,
		},
		{
			name: "nested requirement from unused group",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{
					Rule:       Pick,
					Count:      intPtr(1),
					FromNested: []*SubmissionRequirement{{Rule: All, From: "A"}, {Rule: All, From: "C"}},
				}}
			},
			tag:     TagSubmissionRequirements,
			message: `submission_requirements[0].from_nested[1]: group "C" is not used by any input descriptor`,
		},
		{
			name: "all with count",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: All, From: "A", Count: intPtr(1)}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: rule all does not take count, min or max",
		},
		{
			name: "count with min",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: Pick, From: "A", Count: intPtr(1), Min: intPtr(1)}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: count cannot be combined with min or max",
		},
		{
			name: "min greater than max",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: Pick, From: "A", Min: intPtr(2), Max: intPtr(1)}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: min 2 is greater than max 1",
		},
		{
			name: "negative min",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: Pick, From: "A", Min: intPtr(-1)}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: min must not be negative",
		},
		{
			name: "unsupported rule",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: "any", From: "A"}}
			},
			tag:     TagRule,
			message: `submission_requirements[0]: unsupported rule "any"`,
		},
		{
			name: "both from and from_nested",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{
					Rule:       All,
					From:       "A",
					FromNested: []*SubmissionRequirement{{Rule: All, From: "A"}},
				}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: exactly one of from and from_nested must be set",
		},
		{
			name: "pick count of zero",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: Pick, From: "A", Count: intPtr(0)}}
			},
			tag:     TagRoot,
			message: "ok",
		},
		{
			name: "negative count",
			mutate: func(pd *PresentationDefinition) {
				pd.SubmissionRequirements = []*SubmissionRequirement{{Rule: Pick, From: "A", Count: intPtr(-1)}}
			},
			tag:     TagRule,
			message: "submission_requirements[0]: count must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := validDefinition()
			tt.mutate(pd)

			results := ValidateDefinition(pd)
			require.NotEmpty(t, results)

			if tt.count > 0 {
				assert.Len(t, results, tt.count)
			}

			for _, r := range results {
				assert.Equal(t, tt.tag, r.Tag)
			}

			if tt.tag == TagRoot {
				assert.Equal(t, []CheckResult{{Tag: TagRoot, Status: StatusInfo, Message: "ok"}}, results)
				return
			}

			assert.Equal(t, StatusError, results[0].Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, results[0].Message)
			}
		})
	}
}

func TestValidateDefinitionMissingGroup(t *testing.T) {
	var pd PresentationDefinition
	require.NoError(t, json.Unmarshal([]byte(employmentDefinition), &pd))

	results := ValidateDefinition(&pd)
	require.Len(t, results, 1)
	assert.Equal(t, CheckResult{
		Tag:     TagGroup,
		Status:  StatusError,
		Message: `input descriptor "citizenship" has no group but submission_requirements are present`,
	}, results[0])
}

func TestValidateDefinitionNil(t *testing.T) {
	results := ValidateDefinition(nil)
	require.Len(t, results, 1)
	assert.Equal(t, TagRoot, results[0].Tag)
	assert.Equal(t, StatusError, results[0].Status)
}

func TestValidateDefinitionJSON(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		tag     string
		status  Status
		message string
	}{
		{
			name:   "wrapped definition",
			doc:    `{"presentation_definition": {"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["$.id"]}]}}]}}`,
			tag:    TagRoot,
			status: StatusInfo,
		},
		{
			name:   "unknown filter keyword",
			doc:    `{"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["$.id"], "filter": {"type": "string", "minLength": 3}}]}}]}`,
			tag:    TagSchema,
			status: StatusError,
		},
		{
			name:    "missing input descriptors",
			doc:     `{"id": "pd"}`,
			tag:     TagSchema,
			status:  StatusError,
			message: "input_descriptors is required",
		},
		{
			name:    "scenario with missing group",
			doc:     employmentDefinition,
			tag:     TagGroup,
			status:  StatusError,
			message: `"citizenship" has no group`,
		},
		{
			name:    "not JSON",
			doc:     `{"id": `,
			tag:     TagRoot,
			status:  StatusError,
			message: "failed to unmarshal presentation definition",
		},
		{
			name:    "empty",
			doc:     ``,
			tag:     TagRoot,
			status:  StatusError,
			message: "presentation definition is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := ValidateDefinitionJSON([]byte(tt.doc))
			require.NotEmpty(t, results)
			assert.Equal(t, tt.tag, results[0].Tag)
			assert.Equal(t, tt.status, results[0].Status)
			assert.Contains(t, results[0].Message, tt.message)
		})
	}
}

func TestParseDefinition(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		errorMsg string
	}{
		{name: "bare", doc: `{"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["$.id"]}]}}]}`},
		{name: "wrapped", doc: `{"presentation_definition": {"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["$.id"]}]}}]}}`},
		{
			name:     "descriptor without constraints",
			doc:      `{"presentation_definition": {"id": "pd", "input_descriptors": [{"id": "d"}]}}`,
			errorMsg: `input descriptor "d" must have at least one constraints field`,
		},
		{
			name:     "missing group",
			doc:      employmentDefinition,
			errorMsg: `input descriptor "citizenship" has no group but submission_requirements are present`,
		},
		{name: "empty", doc: ``, errorMsg: "presentation definition is empty"},
		{name: "invalid JSON", doc: `[`, errorMsg: "failed to unmarshal presentation definition"},
		{
			name:     "bad path",
			doc:      `{"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["id"]}]}}]}`,
			errorMsg: `input descriptor "d": field 0: path "id" must start with $`,
		},
		{
			name:     "empty path list",
			doc:      `{"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": []}]}}]}`,
			errorMsg: "path must contain at least one expression",
		},
		{
			name:     "bad filter",
			doc:      `{"id": "pd", "input_descriptors": [{"id": "d", "constraints": {"fields": [{"path": ["$.id"], "filter": {"type": "integer", "const": "x"}}]}}]}`,
			errorMsg: "filter: const",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd, err := ParseDefinition([]byte(tt.doc))
			if tt.errorMsg != "" {
				assert.ErrorContains(t, err, tt.errorMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "pd", pd.ID)
		})
	}
}
