package pex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptorsJSON(ids ...string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += `{"id":"` + id + `","group":["` + id[:1] + `"],"constraints":{"fields":[{"path":["$.id"]}]}}`
	}

	return "[" + out + "]"
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		requirements string
		descriptors  []string
		matches      [][]int
		want         []Assignment
		requirement  string
		group        string
		reason       string
	}{
		{
			name:        "no requirements means all",
			descriptors: []string{"a1", "b1"},
			matches:     [][]int{{1}, {0, 1}},
			want:        []Assignment{{"a1", 1}, {"b1", 0}},
		},
		{
			name:        "no requirements with a missing match",
			descriptors: []string{"a1", "b1"},
			matches:     [][]int{{0}, nil},
			requirement: "",
			reason:      `no matching credential for input descriptor "b1"`,
		},
		{
			name:         "all from group",
			requirements: `[{"rule":"all","from":"a"}]`,
			descriptors:  []string{"a1", "a2", "b1"},
			matches:      [][]int{{0}, {1}, nil},
			want:         []Assignment{{"a1", 0}, {"a2", 1}},
		},
		{
			name:         "all from group with missing member",
			requirements: `[{"name":"Identity","rule":"all","from":"a"}]`,
			descriptors:  []string{"a1", "a2"},
			matches:      [][]int{{0}, nil},
			requirement:  `"Identity"`,
			group:        "a",
			reason:       `no matching credential for input descriptor "a2"`,
		},
		{
			name:         "pick min two of three matching",
			requirements: `[{"rule":"pick","min":2,"from":"a"}]`,
			descriptors:  []string{"a1", "a2", "a3"},
			matches:      [][]int{{2}, {0}, {1}},
			want:         []Assignment{{"a1", 2}, {"a2", 0}},
		},
		{
			name:         "pick min two of three with exactly two matching",
			requirements: `[{"rule":"pick","min":2,"from":"a"}]`,
			descriptors:  []string{"a1", "a2", "a3"},
			matches:      [][]int{nil, {0}, {1}},
			want:         []Assignment{{"a2", 0}, {"a3", 1}},
		},
		{
			name:         "pick min two of three with one matching",
			requirements: `[{"rule":"pick","min":2,"from":"a"}]`,
			descriptors:  []string{"a1", "a2", "a3"},
			matches:      [][]int{nil, {0}, nil},
			requirement:  "submission_requirements[0]",
			group:        "a",
			reason:       "1 of 3 input descriptors matched, need 2",
		},
		{
			name:         "pick count of zero",
			requirements: `[{"rule":"pick","count":0,"from":"a"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			want:         nil,
		},
		{
			name:         "pick count",
			requirements: `[{"rule":"pick","count":1,"from":"a"}]`,
			descriptors:  []string{"a1", "a2"},
			matches:      [][]int{nil, {3}},
			want:         []Assignment{{"a2", 3}},
		},
		{
			name:         "pick count not reached",
			requirements: `[{"rule":"pick","count":2,"from":"a"}]`,
			descriptors:  []string{"a1", "a2", "a3"},
			matches:      [][]int{nil, {0}, nil},
			requirement:  "submission_requirements[0]",
			group:        "a",
			reason:       "1 of 3 input descriptors matched, need 2",
		},
		{
			name:         "pick defaults to one",
			requirements: `[{"rule":"pick","from":"a"}]`,
			descriptors:  []string{"a1", "a2"},
			matches:      [][]int{nil, nil},
			reason:       "0 of 2 input descriptors matched, need 1",
			requirement:  "submission_requirements[0]",
			group:        "a",
		},
		{
			name:         "pick max below default min",
			requirements: `[{"rule":"pick","max":0,"from":"a"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{nil},
			want:         nil,
		},
		{
			name:         "nested pick",
			requirements: `[{"name":"Proofs","rule":"pick","min":2,"from_nested":[{"rule":"pick","min":1,"from":"a"},{"rule":"pick","min":1,"from":"b"},{"rule":"all","from":"c"}]}]`,
			descriptors:  []string{"a1", "b1", "c1"},
			matches:      [][]int{nil, {0}, {1}},
			want:         []Assignment{{"b1", 0}, {"c1", 1}},
		},
		{
			name:         "nested pick not reached",
			requirements: `[{"name":"Proofs","rule":"pick","min":2,"from_nested":[{"rule":"pick","min":1,"from":"a"},{"rule":"pick","min":1,"from":"b"}]}]`,
			descriptors:  []string{"a1", "b1"},
			matches:      [][]int{{0}, nil},
			requirement:  `"Proofs"`,
			reason:       "1 of 2 nested requirements satisfied, need 2",
		},
		{
			name:         "nested all reports innermost failure",
			requirements: `[{"rule":"pick","count":1,"from":"a"},{"name":"Extra","rule":"all","from_nested":[{"rule":"all","from":"a"},{"rule":"all","from":"b"}]}]`,
			descriptors:  []string{"a1", "b1"},
			matches:      [][]int{{0}, nil},
			requirement:  `"Extra"`,
			group:        "b",
			reason:       `no matching credential for input descriptor "b1"`,
		},
		{
			name:         "descriptor shared by two requirements",
			requirements: `[{"rule":"all","from":"a"},{"rule":"pick","count":1,"from":"a"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			want:         []Assignment{{"a1", 0}},
		},
		{
			name:         "unknown group",
			requirements: `[{"rule":"all","from":"z"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			requirement:  "submission_requirements[0]",
			group:        "z",
			reason:       "no input descriptors to select from",
		},
		{
			name:         "unsupported rule",
			requirements: `[{"rule":"any","from":"a"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			requirement:  "submission_requirements[0]",
			group:        "a",
			reason:       `unsupported rule "any"`,
		},
		{
			name:         "negative count",
			requirements: `[{"rule":"pick","count":-1,"from":"a"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			requirement:  "submission_requirements[0]",
			group:        "a",
			reason:       "cardinality must not be negative",
		},
		{
			name:         "neither from nor from_nested",
			requirements: `[{"rule":"all"}]`,
			descriptors:  []string{"a1"},
			matches:      [][]int{{0}},
			requirement:  "submission_requirements[0]",
			reason:       "neither from nor from_nested is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"id":"pd","input_descriptors":` + descriptorsJSON(tt.descriptors...)
			if tt.requirements != "" {
				doc += `,"submission_requirements":` + tt.requirements
			}
			doc += "}"

			var pd PresentationDefinition
			require.NoError(t, json.Unmarshal([]byte(doc), &pd))

			cd, err := compile(&pd)
			require.NoError(t, err)

			res, err := resolve(cd, tt.matches)
			require.NoError(t, err)

			if tt.reason != "" {
				require.False(t, res.Satisfied)
				require.NotNil(t, res.Err)
				assert.ErrorIs(t, res.Err, ErrUnsatisfied)
				assert.Equal(t, "pd", res.Err.DefinitionID)
				assert.Equal(t, tt.requirement, res.Err.Requirement)
				assert.Equal(t, tt.group, res.Err.Group)
				assert.Equal(t, tt.reason, res.Err.Reason)
				return
			}

			require.True(t, res.Satisfied)
			assert.Nil(t, res.Err)
			assert.Equal(t, tt.want, res.Assignments)
		})
	}
}

func TestResolutionCredentials(t *testing.T) {
	res := &Resolution{Assignments: []Assignment{{"a", 2}, {"b", 0}, {"c", 2}, {"d", 1}}}
	assert.Equal(t, []int{2, 0, 1}, res.Credentials())

	var empty *Resolution
	assert.Nil(t, empty.Credentials())
}

func TestRequirementDepthLimit(t *testing.T) {
	req := &SubmissionRequirement{Rule: All, From: "a"}
	for i := 0; i < maxRequirementDepth+1; i++ {
		req = &SubmissionRequirement{Rule: All, FromNested: []*SubmissionRequirement{req}}
	}

	pd := &PresentationDefinition{
		ID:                     "deep",
		SubmissionRequirements: []*SubmissionRequirement{req},
		InputDescriptors:       []*InputDescriptor{{ID: "a1", Group: []string{"a"}}},
	}

	_, err := buildRequirementTree(pd)
	assert.ErrorIs(t, err, ErrMalformedDefinition)
	assert.ErrorContains(t, err, "nests deeper than")
}

func TestUnsatisfiedRequirementError(t *testing.T) {
	err := &UnsatisfiedRequirementError{
		DefinitionID: "pd",
		Requirement:  `"Proofs"`,
		Group:        "b",
		Reason:       "0 of 1 input descriptors matched, need 1",
	}

	assert.Equal(t, `presentation definition "pd" not satisfied: requirement "Proofs" (group b): 0 of 1 input descriptors matched, need 1`, err.Error())
	assert.ErrorIs(t, err, ErrUnsatisfied)
}
