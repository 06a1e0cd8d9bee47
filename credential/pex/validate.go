package pex

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Status of a CheckResult.
type Status string

const (
	StatusInfo  Status = "info"
	StatusError Status = "error"
)

// Check tags.
const (
	TagRoot                   = "root"
	TagID                     = "presentation_definition.id"
	TagInputDescriptors       = "presentation_definition.input_descriptors"
	TagConstraints            = "presentation_definition.input_descriptors.constraints"
	TagFormat                 = "presentation_definition.format"
	TagGroup                  = "presentation_definition.input_descriptors.group"
	TagSubmissionRequirements = "presentation_definition.submission_requirements"
	TagRule                   = "presentation_definition.submission_requirements.rule"
	TagSchema                 = "presentation_definition.schema"
)

// CheckResult is one finding of a structural check.
type CheckResult struct {
	Tag     string `json:"tag"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

var okResult = []CheckResult{{Tag: TagRoot, Status: StatusInfo, Message: "ok"}}

func errorResult(tag, format string, args ...any) CheckResult {
	return CheckResult{Tag: tag, Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

type definitionCheck func(pd *PresentationDefinition) []CheckResult

// definitionChecks run in order; only the findings of the first failing check are reported.
var definitionChecks = []definitionCheck{
	checkID,
	checkInputDescriptors,
	checkConstraints,
	checkFormats,
	checkGroups,
	checkGroupReferences,
	checkRules,
	checkDefinitionSchema,
}

// ValidateDefinition checks the structure of a definition. It never fails:
// problems are reported as error results, and a sound definition yields a
// single info result tagged "root".
func ValidateDefinition(pd *PresentationDefinition) []CheckResult {
	if pd == nil {
		return []CheckResult{errorResult(TagRoot, "presentation definition is nil")}
	}

	for _, check := range definitionChecks {
		if results := check(pd); len(results) > 0 {
			return results
		}
	}

	return okResult
}

// ValidateDefinitionJSON checks a raw definition document, bare or wrapped in
// "presentation_definition". The document is checked against the schema before
// it is decoded, so unknown filter keywords are reported.
func ValidateDefinitionJSON(data []byte) []CheckResult {
	raw, err := unwrapDefinition(data)
	if err != nil {
		return []CheckResult{errorResult(TagRoot, "%v", err)}
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []CheckResult{errorResult(TagRoot, "failed to unmarshal presentation definition: %v", err)}
	}

	if results := schemaResults(doc); len(results) > 0 {
		return results
	}

	var pd PresentationDefinition
	if err := json.Unmarshal(raw, &pd); err != nil {
		return []CheckResult{errorResult(TagRoot, "failed to unmarshal presentation definition: %v", err)}
	}

	return ValidateDefinition(&pd)
}

func checkID(pd *PresentationDefinition) []CheckResult {
	if pd.ID == "" {
		return []CheckResult{errorResult(TagID, "presentation definition id must not be empty")}
	}

	return nil
}

func checkInputDescriptors(pd *PresentationDefinition) []CheckResult {
	if len(pd.InputDescriptors) == 0 {
		return []CheckResult{errorResult(TagInputDescriptors, "presentation definition must have at least one input descriptor")}
	}

	var results []CheckResult
	seen := make(map[string]bool, len(pd.InputDescriptors))

	for i, desc := range pd.InputDescriptors {
		switch {
		case desc == nil:
			results = append(results, errorResult(TagInputDescriptors, "input descriptor %d is null", i))
		case desc.ID == "":
			results = append(results, errorResult(TagInputDescriptors, "input descriptor %d has no id", i))
		case seen[desc.ID]:
			results = append(results, errorResult(TagInputDescriptors, "input descriptor id %q is not unique", desc.ID))
		default:
			seen[desc.ID] = true
		}
	}

	return results
}

func checkConstraints(pd *PresentationDefinition) []CheckResult {
	var results []CheckResult

	for _, desc := range pd.InputDescriptors {
		if desc.Constraints == nil || len(desc.Constraints.Fields) == 0 {
			results = append(results, errorResult(TagConstraints, "input descriptor %q must have at least one constraints field", desc.ID))
			continue
		}

		if _, err := compileDescriptor(desc); err != nil {
			results = append(results, errorResult(TagConstraints, "input descriptor %q: %v", desc.ID, err))
		}
	}

	return results
}

func checkFormats(pd *PresentationDefinition) []CheckResult {
	results := formatResults("presentation definition", pd.Format)

	for _, desc := range pd.InputDescriptors {
		results = append(results, formatResults(fmt.Sprintf("input descriptor %q", desc.ID), desc.Format)...)
	}

	return results
}

func formatResults(owner string, format Format) []CheckResult {
	var results []CheckResult

	names := make([]string, 0, len(format))
	for name := range format {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		claim := format[name]
		switch name {
		case "jwt", FormatJWTVC, "jwt_vc_json", FormatJWTVP:
			if len(claim.Alg) == 0 {
				results = append(results, errorResult(TagFormat, "%s: format %s must list at least one alg", owner, name))
			}
		case "ldp", FormatLDPVC, FormatLDPVP:
			if len(claim.ProofType) == 0 {
				results = append(results, errorResult(TagFormat, "%s: format %s must list at least one proof_type", owner, name))
			}
		default:
			results = append(results, errorResult(TagFormat, "%s: unknown format %q", owner, name))
		}
	}

	return results
}

func checkGroups(pd *PresentationDefinition) []CheckResult {
	if len(pd.SubmissionRequirements) == 0 {
		return nil
	}

	var results []CheckResult

	for _, desc := range pd.InputDescriptors {
		if len(desc.Group) == 0 {
			results = append(results, errorResult(TagGroup, "input descriptor %q has no group but submission_requirements are present", desc.ID))
			continue
		}

		for _, g := range desc.Group {
			if utf8.RuneCountInString(g) != 1 {
				results = append(results, errorResult(TagGroup, "input descriptor %q: group %q must be a single character", desc.ID, g))
			}
		}
	}

	return results
}

func checkGroupReferences(pd *PresentationDefinition) []CheckResult {
	var results []CheckResult

	walkRequirements(pd.SubmissionRequirements, func(label string, req *SubmissionRequirement) {
		if req.From != "" && len(pd.groupMembers(req.From)) == 0 {
			results = append(results, errorResult(TagSubmissionRequirements, "%s: group %q is not used by any input descriptor", label, req.From))
		}
	})

	return results
}

func checkRules(pd *PresentationDefinition) []CheckResult {
	var results []CheckResult

	add := func(label, format string, args ...any) {
		results = append(results, errorResult(TagRule, label+": "+format, args...))
	}

	walkRequirements(pd.SubmissionRequirements, func(label string, req *SubmissionRequirement) {
		hasFrom, hasNested := req.From != "", len(req.FromNested) > 0
		if hasFrom == hasNested {
			add(label, "exactly one of from and from_nested must be set")
		}

		limits := []struct {
			name  string
			value *int
		}{{"count", req.Count}, {"min", req.Min}, {"max", req.Max}}
		for _, b := range limits {
			if b.value != nil && *b.value < 0 {
				add(label, "%s must not be negative", b.name)
			}
		}

		switch req.Rule {
		case All:
			if req.Count != nil || req.Min != nil || req.Max != nil {
				add(label, "rule all does not take count, min or max")
			}
		case Pick:
			if req.Count != nil && (req.Min != nil || req.Max != nil) {
				add(label, "count cannot be combined with min or max")
			}
			if req.Min != nil && req.Max != nil && *req.Min > *req.Max {
				add(label, "min %d is greater than max %d", *req.Min, *req.Max)
			}
		default:
			add(label, "unsupported rule %q", req.Rule)
		}
	})

	if _, err := buildRequirementTree(pd); err != nil {
		results = append(results, errorResult(TagRule, "%v", err))
	}

	return results
}

func checkDefinitionSchema(pd *PresentationDefinition) []CheckResult {
	doc, err := schemaDocument(pd)
	if err != nil {
		return []CheckResult{errorResult(TagSchema, "%v", err)}
	}

	return schemaResults(doc)
}

func schemaResults(doc interface{}) []CheckResult {
	messages, err := validateSchema(doc)
	if err != nil {
		return []CheckResult{errorResult(TagSchema, "%v", err)}
	}

	results := make([]CheckResult, 0, len(messages))
	for _, msg := range messages {
		results = append(results, errorResult(TagSchema, "%s", msg))
	}

	return results
}

// walkRequirements visits every requirement in document order without recursion.
func walkRequirements(reqs []*SubmissionRequirement, visit func(label string, req *SubmissionRequirement)) {
	type entry struct {
		label string
		req   *SubmissionRequirement
	}

	stack := make([]entry, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		stack = append(stack, entry{fmt.Sprintf("submission_requirements[%d]", i), reqs[i]})
	}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.req == nil {
			continue
		}

		visit(e.label, e.req)

		for i := len(e.req.FromNested) - 1; i >= 0; i-- {
			stack = append(stack, entry{fmt.Sprintf("%s.from_nested[%d]", e.label, i), e.req.FromNested[i]})
		}
	}
}
