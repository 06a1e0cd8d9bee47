package pex

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Submission check tags.
const (
	TagPresentation  = "presentation"
	TagSubmission    = "presentation_submission"
	TagDescriptorMap = "presentation_submission.descriptor_map"
)

var knownFormats = []string{"jwt", FormatJWTVC, "jwt_vc_json", FormatJWTVP, "ldp", FormatLDPVC, FormatLDPVP}

// ValidateSubmission checks the structure of a presentation and its
// presentation submission: the submission is complete and every descriptor
// mapping points at a credential of the presentation. Like ValidateDefinition,
// only the findings of the first failing check are reported.
func ValidateSubmission(presentation map[string]interface{}, opts ...SubmissionOpt) []CheckResult {
	if presentation == nil {
		return []CheckResult{errorResult(TagPresentation, "presentation is nil")}
	}

	if !includesType(presentation["type"], TypeVerifiablePresentation) {
		return []CheckResult{errorResult(TagPresentation, "presentation type must include %s", TypeVerifiablePresentation)}
	}

	submission, err := submissionOf(presentation, getSubmissionOptions(opts...))
	if err != nil {
		return []CheckResult{errorResult(TagSubmission, "%v", err)}
	}

	var results []CheckResult
	if submission.ID == "" {
		results = append(results, errorResult(TagSubmission, "presentation submission id must not be empty"))
	}
	if submission.DefinitionID == "" {
		results = append(results, errorResult(TagSubmission, "presentation submission definition_id must not be empty"))
	}
	if submission.DescriptorMap == nil {
		results = append(results, errorResult(TagSubmission, "presentation submission must have a descriptor_map"))
	}
	if len(results) > 0 {
		return results
	}

	for i, m := range submission.DescriptorMap {
		if m == nil {
			results = append(results, errorResult(TagDescriptorMap, "descriptor_map[%d] is null", i))
			continue
		}

		if m.ID == "" {
			results = append(results, errorResult(TagDescriptorMap, "descriptor_map[%d] has no id", i))
		}

		for nested := m; nested != nil; nested = nested.PathNested {
			if !slices.Contains(knownFormats, nested.Format) {
				results = append(results, errorResult(TagDescriptorMap, "descriptor_map[%d]: unknown format %q", i, nested.Format))
			}
		}

		if _, _, err := selectMapping(presentation, m); err != nil {
			results = append(results, errorResult(TagDescriptorMap, "descriptor_map[%d]: %v", i, err))
		}
	}

	if len(results) > 0 {
		return results
	}

	return okResult
}

// includesType reports whether a JSON-LD "type" value, a string or an array, includes want.
func includesType(value interface{}, want string) bool {
	switch t := value.(type) {
	case string:
		return t == want
	case []interface{}:
		return slices.Contains(t, interface{}(want))
	case []string:
		return slices.Contains(t, want)
	}

	return false
}

// EvaluatePresentation checks, on the verifier side, that a presentation and
// its submission satisfy pd. The credentials named by the descriptor map are
// matched against their descriptors and the submission requirements are
// resolved over them. Assignment credential indices refer to descriptor_map entries.
func (e *Engine) EvaluatePresentation(pd *PresentationDefinition, presentation map[string]interface{}, opts ...SubmissionOpt) (*Resolution, error) {
	cd, err := prepare(pd)
	if err != nil {
		return nil, err
	}

	if results := ValidateSubmission(presentation, opts...); results[0].Status == StatusError {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSubmission, results[0].Message)
	}

	submission, err := submissionOf(presentation, getSubmissionOptions(opts...))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSubmission, err)
	}

	if submission.DefinitionID != pd.ID {
		return nil, fmt.Errorf("%w: definition_id %q does not match %q", ErrMalformedSubmission, submission.DefinitionID, pd.ID)
	}

	matches := make([][]int, len(cd.descriptors))

	for mi, m := range submission.DescriptorMap {
		di := pd.descriptorIndex(m.ID)
		if di < 0 {
			return nil, fmt.Errorf("%w: descriptor_map[%d] names unknown input descriptor %q", ErrMalformedSubmission, mi, m.ID)
		}

		value, format, err := selectMapping(presentation, m)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptor_map[%d]: %w", ErrMalformedSubmission, mi, err)
		}

		token, err := tokenOf(value)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptor_map[%d]: %w", ErrMalformedSubmission, mi, err)
		}

		dec, err := e.decoder.Decode(token)
		if err != nil {
			return nil, fmt.Errorf("%w: descriptor_map[%d]: %w", ErrMalformedSubmission, mi, err)
		}

		if !slices.Contains(formatAliases[dec.Format], format) {
			return nil, fmt.Errorf("%w: descriptor_map[%d] declares format %q for a %s credential", ErrMalformedSubmission, mi, format, dec.Format)
		}

		if !cd.descriptors[di].matches(dec, pd.Format) {
			e.logger.Info("submitted credential does not satisfy its input descriptor", "descriptor_id", m.ID, "descriptor_map_index", mi)
			continue
		}

		matches[di] = append(matches[di], mi)
	}

	return resolve(cd, matches)
}

// ValidateSubmission runs the package-level ValidateSubmission.
func (e *Engine) ValidateSubmission(presentation map[string]interface{}, opts ...SubmissionOpt) []CheckResult {
	return ValidateSubmission(presentation, opts...)
}

// ValidateDefinition runs the package-level ValidateDefinition.
func (e *Engine) ValidateDefinition(pd *PresentationDefinition) []CheckResult {
	return ValidateDefinition(pd)
}
