package pex

import (
	"golang.org/x/exp/slices"
)

var formatAliases = map[string][]string{
	FormatJWTVC: {"jwt", FormatJWTVC, "jwt_vc_json"},
	FormatLDPVC: {"ldp", FormatLDPVC},
}

// MatchResult is the per-descriptor outcome of matching candidates against a definition.
type MatchResult struct {
	DefinitionID string
	// Matches maps an input descriptor id to the ascending indices of the
	// candidates that satisfy it. Descriptors without a match are absent.
	Matches map[string][]int
	// Malformed lists the candidates that could not be decoded.
	Malformed []*MalformedCredentialError
	// Resolution is the outcome of applying the submission requirements.
	Resolution *Resolution
}

// accepts reports whether v passes the field filter. An array value passes
// a filter when any of its elements does.
func (cf *compiledField) accepts(v any) bool {
	if cf.field.Filter != nil {
		if items, ok := v.([]interface{}); ok {
			for _, item := range items {
				if cf.pred.match(item) {
					return true
				}
			}

			return false
		}
	}

	return cf.pred.match(v)
}

// satisfiedBy evaluates the paths in order; the first path that selects
// anything decides the field.
func (cf *compiledField) satisfiedBy(views []map[string]interface{}) bool {
	for _, p := range cf.paths {
		for _, view := range views {
			found := false

			for v := range p.Values(view) {
				found = true
				if cf.accepts(v) {
					return true
				}
			}

			if found {
				return false
			}
		}
	}

	return false
}

func (d *compiledDescriptor) matches(dec *Decoded, fallback Format) bool {
	format := d.descriptor.Format
	if len(format) == 0 {
		format = fallback
	}

	if !formatAccepted(format, dec.Format) {
		return false
	}

	views := dec.views()

	for _, cf := range d.fields {
		if cf.field.Optional {
			continue
		}

		if !cf.satisfiedBy(views) {
			return false
		}
	}

	return true
}

func formatAccepted(format Format, credFormat string) bool {
	if len(format) == 0 {
		return true
	}

	for key := range format {
		if slices.Contains(formatAliases[credFormat], key) {
			return true
		}
	}

	return false
}

// evaluate returns, per descriptor index, the ascending indices of the
// decoded candidates it matches. Nil entries are skipped.
func (cd *compiledDefinition) evaluate(decoded []*Decoded) [][]int {
	matches := make([][]int, len(cd.descriptors))

	for di, desc := range cd.descriptors {
		for ci, dec := range decoded {
			if dec == nil {
				continue
			}

			if desc.matches(dec, cd.pd.Format) {
				matches[di] = append(matches[di], ci)
			}
		}
	}

	return matches
}
