package pex

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// maxRequirementDepth bounds from_nested nesting.
const maxRequirementDepth = 32

// Assignment binds an input descriptor to the candidate credential chosen for it.
type Assignment struct {
	DescriptorID string
	// Credential is the index of the chosen candidate.
	Credential int
}

// Resolution is the outcome of resolving submission requirements over the
// matched descriptors.
type Resolution struct {
	Satisfied bool
	// Assignments is the minimal satisfying assignment in input descriptor order.
	Assignments []Assignment
	// Err explains why the definition is not satisfied.
	Err *UnsatisfiedRequirementError
}

// Credentials returns the distinct candidate indices of the assignment in first-use order.
func (r *Resolution) Credentials() []int {
	if r == nil {
		return nil
	}

	seen := make(map[int]bool, len(r.Assignments))
	var out []int

	for _, a := range r.Assignments {
		if !seen[a.Credential] {
			seen[a.Credential] = true
			out = append(out, a.Credential)
		}
	}

	return out
}

type reqNode struct {
	// req is nil for the implicit root, which applies rule "all" to the
	// top-level requirements, or to every descriptor when there are none.
	req      *SubmissionRequirement
	label    string
	children []int
}

// requirementTree stores requirements in an arena. A child always has a
// larger index than its parent, so a reverse scan visits children first.
type requirementTree struct {
	pd    *PresentationDefinition
	nodes []reqNode
}

func buildRequirementTree(pd *PresentationDefinition) (*requirementTree, error) {
	t := &requirementTree{
		pd:    pd,
		nodes: []reqNode{{label: "root"}},
	}

	type frame struct {
		parent int
		reqs   []*SubmissionRequirement
		prefix string
		depth  int
	}

	stack := []frame{{parent: 0, reqs: pd.SubmissionRequirements, prefix: "submission_requirements", depth: 1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > maxRequirementDepth {
			return nil, fmt.Errorf("%w: %s nests deeper than %d levels", ErrMalformedDefinition, f.prefix, maxRequirementDepth)
		}

		for i, req := range f.reqs {
			label := fmt.Sprintf("%s[%d]", f.prefix, i)
			if req == nil {
				return nil, fmt.Errorf("%w: %s is nil", ErrMalformedDefinition, label)
			}

			idx := len(t.nodes)
			t.nodes = append(t.nodes, reqNode{req: req, label: label})
			t.nodes[f.parent].children = append(t.nodes[f.parent].children, idx)

			if len(req.FromNested) > 0 {
				stack = append(stack, frame{parent: idx, reqs: req.FromNested, prefix: label + ".from_nested", depth: f.depth + 1})
			}
		}
	}

	return t, nil
}

type outcome struct {
	satisfied bool
	// selected holds descriptor indices.
	selected []int
	// failing is the innermost failing node.
	failing int
	reason  string
}

func failed(node int, format string, args ...any) outcome {
	return outcome{failing: node, reason: fmt.Sprintf(format, args...)}
}

// bounds returns the rule of req and, for pick, the number of entries to select.
func bounds(req *SubmissionRequirement) (Selection, int) {
	if req == nil || req.Rule == All {
		return All, 0
	}

	if req.Count != nil {
		return Pick, *req.Count
	}

	lo := 1
	if req.Min != nil {
		lo = *req.Min
	}

	if req.Max != nil && *req.Max < lo {
		lo = *req.Max
	}

	return Pick, lo
}

func hasNegativeBound(req *SubmissionRequirement) bool {
	for _, v := range []*int{req.Count, req.Min, req.Max} {
		if v != nil && *v < 0 {
			return true
		}
	}

	return false
}

func (t *requirementTree) resolve(matched []bool) []outcome {
	out := make([]outcome, len(t.nodes))

	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := &t.nodes[i]

		switch {
		case n.req == nil && len(n.children) == 0:
			out[i] = t.resolvePool(i, All, 0, allIndices(len(t.pd.InputDescriptors)), matched)
		case n.req == nil:
			out[i] = t.resolveNested(i, All, 0, out)
		case n.req.Rule != All && n.req.Rule != Pick:
			out[i] = failed(i, "unsupported rule %q", n.req.Rule)
		case hasNegativeBound(n.req):
			out[i] = failed(i, "cardinality must not be negative")
		case n.req.From != "" && len(n.req.FromNested) > 0:
			out[i] = failed(i, "both from and from_nested are set")
		case n.req.From != "":
			rule, lo := bounds(n.req)
			out[i] = t.resolvePool(i, rule, lo, t.pd.groupMembers(n.req.From), matched)
		case len(n.req.FromNested) > 0:
			rule, lo := bounds(n.req)
			out[i] = t.resolveNested(i, rule, lo, out)
		default:
			out[i] = failed(i, "neither from nor from_nested is set")
		}
	}

	return out
}

func (t *requirementTree) resolvePool(node int, rule Selection, lo int, pool []int, matched []bool) outcome {
	var hits, missing []int

	for _, d := range pool {
		if matched[d] {
			hits = append(hits, d)
		} else {
			missing = append(missing, d)
		}
	}

	if rule == All {
		if len(pool) == 0 {
			return failed(node, "no input descriptors to select from")
		}

		if len(missing) > 0 {
			return failed(node, "no matching credential for input descriptor %s", t.descriptorIDs(missing))
		}

		return outcome{satisfied: true, selected: pool}
	}

	if len(hits) < lo {
		return failed(node, "%d of %d input descriptors matched, need %d", len(hits), len(pool), lo)
	}

	return outcome{satisfied: true, selected: hits[:lo]}
}

func (t *requirementTree) resolveNested(node int, rule Selection, lo int, out []outcome) outcome {
	children := t.nodes[node].children

	var sat []int
	firstFailed := -1

	for _, c := range children {
		if out[c].satisfied {
			sat = append(sat, c)
		} else if firstFailed < 0 {
			firstFailed = c
		}
	}

	if rule == All {
		if firstFailed >= 0 {
			return outcome{failing: out[firstFailed].failing, reason: out[firstFailed].reason}
		}

		return outcome{satisfied: true, selected: unionSelected(children, out)}
	}

	if len(sat) < lo {
		return failed(node, "%d of %d nested requirements satisfied, need %d", len(sat), len(children), lo)
	}

	return outcome{satisfied: true, selected: unionSelected(sat[:lo], out)}
}

func unionSelected(nodes []int, out []outcome) []int {
	seen := make(map[int]bool)
	var selected []int

	for _, n := range nodes {
		for _, d := range out[n].selected {
			if !seen[d] {
				seen[d] = true
				selected = append(selected, d)
			}
		}
	}

	return selected
}

func (t *requirementTree) descriptorIDs(indices []int) string {
	ids := make([]string, 0, len(indices))
	for _, i := range indices {
		ids = append(ids, fmt.Sprintf("%q", t.pd.InputDescriptors[i].ID))
	}

	return strings.Join(ids, ", ")
}

// unsatisfied builds the error for an unsatisfied root outcome.
func (t *requirementTree) unsatisfied(root outcome) *UnsatisfiedRequirementError {
	err := &UnsatisfiedRequirementError{
		DefinitionID: t.pd.ID,
		Reason:       root.reason,
	}

	if root.failing > 0 {
		if req := t.nodes[root.failing].req; req != nil {
			err.Group = req.From
		}
	}

	top := t.topLevelAncestor(root.failing)
	if top > 0 {
		err.Requirement = t.nodes[top].label
		if name := t.nodes[top].req.Name; name != "" {
			err.Requirement = fmt.Sprintf("%q", name)
		}
	}

	return err
}

func (t *requirementTree) topLevelAncestor(node int) int {
	if node <= 0 {
		return 0
	}

	parent := make(map[int]int, len(t.nodes))
	for i, n := range t.nodes {
		for _, c := range n.children {
			parent[c] = i
		}
	}

	for parent[node] != 0 {
		node = parent[node]
	}

	return node
}

// resolve applies the submission requirements of cd to the per-descriptor
// matches and picks the lowest-index candidate for every selected descriptor.
func resolve(cd *compiledDefinition, matches [][]int) (*Resolution, error) {
	t, err := buildRequirementTree(cd.pd)
	if err != nil {
		return nil, err
	}

	matched := make([]bool, len(matches))
	for i, m := range matches {
		matched[i] = len(m) > 0
	}

	root := t.resolve(matched)[0]
	if !root.satisfied {
		return &Resolution{Err: t.unsatisfied(root)}, nil
	}

	selected := append([]int(nil), root.selected...)
	slices.Sort(selected)

	res := &Resolution{Satisfied: true}
	for _, d := range selected {
		res.Assignments = append(res.Assignments, Assignment{
			DescriptorID: cd.pd.InputDescriptors[d].ID,
			Credential:   matches[d][0],
		})
	}

	return res, nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}
