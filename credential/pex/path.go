package pex

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

// Path is a compiled JSONPath expression.
type Path struct {
	expr string
	eval gval.Evaluable
	// multi is set for expressions that may select more than one node
	// (wildcards, recursive descent, filters, unions and slices).
	multi bool
}

// CompilePath compiles a JSONPath expression rooted at "$".
func CompilePath(expr string) (*Path, error) {
	if !strings.HasPrefix(expr, "$") {
		return nil, fmt.Errorf("path %q must start with $", expr)
	}

	eval, err := jsonpath.New(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile path %q: %w", expr, err)
	}

	return &Path{expr: expr, eval: eval, multi: selectsMany(expr)}, nil
}

func (p *Path) String() string {
	return p.expr
}

// Values returns the lazy sequence of values the path selects in doc.
// A path that resolves nowhere yields an empty sequence; a path that selects
// a single array yields the array as one value.
func (p *Path) Values(doc any) iter.Seq[any] {
	return func(yield func(any) bool) {
		res, err := p.eval(context.Background(), doc)
		if err != nil {
			// unknown keys and out-of-range indices surface as evaluation errors
			return
		}

		if !p.multi {
			yield(res)
			return
		}

		items, ok := res.([]interface{})
		if !ok {
			yield(res)
			return
		}

		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// Extract compiles expr and returns the values it selects in doc.
func Extract(doc any, expr string) (iter.Seq[any], error) {
	p, err := CompilePath(expr)
	if err != nil {
		return nil, err
	}

	return p.Values(doc), nil
}

func selectsMany(expr string) bool {
	if strings.Contains(expr, "..") {
		return true
	}

	var (
		inBracket bool
		quote     rune
	)

	for _, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case inBracket && (r == '\'' || r == '"'):
			quote = r
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case r == '*':
			return true
		case inBracket && (r == ':' || r == ',' || r == '?'):
			return true
		}
	}

	return false
}
