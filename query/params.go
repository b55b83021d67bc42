package query

import (
	"github.com/zentient/sift/errors"
)

// Params carries runtime arguments into a built query. The set of carriers
// is closed: Args, NamedArgs, and IncludeArgs. Providers dispatch on the
// concrete type with a type switch; there is no open-ended downcasting.
type Params interface {
	isParams()
}

// Args is the base parameter carrier: an optional entity identifier plus
// positional values referenced with Arg(i).
type Args struct {
	ID     string
	Values []any
}

func (Args) isParams() {}

// NamedArgs extends Args with a name parameter, referenced with
// Param("name").
type NamedArgs struct {
	Args
	Name string
}

// IncludeArgs extends Args with additional eager-load paths merged with the
// builder's own Include clauses at apply time.
type IncludeArgs struct {
	Args
	Includes []string
}

// baseArgs extracts the embedded Args from any carrier variant.
func baseArgs(p Params) Args {
	switch v := p.(type) {
	case Args:
		return v
	case NamedArgs:
		return v.Args
	case IncludeArgs:
		return v.Args
	case *Args:
		return *v
	case *NamedArgs:
		return v.Args
	case *IncludeArgs:
		return v.Args
	default:
		return Args{}
	}
}

// Resolve replaces parameter placeholders in v with the concrete values from
// p. Literals pass through unchanged. Providers use this to bind ParamRef and
// ArgRef operands when translating expressions.
func Resolve(v any, p Params) (any, error) {
	return resolveValue(v, p)
}

// resolveValue replaces parameter placeholders with the concrete values from
// p. Literals pass through unchanged.
func resolveValue(v any, p Params) (any, error) {
	switch ref := v.(type) {
	case ParamRef:
		return resolveParam(ref.Name, p)
	case ArgRef:
		args := baseArgs(p)
		if ref.Index < 0 || ref.Index >= len(args.Values) {
			return nil, errors.Wrapf(errors.ErrInvalidExpr,
				"positional parameter %d out of range (have %d values)", ref.Index, len(args.Values))
		}
		return args.Values[ref.Index], nil
	case []any:
		resolved := make([]any, len(ref))
		for i, item := range ref {
			rv, err := resolveValue(item, p)
			if err != nil {
				return nil, err
			}
			resolved[i] = rv
		}
		return resolved, nil
	default:
		return v, nil
	}
}

func resolveParam(name string, p Params) (any, error) {
	switch name {
	case "id":
		return baseArgs(p).ID, nil
	case "name":
		switch v := p.(type) {
		case NamedArgs:
			return v.Name, nil
		case *NamedArgs:
			return v.Name, nil
		}
		return nil, errors.Wrapf(errors.ErrInvalidExpr,
			"parameter %q requires NamedArgs, got %T", name, p)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidExpr, "unknown parameter %q", name)
	}
}

// paramIncludes returns the extra eager-load paths carried by p, if any.
func paramIncludes(p Params) []string {
	switch v := p.(type) {
	case IncludeArgs:
		return v.Includes
	case *IncludeArgs:
		return v.Includes
	default:
		return nil
	}
}
