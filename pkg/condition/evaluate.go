package condition

import (
	"math"
	"strings"
)

// Resolver resolves an audience-id leaf to a truth value. Evaluation of a
// tree containing audience references without a resolver yields Unknown for
// those leaves.
type Resolver func(audienceID string) Truth

// maxNumericValue bounds numeric comparisons to values exactly representable
// in an IEEE 754 double, keeping results identical across host languages.
const maxNumericValue = 1 << 53

// Evaluate walks the tree and returns its three-valued result for the given
// attribute set. A nil node evaluates to Unknown.
func Evaluate(n *Node, attrs map[string]any, resolve Resolver) Truth {
	if n == nil {
		return Unknown
	}

	switch {
	case n.Op == OpAnd:
		return evalAnd(n.Children, attrs, resolve)
	case n.Op == OpOr:
		return evalOr(n.Children, attrs, resolve)
	case n.Op == OpNot:
		if len(n.Children) == 0 {
			return Unknown
		}
		return Evaluate(n.Children[0], attrs, resolve).Not()
	case n.Attribute != nil:
		return evalAttribute(n.Attribute, attrs)
	case n.AudienceID != "":
		if resolve == nil {
			return Unknown
		}
		return resolve(n.AudienceID)
	default:
		return Unknown
	}
}

// And is False if any child is False, else Unknown if any child is Unknown.
func evalAnd(children []*Node, attrs map[string]any, resolve Resolver) Truth {
	sawUnknown := false
	for _, c := range children {
		switch Evaluate(c, attrs, resolve) {
		case False:
			return False
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return True
}

// Or is True if any child is True, else Unknown if any child is Unknown.
func evalOr(children []*Node, attrs map[string]any, resolve Resolver) Truth {
	sawUnknown := false
	for _, c := range children {
		switch Evaluate(c, attrs, resolve) {
		case True:
			return True
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return False
}

func evalAttribute(leaf *Attribute, attrs map[string]any) Truth {
	if leaf.Type != "" && leaf.Type != CustomAttributeType {
		return Unknown
	}

	match := leaf.Match
	if match == "" {
		match = MatchExact
	}

	value, present := attrs[leaf.Name]

	switch match {
	case MatchExists:
		return truthOf(present && value != nil)
	case MatchExact:
		if !present {
			return Unknown
		}
		return matchExact(leaf.Value, value)
	case MatchSubstring:
		if !present {
			return Unknown
		}
		return matchSubstring(leaf.Value, value)
	case MatchGreaterThan, MatchLessThan:
		if !present {
			return Unknown
		}
		return matchNumeric(match, leaf.Value, value)
	default:
		return Unknown
	}
}

func matchExact(expected, actual any) Truth {
	switch e := expected.(type) {
	case string:
		a, ok := actual.(string)
		if !ok {
			return Unknown
		}
		return truthOf(a == e)
	case bool:
		a, ok := actual.(bool)
		if !ok {
			return Unknown
		}
		return truthOf(a == e)
	default:
		ev, ok := toFloat(expected)
		if !ok {
			return Unknown
		}
		av, ok := toFloat(actual)
		if !ok {
			return Unknown
		}
		return truthOf(av == ev)
	}
}

func matchSubstring(expected, actual any) Truth {
	e, ok := expected.(string)
	if !ok {
		return Unknown
	}
	a, ok := actual.(string)
	if !ok {
		return Unknown
	}
	return truthOf(strings.Contains(a, e))
}

func matchNumeric(match MatchType, expected, actual any) Truth {
	ev, ok := toFloat(expected)
	if !ok {
		return Unknown
	}
	av, ok := toFloat(actual)
	if !ok {
		return Unknown
	}
	if match == MatchGreaterThan {
		return truthOf(av > ev)
	}
	return truthOf(av < ev)
}

// toFloat coerces any supported numeric attribute representation to float64.
// Booleans and strings are not numbers; out-of-range and non-finite values
// are rejected to keep comparisons portable.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxNumericValue {
		return 0, false
	}
	return f, true
}
