// Package condition implements audience condition trees and their
// three-valued evaluation against a set of user attributes.
//
// A tree mixes boolean operators (and/or/not) with two kinds of leaves:
// attribute matches (exact, substring, gt, lt, exists) and audience-id
// references resolved through a caller-supplied Resolver. Evaluation returns
// a Truth value rather than a plain bool because a missing attribute, an
// incompatible attribute type, or an unsupported match must neither pass nor
// fail a gate outright:
//
//	And(True, Unknown)  = Unknown
//	And(False, Unknown) = False
//	Or(False, Unknown)  = Unknown
//	Or(True, Unknown)   = True
//	Not(Unknown)        = Unknown
//
// Trees are immutable after construction and safe for concurrent evaluation.
//
// # Usage
//
//	tree := condition.And(
//		condition.Attr("country", condition.MatchExact, "US"),
//		condition.Attr("age", condition.MatchGreaterThan, 18),
//	)
//	res := condition.Evaluate(tree, map[string]any{"country": "US", "age": 21}, nil)
//	if res == condition.True {
//		// user is in the audience
//	}
package condition
