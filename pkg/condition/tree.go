package condition

// Operator combines the results of child nodes.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"
)

// MatchType selects how an attribute leaf compares the user's value against
// the expected one.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchSubstring   MatchType = "substring"
	MatchGreaterThan MatchType = "gt"
	MatchLessThan    MatchType = "lt"
	MatchExists      MatchType = "exists"
)

// CustomAttributeType is the only leaf condition type the evaluator
// understands. Leaves carrying any other type evaluate to Unknown so that
// newer datafile schemas degrade gracefully instead of misfiring.
const CustomAttributeType = "custom_attribute"

// Node is one vertex of a condition tree. Exactly one variant is populated:
// an operator with children, an attribute leaf, or an audience-id leaf.
type Node struct {
	Op       Operator
	Children []*Node

	Attribute *Attribute

	AudienceID string
}

// Attribute is a leaf comparing a named user attribute against an expected
// value. An empty Match is treated as MatchExact, which is how legacy
// datafiles encode their conditions. Type is the raw condition type from the
// datafile; anything but CustomAttributeType evaluates to Unknown.
type Attribute struct {
	Name  string
	Type  string
	Match MatchType
	Value any
}

// And builds an operator node over the given children.
func And(children ...*Node) *Node { return &Node{Op: OpAnd, Children: children} }

// Or builds an operator node over the given children.
func Or(children ...*Node) *Node { return &Node{Op: OpOr, Children: children} }

// Not builds a negation over a single child.
func Not(child *Node) *Node { return &Node{Op: OpNot, Children: []*Node{child}} }

// Attr builds an attribute leaf of type custom_attribute.
func Attr(name string, match MatchType, value any) *Node {
	return &Node{Attribute: &Attribute{Name: name, Type: CustomAttributeType, Match: match, Value: value}}
}

// AudienceRef builds a leaf referencing an audience by id.
func AudienceRef(audienceID string) *Node { return &Node{AudienceID: audienceID} }
