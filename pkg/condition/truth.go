package condition

// Truth is the result of evaluating a condition: a three-valued boolean
// where Unknown marks conditions that could not be decided (missing
// attribute, incompatible type, unsupported match).
type Truth int8

const (
	Unknown Truth = iota
	False
	True
)

// String implements fmt.Stringer for log output.
func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Not negates a truth value; Unknown stays Unknown.
func (t Truth) Not() Truth {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

func truthOf(b bool) Truth {
	if b {
		return True
	}
	return False
}
