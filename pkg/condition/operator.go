package condition

import "github.com/getmockd/statemock/internal/matching"

type operator int

const (
	opEq operator = iota
	opNe
	opGt
	opLt
	opGe
	opLe
)

// operators in scan order: two-character tokens before their prefixes.
var operatorTokens = []struct {
	token string
	op    operator
}{
	{"==", opEq},
	{"!=", opNe},
	{">=", opGe},
	{"<=", opLe},
	{">", opGt},
	{"<", opLt},
	{"=", opEq},
}

func (op operator) String() string {
	switch op {
	case opEq:
		return "=="
	case opNe:
		return "!="
	case opGt:
		return ">"
	case opLt:
		return "<"
	case opGe:
		return ">="
	case opLe:
		return "<="
	default:
		return "?"
	}
}

func (op operator) apply(actual, literal string) bool {
	a, aNum := matching.ToFloat64(actual)
	b, bNum := matching.ToFloat64(literal)
	numeric := aNum && bNum

	switch op {
	case opEq:
		if numeric {
			return a == b
		}
		return actual == literal
	case opNe:
		if numeric {
			return a != b
		}
		return actual != literal
	}

	if !numeric {
		return false
	}
	switch op {
	case opGt:
		return a > b
	case opLt:
		return a < b
	case opGe:
		return a >= b
	case opLe:
		return a <= b
	default:
		return false
	}
}
