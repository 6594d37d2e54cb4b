package values

type Operator int

const (
	NOOP Operator = iota

	// arithmetic
	ADD
	SUB
	MULT
	DIV
	MOD
	POWER
	STR_APPEND

	// bitwise
	BW_AND
	BW_OR
	BW_XOR
	BW_SHIFT_LEFT
	BW_SHIFT_RIGHT
	BW_USHIFT_RIGHT

	// comparison
	EQUAL
	NEQUAL
	LTHAN
	GTHAN
	LETHAN
	GETHAN

	// boolean
	AND
	OR

	// type tests & matching
	CONTAINS
	INSTANCEOF
	CONVERTABLE_TO
	REGEX

	// ternary
	TERNARY
	TERNARY_ELSE

	ASSIGN
)

var OPERATOR_STRINGS = [...]string{
	NOOP:            "noop",
	ADD:             "+",
	SUB:             "-",
	MULT:            "*",
	DIV:             "/",
	MOD:             "%",
	POWER:           "**",
	STR_APPEND:      "#",
	BW_AND:          "&",
	BW_OR:           "|",
	BW_XOR:          "^",
	BW_SHIFT_LEFT:   "<<",
	BW_SHIFT_RIGHT:  ">>",
	BW_USHIFT_RIGHT: ">>>",
	EQUAL:           "==",
	NEQUAL:          "!=",
	LTHAN:           "<",
	GTHAN:           ">",
	LETHAN:          "<=",
	GETHAN:          ">=",
	AND:             "&&",
	OR:              "||",
	CONTAINS:        "contains",
	INSTANCEOF:      "instanceof",
	CONVERTABLE_TO:  "convertable_to",
	REGEX:           "~=",
	TERNARY:         "?",
	TERNARY_ELSE:    ":",
	ASSIGN:          "=",
}

func (op Operator) String() string {
	if op < 0 || int(op) >= len(OPERATOR_STRINGS) {
		return "unknown operator"
	}
	return OPERATOR_STRINGS[op]
}

// PRECEDENCE is indexed by operator, a higher value binds tighter.
var PRECEDENCE = [...]int{
	NOOP:            -1,
	ASSIGN:          0,
	TERNARY:         1,
	TERNARY_ELSE:    1,
	OR:              2,
	AND:             3,
	BW_OR:           4,
	BW_XOR:          5,
	BW_AND:          6,
	EQUAL:           7,
	NEQUAL:          7,
	CONTAINS:        7,
	INSTANCEOF:      7,
	CONVERTABLE_TO:  7,
	REGEX:           7,
	LTHAN:           8,
	GTHAN:           8,
	LETHAN:          8,
	GETHAN:          8,
	BW_SHIFT_LEFT:   9,
	BW_SHIFT_RIGHT:  9,
	BW_USHIFT_RIGHT: 9,
	ADD:             10,
	SUB:             10,
	STR_APPEND:      10,
	MULT:            11,
	DIV:             11,
	MOD:             11,
	POWER:           12,
}

func (op Operator) Precedence() int {
	if op < 0 || int(op) >= len(PRECEDENCE) {
		return -1
	}
	return PRECEDENCE[op]
}

func (op Operator) IsArithmetic() bool {
	return op >= ADD && op <= STR_APPEND
}

func (op Operator) IsBitwise() bool {
	return op >= BW_AND && op <= BW_USHIFT_RIGHT
}

func (op Operator) IsComparison() bool {
	return op >= EQUAL && op <= GETHAN
}

func (op Operator) IsBoolean() bool {
	return op == AND || op == OR
}

func (op Operator) IsTernary() bool {
	return op == TERNARY || op == TERNARY_ELSE
}

// IsFoldable reports whether two literal operands joined by op can be reduced at compile time.
func (op Operator) IsFoldable() bool {
	return op > NOOP && op < TERNARY
}

// OPERATOR_TOKENS maps the operator spellings found in the source to their code,
// keyword operators included.
var OPERATOR_TOKENS = map[string]Operator{
	"+":              ADD,
	"-":              SUB,
	"*":              MULT,
	"/":              DIV,
	"%":              MOD,
	"**":             POWER,
	"#":              STR_APPEND,
	"&":              BW_AND,
	"|":              BW_OR,
	"^":              BW_XOR,
	"<<":             BW_SHIFT_LEFT,
	">>":             BW_SHIFT_RIGHT,
	">>>":            BW_USHIFT_RIGHT,
	"==":             EQUAL,
	"!=":             NEQUAL,
	"<":              LTHAN,
	">":              GTHAN,
	"<=":             LETHAN,
	">=":             GETHAN,
	"&&":             AND,
	"||":             OR,
	"and":            AND,
	"or":             OR,
	"contains":       CONTAINS,
	"instanceof":     INSTANCEOF,
	"is":             INSTANCEOF,
	"convertable_to": CONVERTABLE_TO,
	"~=":             REGEX,
	"?":              TERNARY,
	":":              TERNARY_ELSE,
}

// ASSIGNMENT_OPERATORS maps compound assignment spellings to the operator they apply.
var ASSIGNMENT_OPERATORS = map[string]Operator{
	"+=":   ADD,
	"-=":   SUB,
	"*=":   MULT,
	"/=":   DIV,
	"%=":   MOD,
	"**=":  POWER,
	"#=":   STR_APPEND,
	"&=":   BW_AND,
	"|=":   BW_OR,
	"^=":   BW_XOR,
	"<<=":  BW_SHIFT_LEFT,
	">>=":  BW_SHIFT_RIGHT,
	">>>=": BW_USHIFT_RIGHT,
}
