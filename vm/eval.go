package vm

import (
	"math"
	"strconv"

	"github.com/chazu/jil/compiler"
)

// ---------------------------------------------------------------------------
// Postfix expression evaluator
// ---------------------------------------------------------------------------

// VarReader returns the current value of a variable.
type VarReader func(name string) (int, error)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var binaryOps = map[string]func(a, b int) (int, error){
	"+": func(a, b int) (int, error) { return a + b, nil },
	"-": func(a, b int) (int, error) { return a - b, nil },
	"*": func(a, b int) (int, error) { return a * b, nil },
	"/": func(a, b int) (int, error) {
		if b == 0 {
			return 0, Executionf("division by zero")
		}
		return a / b, nil
	},
	"%": func(a, b int) (int, error) {
		if b == 0 {
			return 0, Executionf("division by zero")
		}
		return a % b, nil
	},
	"**":  func(a, b int) (int, error) { return power(a, b), nil },
	"and": func(a, b int) (int, error) { return boolInt(a != 0 && b != 0), nil },
	"or":  func(a, b int) (int, error) { return boolInt(a != 0 || b != 0), nil },
	"=":   func(a, b int) (int, error) { return boolInt(a == b), nil },
	"!=":  func(a, b int) (int, error) { return boolInt(a != b), nil },
	">":   func(a, b int) (int, error) { return boolInt(a > b), nil },
	">=":  func(a, b int) (int, error) { return boolInt(a > b || a == b), nil },
	"<":   func(a, b int) (int, error) { return boolInt(a < b), nil },
	"<=":  func(a, b int) (int, error) { return boolInt(a < b || a == b), nil },
}

// power computes a**b in floating point and truncates, saturating at the
// int range. NaN yields 0.
func power(a, b int) int {
	f := math.Pow(float64(a), float64(b))
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// Evaluate runs a postfix expression left to right on an operand stack and
// returns the value on top of the stack when the tokens run out. Integer
// literals are pushed; operators pop their operands; every other word is a
// variable read through vars.
func Evaluate(expr []compiler.Token, vars VarReader) (int, error) {
	stack := make([]int, 0, len(expr))

	for _, tok := range expr {
		if tok.IsString() {
			return 0, Executionf("cannot use strings in expressions")
		}
		text := tok.Literal

		if n, err := strconv.Atoi(text); err == nil {
			stack = append(stack, n)
			continue
		}

		if op, ok := binaryOps[text]; ok {
			if len(stack) < 2 {
				return 0, Executionf("expected two operands on the stack for '%s', but found %d instead", text, len(stack))
			}
			a, b := stack[len(stack)-2], stack[len(stack)-1]
			v, err := op(a, b)
			if err != nil {
				return 0, err
			}
			stack = append(stack[:len(stack)-2], v)
			continue
		}

		if text == "!" {
			if len(stack) < 1 {
				return 0, Executionf("expected one operand on the stack for '!', but found 0 instead")
			}
			stack[len(stack)-1] = boolInt(stack[len(stack)-1] == 0)
			continue
		}

		v, err := vars(text)
		if err != nil {
			return 0, err
		}
		stack = append(stack, v)
	}

	if len(stack) == 0 {
		return 0, Executionf("the stack cannot be empty at the end of expression evaluation")
	}
	return stack[len(stack)-1], nil
}
