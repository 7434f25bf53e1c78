package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EvaluateEntry evaluates one FEEL-subset input entry against a context
// value. Unknown expression shapes fall back to string equality.
func EvaluateEntry(expr string, value interface{}) bool {
	expr = strings.TrimSpace(expr)

	// Wildcards match anything, including absent values.
	if expr == "" || expr == "-" || expr == "*" {
		return true
	}

	switch expr {
	case "true", "false":
		b, ok := value.(bool)
		return ok && b == (expr == "true")
	case "null":
		return value == nil
	case "not null":
		return value != nil
	}

	// Quoted string: exact compare.
	if len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"' {
		s, ok := value.(string)
		return ok && s == expr[1:len(expr)-1]
	}

	if result, handled := evalComparator(expr, value); handled {
		return result
	}
	if result, handled := evalRange(expr, value); handled {
		return result
	}
	if result, handled := evalMembership(expr, value); handled {
		return result
	}
	if result, handled := evalStringFunc(expr, value); handled {
		return result
	}

	// Bare numeric literal: numeric equality.
	if want, err := strconv.ParseFloat(expr, 64); err == nil {
		have, ok := toNumber(value)
		return ok && have == want
	}

	// Bare anything else: string equality.
	return stringify(value) == expr
}

func evalComparator(expr string, value interface{}) (bool, bool) {
	// Order matters: two-character operators before their one-character
	// prefixes.
	ops := []string{">=", "<=", "==", "!=", "<>", ">", "<", "="}
	for _, op := range ops {
		if !strings.HasPrefix(expr, op) {
			continue
		}
		operand := strings.TrimSpace(expr[len(op):])
		if operand == "" {
			return false, false
		}
		return compare(op, value, operand), true
	}
	return false, false
}

func compare(op string, value interface{}, operand string) bool {
	if wantNum, err := strconv.ParseFloat(operand, 64); err == nil {
		have, ok := toNumber(value)
		if !ok {
			return false
		}
		switch op {
		case ">=":
			return have >= wantNum
		case "<=":
			return have <= wantNum
		case ">":
			return have > wantNum
		case "<":
			return have < wantNum
		case "=", "==":
			return have == wantNum
		case "!=", "<>":
			return have != wantNum
		}
		return false
	}

	// String comparison for non-numeric operands.
	operand = strings.Trim(operand, `"`)
	have := stringify(value)
	switch op {
	case "=", "==":
		return have == operand
	case "!=", "<>":
		return have != operand
	case ">":
		return have > operand
	case "<":
		return have < operand
	case ">=":
		return have >= operand
	case "<=":
		return have <= operand
	}
	return false
}

var rangeRe = regexp.MustCompile(`^([\[(])\s*(-?[\d.]+)\s*\.\.\s*(-?[\d.]+)\s*([\])])$`)

func evalRange(expr string, value interface{}) (bool, bool) {
	m := rangeRe.FindStringSubmatch(expr)
	if m == nil {
		return false, false
	}

	lo, err1 := strconv.ParseFloat(m[2], 64)
	hi, err2 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil {
		return false, false
	}

	have, ok := toNumber(value)
	if !ok {
		return false, true
	}

	loOK := have > lo
	if m[1] == "[" {
		loOK = have >= lo
	}
	hiOK := have < hi
	if m[4] == "]" {
		hiOK = have <= hi
	}
	return loOK && hiOK, true
}

var membershipRe = regexp.MustCompile(`^(not\s+)?in\s*\((.*)\)$`)

func evalMembership(expr string, value interface{}) (bool, bool) {
	m := membershipRe.FindStringSubmatch(expr)
	if m == nil {
		return false, false
	}

	negate := m[1] != ""
	have := stringify(value)
	found := false
	for _, item := range strings.Split(m[2], ",") {
		item = strings.Trim(strings.TrimSpace(item), `"`)
		if item == have {
			found = true
			break
		}
	}
	if negate {
		return !found, true
	}
	return found, true
}

var (
	containsRe   = regexp.MustCompile(`^contains\s*\(\s*"(.*)"\s*\)$`)
	startsWithRe = regexp.MustCompile(`^starts with\s+"(.*)"$`)
	endsWithRe   = regexp.MustCompile(`^ends with\s+"(.*)"$`)
	matchesRe    = regexp.MustCompile(`^matches\s*\(\s*"(.*)"\s*\)$`)
)

func evalStringFunc(expr string, value interface{}) (bool, bool) {
	have := stringify(value)

	if m := containsRe.FindStringSubmatch(expr); m != nil {
		return strings.Contains(have, m[1]), true
	}
	if m := startsWithRe.FindStringSubmatch(expr); m != nil {
		return strings.HasPrefix(have, m[1]), true
	}
	if m := endsWithRe.FindStringSubmatch(expr); m != nil {
		return strings.HasSuffix(have, m[1]), true
	}
	if m := matchesRe.FindStringSubmatch(expr); m != nil {
		re, err := regexp.Compile(m[1])
		if err != nil {
			return false, true
		}
		return re.MatchString(have), true
	}
	return false, false
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// Whole numbers print without a trailing .0 so "in(1, 2)" matches
		// JSON-decoded numbers.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
