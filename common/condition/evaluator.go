package condition

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator evaluates edge guard expressions. The guard grammar is small
// (<name> == <literal>, <name> != <literal>, <name> > <number>,
// <name> < <number>, bare <name> truthiness); comparison guards are
// compiled to CEL programs and cached, truthiness is answered directly.
type Evaluator struct {
	cache map[string]cel.Program
	env   *cel.Env
	mu    sync.RWMutex
}

// NewEvaluator creates a new guard evaluator with caching.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Evaluator{
		cache: make(map[string]cel.Program),
		env:   env,
	}, nil
}

// Evaluate evaluates a guard against the token's context data. Malformed
// guards and missing keys evaluate to false rather than failing traversal.
func (e *Evaluator) Evaluate(guard string, context map[string]interface{}) bool {
	guard = strings.TrimSpace(guard)
	if guard == "" {
		return true
	}

	celExpr, ok := translate(guard)
	if !ok {
		// Bare name: truthy check on the context key.
		return truthy(context[guard])
	}

	prg, err := e.program(celExpr)
	if err != nil {
		return false
	}

	out, _, err := prg.Eval(map[string]interface{}{"ctx": context})
	if err != nil {
		return false
	}

	result, ok := out.Value().(bool)
	return ok && result
}

// translate rewrites a comparison guard into a CEL expression. Returns
// ok=false for guards that are not comparisons (bare names).
func translate(guard string) (string, bool) {
	for _, op := range []string{"==", "!=", ">", "<"} {
		idx := strings.Index(guard, op)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(guard[:idx])
		literal := strings.TrimSpace(guard[idx+len(op):])
		if name == "" || literal == "" {
			return "", false
		}
		return fmt.Sprintf("ctx[%q] %s %s", name, op, renderLiteral(literal)), true
	}
	return "", false
}

func renderLiteral(literal string) string {
	if literal == "true" || literal == "false" {
		return literal
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		// Render as a double so CEL compares JSON numbers without fuss.
		return strconv.FormatFloat(f, 'f', -1, 64) + suffixIfInt(literal)
	}
	literal = strings.Trim(literal, `"'`)
	return strconv.Quote(literal)
}

func suffixIfInt(literal string) string {
	if !strings.Contains(literal, ".") {
		return ".0"
	}
	return ""
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return true
	}
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// CacheSize returns the number of cached compiled guards.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
