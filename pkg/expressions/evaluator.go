// Package expressions evaluates JMESPath queries over decoded JSON-LD documents.
package expressions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator compiles expressions once and reuses them.
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Field quotes a JSON-LD key such as "dcat:dataset" for use in an expression.
func Field(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}

// Path joins quoted keys into a sub-expression.
func Path(names ...string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = Field(name)
	}
	return strings.Join(quoted, ".")
}

func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// EvaluateString returns "" for a missing value. Objects of the form {"@id": x} or
// {"@value": x} are reduced to x.
func (e *Evaluator) EvaluateString(expression string, data any) (string, error) {
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return "", err
	}
	return scalar(result), nil
}

// EvaluateSlice always returns a slice. JSON-LD compaction collapses one-element arrays to
// the element itself, so a single value is wrapped.
func (e *Evaluator) EvaluateSlice(expression string, data any) ([]any, error) {
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return []any{v}, nil
	}
}

// EvaluateMap returns the first object when the result is an array of objects.
func (e *Evaluator) EvaluateMap(expression string, data any) (map[string]any, error) {
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		if m, ok := v[0].(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to map", result)
}

func (e *Evaluator) Validate(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if id, ok := t["@id"]; ok {
			return scalar(id)
		}
		if value, ok := t["@value"]; ok {
			return scalar(value)
		}
		return ""
	case []any:
		if len(t) == 1 {
			return scalar(t[0])
		}
		return ""
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
