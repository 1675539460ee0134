package graph

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// ValidationError reports a rejected request (bad filter bounds, unknown
// property or id). The view is left untouched.
type ValidationError struct {
	Op     string // operation that rejected the request
	Field  string // offending argument
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Reason)
}

func validationf(op, field, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MalformedGraphError rejects a load or merge whose records reference
// nodes or components that do not exist. Nothing of the batch is applied.
type MalformedGraphError struct {
	Mode     model.Mode
	Dangling []model.LinkKey // links with at least one unknown endpoint
	Problems []string        // every other integrity violation
}

func (e *MalformedGraphError) Error() string {
	var parts []string
	if n := len(e.Dangling); n > 0 {
		keys := make([]string, 0, min(n, 3))
		for _, k := range e.Dangling[:min(n, 3)] {
			keys = append(keys, k.String())
		}
		suffix := ""
		if n > 3 {
			suffix = fmt.Sprintf(" and %d more", n-3)
		}
		parts = append(parts, fmt.Sprintf("%d dangling link(s): %s%s", n, strings.Join(keys, ", "), suffix))
	}
	parts = append(parts, e.Problems...)
	return fmt.Sprintf("malformed %s graph: %s", e.Mode, strings.Join(parts, "; "))
}

func (e *MalformedGraphError) empty() bool {
	return len(e.Dangling) == 0 && len(e.Problems) == 0
}

func (e *MalformedGraphError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}
