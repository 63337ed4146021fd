// Package script provides the optional JavaScript fragment filter. An
// expression is compiled once and evaluated against every incoming
// fragment with the text bound to the `message` global.
package script

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Filter is a compiled JavaScript predicate over stream fragments.
type Filter struct {
	mu      sync.Mutex
	runtime *goja.Runtime
	program *goja.Program
}

// NewFilter compiles the expression. A syntax error is reported here;
// runtime errors during evaluation fail open instead.
func NewFilter(expr string) (*Filter, error) {
	program, err := goja.Compile("filter", expr, true)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return &Filter{
		runtime: goja.New(),
		program: program,
	}, nil
}

// Keep evaluates the expression with the fragment bound to `message` and
// returns its truthiness. Evaluation errors keep the fragment: a broken
// filter must not silently eat the stream.
func (f *Filter) Keep(message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runtime.Set("message", message)
	value, err := f.runtime.RunProgram(f.program)
	if err != nil {
		return true
	}
	return value.ToBoolean()
}
