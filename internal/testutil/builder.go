package testutil

import (
	"context"
	"sync"

	"github.com/roach88/callscript/internal/build"
	"github.com/roach88/callscript/internal/model"
)

// MapBuilder is a build.Builder serving scripts from memory.
type MapBuilder struct {
	mu       sync.Mutex
	scripts  map[string][]byte
	compiled [][]string

	// Err, when set, is returned by every Compile call.
	Err error
}

var _ build.Builder = (*MapBuilder)(nil)

// NewMapBuilder creates a builder with the given name→script sources.
func NewMapBuilder(scripts map[string]string) *MapBuilder {
	b := &MapBuilder{scripts: make(map[string][]byte)}
	for name, script := range scripts {
		b.scripts[name] = []byte(script)
	}
	return b
}

// Set replaces the source of one scenario.
func (b *MapBuilder) Set(name, script string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[name] = []byte(script)
}

// Compiled returns the name lists passed to each Compile call.
func (b *MapBuilder) Compiled() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.compiled...)
}

// Compile returns the stored scripts in the requested order.
func (b *MapBuilder) Compile(ctx context.Context, names []string) ([]model.Scenario, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compiled = append(b.compiled, append([]string(nil), names...))
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]model.Scenario, 0, len(names))
	for _, name := range names {
		script, ok := b.scripts[name]
		if !ok {
			return nil, &build.Error{Scenario: name, Message: "no source"}
		}
		out = append(out, model.Scenario{Name: name, Script: append([]byte(nil), script...)})
	}
	return out, nil
}
