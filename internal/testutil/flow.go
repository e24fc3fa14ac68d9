package testutil

import (
	"fmt"
	"sync"
)

// SequentialFlowGenerator generates numbered flow tokens: prefix-1, prefix-2, ...
//
// Every root Dispatch in a scenario gets a distinct, predictable token, so
// the same scenario produces byte-identical traces across runs and golden
// files stay stable.
//
// Thread-safety: safe for concurrent use.
type SequentialFlowGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialFlowGenerator creates a generator for prefix.
//
// The prefix is typically set in the scenario YAML:
//
//	flow_prefix: "load"
//
// If prefix is empty, tokens are "flow-1", "flow-2", ...
func NewSequentialFlowGenerator(prefix string) *SequentialFlowGenerator {
	if prefix == "" {
		prefix = "flow"
	}
	return &SequentialFlowGenerator{prefix: prefix}
}

// Generate returns the next token.
//
// Implements store.FlowTokenGenerator.
func (g *SequentialFlowGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
