package matcher

import (
	"sync"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/cfgmask/grammarir"
)

// tagDispatchRuntime is the compiled, per-expression runtime support for
// a TagDispatch rule-expression: an Aho-Corasick automaton over its
// trigger strings, used to find the earliest trigger occurrence in the
// bytes scanned since the dispatch started.
type tagDispatchRuntime struct {
	automaton *ahocorasick.Automaton
	triggers  []grammarir.TagTrigger
}

// tagDispatchCache lazily compiles and caches one tagDispatchRuntime per
// TagDispatch expression id, so the Aho-Corasick automaton is built once
// regardless of how many times a matcher crosses that expression.
type tagDispatchCache struct {
	g       *grammarir.Grammar
	mu      sync.Mutex
	runtime map[grammarir.RuleExprID]*tagDispatchRuntime
}

func newTagDispatchCache(g *grammarir.Grammar) *tagDispatchCache {
	return &tagDispatchCache{g: g, runtime: make(map[grammarir.RuleExprID]*tagDispatchRuntime)}
}

// get is safe for concurrent use: precomputing the adaptive mask cache
// forks many Base instances that share one Matcher's tagDispatchCache
// (the automaton is immutable once built, so sharing the cache avoids
// rebuilding it once per fork).
func (c *tagDispatchCache) get(exprID grammarir.RuleExprID) (*tagDispatchRuntime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rt, ok := c.runtime[exprID]; ok {
		return rt, nil
	}
	expr := c.g.GetExpr(exprID)
	builder := ahocorasick.NewBuilder()
	for _, trig := range expr.Triggers {
		builder.AddPattern([]byte(trig.Trigger))
	}
	automaton, err := builder.Build()
	if err != nil {
		return nil, err
	}
	rt := &tagDispatchRuntime{automaton: automaton, triggers: expr.Triggers}
	c.runtime[exprID] = rt
	return rt, nil
}

// findEarliestTrigger scans window (the bytes consumed since the
// current scan attempt began) for the earliest-starting, then
// leftmost-shortest, occurrence of any trigger, returning the rule it
// dispatches to. ok is false when no trigger has matched yet.
func (rt *tagDispatchRuntime) findEarliestTrigger(window []byte) (rule grammarir.RuleID, matchEnd int, ok bool) {
	m := rt.automaton.Find(window, 0)
	if m == nil {
		return 0, 0, false
	}
	matched := window[m.Start:m.End]
	for _, trig := range rt.triggers {
		if trig.Trigger == string(matched) {
			return trig.RuleID, m.End, true
		}
	}
	// Defensive fallback: the automaton matched something but byte
	// comparison against the declared triggers found no exact owner
	// (should not happen since the automaton is built only from trigger
	// strings). Treat as no match rather than dispatching incorrectly.
	return 0, 0, false
}
