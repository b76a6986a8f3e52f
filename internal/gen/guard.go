package gen

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Policy decides what happens when two artifacts share a key.
type Policy string

const (
	// PolicyError reports every duplicated key as an error and emits none
	// of its candidates.
	PolicyError Policy = "error"
	// PolicyFirstWins keeps the first candidate and warns about the rest.
	PolicyFirstWins Policy = "first-wins"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool { return p == PolicyError || p == PolicyFirstWins }

// guard accumulates artifact candidates per key, in insertion order.
type guard struct {
	policy Policy
	log    *zap.Logger
	order  []string
	cands  map[string][]Artifact
}

func newGuard(policy Policy, log *zap.Logger) *guard {
	return &guard{policy: policy, log: log, cands: map[string][]Artifact{}}
}

func (g *guard) add(a Artifact) {
	if _, ok := g.cands[a.Key]; !ok {
		g.order = append(g.order, a.Key)
	}
	g.cands[a.Key] = append(g.cands[a.Key], a)
}

// resolve applies the policy. Kept artifacts come back in first-seen key
// order.
func (g *guard) resolve() (kept []Artifact, diags []Diagnostic, conflicts int) {
	for _, key := range g.order {
		cs := g.cands[key]
		if len(cs) == 1 {
			kept = append(kept, cs[0])
			continue
		}

		conflicts++
		d := Diagnostic{
			Key:     key,
			Pos:     cs[1].Pos,
			Message: conflictMessage(key, cs),
		}
		switch g.policy {
		case PolicyFirstWins:
			d.Severity = SeverityWarning
			d.Message += "; keeping " + posString(cs[0])
			kept = append(kept, cs[0])
			g.log.Warn("duplicate artifact key",
				zap.String("key", key),
				zap.String("dispatcher", cs[0].Dispatcher.Name),
				zap.Int("candidates", len(cs)),
			)
		default:
			d.Severity = SeverityError
			g.log.Error("duplicate artifact key",
				zap.String("key", key),
				zap.String("dispatcher", cs[0].Dispatcher.Name),
				zap.Int("candidates", len(cs)),
			)
		}
		diags = append(diags, d)
	}
	return kept, diags, conflicts
}

func conflictMessage(key string, cs []Artifact) string {
	where := make([]string, 0, len(cs))
	for _, c := range cs {
		where = append(where, posString(c))
	}
	return fmt.Sprintf("duplicate artifact key %q for dispatcher %s (%s)",
		key, cs[0].Dispatcher.Name, strings.Join(where, ", "))
}

func posString(a Artifact) string {
	if !a.Pos.IsValid() {
		return a.Dispatcher.Path + "." + a.Dispatcher.Name
	}
	return a.Pos.String()
}
