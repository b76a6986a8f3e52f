package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Kind is the inferred kind of a request.
type Kind int

const (
	Query Kind = iota
	Command
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case Command:
		return "command"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Dispatcher identifies the annotated dispatcher type.
type Dispatcher struct {
	Name    string
	Path    string // import path
	Package string // package name
	Dir     string
}

// Binding maps one request type to its dispatcher, and optionally to an
// explicit handler.
type Binding struct {
	Dispatcher Dispatcher
	Request    *TypeExpr
	// Response is nil for a command without result.
	Response *TypeExpr
	Kind     Kind
	// Handler is nil when the handler is registered elsewhere.
	Handler *TypeExpr
	Pos     token.Position
}

// RequestName is the exported stem used in method and file names.
func (b Binding) RequestName() string { return exportName(b.Request.Name) }

// Key identifies the dispatch artifact of b.
func (b Binding) Key() string {
	return b.Dispatcher.Path + "." + b.Dispatcher.Name + "." + b.RequestName()
}

// Canonical is the stable text form of b used for hashing.
func (b Binding) Canonical() string {
	var sb strings.Builder
	sb.WriteString(b.Dispatcher.Path + "." + b.Dispatcher.Name)
	sb.WriteString(" request=" + b.Request.String())
	sb.WriteString(" kind=" + b.Kind.String())
	if b.Response != nil {
		sb.WriteString(" response=" + b.Response.String())
	}
	if b.Handler != nil {
		sb.WriteString(" handler=" + b.Handler.String())
	}
	return sb.String()
}

// Hash is the SHA-256 of Canonical.
func (b Binding) Hash() string { return sha256Hex([]byte(b.Canonical())) }

// Group is the set of bindings of one dispatcher.
type Group struct {
	Dispatcher Dispatcher
	Bindings   []Binding
}

// groupBindings groups bindings by dispatcher. Groups are ordered by import
// path and name; bindings keep their source order.
func groupBindings(bs []Binding) []Group {
	sorted := append([]Binding(nil), bs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Dispatcher.Path != b.Dispatcher.Path {
			return a.Dispatcher.Path < b.Dispatcher.Path
		}
		if a.Dispatcher.Name != b.Dispatcher.Name {
			return a.Dispatcher.Name < b.Dispatcher.Name
		}
		return lessPos(a.Pos, b.Pos)
	})

	var out []Group
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Dispatcher.Path == b.Dispatcher.Path && out[n-1].Dispatcher.Name == b.Dispatcher.Name {
			out[n-1].Bindings = append(out[n-1].Bindings, b)
			continue
		}
		out = append(out, Group{Dispatcher: b.Dispatcher, Bindings: []Binding{b}})
	}
	return out
}

func lessPos(a, b token.Position) bool {
	if a.Filename != b.Filename {
		return a.Filename < b.Filename
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func exportName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// snake converts a Go identifier to snake_case, keeping acronyms together:
// HTTPServer -> http_server.
func snake(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func fileBase(p string) string { return filepath.Base(p) }
