package gen

import (
	"go/ast"
	"strconv"

	"github.com/sghaida/odispatch/internal/source"
)

// DropReason says why a site produced no binding.
type DropReason int

const (
	DropNone DropReason = iota
	DropNotType
	DropNotStruct
	DropGenericDispatcher
	DropArgCount
	DropRequestNotTypeRef
	DropRequestNotFound
	DropRequestUnexported
	DropRequestGeneric
	DropHandlerNotTypeRef
	DropNoCapability
	DropAmbiguousCapability
	DropUnsupportedResponse
	DropHandlerUnexported
)

var dropReasonNames = [...]string{
	DropNone:                "none",
	DropNotType:             "not_type",
	DropNotStruct:           "not_struct",
	DropGenericDispatcher:   "generic_dispatcher",
	DropArgCount:            "arg_count",
	DropRequestNotTypeRef:   "request_not_type_ref",
	DropRequestNotFound:     "request_not_found",
	DropRequestUnexported:   "request_unexported",
	DropRequestGeneric:      "request_generic",
	DropHandlerNotTypeRef:   "handler_not_type_ref",
	DropNoCapability:        "no_capability",
	DropAmbiguousCapability: "ambiguous_capability",
	DropUnsupportedResponse: "unsupported_response",
	DropHandlerUnexported:   "handler_unexported",
}

func (r DropReason) String() string {
	if r >= 0 && int(r) < len(dropReasonNames) {
		return dropReasonNames[r]
	}
	return "drop(" + strconv.Itoa(int(r)) + ")"
}

// DropReasons lists every reason a site can be dropped for.
func DropReasons() []DropReason {
	out := make([]DropReason, 0, len(dropReasonNames)-1)
	for r := DropNotType; int(r) < len(dropReasonNames); r++ {
		out = append(out, r)
	}
	return out
}

// Shape is one recognized capability: a named type of the capability
// package with a fixed number of type arguments.
type Shape struct {
	Path  string
	Name  string
	Arity int
	Kind  Kind
}

// maxEmbedWalk bounds the number of types visited per request.
const maxEmbedWalk = 256

// maxAliasHops bounds the alias chain followed for one request.
const maxAliasHops = 32

type capMatch struct {
	shape Shape
	args  []*TypeExpr
}

func (m capMatch) String() string {
	return Named(m.shape.Path, m.shape.Name, m.args...).String()
}

// Resolver turns sites into bindings.
type Resolver struct {
	set    *source.Set
	shapes []Shape
}

// NewResolver returns a Resolver matching capabilities against shapes.
func NewResolver(set *source.Set, shapes []Shape) *Resolver {
	return &Resolver{set: set, shapes: shapes}
}

// Resolve validates s and extracts its binding. A false result carries the
// reason; it is not an error.
func (r *Resolver) Resolve(s Site) (Binding, DropReason, bool) {
	fail := func(reason DropReason) (Binding, DropReason, bool) { return Binding{}, reason, false }

	switch {
	case s.Type == nil:
		return fail(DropNotType)
	case s.Type.Assign.IsValid():
		return fail(DropNotStruct)
	case s.Type.TypeParams != nil && len(s.Type.TypeParams.List) > 0:
		return fail(DropGenericDispatcher)
	}
	if _, ok := s.Type.Type.(*ast.StructType); !ok {
		return fail(DropNotStruct)
	}
	if len(s.Args) < 1 || len(s.Args) > 2 {
		return fail(DropArgCount)
	}

	sc := newScope(r.set, s.File, s.Pkg.Path, nil)

	req, ok := sc.ref(s.Args[0])
	if !ok {
		return fail(DropRequestNotTypeRef)
	}
	req, decl, reason := r.request(req)
	if reason != DropNone {
		return fail(reason)
	}
	if req.Path != s.Pkg.Path && !ast.IsExported(req.Name) {
		return fail(DropRequestUnexported)
	}

	var handler *TypeExpr
	if len(s.Args) == 2 {
		arg := s.Args[1]
		if star, isPtr := arg.(*ast.StarExpr); isPtr {
			// NewHandler already yields *H
			arg = star.X
		}
		if handler, ok = sc.ref(arg); !ok {
			return fail(DropHandlerNotTypeRef)
		}
		if handler.Path != s.Pkg.Path && !ast.IsExported(handler.Name) {
			return fail(DropHandlerUnexported)
		}
	}

	var matches []capMatch
	r.capabilities(decl, nil, map[string]bool{}, &matches)
	switch len(matches) {
	case 0:
		return fail(DropNoCapability)
	case 1:
	default:
		return fail(DropAmbiguousCapability)
	}

	m := matches[0]
	var resp *TypeExpr
	if m.shape.Arity == 1 {
		resp = m.args[0]
		if !resp.Closed() || !resp.VisibleFrom(s.Pkg.Path) {
			return fail(DropUnsupportedResponse)
		}
	}

	return Binding{
		Dispatcher: Dispatcher{
			Name:    s.Type.Name.Name,
			Path:    s.Pkg.Path,
			Package: s.Pkg.Name,
			Dir:     s.Pkg.Dir,
		},
		Request:  req,
		Response: resp,
		Kind:     m.shape.Kind,
		Handler:  handler,
		Pos:      s.Pos,
	}, DropNone, true
}

// request finds the declaration of req. Aliases are followed to the named
// type they denote, which becomes the request identity, so a binding through
// an alias and one through its target share a key.
func (r *Resolver) request(req *TypeExpr) (*TypeExpr, source.Decl, DropReason) {
	for range maxAliasHops {
		decl, ok := r.set.Lookup(req.Path, req.Name)
		if !ok {
			return nil, source.Decl{}, DropRequestNotFound
		}
		if decl.Spec.TypeParams != nil && len(decl.Spec.TypeParams.List) > 0 {
			return nil, source.Decl{}, DropRequestGeneric
		}
		if !decl.Spec.Assign.IsValid() {
			return req, decl, DropNone
		}

		target, err := newScope(r.set, decl.File, decl.Pkg.Path, nil).typeExpr(decl.Spec.Type)
		if err != nil || target.Kind != TypeNamed || target.Path == "" {
			// an alias of an unnamed type is its only name
			return req, decl, DropNone
		}
		if len(target.Args) > 0 {
			return nil, source.Decl{}, DropRequestGeneric
		}
		req = target
	}
	return nil, source.Decl{}, DropRequestNotFound
}

// capabilities collects the distinct capability shapes reachable from d
// through embedding. env binds the type parameters of d.
func (r *Resolver) capabilities(d source.Decl, env map[string]*TypeExpr, seen map[string]bool, out *[]capMatch) {
	sc := newScope(r.set, d.File, d.Pkg.Path, d.Spec.TypeParams)

	var embeds []ast.Expr
	switch t := d.Spec.Type.(type) {
	case *ast.StructType:
		for _, f := range t.Fields.List {
			if len(f.Names) == 0 {
				embeds = append(embeds, f.Type)
			}
		}
	case *ast.InterfaceType:
		for _, m := range t.Methods.List {
			if len(m.Names) == 0 {
				embeds = append(embeds, m.Type)
			}
		}
	default:
		// type A B and type A = B share B's embedded fields.
		embeds = append(embeds, t)
	}

	for _, e := range embeds {
		if star, ok := e.(*ast.StarExpr); ok {
			e = star.X
		}
		t, err := sc.typeExpr(e)
		if err != nil || t.Kind != TypeNamed {
			continue
		}
		t = t.Subst(env)

		if shape, ok := r.shape(t); ok {
			m := capMatch{shape: shape, args: t.Args}
			if !containsMatch(*out, m) {
				*out = append(*out, m)
			}
			continue
		}

		key := t.String()
		if seen[key] || len(seen) >= maxEmbedWalk {
			continue
		}
		seen[key] = true

		next, ok := r.set.Lookup(t.Path, t.Name)
		if !ok {
			continue
		}
		r.capabilities(next, bindParams(next.Spec.TypeParams, t.Args), seen, out)
	}
}

func (r *Resolver) shape(t *TypeExpr) (Shape, bool) {
	for _, s := range r.shapes {
		if s.Path == t.Path && s.Name == t.Name && s.Arity == len(t.Args) {
			return s, true
		}
	}
	return Shape{}, false
}

func bindParams(params *ast.FieldList, args []*TypeExpr) map[string]*TypeExpr {
	if params == nil {
		return nil
	}
	env := map[string]*TypeExpr{}
	i := 0
	for _, f := range params.List {
		for _, n := range f.Names {
			if i < len(args) {
				env[n.Name] = args[i]
			}
			i++
		}
	}
	return env
}

func containsMatch(ms []capMatch, m capMatch) bool {
	key := m.String()
	for _, x := range ms {
		if x.String() == key {
			return true
		}
	}
	return false
}
