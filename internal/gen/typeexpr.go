package gen

import (
	"errors"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/sghaida/odispatch/internal/source"
)

// TypeKind is the form of a TypeExpr.
type TypeKind int

const (
	TypeNamed TypeKind = iota
	TypePointer
	TypeSlice
	TypeArray
	TypeMap
	TypeEmptyStruct
	TypeEmptyInterface
	// TypeParam is a type parameter of the declaration being walked. It
	// never survives into a Binding.
	TypeParam
)

var errUnsupportedType = errors.New("gen: unsupported type expression")

// TypeExpr is a fully qualified type expression, small enough to cover
// request, response and handler types.
type TypeExpr struct {
	Kind TypeKind
	Path string // TypeNamed: import path, "" for predeclared types
	Name string // TypeNamed, TypeParam
	Args []*TypeExpr
	Key  *TypeExpr // TypeMap
	Elem *TypeExpr // TypePointer, TypeSlice, TypeArray, TypeMap
	Len  string    // TypeArray
}

// Named returns the named type path.name with type arguments args.
func Named(path, name string, args ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: TypeNamed, Path: path, Name: name, Args: args}
}

// Qualifier maps an import path to the name it is referred to by. An empty
// result leaves the type unqualified.
type Qualifier func(path string) string

// String renders the type with full import paths.
func (t *TypeExpr) String() string {
	return t.Render(func(path string) string { return path })
}

// Render writes the type as Go source, qualifying named types with q.
func (t *TypeExpr) Render(q Qualifier) string {
	var sb strings.Builder
	t.render(&sb, q)
	return sb.String()
}

func (t *TypeExpr) render(sb *strings.Builder, q Qualifier) {
	switch t.Kind {
	case TypeNamed:
		if t.Path != "" {
			if name := q(t.Path); name != "" {
				sb.WriteString(name)
				sb.WriteByte('.')
			}
		}
		sb.WriteString(t.Name)
		if len(t.Args) > 0 {
			sb.WriteByte('[')
			for i, a := range t.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				a.render(sb, q)
			}
			sb.WriteByte(']')
		}
	case TypeParam:
		sb.WriteString(t.Name)
	case TypePointer:
		sb.WriteByte('*')
		t.Elem.render(sb, q)
	case TypeSlice:
		sb.WriteString("[]")
		t.Elem.render(sb, q)
	case TypeArray:
		sb.WriteByte('[')
		sb.WriteString(t.Len)
		sb.WriteByte(']')
		t.Elem.render(sb, q)
	case TypeMap:
		sb.WriteString("map[")
		t.Key.render(sb, q)
		sb.WriteByte(']')
		t.Elem.render(sb, q)
	case TypeEmptyStruct:
		sb.WriteString("struct{}")
	case TypeEmptyInterface:
		sb.WriteString("interface{}")
	}
}

// Paths calls yield for every import path referenced by t, in walk order.
func (t *TypeExpr) Paths(yield func(string)) {
	if t == nil {
		return
	}
	if t.Kind == TypeNamed && t.Path != "" {
		yield(t.Path)
	}
	for _, a := range t.Args {
		a.Paths(yield)
	}
	t.Key.Paths(yield)
	t.Elem.Paths(yield)
}

// VisibleFrom reports whether code in package pkg can name every type in t:
// named types of other packages must be exported.
func (t *TypeExpr) VisibleFrom(pkg string) bool {
	if t == nil {
		return true
	}
	if t.Kind == TypeNamed && t.Path != "" && t.Path != pkg && !token.IsExported(t.Name) {
		return false
	}
	for _, a := range t.Args {
		if !a.VisibleFrom(pkg) {
			return false
		}
	}
	return t.Key.VisibleFrom(pkg) && t.Elem.VisibleFrom(pkg)
}

// Closed reports whether t contains no type parameters.
func (t *TypeExpr) Closed() bool {
	if t == nil {
		return true
	}
	if t.Kind == TypeParam {
		return false
	}
	for _, a := range t.Args {
		if !a.Closed() {
			return false
		}
	}
	return t.Key.Closed() && t.Elem.Closed()
}

// Subst replaces type parameters bound in env. Unbound parameters are kept.
func (t *TypeExpr) Subst(env map[string]*TypeExpr) *TypeExpr {
	if t == nil || len(env) == 0 {
		return t
	}
	if t.Kind == TypeParam {
		if r, ok := env[t.Name]; ok {
			return r
		}
		return t
	}
	out := *t
	if len(t.Args) > 0 {
		out.Args = make([]*TypeExpr, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = a.Subst(env)
		}
	}
	out.Key = t.Key.Subst(env)
	out.Elem = t.Elem.Subst(env)
	return &out
}

// scope resolves identifiers of one file of one package.
type scope struct {
	set     *source.Set
	pkg     string
	imports map[string]string
	params  map[string]bool
}

func newScope(set *source.Set, f *source.File, pkgPath string, params *ast.FieldList) *scope {
	s := &scope{set: set, pkg: pkgPath, imports: set.Imports(f)}
	if params != nil {
		s.params = map[string]bool{}
		for _, fld := range params.List {
			for _, n := range fld.Names {
				s.params[n.Name] = true
			}
		}
	}
	return s
}

// ref converts a bare type reference, Name or pkg.Name, to a named type.
func (s *scope) ref(e ast.Expr) (*TypeExpr, bool) {
	switch x := e.(type) {
	case *ast.Ident:
		return Named(s.pkg, x.Name), true
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if !ok {
			return nil, false
		}
		path, ok := s.imports[pkg.Name]
		if !ok {
			return nil, false
		}
		return Named(path, x.Sel.Name), true
	}
	return nil, false
}

// typeExpr converts a type expression of the scope's file.
func (s *scope) typeExpr(e ast.Expr) (*TypeExpr, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return s.typeExpr(x.X)
	case *ast.Ident:
		switch {
		case s.params[x.Name]:
			return &TypeExpr{Kind: TypeParam, Name: x.Name}, nil
		case s.declared(x.Name):
			return Named(s.pkg, x.Name), nil
		case isPredeclared(x.Name):
			return Named("", x.Name), nil
		}
		return Named(s.pkg, x.Name), nil
	case *ast.SelectorExpr:
		if t, ok := s.ref(x); ok {
			return t, nil
		}
		return nil, errUnsupportedType
	case *ast.IndexExpr:
		return s.instance(x.X, []ast.Expr{x.Index})
	case *ast.IndexListExpr:
		return s.instance(x.X, x.Indices)
	case *ast.StarExpr:
		elem, err := s.typeExpr(x.X)
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: TypePointer, Elem: elem}, nil
	case *ast.ArrayType:
		elem, err := s.typeExpr(x.Elt)
		if err != nil {
			return nil, err
		}
		if x.Len == nil {
			return &TypeExpr{Kind: TypeSlice, Elem: elem}, nil
		}
		lit, ok := x.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, errUnsupportedType
		}
		return &TypeExpr{Kind: TypeArray, Len: lit.Value, Elem: elem}, nil
	case *ast.MapType:
		key, err := s.typeExpr(x.Key)
		if err != nil {
			return nil, err
		}
		elem, err := s.typeExpr(x.Value)
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: TypeMap, Key: key, Elem: elem}, nil
	case *ast.StructType:
		if x.Fields == nil || len(x.Fields.List) == 0 {
			return &TypeExpr{Kind: TypeEmptyStruct}, nil
		}
	case *ast.InterfaceType:
		if x.Methods == nil || len(x.Methods.List) == 0 {
			return &TypeExpr{Kind: TypeEmptyInterface}, nil
		}
	}
	return nil, errUnsupportedType
}

func (s *scope) instance(base ast.Expr, indices []ast.Expr) (*TypeExpr, error) {
	t, err := s.typeExpr(base)
	if err != nil {
		return nil, err
	}
	if t.Kind != TypeNamed || t.Path == "" {
		return nil, errUnsupportedType
	}
	for _, ix := range indices {
		a, err := s.typeExpr(ix)
		if err != nil {
			return nil, err
		}
		t.Args = append(t.Args, a)
	}
	return t, nil
}

func (s *scope) declared(name string) bool {
	_, ok := s.set.Lookup(s.pkg, name)
	return ok
}

func isPredeclared(name string) bool {
	_, ok := types.Universe.Lookup(name).(*types.TypeName)
	return ok
}
