package gen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"iter"
	"slices"
	"strings"

	"github.com/sghaida/odispatch/internal/source"
)

// Site is one annotation found in a declaration's doc comment.
type Site struct {
	Marker string
	Args   []ast.Expr
	Pos    token.Position

	// Type is the annotated type declaration, nil when the annotation sits on
	// a func, var or const declaration.
	Type *ast.TypeSpec
	// Decl names the annotated declaration for logging.
	Decl string

	File *source.File
	Pkg  *source.Package
}

// Scan yields every annotation in set whose marker is one of markers, in
// package, file and source order. Nothing is resolved here.
func Scan(set *source.Set, markers []string) iter.Seq[Site] {
	return func(yield func(Site) bool) {
		for _, pkg := range set.Packages {
			for _, f := range pkg.Files {
				sc := fileScanner{set: set, pkg: pkg, file: f, markers: markers}
				if !sc.scan(yield) {
					return
				}
			}
		}
	}
}

type fileScanner struct {
	set     *source.Set
	pkg     *source.Package
	file    *source.File
	markers []string
}

func (sc fileScanner) scan(yield func(Site) bool) bool {
	for _, decl := range sc.file.AST.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !sc.doc(d.Doc, nil, d.Name.Name, yield) {
				return false
			}
		case *ast.GenDecl:
			if !sc.genDecl(d, yield) {
				return false
			}
		}
	}
	return true
}

func (sc fileScanner) genDecl(d *ast.GenDecl, yield func(Site) bool) bool {
	// A lone spec without parentheses carries its doc on the GenDecl.
	if !d.Lparen.IsValid() && len(d.Specs) == 1 {
		ts, _ := d.Specs[0].(*ast.TypeSpec)
		doc := d.Doc
		if ts != nil && ts.Doc != nil {
			doc = ts.Doc
		}
		return sc.doc(doc, ts, specName(d.Specs[0]), yield)
	}

	if d.Tok != token.TYPE {
		if !sc.doc(d.Doc, nil, d.Tok.String(), yield) {
			return false
		}
	}
	for _, spec := range d.Specs {
		var doc *ast.CommentGroup
		ts, _ := spec.(*ast.TypeSpec)
		switch s := spec.(type) {
		case *ast.TypeSpec:
			doc = s.Doc
		case *ast.ValueSpec:
			doc = s.Doc
		}
		if !sc.doc(doc, ts, specName(spec), yield) {
			return false
		}
	}
	return true
}

func (sc fileScanner) doc(doc *ast.CommentGroup, ts *ast.TypeSpec, name string, yield func(Site) bool) bool {
	if doc == nil {
		return true
	}
	for _, c := range doc.List {
		marker, args, ok := parseAnnotation(c.Text)
		if !ok || !slices.Contains(sc.markers, marker) {
			continue
		}
		site := Site{
			Marker: marker,
			Args:   args,
			Pos:    sc.set.Fset.Position(c.Slash),
			Type:   ts,
			Decl:   name,
			File:   sc.file,
			Pkg:    sc.pkg,
		}
		if !yield(site) {
			return false
		}
	}
	return true
}

// parseAnnotation reads "// @Marker(args...)" from a single comment.
func parseAnnotation(text string) (marker string, args []ast.Expr, ok bool) {
	body, isLine := strings.CutPrefix(text, "//")
	if !isLine {
		return "", nil, false
	}
	body, ok = strings.CutPrefix(strings.TrimSpace(body), "@")
	if !ok {
		return "", nil, false
	}

	expr, err := parser.ParseExpr(body)
	if err != nil {
		return "", nil, false
	}
	call, isCall := expr.(*ast.CallExpr)
	if !isCall || call.Ellipsis.IsValid() {
		return "", nil, false
	}
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		marker = fn.Name
	case *ast.SelectorExpr:
		x, isIdent := fn.X.(*ast.Ident)
		if !isIdent {
			return "", nil, false
		}
		marker = x.Name + "." + fn.Sel.Name
	default:
		return "", nil, false
	}
	return marker, call.Args, true
}

func specName(spec ast.Spec) string {
	switch s := spec.(type) {
	case *ast.TypeSpec:
		return s.Name.Name
	case *ast.ValueSpec:
		if len(s.Names) > 0 {
			return s.Names[0].Name
		}
	}
	return ""
}
