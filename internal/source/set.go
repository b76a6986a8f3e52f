// Package source loads Go packages as syntax trees for the generator.
//
// Nothing is type-checked. A Set is only an ordered collection of parsed files
// with an index of the type declarations each package makes.
package source

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"sort"
	"strings"
	"sync"
)

// File is one parsed source file.
type File struct {
	// Name is the base file name.
	Name string
	// Path is the file path as handed to the parser.
	Path string
	AST  *ast.File
}

// Package is one directory of parsed files sharing a package clause.
type Package struct {
	Path  string // import path
	Name  string // package name
	Dir   string
	Files []*File

	types map[string]Decl
}

// Decl is a type declaration found in a loaded package.
type Decl struct {
	Spec *ast.TypeSpec
	File *File
	Pkg  *Package
}

// Set is an ordered collection of loaded packages.
//
// Packages holds only the packages named when loading. Types of other
// packages are reachable through Lookup once an Importer is installed; those
// packages are parsed on first use and never scanned for annotations.
type Set struct {
	Fset     *token.FileSet
	Packages []*Package

	byPath   map[string]*Package
	importer Importer

	mu   sync.Mutex
	deps map[string]*Package // nil value: import failed
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{Fset: token.NewFileSet(), byPath: map[string]*Package{}, deps: map[string]*Package{}}
}

// SetImporter installs imp as the source of packages that were not loaded.
func (s *Set) SetImporter(imp Importer) { s.importer = imp }

// Package returns the package loaded under importPath.
func (s *Set) Package(importPath string) (*Package, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.byPath[importPath]
	return p, ok
}

// Lookup finds the type declaration name in the package importPath. A package
// that was not loaded is imported on first use.
func (s *Set) Lookup(importPath, name string) (Decl, bool) {
	p, ok := s.Package(importPath)
	if !ok {
		if p, ok = s.dependency(importPath); !ok {
			return Decl{}, false
		}
	}
	d, ok := p.types[name]
	return d, ok
}

// dependency returns the imported package importPath, importing it once.
func (s *Set) dependency(importPath string) (*Package, bool) {
	if s == nil || s.importer == nil || importPath == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, seen := s.deps[importPath]; seen {
		return p, p != nil
	}
	dir, files, err := s.importer.Import(s.Fset, importPath)
	var p *Package
	if err == nil && len(files) > 0 {
		if p, err = newPackage(importPath, dir, files); err != nil {
			p = nil
		}
	}
	s.deps[importPath] = p
	return p, p != nil
}

// PackageName returns the package name used for importPath: the package
// clause when the package is loaded or already imported, a guess from the
// path otherwise.
func (s *Set) PackageName(importPath string) string {
	if p, ok := s.Package(importPath); ok {
		return p.Name
	}
	if s != nil {
		s.mu.Lock()
		p := s.deps[importPath]
		s.mu.Unlock()
		if p != nil {
			return p.Name
		}
	}
	return GuessName(importPath)
}

// AddSource parses in-memory files as the package importPath located in dir.
// File names are processed in sorted order.
func (s *Set) AddSource(importPath, dir string, files map[string]string) error {
	parsed, err := ParseSource(s.Fset, dir, files)
	if err != nil {
		return err
	}
	return s.add(importPath, dir, parsed)
}

// ParseSource parses in-memory files of dir in sorted name order.
func ParseSource(fset *token.FileSet, dir string, files map[string]string) ([]*File, error) {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	parsed := make([]*File, 0, len(names))
	for _, n := range names {
		full := path.Join(dir, n)
		f, err := parser.ParseFile(fset, full, files[n], parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("source: parse %s: %w", full, err)
		}
		parsed = append(parsed, &File{Name: n, Path: full, AST: f})
	}
	return parsed, nil
}

func (s *Set) add(importPath, dir string, files []*File) error {
	if len(files) == 0 {
		return nil
	}
	if _, dup := s.byPath[importPath]; dup {
		return &DuplicatePackageError{Path: importPath}
	}

	p, err := newPackage(importPath, dir, files)
	if err != nil {
		return err
	}
	s.byPath[importPath] = p
	s.Packages = append(s.Packages, p)
	sort.Slice(s.Packages, func(i, j int) bool { return s.Packages[i].Path < s.Packages[j].Path })
	return nil
}

func newPackage(importPath, dir string, files []*File) (*Package, error) {
	p := &Package{Path: importPath, Dir: dir, Files: files, types: map[string]Decl{}}
	for _, f := range files {
		name := f.AST.Name.Name
		switch {
		case p.Name == "":
			p.Name = name
		case p.Name != name:
			return nil, &MixedPackagesError{Dir: dir, Names: []string{p.Name, name}}
		}
		indexTypes(p, f)
	}
	return p, nil
}

func indexTypes(p *Package, f *File) {
	for _, decl := range f.AST.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			if _, seen := p.types[ts.Name.Name]; seen {
				continue
			}
			p.types[ts.Name.Name] = Decl{Spec: ts, File: f, Pkg: p}
		}
	}
}

// Imports maps the names under which f refers to its imports to their paths.
// Blank and dot imports are left out.
func (s *Set) Imports(f *File) map[string]string {
	out := make(map[string]string, len(f.AST.Imports))
	for _, imp := range f.AST.Imports {
		p := strings.Trim(imp.Path.Value, "`\"")
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		switch name {
		case "_", ".":
			continue
		case "":
			name = s.PackageName(p)
		}
		out[name] = p
	}
	return out
}

// GuessName returns the conventional package name for an import path: its
// last element, skipping a trailing major version element.
func GuessName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		// gopkg.in/yaml.v3
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, "-go")
	return strings.Map(func(r rune) rune {
		if r == '-' {
			return '_'
		}
		return r
	}, name)
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
