package source

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// ErrPackageNotFound is returned by an Importer that has no source for an
// import path.
var ErrPackageNotFound = errors.New("source: package not found")

// Importer supplies packages a Set was not loaded with. Files must be parsed
// with comments into fset.
type Importer interface {
	Import(fset *token.FileSet, importPath string) (dir string, files []*File, err error)
}

// ImporterFunc adapts a function to Importer.
type ImporterFunc func(fset *token.FileSet, importPath string) (string, []*File, error)

// Import implements Importer.
func (f ImporterFunc) Import(fset *token.FileSet, importPath string) (string, []*File, error) {
	return f(fset, importPath)
}

type module struct {
	root string
	path string
}

// moduleImporter reads packages of the loaded modules straight from disk and
// asks go/packages for everything else.
type moduleImporter struct {
	ctx     context.Context
	modules []module
	suffix  string
}

func (m *moduleImporter) Import(fset *token.FileSet, importPath string) (string, []*File, error) {
	for _, mod := range m.modules {
		rel, ok := withinModule(importPath, mod.path)
		if !ok {
			continue
		}
		dir := filepath.Join(mod.root, filepath.FromSlash(rel))
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			return "", nil, fmt.Errorf("%w: %s", ErrPackageNotFound, importPath)
		}
		// a nested go.mod makes dir part of another module
		if root, _, err := FindModule(dir); err != nil || root != mod.root {
			continue
		}
		files, err := parseDir(fset, dir, m.suffix)
		if err != nil {
			return "", nil, err
		}
		if len(files) == 0 {
			return "", nil, fmt.Errorf("%w: %s", ErrPackageNotFound, importPath)
		}
		return dir, files, nil
	}

	if isStandard(importPath) || len(m.modules) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrPackageNotFound, importPath)
	}
	return m.external(fset, importPath)
}

// external loads importPath as the go command sees it from the first loaded
// module. Syntax only: the package does not need to compile.
func (m *moduleImporter) external(fset *token.FileSet, importPath string) (string, []*File, error) {
	cfg := &packages.Config{
		Context: m.ctx,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax,
		Dir:     m.modules[0].root,
		Fset:    fset,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return "", nil, fmt.Errorf("source: load %s: %w", importPath, err)
	}
	if len(pkgs) != 1 || len(pkgs[0].Syntax) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrPackageNotFound, importPath)
	}

	p := pkgs[0]
	files := make([]*File, 0, len(p.Syntax))
	for _, f := range p.Syntax {
		full := fset.Position(f.Package).Filename
		if strings.HasSuffix(full, m.suffix) {
			continue
		}
		files = append(files, &File{Name: filepath.Base(full), Path: full, AST: f})
	}
	if len(files) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrPackageNotFound, importPath)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	dir := filepath.Dir(files[0].Path)
	if len(p.GoFiles) > 0 {
		dir = filepath.Dir(p.GoFiles[0])
	}
	return dir, files, nil
}

// withinModule returns importPath relative to modPath.
func withinModule(importPath, modPath string) (string, bool) {
	if importPath == modPath {
		return ".", true
	}
	rel, ok := strings.CutPrefix(importPath, modPath+"/")
	return rel, ok && rel != ""
}

// isStandard reports whether importPath names a standard library package:
// its first element has no dot.
func isStandard(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
