package source

import (
	"context"
	"fmt"
	"go/build"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultSuffix is the file suffix of generated output.
const DefaultSuffix = ".gen.go"

// Loader loads packages from disk.
type Loader struct {
	// Suffix marks generated files that are never parsed. Empty means
	// DefaultSuffix.
	Suffix string
}

// Load parses the packages named by patterns with the default Loader.
func Load(ctx context.Context, patterns ...string) (*Set, error) {
	return Loader{}.Load(ctx, patterns...)
}

// Load parses the packages named by patterns. A pattern is a directory, or a
// directory followed by "/..." to include every package below it.
//
// Test files, generated files and files excluded by build constraints are
// skipped. Directories are parsed concurrently; the returned Set is ordered by
// import path and file name regardless.
//
// Packages outside the patterns are imported on demand when the Set is asked
// for their types: from disk when they belong to a module of the loaded
// directories, through go/packages otherwise.
func (l Loader) Load(ctx context.Context, patterns ...string) (*Set, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	dirs, err := expand(patterns)
	if err != nil {
		return nil, err
	}

	type loaded struct {
		importPath string
		mod        module
		files      []*File
	}

	suffix := l.suffix()
	set := NewSet()
	results := make([]loaded, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files, err := parseDir(set.Fset, dir, suffix)
			if err != nil || len(files) == 0 {
				return err
			}
			modRoot, modPath, err := FindModule(dir)
			if err != nil {
				return err
			}
			importPath, err := ModuleImportPathForDir(modRoot, modPath, dir)
			if err != nil {
				return err
			}
			results[i] = loaded{importPath: importPath, mod: module{root: modRoot, path: modPath}, files: files}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imp := &moduleImporter{ctx: ctx, suffix: suffix}
	for i, r := range results {
		if err := set.add(r.importPath, dirs[i], r.files); err != nil {
			return nil, err
		}
		if r.files != nil && !slices.Contains(imp.modules, r.mod) {
			imp.modules = append(imp.modules, r.mod)
		}
	}
	set.SetImporter(imp)
	return set, nil
}

func (l Loader) suffix() string {
	if l.Suffix == "" {
		return DefaultSuffix
	}
	return l.Suffix
}

func parseDir(fset *token.FileSet, dir, suffix string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []*File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, suffix) {
			continue
		}
		if ok, err := build.Default.MatchFile(dir, name); err != nil || !ok {
			continue
		}

		full := filepath.Join(dir, name)
		f, err := parser.ParseFile(fset, full, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("source: parse %s: %w", filepath.ToSlash(full), err)
		}
		out = append(out, &File{Name: name, Path: full, AST: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func expand(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}

	for _, pat := range patterns {
		root, recursive := strings.CutSuffix(filepath.ToSlash(pat), "/...")
		if pat == "..." {
			root, recursive = ".", true
		}
		abs, err := filepath.Abs(filepath.FromSlash(root))
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("source: %s is not a directory", filepath.ToSlash(pat))
		}
		if !recursive {
			add(abs)
			continue
		}

		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if p != abs {
				name := d.Name()
				if name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
					return filepath.SkipDir
				}
				// nested modules are not part of this one
				if fileExists(filepath.Join(p, "go.mod")) {
					return filepath.SkipDir
				}
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}
