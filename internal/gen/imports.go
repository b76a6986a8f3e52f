package gen

import (
	"go/token"
	"sort"
	"strconv"

	"github.com/sghaida/odispatch/internal/source"
)

// Import is one line of a generated import block.
type Import struct {
	Name string // explicit name, empty when the path's default name is used
	Path string
}

// importSet assigns deterministic names to the packages referenced by one
// generated file.
type importSet struct {
	self      string
	name      func(path string) string
	fixed     map[string]string
	paths     map[string]bool
	reserved  map[string]bool
	names     map[string]string
	finalized bool
}

// newImportSet creates an import set for a file of package self. fixed pins
// names for well-known paths. name reports the preferred name of any other
// path.
func newImportSet(self string, name func(string) string, fixed map[string]string, reserved ...string) *importSet {
	s := &importSet{
		self:     self,
		name:     name,
		fixed:    fixed,
		paths:    map[string]bool{},
		reserved: map[string]bool{},
	}
	for _, r := range reserved {
		s.reserved[r] = true
	}
	return s
}

func (s *importSet) add(path string) {
	if s.finalized {
		panic("gen: import added after names were assigned")
	}
	if path == "" || path == s.self {
		return
	}
	s.paths[path] = true
}

func (s *importSet) addType(t *TypeExpr) {
	if t != nil {
		t.Paths(s.add)
	}
}

// finalize assigns names, fixed paths first, then the rest in path order.
func (s *importSet) finalize() {
	if s.finalized {
		return
	}
	s.finalized = true
	s.names = map[string]string{}
	taken := map[string]bool{}
	for r := range s.reserved {
		taken[r] = true
	}

	var fixed, rest []string
	for p := range s.paths {
		if _, ok := s.fixed[p]; ok {
			fixed = append(fixed, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.Strings(fixed)
	sort.Strings(rest)

	assign := func(p, want string) {
		if !token.IsIdentifier(want) || want == "_" {
			want = "pkg"
		}
		n := want
		for i := 2; taken[n]; i++ {
			n = want + strconv.Itoa(i)
		}
		taken[n] = true
		s.names[p] = n
	}
	for _, p := range fixed {
		assign(p, s.fixed[p])
	}
	for _, p := range rest {
		assign(p, s.name(p))
	}
}

// qualifier returns the Qualifier for rendering types in this file.
func (s *importSet) qualifier() Qualifier {
	s.finalize()
	return func(path string) string {
		if path == s.self {
			return ""
		}
		return s.names[path]
	}
}

// list returns the import block ordered by path.
func (s *importSet) list() []Import {
	s.finalize()
	out := make([]Import, 0, len(s.names))
	for p, n := range s.names {
		imp := Import{Path: p}
		if n != source.GuessName(p) {
			imp.Name = n
		}
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// fileNames picks, per import path, the name the dispatcher's own files
// already use, then the loaded package name.
func fileNames(set *source.Set, pkg *source.Package) func(string) string {
	explicit := map[string]string{}
	if pkg != nil {
		for _, f := range pkg.Files {
			for _, imp := range f.AST.Imports {
				if imp.Name == nil || imp.Name.Name == "_" || imp.Name.Name == "." {
					continue
				}
				p, err := strconv.Unquote(imp.Path.Value)
				if err != nil {
					continue
				}
				if _, seen := explicit[p]; !seen {
					explicit[p] = imp.Name.Name
				}
			}
		}
	}
	return func(path string) string {
		if n, ok := explicit[path]; ok {
			return n
		}
		return set.PackageName(path)
	}
}
