package source

import (
	"context"
	"errors"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modHarness struct {
	t   *testing.T
	dir string
}

func newMod(t *testing.T, modPath string) *modHarness {
	t.Helper()
	h := &modHarness{t: t, dir: t.TempDir()}
	if modPath != "" {
		h.write("go.mod", "module "+modPath+"\n\ngo 1.25\n")
	}
	return h
}

func (h *modHarness) write(rel, content string) string {
	h.t.Helper()
	p := filepath.Join(h.dir, filepath.FromSlash(rel))
	require.NoError(h.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (h *modHarness) path(rel string) string {
	return filepath.Join(h.dir, filepath.FromSlash(rel))
}

func fileNames(p *Package) []string {
	out := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, f.Name)
	}
	return out
}

func TestLoad_SingleDir(t *testing.T) {
	t.Parallel()

	h := newMod(t, "example.com/proj")
	h.write("app/b.go", "package app\n\ntype B struct{}\n")
	h.write("app/a.go", "package app\n\n// A doc.\ntype A struct{}\n")
	h.write("app/a_test.go", "package app\n\ntype T struct{}\n")
	h.write("app/x_dispatch_y.gen.go", "package app\n\ntype G struct{}\n")
	h.write("app/ignored.go", "//go:build ignore\n\npackage main\n")

	set, err := Load(context.Background(), h.path("app"))
	require.NoError(t, err)
	require.Len(t, set.Packages, 1)

	p := set.Packages[0]
	assert.Equal(t, "example.com/proj/app", p.Path)
	assert.Equal(t, "app", p.Name)
	assert.Equal(t, []string{"a.go", "b.go"}, fileNames(p))

	d, ok := set.Lookup("example.com/proj/app", "A")
	require.True(t, ok)
	assert.Equal(t, "A", d.Spec.Name.Name)
	assert.Equal(t, "a.go", d.File.Name)
	assert.Same(t, p, d.Pkg)

	_, ok = set.Lookup("example.com/proj/app", "G")
	assert.False(t, ok, "generated files are not loaded")
	_, ok = set.Lookup("example.com/proj/app", "T")
	assert.False(t, ok, "test files are not loaded")
}

func TestLoader_SkipsConfiguredSuffix(t *testing.T) {
	t.Parallel()

	h := newMod(t, "example.com/proj")
	h.write("app/a.go", "package app\n\ntype A struct{}\n")
	h.write("app/b.gen.go", "package app\n\ntype B struct{}\n")
	h.write("app/c_dispatch_x.out.go", "package app\n\ntype C struct{}\n")

	set, err := Loader{Suffix: ".out.go"}.Load(context.Background(), h.path("app"))
	require.NoError(t, err)
	require.Len(t, set.Packages, 1)
	assert.Equal(t, []string{"a.go", "b.gen.go"}, fileNames(set.Packages[0]))
}

func TestLoad_ImportsModulePackagesOnDemand(t *testing.T) {
	t.Parallel()

	h := newMod(t, "example.com/proj")
	h.write("app/app.go", "package app\n\nimport \"example.com/proj/domain\"\n\nvar _ domain.Greet\n")
	h.write("domain/domain.go", "package model\n\ntype Greet struct{ Base }\n")
	h.write("domain/base.go", "package model\n\ntype Base struct{}\n")
	h.write("domain/old.gen.go", "package model\n\ntype Old struct{}\n")

	set, err := Load(context.Background(), h.path("app"))
	require.NoError(t, err)
	require.Len(t, set.Packages, 1)
	assert.Equal(t, "domain", set.PackageName("example.com/proj/domain"), "guessed before import")

	d, ok := set.Lookup("example.com/proj/domain", "Greet")
	require.True(t, ok)
	assert.Equal(t, "domain.go", d.File.Name)
	assert.Equal(t, "model", d.Pkg.Name)
	assert.Equal(t, h.path("domain"), d.Pkg.Dir)
	assert.Equal(t, "model", set.PackageName("example.com/proj/domain"))

	_, ok = set.Lookup("example.com/proj/domain", "Base")
	assert.True(t, ok)
	_, ok = set.Lookup("example.com/proj/domain", "Old")
	assert.False(t, ok, "generated files are not imported")

	require.Len(t, set.Packages, 1, "imported packages are not scanned")

	_, ok = set.Lookup("example.com/proj/missing", "X")
	assert.False(t, ok)
	_, ok = set.Lookup("context", "Context")
	assert.False(t, ok, "standard library is not imported")
}

func TestLoad_ImportsOtherModules(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	h := newMod(t, "")
	h.write("app/go.mod", "module example.com/app\n\ngo 1.25\n\nrequire example.com/ext v0.0.0\n\nreplace example.com/ext => ../ext\n")
	h.write("app/app.go", "package app\n\nimport \"example.com/ext/msg\"\n\nvar _ msg.Ping\n")
	h.write("ext/go.mod", "module example.com/ext\n\ngo 1.25\n")
	h.write("ext/msg/msg.go", "package msg\n\ntype Ping struct{}\n")

	set, err := Load(context.Background(), h.path("app"))
	require.NoError(t, err)

	d, ok := set.Lookup("example.com/ext/msg", "Ping")
	require.True(t, ok)
	assert.Equal(t, "msg.go", d.File.Name)
	assert.Equal(t, "msg", d.Pkg.Name)
}

func TestSet_ImporterCachesResults(t *testing.T) {
	t.Parallel()

	calls := map[string]int{}
	set := NewSet()
	set.SetImporter(ImporterFunc(func(fset *token.FileSet, importPath string) (string, []*File, error) {
		calls[importPath]++
		if importPath != "example.com/dep" {
			return "", nil, ErrPackageNotFound
		}
		files, err := ParseSource(fset, "/dep", map[string]string{"dep.go": "package dep\n\ntype Dep struct{}\n"})
		return "/dep", files, err
	}))

	for range 2 {
		_, ok := set.Lookup("example.com/dep", "Dep")
		assert.True(t, ok)
		_, ok = set.Lookup("example.com/gone", "Gone")
		assert.False(t, ok)
	}
	_, ok := set.Lookup("", "int")
	assert.False(t, ok)

	assert.Equal(t, map[string]int{"example.com/dep": 1, "example.com/gone": 1}, calls)
	assert.Empty(t, set.Packages)
}

func TestLoad_Recursive(t *testing.T) {
	t.Parallel()

	h := newMod(t, "example.com/proj")
	h.write("root.go", "package proj\n")
	h.write("b/b.go", "package b\n")
	h.write("a/a.go", "package a\n")
	h.write("a/inner/i.go", "package inner\n")
	h.write("testdata/t.go", "package t\n")
	h.write("_skip/s.go", "package s\n")
	h.write(".hidden/h.go", "package h\n")
	h.write("nested/go.mod", "module example.com/nested\n")
	h.write("nested/n.go", "package nested\n")
	h.write("empty/readme.txt", "nothing")

	set, err := Load(context.Background(), h.dir+"/...")
	require.NoError(t, err)

	var paths []string
	for _, p := range set.Packages {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{
		"example.com/proj",
		"example.com/proj/a",
		"example.com/proj/a/inner",
		"example.com/proj/b",
	}, paths)
}

func TestLoad_OverlappingPatterns(t *testing.T) {
	t.Parallel()

	h := newMod(t, "example.com/proj")
	h.write("a/a.go", "package a\n")

	set, err := Load(context.Background(), h.path("a"), h.dir+"/...")
	require.NoError(t, err)
	require.Len(t, set.Packages, 1)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no_module", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "")
		h.write("a/a.go", "package a\n")

		_, err := Load(context.Background(), h.path("a"))
		require.ErrorIs(t, err, ErrNoModule)
	})

	t.Run("syntax_error", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "example.com/proj")
		h.write("a/a.go", "package a\n\nfunc {\n")

		_, err := Load(context.Background(), h.path("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source: parse")
	})

	t.Run("mixed_packages", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "example.com/proj")
		h.write("a/a.go", "package a\n")
		h.write("a/b.go", "package b\n")

		_, err := Load(context.Background(), h.path("a"))
		var mixed *MixedPackagesError
		require.True(t, errors.As(err, &mixed))
		assert.Equal(t, []string{"a", "b"}, mixed.Names)
	})

	t.Run("missing_dir", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "example.com/proj")

		_, err := Load(context.Background(), h.path("nope"))
		require.Error(t, err)
	})

	t.Run("file_not_dir", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "example.com/proj")
		p := h.write("a.go", "package proj\n")

		_, err := Load(context.Background(), p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a directory")
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		h := newMod(t, "example.com/proj")
		h.write("a/a.go", "package a\n")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Load(ctx, h.path("a"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestModuleImportPathForDir(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/src/proj")

	got, err := ModuleImportPathForDir(root, "example.com/proj", root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/proj", got)

	got, err = ModuleImportPathForDir(root, "example.com/proj", filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/proj/a/b", got)

	_, err = ModuleImportPathForDir(root, "example.com/proj", filepath.FromSlash("/src/other"))
	var outside *OutsideModuleError
	require.True(t, errors.As(err, &outside))
}

func TestModuleDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		gomod  string
		want   string
		wantOK bool
	}{
		{name: "plain", gomod: "module example.com/a\n", want: "example.com/a", wantOK: true},
		{name: "quoted", gomod: "module \"example.com/q\"\n", want: "example.com/q", wantOK: true},
		{name: "comment", gomod: "// header\nmodule example.com/c // trailing\n", want: "example.com/c", wantOK: true},
		{name: "modulex_is_not_directive", gomod: "modulex foo\n"},
		{name: "missing", gomod: "go 1.25\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := moduleDirective(tt.gomod)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuessName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"context":                         "context",
		"example.com/proj/domain":         "domain",
		"github.com/pelletier/go-toml/v2": "toml",
		"gopkg.in/yaml.v3":                "yaml",
		"example.com/my-pkg":              "my_pkg",
		"example.com/proj/api/v3":         "api",
		"github.com/foo/bar-go":           "bar",
	}
	for in, want := range tests {
		assert.Equal(t, want, GuessName(in), in)
	}
}

func TestSet_AddSourceAndImports(t *testing.T) {
	t.Parallel()

	set := NewSet()
	require.NoError(t, set.AddSource("example.com/proj/domain", "domain", map[string]string{
		"types.go": "package model\n\ntype Greet struct{}\n",
	}))
	require.NoError(t, set.AddSource("example.com/proj/app", "app", map[string]string{
		"app.go": `package app

import (
	"context"
	_ "embed"
	. "strings"
	x "example.com/proj/other"
	"example.com/proj/domain"
	"gopkg.in/yaml.v3"
)
`,
	}))

	app, ok := set.Package("example.com/proj/app")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"context": "context",
		"x":       "example.com/proj/other",
		"model":   "example.com/proj/domain",
		"yaml":    "gopkg.in/yaml.v3",
	}, set.Imports(app.Files[0]))

	assert.Equal(t, "model", set.PackageName("example.com/proj/domain"))
	assert.Equal(t, "other", set.PackageName("example.com/proj/other"))

	err := set.AddSource("example.com/proj/app", "app", map[string]string{"a.go": "package app\n"})
	var dup *DuplicatePackageError
	require.True(t, errors.As(err, &dup))

	err = set.AddSource("example.com/proj/bad", "bad", map[string]string{"a.go": "package\n"})
	require.Error(t, err)

	require.Len(t, set.Packages, 2)
	assert.Equal(t, "example.com/proj/app", set.Packages[0].Path)
}

func TestSet_NilSafe(t *testing.T) {
	t.Parallel()

	var s *Set
	_, ok := s.Package("x")
	assert.False(t, ok)
	_, ok = s.Lookup("x", "Y")
	assert.False(t, ok)
}
