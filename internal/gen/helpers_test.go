package gen

import (
	"context"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sghaida/odispatch/internal/source"
)

const (
	appPath    = "example.com/app"
	domainPath = "example.com/app/domain"
)

const domainSrc = `package domain

import "github.com/sghaida/odispatch/dispatch"

type Greeting struct{ Text string }

type User struct{ ID int }

type Greet struct {
	dispatch.Query[Greeting]
	Name string
}

type Ping struct{ dispatch.Command }

type Rename struct {
	dispatch.ResultCommand[bool]
	To string
}

type Paged[T any] struct {
	dispatch.Query[[]T]
}

type ListUsers struct {
	Paged[User]
}

type Index struct {
	dispatch.Query[map[string]*User]
}

type Both struct {
	dispatch.Query[int]
	dispatch.Command
}

type Twice struct {
	Greet
	Chained
}

type Chained struct{ *Greet }

type Alias = Ping

type Defined Ping

type Plain struct{ Name string }

type Generic[T any] struct{ dispatch.Query[T] }

type Half[T any] struct{ dispatch.Query[T] }

type UsesHalf struct{ Half }

type Fn struct{ dispatch.Query[func()] }

type hidden struct{ dispatch.Command }

type AliasOfAlias = Alias

type Exposed = hidden

type greeting struct{ Text string }

type Secret struct{ dispatch.Query[[]*greeting] }
`

// dispatcherSrc wraps annotated declarations into a file of package app.
func dispatcherSrc(body string) string {
	return `package app

import (
	"example.com/app/domain"
	h "example.com/app/handlers"
	"github.com/sghaida/odispatch/dispatch"
)

var _ h.Marker
var _ dispatch.Base

` + body
}

// newSet builds a source set from importPath -> file name -> content.
func newSet(t *testing.T, pkgs map[string]map[string]string) *source.Set {
	t.Helper()
	set := source.NewSet()
	for path, files := range pkgs {
		require.NoError(t, set.AddSource(path, "/src/"+path, files))
	}
	return set
}

func appSet(t *testing.T, body string) *source.Set {
	t.Helper()
	return newSet(t, map[string]map[string]string{
		domainPath: {"domain.go": domainSrc},
		appPath:    {"dispatcher.go": dispatcherSrc(body)},
	})
}

func sites(set *source.Set, markers ...string) []Site {
	if len(markers) == 0 {
		markers = DefaultOptions().Markers
	}
	var out []Site
	for s := range Scan(set, markers) {
		out = append(out, s)
	}
	return out
}

func mustGenerator(t *testing.T, mutate ...func(*Options)) *Generator {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	g, err := New(opts)
	require.NoError(t, err)
	return g
}

func mustRun(t *testing.T, g *Generator, set *source.Set) *Result {
	t.Helper()
	res, err := g.Run(context.Background(), set)
	require.NoError(t, err)
	return res
}

func artifactByKey(t *testing.T, res *Result, key string) Artifact {
	t.Helper()
	for _, a := range res.Artifacts {
		if a.Key == key {
			return a
		}
	}
	require.Failf(t, "artifact not found", "key %q", key)
	return Artifact{}
}

func assertParses(t *testing.T, a Artifact) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), a.File, a.Source, parser.AllErrors)
	require.NoError(t, err, "artifact %s:\n%s", a.Key, a.Source)
}

func assertContainsInOrder(t *testing.T, s string, parts ...string) {
	t.Helper()
	idx := 0
	for _, p := range parts {
		i := strings.Index(s[idx:], p)
		require.GreaterOrEqual(t, i, 0, "missing %q after offset %d in:\n%s", p, idx, s)
		idx += i + len(p)
	}
}
