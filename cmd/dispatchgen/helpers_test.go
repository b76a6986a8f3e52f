package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const domainSource = `package domain

import "github.com/sghaida/odispatch/dispatch"

type Greeting struct{ Text string }

type Greet struct {
	dispatch.Query[Greeting]
	Name string
}

type Ping struct{ dispatch.Command }
`

const greeterDispatcher = `package app

import "example.com/app/domain"

// @GenerateDispatcher(domain.Greet, GreetHandler)
// @GenerateDispatcher(domain.Ping)
type AppDispatcher struct{}
`

// module is a throwaway Go module "example.com/app" on disk.
type module struct {
	t   *testing.T
	dir string
}

func newModule(t *testing.T, dispatcher string) *module {
	t.Helper()
	m := &module{t: t, dir: t.TempDir()}
	m.write("go.mod", "module example.com/app\n\ngo 1.25\n")
	m.write("domain/domain.go", domainSource)
	m.write("dispatcher.go", dispatcher)
	return m
}

func (m *module) path(name string) string { return filepath.Join(m.dir, filepath.FromSlash(name)) }

func (m *module) pattern() string { return m.dir + "/..." }

func (m *module) write(name, content string) string {
	m.t.Helper()
	p := m.path(name)
	require.NoError(m.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(m.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (m *module) read(name string) string {
	m.t.Helper()
	b, err := os.ReadFile(m.path(name))
	require.NoError(m.t, err)
	return string(b)
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}
