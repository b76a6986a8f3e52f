package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveOne resolves the single annotation on the declaration body.
func resolveOne(t *testing.T, body string) (Binding, DropReason, bool) {
	t.Helper()
	set := appSet(t, body)
	got := sites(set)
	require.Len(t, got, 1)
	return NewResolver(set, mustGenerator(t).shapes).Resolve(got[0])
}

const locals = `type local struct{ dispatch.Command }

type result struct{}

type ask struct{ dispatch.Query[result] }

`

func TestResolve_Bindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		annotation   string
		wantRequest  string
		wantKind     Kind
		wantResponse string
		wantHandler  string
	}{
		{
			name:         "query_with_local_handler",
			annotation:   "@GenerateDispatcher(domain.Greet, GreetHandler)",
			wantRequest:  "example.com/app/domain.Greet",
			wantKind:     Query,
			wantResponse: "example.com/app/domain.Greeting",
			wantHandler:  "example.com/app.GreetHandler",
		},
		{
			name:        "command_without_handler",
			annotation:  "@GenerateDispatcher(domain.Ping)",
			wantRequest: "example.com/app/domain.Ping",
			wantKind:    Command,
		},
		{
			name:         "result_command_with_imported_handler",
			annotation:   "@GenerateDispatcher(domain.Rename, h.Renamer)",
			wantRequest:  "example.com/app/domain.Rename",
			wantKind:     Command,
			wantResponse: "bool",
			wantHandler:  "example.com/app/handlers.Renamer",
		},
		{
			name:         "generic_intermediate_is_substituted",
			annotation:   "@GenerateDispatcher(domain.ListUsers)",
			wantRequest:  "example.com/app/domain.ListUsers",
			wantKind:     Query,
			wantResponse: "[]example.com/app/domain.User",
		},
		{
			name:         "composite_response",
			annotation:   "@GenerateDispatcher(domain.Index)",
			wantRequest:  "example.com/app/domain.Index",
			wantKind:     Query,
			wantResponse: "map[string]*example.com/app/domain.User",
		},
		{
			name:         "same_capability_twice_is_not_ambiguous",
			annotation:   "@GenerateDispatcher(domain.Twice)",
			wantRequest:  "example.com/app/domain.Twice",
			wantKind:     Query,
			wantResponse: "example.com/app/domain.Greeting",
		},
		{
			name:         "pointer_embedding",
			annotation:   "@GenerateDispatcher(domain.Chained)",
			wantRequest:  "example.com/app/domain.Chained",
			wantKind:     Query,
			wantResponse: "example.com/app/domain.Greeting",
		},
		{
			name:        "alias_request_takes_target_identity",
			annotation:  "@GenerateDispatcher(domain.Alias)",
			wantRequest: "example.com/app/domain.Ping",
			wantKind:    Command,
		},
		{
			name:        "alias_chain",
			annotation:  "@GenerateDispatcher(domain.AliasOfAlias)",
			wantRequest: "example.com/app/domain.Ping",
			wantKind:    Command,
		},
		{
			name:         "pointer_handler",
			annotation:   "@GenerateDispatcher(domain.Greet, *GreetHandler)",
			wantRequest:  "example.com/app/domain.Greet",
			wantKind:     Query,
			wantResponse: "example.com/app/domain.Greeting",
			wantHandler:  "example.com/app.GreetHandler",
		},
		{
			name:         "unexported_local_response",
			annotation:   "@GenerateDispatcher(ask)",
			wantRequest:  "example.com/app.ask",
			wantKind:     Query,
			wantResponse: "example.com/app.result",
		},
		{
			name:        "defined_request",
			annotation:  "@GenerateDispatcher(domain.Defined)",
			wantRequest: "example.com/app/domain.Defined",
			wantKind:    Command,
		},
		{
			name:        "unexported_local_request",
			annotation:  "@GenerateDispatcher(local)",
			wantRequest: "example.com/app.local",
			wantKind:    Command,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, reason, ok := resolveOne(t, locals+"// "+tt.annotation+"\ntype AppDispatcher struct{ dispatch.Base }\n")
			require.True(t, ok, "dropped: %s", reason)
			assert.Equal(t, DropNone, reason)

			assert.Equal(t, Dispatcher{Name: "AppDispatcher", Path: appPath, Package: "app", Dir: "/src/" + appPath}, b.Dispatcher)
			assert.Equal(t, tt.wantRequest, b.Request.String())
			assert.Equal(t, tt.wantKind, b.Kind)
			if tt.wantResponse == "" {
				assert.Nil(t, b.Response)
			} else {
				require.NotNil(t, b.Response)
				assert.Equal(t, tt.wantResponse, b.Response.String())
			}
			if tt.wantHandler == "" {
				assert.Nil(t, b.Handler)
			} else {
				require.NotNil(t, b.Handler)
				assert.Equal(t, tt.wantHandler, b.Handler.String())
			}
			assert.Equal(t, "dispatcher.go", fileBase(b.Pos.Filename))
		})
	}
}

func TestResolve_Drops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want DropReason
	}{
		{name: "func", body: "// @GenerateDispatcher(domain.Ping)\nfunc F() {}\n", want: DropNotType},
		{name: "interface_dispatcher", body: "// @GenerateDispatcher(domain.Ping)\ntype D interface{}\n", want: DropNotStruct},
		{name: "alias_dispatcher", body: "type E struct{}\n\n// @GenerateDispatcher(domain.Ping)\ntype D = E\n", want: DropNotStruct},
		{name: "generic_dispatcher", body: "// @GenerateDispatcher(domain.Ping)\ntype D[T any] struct{}\n", want: DropGenericDispatcher},
		{name: "no_args", body: "// @GenerateDispatcher()\ntype D struct{}\n", want: DropArgCount},
		{name: "three_args", body: "// @GenerateDispatcher(domain.Ping, H, X)\ntype D struct{}\n", want: DropArgCount},
		{name: "literal_request", body: "// @GenerateDispatcher(\"Ping\")\ntype D struct{}\n", want: DropRequestNotTypeRef},
		{name: "instantiated_request", body: "// @GenerateDispatcher(domain.Generic[int])\ntype D struct{}\n", want: DropRequestNotTypeRef},
		{name: "unknown_import", body: "// @GenerateDispatcher(nope.Ping)\ntype D struct{}\n", want: DropRequestNotTypeRef},
		{name: "missing_request", body: "// @GenerateDispatcher(domain.Missing)\ntype D struct{}\n", want: DropRequestNotFound},
		{name: "unexported_foreign_request", body: "// @GenerateDispatcher(domain.hidden)\ntype D struct{}\n", want: DropRequestUnexported},
		{name: "generic_request", body: "// @GenerateDispatcher(domain.Generic)\ntype D struct{}\n", want: DropRequestGeneric},
		{name: "literal_handler", body: "// @GenerateDispatcher(domain.Ping, 42)\ntype D struct{}\n", want: DropHandlerNotTypeRef},
		{name: "no_capability", body: "// @GenerateDispatcher(domain.Plain)\ntype D struct{}\n", want: DropNoCapability},
		{name: "unsupported_capability_argument", body: "// @GenerateDispatcher(domain.Fn)\ntype D struct{}\n", want: DropNoCapability},
		{name: "ambiguous", body: "// @GenerateDispatcher(domain.Both)\ntype D struct{}\n", want: DropAmbiguousCapability},
		{name: "unbound_type_parameter", body: "// @GenerateDispatcher(domain.UsesHalf)\ntype D struct{}\n", want: DropUnsupportedResponse},
		{name: "unexported_foreign_response", body: "// @GenerateDispatcher(domain.Secret)\ntype D struct{}\n", want: DropUnsupportedResponse},
		{name: "alias_of_unexported_request", body: "// @GenerateDispatcher(domain.Exposed)\ntype D struct{}\n", want: DropRequestUnexported},
		{name: "unexported_foreign_handler", body: "// @GenerateDispatcher(domain.Ping, h.worker)\ntype D struct{}\n", want: DropHandlerUnexported},
		{name: "pointer_to_literal_handler", body: "// @GenerateDispatcher(domain.Ping, *42)\ntype D struct{}\n", want: DropHandlerNotTypeRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, reason, ok := resolveOne(t, tt.body)
			assert.False(t, ok)
			assert.Equal(t, tt.want, reason, "got %s", reason)
		})
	}
}

func TestResolve_InterfaceRequestWithCustomShapes(t *testing.T) {
	t.Parallel()

	set := newSet(t, map[string]map[string]string{
		"example.com/cqrs": {"cqrs.go": `package cqrs

type Asks[R any] interface{ ask() R }

type Finder interface{ Asks[string] }

type Lookup interface{ Finder }
`},
		appPath: {"app.go": `package app

import "example.com/cqrs"

// @GenerateDispatcher(cqrs.Lookup)
type D struct{}
`},
	})

	r := NewResolver(set, []Shape{{Path: "example.com/cqrs", Name: "Asks", Arity: 1, Kind: Query}})
	got := sites(set)
	require.Len(t, got, 1)

	b, reason, ok := r.Resolve(got[0])
	require.True(t, ok, "dropped: %s", reason)
	assert.Equal(t, Query, b.Kind)
	assert.Equal(t, "string", b.Response.String())
}

func TestResolve_EmbeddingCycleTerminates(t *testing.T) {
	t.Parallel()

	set := newSet(t, map[string]map[string]string{
		appPath: {"app.go": `package app

type A struct{ B }

type B struct{ A }

// @GenerateDispatcher(A)
type D struct{}
`},
	})

	got := sites(set)
	require.Len(t, got, 1)
	_, reason, ok := NewResolver(set, mustGenerator(t).shapes).Resolve(got[0])
	assert.False(t, ok)
	assert.Equal(t, DropNoCapability, reason)
}

func TestDropReason_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ambiguous_capability", DropAmbiguousCapability.String())
	assert.Equal(t, "drop(99)", DropReason(99).String())

	reasons := DropReasons()
	assert.Len(t, reasons, 12)
	assert.NotContains(t, reasons, DropNone)
}
