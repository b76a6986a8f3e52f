package gen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/sghaida/odispatch/internal/source"
)

// Header is the first line of every generated file.
const Header = "// Code generated by dispatchgen; DO NOT EDIT."

// identifiers used by the templates; imports must not shadow them.
var templateIdents = []string{"ctx", "req", "r", "d", "b", "p", "any", "error", "nil"}

type emitter struct {
	opts Options
	set  *source.Set
}

type dispatchData struct {
	Source     string
	Hash       string
	Package    string
	Imports    []Import
	Dispatcher string
	Piece      string
	Method     string
	Request    string
	Result     string
	KindDoc    string
	Context    string
	Call       string
}

type registrationBinding struct {
	Piece           string
	Method          string
	Request         string
	HasResponse     bool
	Handler         string
	HandlerContract string
}

type registrationData struct {
	Source     string
	Hash       string
	Package    string
	Imports    []Import
	Dispatcher string
	Contract   string
	Register   string
	Context    string
	Dispatch   string
	DI         string
	Bindings   []registrationBinding
}

func (e *emitter) pieceName(b Binding) string {
	return b.Dispatcher.Name + b.RequestName() + "Dispatch"
}

func methodName(b Binding) string { return "Dispatch" + b.RequestName() }

func (e *emitter) contractName(d Dispatcher) string {
	return fmt.Sprintf(e.opts.ContractFormat, d.Name)
}

func (e *emitter) registerName(d Dispatcher) string {
	return fmt.Sprintf(e.opts.RegisterFormat, d.Name)
}

func (e *emitter) dispatchFile(b Binding) string {
	return snake(b.Dispatcher.Name) + "_dispatch_" + snake(b.RequestName()) + e.opts.FileSuffix
}

func (e *emitter) registrationFile(d Dispatcher) string {
	return snake(d.Name) + "_registrations" + e.opts.FileSuffix
}

func (e *emitter) imports(d Dispatcher, extra ...string) *importSet {
	pkg, _ := e.set.Package(d.Path)
	reserved := append(append([]string(nil), templateIdents...), extra...)
	reserved = append(reserved, packageScope(pkg)...)
	fixed := map[string]string{
		"context":               "context",
		e.opts.Runtime.Dispatch: "dispatch",
		e.opts.Runtime.DI:       "di",
	}
	return newImportSet(d.Path, fileNames(e.set, pkg), fixed, reserved...)
}

// dispatch renders the artifact for one binding.
func (e *emitter) dispatch(b Binding) (Artifact, error) {
	imps := e.imports(b.Dispatcher, e.pieceName(b))
	imps.add("context")
	imps.add(e.opts.Runtime.Dispatch)
	imps.addType(b.Request)
	imps.addType(b.Response)
	q := imps.qualifier()

	req := b.Request.Render(q)
	data := dispatchData{
		Source:     fileBase(b.Pos.Filename),
		Hash:       b.Hash(),
		Package:    b.Dispatcher.Package,
		Imports:    imps.list(),
		Dispatcher: b.Dispatcher.Name,
		Piece:      e.pieceName(b),
		Method:     methodName(b),
		Request:    req,
		KindDoc:    "commands",
		Context:    q("context"),
	}

	pkg := q(e.opts.Runtime.Dispatch)
	switch {
	case b.Kind == Query:
		data.KindDoc = "queries"
		data.Result = "(" + b.Response.Render(q) + ", error)"
		data.Call = pkg + ".SendQuery[" + req + ", " + b.Response.Render(q) + "]"
	case b.Response != nil:
		data.Result = "(" + b.Response.Render(q) + ", error)"
		data.Call = pkg + ".SendResultCommand[" + req + ", " + b.Response.Render(q) + "]"
	default:
		data.Result = "error"
		data.Call = pkg + ".SendCommand[" + req + "]"
	}

	src, err := render(dispatchTpl, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("gen: render %s: %w", b.Key(), err)
	}
	return Artifact{
		Key:        b.Key(),
		Kind:       ArtifactDispatch,
		Dispatcher: b.Dispatcher,
		File:       e.dispatchFile(b),
		Source:     src,
		Pos:        b.Pos,
	}, nil
}

// RegistrationKey identifies the registration artifact of a dispatcher.
func RegistrationKey(d Dispatcher) string { return d.Name + ".Registrations" }

// registration renders the artifact for a group. bs are the bindings whose
// dispatch artifacts were kept.
func (e *emitter) registration(d Dispatcher, bs []Binding) (Artifact, error) {
	extra := []string{e.contractName(d), e.registerName(d)}
	for _, b := range bs {
		extra = append(extra, e.pieceName(b))
	}
	imps := e.imports(d, extra...)
	imps.add("context")
	imps.add(e.opts.Runtime.Dispatch)
	imps.add(e.opts.Runtime.DI)
	for _, b := range bs {
		imps.addType(b.Request)
		imps.addType(b.Handler)
		if b.Handler != nil {
			imps.addType(b.Response)
		}
	}
	q := imps.qualifier()
	dispatchPkg := q(e.opts.Runtime.Dispatch)

	data := registrationData{
		Source:     registrationSources(bs),
		Hash:       groupHash(d, bs),
		Package:    d.Package,
		Imports:    imps.list(),
		Dispatcher: d.Name,
		Contract:   e.contractName(d),
		Register:   e.registerName(d),
		Context:    q("context"),
		Dispatch:   dispatchPkg,
		DI:         q(e.opts.Runtime.DI),
	}
	for _, b := range bs {
		rb := registrationBinding{
			Piece:       e.pieceName(b),
			Method:      methodName(b),
			Request:     b.Request.Render(q),
			HasResponse: b.Response != nil,
		}
		if b.Handler != nil {
			rb.Handler = b.Handler.Render(q)
			switch {
			case b.Kind == Query:
				rb.HandlerContract = dispatchPkg + ".QueryHandler[" + rb.Request + ", " + b.Response.Render(q) + "]"
			case b.Response != nil:
				rb.HandlerContract = dispatchPkg + ".ResultCommandHandler[" + rb.Request + ", " + b.Response.Render(q) + "]"
			default:
				rb.HandlerContract = dispatchPkg + ".CommandHandler[" + rb.Request + "]"
			}
		}
		data.Bindings = append(data.Bindings, rb)
	}

	src, err := render(registrationTpl, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("gen: render %s: %w", RegistrationKey(d), err)
	}
	pos := token.Position{}
	if len(bs) > 0 {
		pos = bs[0].Pos
	}
	return Artifact{
		Key:        RegistrationKey(d),
		Kind:       ArtifactRegistration,
		Dispatcher: d,
		File:       e.registrationFile(d),
		Source:     src,
		Pos:        pos,
	}, nil
}

func registrationSources(bs []Binding) string {
	seen := map[string]bool{}
	var files []string
	for _, b := range bs {
		f := fileBase(b.Pos.Filename)
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return "-"
	}
	return strings.Join(files, ", ")
}

func groupHash(d Dispatcher, bs []Binding) string {
	lines := []string{d.Path + "." + d.Name}
	for _, b := range bs {
		lines = append(lines, b.Canonical())
	}
	return sha256Hex([]byte(strings.Join(lines, "\n")))
}

// packageScope lists the package-level identifiers declared by pkg.
func packageScope(pkg *source.Package) []string {
	if pkg == nil {
		return nil
	}
	var out []string
	for _, f := range pkg.Files {
		for _, decl := range f.AST.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil {
					out = append(out, d.Name.Name)
				}
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch s := spec.(type) {
					case *ast.TypeSpec:
						out = append(out, s.Name.Name)
					case *ast.ValueSpec:
						for _, n := range s.Names {
							out = append(out, n.Name)
						}
					}
				}
			}
		}
	}
	return out
}

func render(tpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return out, nil
}

var funcs = template.FuncMap{
	"quote": strconv.Quote,
}

var dispatchTpl = template.Must(template.New("dispatch").Funcs(funcs).Parse(`{{/* dispatch artifact */ -}}
// Code generated by dispatchgen; DO NOT EDIT.
// Source: {{.Source}}
// Binding-SHA256: {{.Hash}}

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}{{quote .Path}}
{{- end}}
)

// {{.Piece}} dispatches {{.Request}} {{.KindDoc}}.
type {{.Piece}} interface {
	{{.Method}}(ctx {{.Context}}.Context, req {{.Request}}) {{.Result}}
}

// {{.Method}} resolves the handler of req from the bound provider and calls it.
func (d *{{.Dispatcher}}) {{.Method}}(ctx {{.Context}}.Context, req {{.Request}}) {{.Result}} {
	return {{.Call}}(ctx, d.Provider(), req)
}
`))

var registrationTpl = template.Must(template.New("registration").Funcs(funcs).Parse(`{{/* registration artifact */ -}}
// Code generated by dispatchgen; DO NOT EDIT.
// Source: {{.Source}}
// Bindings-SHA256: {{.Hash}}

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}{{quote .Path}}
{{- end}}
)

// {{.Contract}} is the dispatch contract implemented by {{.Dispatcher}}.
type {{.Contract}} interface {
{{- range .Bindings}}
	{{.Piece}}
{{- end}}
{{- if .Bindings}}
{{end}}
	// Send routes req to the Dispatch method bound to its type.
	Send(ctx {{.Context}}.Context, req any) (any, error)
}

var _ {{.Contract}} = (*{{.Dispatcher}})(nil)

// {{.Register}} registers the handlers bound to {{.Dispatcher}} as
// transients and {{.Contract}} as a singleton.
func {{.Register}}(b *{{.DI}}.Builder) {
{{- range .Bindings}}{{if .Handler}}
	{{$.DI}}.AddTransient(b, func(p *{{$.DI}}.Provider) ({{.HandlerContract}}, error) {
		return {{$.Dispatch}}.NewHandler[{{.Handler}}](p)
	})
{{- end}}{{end}}
	{{.DI}}.AddSingleton(b, func(p *{{.DI}}.Provider) ({{.Contract}}, error) {
		return {{.Dispatch}}.NewDispatcher[{{.Dispatcher}}](p)
	})
}

// Send routes req to the Dispatch method bound to its type.
func (d *{{.Dispatcher}}) Send(ctx {{.Context}}.Context, req any) (any, error) {
{{- if .Bindings}}
	switch r := req.(type) {
{{- range .Bindings}}
	case {{.Request}}:
{{- if .HasResponse}}
		return d.{{.Method}}(ctx, r)
{{- else}}
		return nil, d.{{.Method}}(ctx, r)
{{- end}}
{{- end}}
	default:
		return nil, {{.Dispatch}}.UnknownRequest({{quote .Dispatcher}}, req)
	}
{{- else}}
	return nil, {{.Dispatch}}.UnknownRequest({{quote .Dispatcher}}, req)
{{- end}}
}
`))
