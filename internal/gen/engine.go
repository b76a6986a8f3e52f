// Package gen turns @GenerateDispatcher annotations into dispatcher source.
//
// A run scans loaded packages for annotation sites, resolves each site to a
// Binding, renders one dispatch artifact per binding and one registration
// artifact per dispatcher, and passes both through a conflict guard. Runs are
// pure: the same source set always yields byte-identical artifacts.
package gen

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sghaida/odispatch/internal/source"
)

const (
	// DefaultCapabilityPackage holds the Query, Command and ResultCommand
	// markers.
	DefaultCapabilityPackage = "github.com/sghaida/odispatch/dispatch"
	// DefaultDIPackage holds the container generated registrations target.
	DefaultDIPackage = "github.com/sghaida/odispatch/di"
)

// Capabilities names the marker types requests embed.
type Capabilities struct {
	Package       string
	Query         string
	Command       string
	ResultCommand string
}

// Runtime names the packages generated code imports.
type Runtime struct {
	Dispatch string
	DI       string
}

// Options configures a Generator.
type Options struct {
	// Markers are the recognized annotation names, simple or qualified.
	Markers      []string
	Capabilities Capabilities
	Runtime      Runtime

	// ContractFormat and RegisterFormat take the dispatcher name.
	ContractFormat string
	RegisterFormat string
	FileSuffix     string

	Conflicts Policy
	Logger    *zap.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Markers: []string{"GenerateDispatcher", "dispatch.GenerateDispatcher"},
		Capabilities: Capabilities{
			Package:       DefaultCapabilityPackage,
			Query:         "Query",
			Command:       "Command",
			ResultCommand: "ResultCommand",
		},
		Runtime: Runtime{
			Dispatch: DefaultCapabilityPackage,
			DI:       DefaultDIPackage,
		},
		ContractFormat: "%sContract",
		RegisterFormat: "Register%sAndHandlers",
		FileSuffix:     ".gen.go",
		Conflicts:      PolicyError,
	}
}

// Option validation errors.
var (
	ErrNoMarkers     = errors.New("gen: no annotation markers configured")
	ErrInvalidFormat = errors.New("gen: name format must contain exactly one %s and yield an exported identifier")
	ErrInvalidPolicy = errors.New("gen: unknown conflict policy")
	ErrInvalidSuffix = errors.New("gen: file suffix must end in .go")
)

// Generator runs the pipeline with fixed options. It holds no per-run state
// and may be shared.
type Generator struct {
	opts   Options
	log    *zap.Logger
	shapes []Shape
}

// New validates opts and returns a Generator.
func New(opts Options) (*Generator, error) {
	if len(opts.Markers) == 0 {
		return nil, ErrNoMarkers
	}
	for _, f := range []string{opts.ContractFormat, opts.RegisterFormat} {
		if err := validateFormat(f); err != nil {
			return nil, err
		}
	}
	if !opts.Conflicts.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, opts.Conflicts)
	}
	if !strings.HasSuffix(opts.FileSuffix, ".go") || strings.HasSuffix(opts.FileSuffix, "_test.go") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSuffix, opts.FileSuffix)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := opts.Capabilities
	return &Generator{
		opts: opts,
		log:  log.Named("gen"),
		shapes: []Shape{
			{Path: c.Package, Name: c.Query, Arity: 1, Kind: Query},
			{Path: c.Package, Name: c.Command, Arity: 0, Kind: Command},
			{Path: c.Package, Name: c.ResultCommand, Arity: 1, Kind: Command},
		},
	}, nil
}

func validateFormat(f string) error {
	if strings.Count(f, "%s") != 1 || strings.Count(f, "%") != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, f)
	}
	name := fmt.Sprintf(f, "X")
	if !token.IsIdentifier(name) || !token.IsExported(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, f)
	}
	return nil
}

// Run scans set and returns the artifacts to write. When ctx is done the run
// is abandoned and ctx.Err() is returned without partial results.
func (g *Generator) Run(ctx context.Context, set *source.Set) (*Result, error) {
	start := time.Now()
	res := &Result{Stats: Stats{Dropped: map[DropReason]int{}}}
	resolver := NewResolver(set, g.shapes)

	var bindings []Binding
	for site := range Scan(set, g.opts.Markers) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Stats.Sites++

		b, reason, ok := resolver.Resolve(site)
		if !ok {
			res.Stats.Dropped[reason]++
			g.log.Debug("annotation dropped",
				zap.String("reason", reason.String()),
				zap.String("decl", site.Decl),
				zap.String("pos", site.Pos.String()),
			)
			continue
		}
		res.Stats.Resolved++
		bindings = append(bindings, b)
	}

	groups := groupBindings(bindings)
	em := &emitter{opts: g.opts, set: set}

	dispatchGuard := newGuard(g.opts.Conflicts, g.log)
	for gi := range groups {
		for bi, b := range groups[gi].Bindings {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := em.dispatch(b)
			if err != nil {
				return nil, err
			}
			a.ref = bindingRef{group: gi, index: bi}
			dispatchGuard.add(a)
		}
	}
	dispatches, diags, conflicts := dispatchGuard.resolve()
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Stats.Conflicts += conflicts

	survived := make(map[bindingRef]bool, len(dispatches))
	for _, a := range dispatches {
		survived[a.ref] = true
	}

	regGuard := newGuard(g.opts.Conflicts, g.log)
	for gi, grp := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var kept []Binding
		for bi, b := range grp.Bindings {
			if survived[bindingRef{group: gi, index: bi}] {
				kept = append(kept, b)
			}
		}
		a, err := em.registration(grp.Dispatcher, kept)
		if err != nil {
			return nil, err
		}
		a.ref = bindingRef{group: -1, index: -1}
		regGuard.add(a)
	}
	registrations, diags, conflicts := regGuard.resolve()
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Stats.Conflicts += conflicts

	for _, a := range append(dispatches, registrations...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, a)
	}
	res.Stats.DispatchArtifacts = len(dispatches)
	res.Stats.RegistrationArtifacts = len(registrations)

	g.log.Info("generation finished",
		zap.Int("sites", res.Stats.Sites),
		zap.Int("bindings", res.Stats.Resolved),
		zap.Int("dropped", res.Stats.DroppedTotal()),
		zap.Int("artifacts", len(res.Artifacts)),
		zap.Int("conflicts", res.Stats.Conflicts),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}
