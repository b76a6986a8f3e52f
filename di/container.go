package di

import (
	"errors"
	"reflect"
	"sort"
	"strconv"
)

// Lifetime controls how often a registered factory runs.
type Lifetime int

const (
	// Transient factories run on every resolution.
	Transient Lifetime = iota

	// Singleton factories run once per Provider; the result is shared.
	Singleton
)

// String implements fmt.Stringer.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	default:
		return "lifetime(" + strconv.Itoa(int(l)) + ")"
	}
}

// DependencyKey is the printable identity of a contract.
type DependencyKey string

// KeyOf returns the DependencyKey of contract T.
func KeyOf[T any]() DependencyKey { return DependencyKey(reflect.TypeFor[T]().String()) }

type registration struct {
	contract reflect.Type
	lifetime Lifetime
	factory  func(*Provider) (any, error)
}

func (r registration) key() string { return r.contract.String() }

// Builder collects registrations before they are frozen into a Provider.
//
// Registration helpers never fail at the call site; problems such as duplicate
// contracts are collected and reported by Build. This keeps generated
// registration routines a flat list of statements.
type Builder struct {
	regs  []registration
	index map[reflect.Type]int
	errs  []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: map[reflect.Type]int{}}
}

// AddTransient registers factory for contract T; it runs on every Resolve.
func AddTransient[T any](b *Builder, factory func(*Provider) (T, error)) {
	add(b, Transient, factory)
}

// AddSingleton registers factory for contract T; it runs at most once per
// Provider and every Resolve returns the same value.
func AddSingleton[T any](b *Builder, factory func(*Provider) (T, error)) {
	add(b, Singleton, factory)
}

// AddInstance registers an already constructed value as singleton contract T.
func AddInstance[T any](b *Builder, val T) {
	add(b, Singleton, func(*Provider) (T, error) { return val, nil })
}

func add[T any](b *Builder, lt Lifetime, factory func(*Provider) (T, error)) {
	if b == nil {
		return
	}
	if b.index == nil {
		b.index = map[reflect.Type]int{}
	}
	contract := reflect.TypeFor[T]()
	if factory == nil {
		b.errs = append(b.errs, NilFactoryError{Contract: contract.String()})
		return
	}
	if _, dup := b.index[contract]; dup {
		b.errs = append(b.errs, DuplicateRegistrationError{Contract: contract.String()})
		return
	}
	b.index[contract] = len(b.regs)
	b.regs = append(b.regs, registration{
		contract: contract,
		lifetime: lt,
		factory: func(p *Provider) (any, error) {
			return factory(p)
		},
	})
}

// Has reports whether contract T has been registered on the builder.
func Has[T any](b *Builder) bool {
	if b == nil {
		return false
	}
	_, ok := b.index[reflect.TypeFor[T]()]
	return ok
}

// Len returns the number of accepted registrations.
func (b *Builder) Len() int {
	if b == nil {
		return 0
	}
	return len(b.regs)
}

// Build freezes the registrations into a Provider.
//
// It returns every error collected while registering, joined.
func (b *Builder) Build() (*Provider, error) {
	if b == nil {
		return nil, ErrNilBuilder
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	p := &Provider{entries: make(map[reflect.Type]*entry, len(b.regs))}
	for _, r := range b.regs {
		p.entries[r.contract] = &entry{registration: r}
	}
	return p, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Provider {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Contracts returns the registered contract keys, sorted.
func (p *Provider) Contracts() []DependencyKey {
	if p == nil || p.root() == nil {
		return nil
	}
	out := make([]DependencyKey, 0, len(p.root().entries))
	for _, e := range p.root().entries {
		out = append(out, DependencyKey(e.key()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LifetimeOf returns the lifetime registered for contract T.
func LifetimeOf[T any](p *Provider) (Lifetime, bool) {
	if p == nil || p.root() == nil {
		return 0, false
	}
	e, ok := p.root().entries[reflect.TypeFor[T]()]
	if !ok {
		return 0, false
	}
	return e.lifetime, true
}
