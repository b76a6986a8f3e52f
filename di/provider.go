package di

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Provider resolves contracts registered on a Builder.
//
// It is safe for concurrent use. Singleton factories run once; concurrent
// callers wait for the first construction to finish. Factories receive a view
// of the Provider that tracks the active resolution chain, so a factory that
// resolves its own contract (directly or through other factories) gets a
// CycleError instead of deadlocking. The same holds when the cycle spans
// goroutines: a resolution about to wait for a singleton that is, through
// other waits, waiting for it fails with CycleError.
type Provider struct {
	entries map[reflect.Type]*entry

	// root only
	mu    sync.Mutex
	waits map[*resolution]*resolution

	// set on views handed to factories
	parent *Provider
	chain  []reflect.Type
	res    *resolution
}

// resolution identifies one top-level Resolve and the factories it runs.
type resolution struct {
	contract reflect.Type
}

type entry struct {
	registration

	// guarded by the root Provider's mu
	built   bool
	val     any
	builder *resolution
	done    chan struct{}
}

func (p *Provider) root() *Provider {
	if p.parent != nil {
		return p.parent
	}
	return p
}

// Resolve returns the value registered for contract T.
//
// It fails with MissingRegistrationError when nothing is registered for T and
// never falls back to a zero value in that case.
func Resolve[T any](p *Provider) (T, error) {
	var zero T
	raw, err := p.resolve(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	v, _ := raw.(T)
	return v, nil
}

// MustResolve is Resolve that panics on error.
// Useful in examples/tests where a missing registration should fail fast.
func MustResolve[T any](p *Provider) T {
	v, err := Resolve[T](p)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Provider) resolve(contract reflect.Type) (any, error) {
	if p == nil || p.root().entries == nil {
		return nil, ErrNilProvider
	}
	root := p.root()

	e, ok := root.entries[contract]
	if !ok {
		return nil, MissingRegistrationError{Contract: contract.String()}
	}
	if slices.Contains(p.chain, contract) {
		chain := make([]string, 0, len(p.chain)+1)
		for _, c := range p.chain {
			chain = append(chain, c.String())
		}
		return nil, CycleError{Chain: append(chain, contract.String())}
	}

	res := p.res
	if res == nil {
		res = &resolution{contract: contract}
	}
	view := &Provider{parent: root, chain: append(slices.Clone(p.chain), contract), res: res}

	if e.lifetime != Singleton {
		return e.call(view)
	}

	if v, built, err := root.acquire(e, res, view.chain); built || err != nil {
		return v, err
	}
	v, err := e.call(view)
	root.release(e, v, err)
	if err != nil {
		// failed singletons are retried on the next Resolve
		return nil, err
	}
	return v, nil
}

// acquire returns the built value of singleton e, or makes res its builder.
// While another resolution builds e, res waits for it unless that resolution
// is itself waiting, directly or not, for res. The CycleError chain then ends
// with the contract res started from.
func (p *Provider) acquire(e *entry, res *resolution, chain []reflect.Type) (any, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if e.built {
			return e.val, true, nil
		}
		if e.builder == nil {
			e.builder, e.done = res, make(chan struct{})
			return nil, false, nil
		}
		for r := e.builder; r != nil; r = p.waits[r] {
			if r == res {
				names := make([]string, 0, len(chain)+1)
				for _, c := range chain {
					names = append(names, c.String())
				}
				return nil, false, CycleError{Chain: append(names, res.contract.String())}
			}
		}
		if p.waits == nil {
			p.waits = map[*resolution]*resolution{}
		}
		p.waits[res] = e.builder
		done := e.done
		p.mu.Unlock()
		<-done
		p.mu.Lock()
		delete(p.waits, res)
	}
}

func (p *Provider) release(e *entry, v any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		e.val, e.built = v, true
	}
	e.builder = nil
	close(e.done)
}

// call runs the factory and converts panics into errors.
func (e *entry) call(p *Provider) (val any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			err = fmt.Errorf("%w: %s: %v", ErrFactoryPanic, e.key(), rec)
		}
	}()

	v, ferr := e.factory(p)
	if ferr != nil {
		return nil, FactoryError{Contract: e.key(), Err: ferr}
	}
	return v, nil
}
