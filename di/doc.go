// Package di is the resolution container targeted by generated dispatcher
// registrations.
//
// Wiring happens in two phases:
//
//   - a Builder collects registrations (AddTransient, AddSingleton, AddInstance)
//   - Build freezes them into a Provider, reporting duplicate or nil registrations
//
// Contracts are identified by their Go type, usually an interface:
//
//	b := di.NewBuilder()
//	di.AddTransient(b, func(p *di.Provider) (dispatch.QueryHandler[Greet, Greeting], error) {
//		return dispatch.NewHandler[GreetHandler](p)
//	})
//	p, err := b.Build()
//	h, err := di.Resolve[dispatch.QueryHandler[Greet, Greeting]](p)
//
// Resolve never returns a zero value for an unregistered contract; it fails
// with MissingRegistrationError so a missing handler surfaces at the call site.
//
// There is no reflection-based injection: factories are plain functions and
// the container only stores and invokes them. Cyclic factories are reported
// as CycleError, also when the cycle runs through singletons that different
// goroutines are building at the same time.
//
// Import
//
//	"github.com/sghaida/odispatch/di"
package di
