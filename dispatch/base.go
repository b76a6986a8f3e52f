package dispatch

import (
	"errors"
	"reflect"
	"strconv"

	"github.com/sghaida/odispatch/di"
)

// ErrUnbound is returned when a dispatcher is used before it was bound to a
// Provider.
var ErrUnbound = errors.New("dispatch: dispatcher is not bound to a provider")

// Base is embedded by dispatcher types. Generated dispatch methods resolve
// handlers from the Provider it holds.
//
//	// @GenerateDispatcher(Greet, GreetHandler)
//	type AppDispatcher struct {
//		dispatch.Base
//	}
type Base struct {
	provider *di.Provider
}

// Bind attaches the Provider used to resolve handlers.
func (b *Base) Bind(p *di.Provider) { b.provider = p }

// Provider returns the bound Provider, or nil.
func (b *Base) Provider() *di.Provider { return b.provider }

// Initializer is implemented by handlers and dispatchers that pull
// collaborators from the container when they are created.
type Initializer interface {
	Init(p *di.Provider) error
}

// NewHandler allocates a handler H and runs its Initializer, if any.
//
// Generated registrations use it as the transient factory body, so a new
// handler is created for every dispatch.
func NewHandler[H any](p *di.Provider) (*H, error) {
	h := new(H)
	if err := initialize(h, p); err != nil {
		return nil, err
	}
	return h, nil
}

type binder[D any] interface {
	*D
	Bind(p *di.Provider)
}

// NewDispatcher allocates a dispatcher D, binds it to p and runs its
// Initializer, if any.
func NewDispatcher[D any, PD binder[D]](p *di.Provider) (PD, error) {
	d := PD(new(D))
	d.Bind(p)
	if err := initialize(d, p); err != nil {
		var zero PD
		return zero, err
	}
	return d, nil
}

func initialize(v any, p *di.Provider) error {
	in, ok := v.(Initializer)
	if !ok {
		return nil
	}
	return in.Init(p)
}

// UnknownRequestError is returned by a generated Send method when the request
// type is not bound to the dispatcher.
type UnknownRequestError struct {
	Dispatcher string
	Request    string
}

// Error implements the error interface.
func (e UnknownRequestError) Error() string {
	return "dispatch: " + e.Dispatcher + " has no binding for request " + strconv.Quote(e.Request)
}

// UnknownRequest builds an UnknownRequestError for req.
func UnknownRequest(dispatcher string, req any) error {
	name := "<nil>"
	if req != nil {
		name = reflect.TypeOf(req).String()
	}
	return UnknownRequestError{Dispatcher: dispatcher, Request: name}
}
