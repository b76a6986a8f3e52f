package di

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNilBuilder is returned when registrations are added to a nil Builder.
	ErrNilBuilder = errors.New("di: nil builder")

	// ErrNilProvider is returned when a contract is resolved from a nil Provider.
	ErrNilProvider = errors.New("di: nil provider")

	// ErrFactoryPanic is returned if a factory panics while constructing a contract.
	ErrFactoryPanic = errors.New("di: panic during factory call")
)

// DuplicateRegistrationError is returned by Build when the same contract was
// registered more than once.
type DuplicateRegistrationError struct{ Contract string }

// Error implements the error interface.
func (e DuplicateRegistrationError) Error() string {
	// Example: di: duplicate registration for contract "greeter.AppDispatcherContract"
	return "di: duplicate registration for contract " + strconv.Quote(e.Contract)
}

// MissingRegistrationError is returned by Resolve when nothing is registered
// for the requested contract.
type MissingRegistrationError struct{ Contract string }

// Error implements the error interface.
func (e MissingRegistrationError) Error() string {
	// Example: di: missing registration for contract "dispatch.CommandHandler[greeter.Ping]"
	return "di: missing registration for contract " + strconv.Quote(e.Contract)
}

// NilFactoryError indicates a registration without a factory function.
type NilFactoryError struct{ Contract string }

// Error implements the error interface.
func (e NilFactoryError) Error() string {
	return "di: nil factory for contract " + strconv.Quote(e.Contract)
}

// CycleError is returned when a factory (directly or indirectly) resolves the
// contract it is constructing.
//
// Chain lists the contracts in resolution order, ending with the repeated one.
type CycleError struct{ Chain []string }

// Error implements the error interface.
func (e CycleError) Error() string {
	quoted := make([]string, len(e.Chain))
	for i, c := range e.Chain {
		quoted[i] = strconv.Quote(c)
	}
	return "di: resolution cycle " + strings.Join(quoted, " -> ")
}

// FactoryError wraps an error returned by a factory with the contract it was
// constructing.
type FactoryError struct {
	Contract string
	Err      error
}

// Error implements the error interface.
func (e FactoryError) Error() string {
	return "di: factory for contract " + strconv.Quote(e.Contract) + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying factory error.
func (e FactoryError) Unwrap() error { return e.Err }
