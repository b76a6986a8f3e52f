// Package odispatch generates typed request dispatchers at build time.
//
// A dispatcher is a struct annotated with @GenerateDispatcher. The
// dispatchgen command reads the annotations, resolves every request type to
// its capability (query, command or result command) and writes one
// Dispatch<Request> method per binding plus a registrations file that wires
// the dispatcher and its handlers into a di.Builder.
//
// Layout:
//   - dispatch: request capabilities, handler contracts and the runtime Base
//   - di: the resolution container targeted by generated registrations
//   - dispatchfx: fx integration for generated dispatchers
//   - cmd/dispatchgen: the generator
//   - examples/greeter: an annotated dispatcher with its generated files
package odispatch
