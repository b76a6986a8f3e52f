// Command dispatchgen generates typed dispatch methods and container
// registrations for dispatcher types annotated with @GenerateDispatcher.
//
// Annotate a struct that embeds dispatch.Base:
//
//	// @GenerateDispatcher(domain.Greet, GreetHandler)
//	// @GenerateDispatcher(domain.Ping)
//	type AppDispatcher struct {
//		dispatch.Base
//	}
//
// The first argument is the request type. It must embed one of
// dispatch.Query[R], dispatch.Command or dispatch.ResultCommand[R], directly
// or through other embedded types. The optional second argument is the
// handler registered as a transient for that request; GreetHandler and
// *GreetHandler are equivalent since handlers are always created as pointers.
//
// Request packages do not have to be among the scanned directories. Packages
// of the same module are read from disk; other modules are located with the
// go command.
//
// Run it from the module, usually through go:generate:
//
//	//go:generate go run github.com/sghaida/odispatch/cmd/dispatchgen ./...
//
// For every binding dispatchgen writes <dispatcher>_dispatch_<request>.gen.go
// with a Dispatch<Request> method, and one <dispatcher>_registrations.gen.go
// with the <Dispatcher>Contract interface, Send router and
// Register<Dispatcher>AndHandlers.
//
// Flags
//
//	-config file            dispatchgen.yaml, .yml or .toml (discovered in the working directory)
//	-dry-run                list changes without writing
//	-prune                  remove generated files no longer produced
//	-metrics-textfile path  write run metrics for node_exporter
//	-v                      debug logging
//
// Exit status is 0 on success, 1 when loading or writing fails, 2 on usage or
// configuration errors and 3 when artifacts conflict. Artifacts that did not
// conflict are written even when the status is 3.
package main
