// Package dispatch is the capability library shared by request types,
// handlers and the code emitted by dispatchgen.
//
// A request declares what it is by embedding one marker:
//
//   - Query[R]          read-style request answered with R
//   - Command           write-style request with no result
//   - ResultCommand[R]  write-style request that produces R
//
// Handlers implement the matching contract (QueryHandler, CommandHandler,
// ResultCommandHandler). A dispatcher is a struct embedding Base and carrying
// one @GenerateDispatcher annotation per request:
//
//	// @GenerateDispatcher(Greet, GreetHandler)
//	// @GenerateDispatcher(Ping)
//	type AppDispatcher struct {
//		dispatch.Base
//	}
//
// dispatchgen then emits a DispatchGreet / DispatchPing method per binding, an
// AppDispatcherContract interface, a Send router and a
// RegisterAppDispatcherAndHandlers function populating a di.Builder.
//
// Every dispatch is counted in the dispatch_requests_total and
// dispatch_handler_duration_seconds collectors of the default prometheus
// registry.
package dispatch
