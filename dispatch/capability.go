package dispatch

import "context"

// Query marks a request as a read-style query answered with R.
//
// Embed it in the request type:
//
//	type Greet struct {
//		dispatch.Query[Greeting]
//		Name string
//	}
type Query[R any] struct{}

func (Query[R]) query(R) {}

// Command marks a request as a write-style command with no result.
type Command struct{}

func (Command) command() {}

// ResultCommand marks a request as a command that produces R.
type ResultCommand[R any] struct{}

func (ResultCommand[R]) resultCommand(R) {}

// Querier is satisfied by request types embedding Query[R].
type Querier[R any] interface{ query(R) }

// Commander is satisfied by request types embedding Command.
type Commander interface{ command() }

// ResultCommander is satisfied by request types embedding ResultCommand[R].
type ResultCommander[R any] interface{ resultCommand(R) }

// QueryHandler answers query Q with R.
type QueryHandler[Q Querier[R], R any] interface {
	Query(ctx context.Context, q Q) (R, error)
}

// CommandHandler executes command C.
type CommandHandler[C Commander] interface {
	Execute(ctx context.Context, c C) error
}

// ResultCommandHandler executes command C and returns its result R.
type ResultCommandHandler[C ResultCommander[R], R any] interface {
	Execute(ctx context.Context, c C) (R, error)
}
