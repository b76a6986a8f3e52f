// Package dispatchfx exposes generated dispatchers to an fx application.
//
//	fx.New(
//		dispatchfx.WithZap(log),
//		dispatchfx.Module(app.RegisterAppDispatcherAndHandlers),
//		dispatchfx.Provide[app.AppDispatcherContract](),
//		fx.Invoke(func(d app.AppDispatcherContract) { ... }),
//	)
package dispatchfx

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/sghaida/odispatch/di"
)

type providerParams struct {
	fx.In

	Log *zap.Logger `optional:"true"`
}

// Module builds one di.Provider from the register functions, typically the
// generated Register<Dispatcher>AndHandlers, and provides it to the graph.
// A *zap.Logger in the graph is registered in the container as well, so
// handlers can resolve it from their Initializer.
func Module(register ...func(*di.Builder)) fx.Option {
	return fx.Module("dispatch",
		fx.Provide(func(in providerParams) (*di.Provider, error) {
			b := di.NewBuilder()
			if in.Log != nil {
				di.AddInstance(b, in.Log)
			}
			for _, r := range register {
				r(b)
			}
			return b.Build()
		}),
	)
}

// Provide resolves contract T from the di.Provider and provides it to the
// graph.
func Provide[T any]() fx.Option {
	return fx.Provide(func(p *di.Provider) (T, error) {
		return di.Resolve[T](p)
	})
}

// WithZap routes fx events to log.
func WithZap(log *zap.Logger) fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}
