package dispatch

import (
	"context"
	"reflect"
	"time"

	"github.com/sghaida/odispatch/di"
)

// SendQuery resolves the QueryHandler for Q from p and forwards q to it.
// ctx is passed through unchanged.
func SendQuery[Q Querier[R], R any](ctx context.Context, p *di.Provider, q Q) (R, error) {
	var zero R
	if p == nil {
		return zero, ErrUnbound
	}
	h, err := di.Resolve[QueryHandler[Q, R]](p)
	if err != nil {
		observe[Q](kindQuery, time.Time{}, err)
		return zero, err
	}

	start := time.Now()
	res, err := h.Query(ctx, q)
	observe[Q](kindQuery, start, err)
	return res, err
}

// SendCommand resolves the CommandHandler for C from p and forwards c to it.
func SendCommand[C Commander](ctx context.Context, p *di.Provider, c C) error {
	if p == nil {
		return ErrUnbound
	}
	h, err := di.Resolve[CommandHandler[C]](p)
	if err != nil {
		observe[C](kindCommand, time.Time{}, err)
		return err
	}

	start := time.Now()
	err = h.Execute(ctx, c)
	observe[C](kindCommand, start, err)
	return err
}

// SendResultCommand resolves the ResultCommandHandler for C from p and
// forwards c to it.
func SendResultCommand[C ResultCommander[R], R any](ctx context.Context, p *di.Provider, c C) (R, error) {
	var zero R
	if p == nil {
		return zero, ErrUnbound
	}
	h, err := di.Resolve[ResultCommandHandler[C, R]](p)
	if err != nil {
		observe[C](kindCommand, time.Time{}, err)
		return zero, err
	}

	start := time.Now()
	res, err := h.Execute(ctx, c)
	observe[C](kindCommand, start, err)
	return res, err
}

func requestName[T any]() string { return reflect.TypeFor[T]().String() }
