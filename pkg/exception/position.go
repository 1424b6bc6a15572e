package exception

import "github.com/yanun0323/errors"

var (
	ErrTerminalState     = errors.New("mutation on terminal position")
	ErrPositionExists    = errors.New("non-terminal position already exists for symbol")
	ErrPositionNotFound  = errors.New("no open position for symbol")
	ErrPositionSideClose = errors.New("close action does not match position side")
	ErrStopNotFavorable  = errors.New("stop may only move in the holder's favor")
	ErrNilEngine         = errors.New("nil engine")
)
