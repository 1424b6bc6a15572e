package exception

import "github.com/yanun0323/errors"

var (
	ErrPersistence       = errors.New("persistence failed after retries")
	ErrTradeLogImmutable = errors.New("trade log records are immutable")
	ErrNilStore          = errors.New("nil store")
)
