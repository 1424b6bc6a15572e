package exception

import (
	stderrors "errors"

	"github.com/yanun0323/errors"
)

var (
	ErrAlertMalformed       = errors.New("alert payload is not valid json")
	ErrAlertMissingSymbol   = errors.New("missing or invalid symbol")
	ErrAlertUnknownAction   = errors.New("unknown alert action")
	ErrAlertInvalidQuantity = errors.New("quantity must be positive")
	ErrAlertStatusBackward  = errors.New("alert status may only move forward")
	ErrDuplicateAlert       = errors.New("duplicate alert delivery")
	ErrAlertNilIngestor     = errors.New("nil ingestor")
)

// IsValidation reports whether err is a pre-persistence validation failure.
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrAlertMalformed) ||
		stderrors.Is(err, ErrAlertMissingSymbol) ||
		stderrors.Is(err, ErrAlertUnknownAction) ||
		stderrors.Is(err, ErrAlertInvalidQuantity)
}
