package domain

import "errors"

var (
	ErrCardBusy          = errors.New("card is busy")
	ErrUnknownDevice     = errors.New("unknown device")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrInvalidValue      = errors.New("invalid value")
	ErrCommandAborted    = errors.New("command aborted by card restart")
)
