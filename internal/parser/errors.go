package parser

import "errors"

// Contract violations by the caller. Messy statement data never produces an
// error; it produces placeholders or a failing verdict instead.
var (
	ErrEmptyText          = errors.New("statement text is empty")
	ErrInvalidPeriod      = errors.New("invalid fiscal period")
	ErrUnknownInstitution = errors.New("unknown institution")
)
