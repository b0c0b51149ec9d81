package entity

import "errors"

var (
	ErrNoBrowserSession  = errors.New("no active browser session")
	ErrInterpreter       = errors.New("page interpreter failed")
	ErrMissingParameter  = errors.New("missing required parameter")
	ErrComponentNotFound = errors.New("page component not found")
	ErrUnknownAction     = errors.New("unknown action")
)
