package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrSessionBusy       = errors.New("a query is already in flight for this session")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrEmptyQuestion     = errors.New("question cannot be empty")
	ErrNoChart           = errors.New("message carries no chart payload")
	ErrMalformedResponse = errors.New("backend response carries neither answer nor chart data")
)
