package store

import "errors"

var (
	ErrNotFound             = errors.New("header not found")
	ErrUnsupportedPredicate = errors.New("unsupported query predicate")
)
