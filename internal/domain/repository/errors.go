package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoFareData is returned when the fare API answered but has nothing for the route.
	ErrNoFareData = errors.New("no fare data")
)
