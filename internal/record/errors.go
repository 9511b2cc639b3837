package record

import "github.com/pkg/errors"

var (
	// ErrNoSuchElement is returned when an element is required but the
	// collection (or iterator) has none.
	ErrNoSuchElement = errors.New("no such element")

	// ErrIllegalState is returned by iterator removal without a preceding Next.
	ErrIllegalState = errors.New("illegal state")

	// ErrBlankKey is returned when writing a map entry whose key is blank.
	ErrBlankKey = errors.New("blank map key")
)
