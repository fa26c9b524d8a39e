package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrBackend      = errors.New("backend error")
	ErrJournal      = errors.New("journal error")
	ErrInvalidLimit = errors.New("invalid limit")
)

// wrapOp tags err with its failure class and the step that produced it,
// e.g. "journal error: list recent: timeout". A nil err stays nil.
func wrapOp(class error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", class, op, err)
}
