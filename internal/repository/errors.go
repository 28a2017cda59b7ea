package repository

import (
	"errors"
	"fmt"
)

var (
	ErrEventAlreadySigned   = errors.New("event already signed")
	ErrNotFound             = errors.New("not found")
	ErrInvalidOutcome       = errors.New("invalid outcome")
	ErrStorageFailure       = errors.New("storage failure")
	ErrInternal             = errors.New("internal error")
	ErrInvalidPublicationID = errors.New("invalid publication event id")
)

var domainErrors = []error{
	ErrEventAlreadySigned,
	ErrNotFound,
	ErrInvalidOutcome,
	ErrStorageFailure,
	ErrInternal,
	ErrInvalidPublicationID,
}

// MapError passes domain errors through and turns everything else into
// ErrStorageFailure. The backend error is rendered into the message but not
// wrapped, so its concrete type never escapes the store.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %s", op, ErrStorageFailure, err.Error())
}

func internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

func invalidOutcomef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOutcome, fmt.Sprintf(format, args...))
}
