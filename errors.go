package dnspipe

import (
	"errors"
	"fmt"
)

// UserError marks an error caused by operator input:
// an unknown name in a subscription expression, a bad config value,
// a zone that the configured token cannot see, and so on.
// The message alone is meant to be enough to fix the problem,
// so callers log these without diagnostic detail.
type UserError struct {
	err error
}

func userErrorf(format string, args ...any) error {
	return &UserError{err: fmt.Errorf(format, args...)}
}

func (e *UserError) Error() string { return e.err.Error() }

func (e *UserError) Unwrap() error { return e.err }

// IsUserError reports whether any error in err's chain is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
