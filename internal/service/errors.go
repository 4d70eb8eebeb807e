package service

import "errors"

// Business-rule failures. These are safe to map to user-facing responses.
// Wrong password, unknown email and password-less accounts all collapse
// into ErrInvalidCredentials so callers cannot probe which emails exist.
var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrRegistrationClosed = errors.New("registration disabled")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongAuthMethod    = errors.New("use OAuth sign-in for this account")

	// ErrAlreadyLinked: the target account is bound to a different
	// provider subject, so linking would steal it.
	ErrAlreadyLinked = errors.New("account linked to another sign-in")

	// ErrInternal wraps unexpected collaborator failures; detail is
	// logged server-side only.
	ErrInternal = errors.New("internal error")
)

// ValidationError reports a client-fixable input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
