package exports

import "github.com/pkg/errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("export not found")
	ErrNotReady          = errors.New("export not ready")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// InputError is a rejected request. Causes maps each offending field, by its
// json name, to the rule it broke. It matches ErrInvalidInput under errors.Is.
type InputError struct {
	Msg    string
	Causes map[string]string
}

func (e *InputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Msg
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
