package inference

import "github.com/rotisserie/eris"

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidInput marks a request that failed validation. The classifier
	// was not invoked.
	ErrInvalidInput = eris.New("inference: invalid input")
	// ErrUnavailable marks a request made while no classifier is loaded.
	ErrUnavailable = eris.New("inference: classifier unavailable")
	// ErrClassifier marks an unexpected failure inside the classifier.
	ErrClassifier = eris.New("inference: classifier error")
)

// Error carries one of the kinds above together with its cause. Its message
// is the cause's message so it can be returned to clients unchanged.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(err error) error     { return &Error{Kind: ErrInvalidInput, Err: err} }
func unavailable(err error) error { return &Error{Kind: ErrUnavailable, Err: err} }
func failed(err error) error      { return &Error{Kind: ErrClassifier, Err: err} }
