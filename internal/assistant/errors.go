package assistant

import "errors"

type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindConnection  Kind = "connection"
	KindTranslation Kind = "translation"
	KindExecution   Kind = "execution"
)

// Error classifies a pipeline failure so callers can map it to a response.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var pipelineErr *Error
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}
	return ""
}
