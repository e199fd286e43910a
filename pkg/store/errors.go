package store

import (
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/pkg/errors"
)

// ErrNotFound is the sentinel every NotFoundError unwraps to.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a lookup that matched no row.
type NotFoundError struct {
	Kind    string
	ID      string
	Persona conversation.Persona
}

func (e *NotFoundError) Error() string {
	if e.Persona != "" {
		return e.Kind + " " + e.ID + " not found for persona " + string(e.Persona)
	}
	return e.Kind + " " + e.ID + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PersistenceError wraps a database failure. The enclosing transaction, if
// any, has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistence error: " + e.Op
	}
	return "persistence error: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
