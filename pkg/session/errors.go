package session

import (
	"github.com/go-go-golems/coder/pkg/edits"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
)

// ValidationError reports a malformed request. Nothing has been persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return "invalid request: " + e.Field + ": " + e.Reason
}

// ErrorKind classifies err into one of the caller-observable outcomes.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation_error"
	KindNotFound    ErrorKind = "conversation_not_found"
	KindUpstream    ErrorKind = "upstream_error"
	KindSchema      ErrorKind = "schema_validation_error"
	KindPersistence ErrorKind = "persistence_error"
	KindInternal    ErrorKind = "internal_error"
)

func KindOf(err error) ErrorKind {
	var (
		ve  *ValidationError
		nfe *store.NotFoundError
		ume *engine.UpstreamModelError
		sve *edits.SchemaValidationError
		pe  *store.PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &nfe), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.As(err, &sve):
		return KindSchema
	case errors.As(err, &ume):
		return KindUpstream
	case errors.As(err, &pe):
		return KindPersistence
	default:
		return KindInternal
	}
}
