package ragErrors

import (
	"errors"
	"net/http"
)

type Kind string

const (
	SourceUnavailable    Kind = "SourceUnavailable"
	NoReadableContent    Kind = "NoReadableContent"
	IndexBuildFailed     Kind = "IndexBuildFailed"
	IndexLoadFailed      Kind = "IndexLoadFailed"
	ModelUnavailable     Kind = "ModelUnavailable"
	ModelInferenceFailed Kind = "ModelInferenceFailed"
	SearchUnavailable    Kind = "SearchUnavailable"
	InvalidInput         Kind = "InvalidInput"
	NotFound             Kind = "NotFound"
	Internal             Kind = "Internal"
)

// sentinels for errors.Is
var (
	ErrSourceUnavailable    = &Error{Kind: SourceUnavailable}
	ErrNoReadableContent    = &Error{Kind: NoReadableContent}
	ErrIndexBuildFailed     = &Error{Kind: IndexBuildFailed}
	ErrIndexLoadFailed      = &Error{Kind: IndexLoadFailed}
	ErrModelUnavailable     = &Error{Kind: ModelUnavailable}
	ErrModelInferenceFailed = &Error{Kind: ModelInferenceFailed}
	ErrSearchUnavailable    = &Error{Kind: SearchUnavailable}
	ErrInvalidInput         = &Error{Kind: InvalidInput}
	ErrNotFound             = &Error{Kind: NotFound}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind only.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the outermost kind in the chain, Internal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf is the user visible message: the kind message plus the cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message == "" && e.Err != nil {
			return e.Err.Error()
		}
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound, SourceUnavailable:
		return http.StatusNotFound
	case NoReadableContent:
		return http.StatusUnprocessableEntity
	case ModelUnavailable, SearchUnavailable:
		return http.StatusServiceUnavailable
	case ModelInferenceFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
