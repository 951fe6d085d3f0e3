package apperror

import (
	"errors"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindTemplateParse
	KindNoPlaceholders
	KindDataValidation
	KindConversion
	KindExtraction
	KindNotFound
	KindConflict
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindTemplateParse:
		return "TemplateParseError"
	case KindNoPlaceholders:
		return "NoPlaceholdersFound"
	case KindDataValidation:
		return "DataValidationError"
	case KindConversion:
		return "ConversionError"
	case KindExtraction:
		return "ExtractionError"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindBadRequest:
		return "BadRequest"
	default:
		return "InternalError"
	}
}

// Error is a user-facing failure. Message is shown to callers verbatim;
// Err carries the internal cause and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperror.ErrConversion) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrTemplateParse  = &Error{Kind: KindTemplateParse}
	ErrNoPlaceholders = &Error{Kind: KindNoPlaceholders}
	ErrDataValidation = &Error{Kind: KindDataValidation}
	ErrConversion     = &Error{Kind: KindConversion}
	ErrExtraction     = &Error{Kind: KindExtraction}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrBadRequest     = &Error{Kind: KindBadRequest}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns a single-line message safe to show to the caller.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return singleLine(e.Message)
	}
	return "Internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindTemplateParse, KindDataValidation, KindBadRequest, KindNoPlaceholders:
		return http.StatusBadRequest
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
