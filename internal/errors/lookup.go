package errors

import (
	"errors"
	"fmt"
)

// Error codes attached to every error payload so clients can tell failures apart.
const (
	CodeMissingTitle = "missing_title"
	CodeMissingPrice = "missing_price"
	CodeBookNotFound = "book_not_found"
	CodeISBNNotFound = "isbn_not_found"
	CodeLookupFailed = "lookup_failed"
)

// ValidationError is returned when a request parameter is missing or malformed.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// IsValidationError reports whether err is a ValidationError (even when wrapped).
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// BookNotFoundError means the metadata search returned no results for a title.
type BookNotFoundError struct {
	Title string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("no book found for title %q", e.Title)
}

// NewBookNotFoundError creates a BookNotFoundError for the searched title.
func NewBookNotFoundError(title string) *BookNotFoundError {
	return &BookNotFoundError{Title: title}
}

// IsBookNotFoundError reports whether err is a BookNotFoundError (even when wrapped).
func IsBookNotFoundError(err error) bool {
	var nfErr *BookNotFoundError
	return errors.As(err, &nfErr)
}

// UnsupportedBookError means a book was found but carries no usable ISBN.
// Title is the resolved title, not the searched one.
type UnsupportedBookError struct {
	Title string
}

func (e *UnsupportedBookError) Error() string {
	return fmt.Sprintf("no usable ISBN for book %q", e.Title)
}

// NewUnsupportedBookError creates an UnsupportedBookError for the resolved title.
func NewUnsupportedBookError(title string) *UnsupportedBookError {
	return &UnsupportedBookError{Title: title}
}

// IsUnsupportedBookError reports whether err is an UnsupportedBookError (even when wrapped).
func IsUnsupportedBookError(err error) bool {
	var uErr *UnsupportedBookError
	return errors.As(err, &uErr)
}
