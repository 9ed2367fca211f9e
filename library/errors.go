package library

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is a business-rule failure returned by Catalog operations. Two
// errors match under errors.Is when their codes are equal, so callers can
// test against the sentinel values below regardless of the message.
type Error struct {
	Code    string
	Message string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code
}

const (
	CodeValidation          = "validation"
	CodeDuplicateISBN       = "duplicate_isbn"
	CodeDuplicateEmail      = "duplicate_email"
	CodeMemberNotFound      = "member_not_found"
	CodeBookNotFound        = "book_not_found"
	CodeBookUnavailable     = "book_unavailable"
	CodeLoanNotFound        = "loan_not_found"
	CodeLoanAlreadyReturned = "loan_already_returned"
)

var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrDuplicateISBN       = &Error{Code: CodeDuplicateISBN}
	ErrDuplicateEmail      = &Error{Code: CodeDuplicateEmail}
	ErrMemberNotFound      = &Error{Code: CodeMemberNotFound}
	ErrBookNotFound        = &Error{Code: CodeBookNotFound}
	ErrBookUnavailable     = &Error{Code: CodeBookUnavailable}
	ErrLoanNotFound        = &Error{Code: CodeLoanNotFound}
	ErrLoanAlreadyReturned = &Error{Code: CodeLoanAlreadyReturned}
)

// Persistence conditions. ErrNoSnapshot is not a failure: it tells the
// Catalog to start empty.
var (
	ErrNoSnapshot      = errors.New("no snapshot stored")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

func validationError(msg string) error {
	return &Error{CodeValidation, msg}
}

func duplicateISBN(isbn string) error {
	return &Error{CodeDuplicateISBN, fmt.Sprintf("a book with isbn %s already exists", isbn)}
}

func duplicateEmail(email string) error {
	return &Error{CodeDuplicateEmail, fmt.Sprintf("a member with email %s already exists", email)}
}

func memberNotFound(id int64) error {
	return &Error{CodeMemberNotFound, fmt.Sprintf("member %d not found", id)}
}

func bookNotFound(id int64) error {
	return &Error{CodeBookNotFound, fmt.Sprintf("book %d not found", id)}
}

func bookUnavailable(id int64) error {
	return &Error{CodeBookUnavailable, fmt.Sprintf("book %d is already on loan", id)}
}

func loanNotFound(id int64) error {
	return &Error{CodeLoanNotFound, fmt.Sprintf("loan %d not found", id)}
}

func loanAlreadyReturned(id int64) error {
	return &Error{CodeLoanAlreadyReturned, fmt.Sprintf("loan %d was already returned", id)}
}

// corrupt marks err as a corrupt-snapshot condition while keeping the cause
// in the message.
func corrupt(err error) error {
	return &corruptError{cause: err}
}

type corruptError struct {
	cause error
}

func (e *corruptError) Error() string        { return "corrupt snapshot: " + e.cause.Error() }
func (e *corruptError) Unwrap() error        { return e.cause }
func (e *corruptError) Is(target error) bool { return target == ErrCorruptSnapshot }
