package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// AddBookParams are the inputs of Catalog.AddBook. Text fields are trimmed
// before they are validated and stored.
type AddBookParams struct {
	Title  string `json:"title" mod:"trim" validate:"required"`
	Author string `json:"author" mod:"trim" validate:"required"`
	ISBN   string `json:"isbn" mod:"trim" validate:"required,len=10|len=13,number"`
	Year   int    `json:"year"`
}

// RegisterMemberParams are the inputs of Catalog.RegisterMember.
type RegisterMemberParams struct {
	Name  string `json:"name" mod:"trim" validate:"required"`
	Email string `json:"email" mod:"trim" validate:"required,email"`
	Phone string `json:"phone" mod:"trim"`
}

// binder trims params with mold and validates them with validator.
type binder struct {
	conform  *mold.Transformer
	validate *validator.Validate
}

func newBinder() *binder {
	return &binder{
		conform:  modifiers.New(),
		validate: validator.New(),
	}
}

// Bind normalizes and validates i in place. Rule violations come back as
// ErrValidation with a message naming the first offending field.
func (b *binder) Bind(i interface{}) error {
	if err := b.conform.Struct(context.Background(), i); err != nil {
		return errors.WithStack(err)
	}
	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return validationError(formatValidationError(errs[0]))
		}
		return errors.WithStack(err)
	}
	return nil
}

func formatValidationError(err validator.FieldError) string {
	field := strcase.ToSnake(err.Field())

	switch tag := err.Tag(); {
	case tag == "required":
		return fmt.Sprintf("%q is required", field)
	case tag == "email":
		return fmt.Sprintf("%q is not a valid email", field)
	case tag == "number":
		return fmt.Sprintf("%q must contain only digits", field)
	case strings.HasPrefix(tag, "len"):
		lengths := strings.ReplaceAll(strings.ReplaceAll(tag, "len=", ""), "|", " or ")
		return fmt.Sprintf("%q must be exactly %s characters long", field, lengths)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}
