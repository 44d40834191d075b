package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one problem with a form field.
type FieldError struct {
	Field   string
	Problem string
}

// ValidationError lists every problem that blocks a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Problem)
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Has reports whether field has a problem.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

type requiredFields struct {
	RecipientEmail string `validate:"required,email"`
	MessageBody    string `validate:"required"`
}

var fieldNames = map[string]string{
	"RecipientEmail": "email",
	"MessageBody":    "message",
}

func (c *Controller) validateLocked() error {
	verr := &ValidationError{}

	err := c.validate.Struct(requiredFields{
		RecipientEmail: c.state.RecipientEmail,
		MessageBody:    c.state.MessageBody,
	})
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			problem := "is required"
			if fe.Tag() == "email" {
				problem = "must be a valid email address"
			}
			verr.Fields = append(verr.Fields, FieldError{Field: fieldNames[fe.Field()], Problem: problem})
		}
	} else if err != nil {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	if limit := c.opts.MaxAttachmentBytes; limit > 0 {
		for _, f := range c.state.Attachments {
			if f.Size > limit {
				verr.Fields = append(verr.Fields, FieldError{
					Field:   "files",
					Problem: fmt.Sprintf("%q exceeds the %d byte limit", f.Name, limit),
				})
			}
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
