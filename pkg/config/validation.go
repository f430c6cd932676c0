package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// registration only fails for empty tags or nil functions
	_ = v.RegisterValidation("retry", func(fl validator.FieldLevel) bool {
		_, err := retry.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("verb", func(fl validator.FieldLevel) bool {
		_, err := types.ParseVerb(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		_, err := types.ParseContentType(fl.Field().String())
		return err == nil
	})

	return v
}

// fieldError reports the first failed rule with a readable message
func fieldError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	return fmt.Errorf("%w: %s: %s", ErrInvalidField, fe.Namespace(), message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "retry":
		if _, err := retry.Parse(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
		return "invalid retry policy"
	case "verb":
		return fmt.Sprintf("%q must be one of read, create, replace, delete", fe.Value())
	case "content_type":
		return fmt.Sprintf("%q must be one of json, form, multipart", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q must be one of: %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
