package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	rePhone = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,30}$`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json field names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return rePhone.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		validate = v
	})
	return validate
}

// ValidateStruct runs `validate` tags and returns the first failure as a
// readable message.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return errors.New(fe.Field() + " is required")
	case "email":
		return errors.New(fe.Field() + " must be a valid email address")
	case "min":
		return errors.New(fe.Field() + " must be at least " + fe.Param() + " characters")
	case "max":
		return errors.New(fe.Field() + " must be at most " + fe.Param() + " characters")
	case "phone":
		return errors.New(fe.Field() + " must be a valid phone number")
	}
	return errors.New(fe.Field() + " is invalid")
}
