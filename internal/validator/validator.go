package validator

import (
	"chatapp-backend/internal/apperr"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	colorRegex    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

	lowercase = regexp.MustCompile(`[a-z]`)
	uppercase = regexp.MustCompile(`[A-Z]`)
	number    = regexp.MustCompile(`\d`)
)

func Username(username string) error {
	length := len(username)
	if length < 2 {
		return fmt.Errorf("short_username")
	} else if length > 32 {
		return fmt.Errorf("long_username")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("bad_username")
	}
	return nil
}

func Email(email string) error {
	const maxlength = 64

	if len(email) > maxlength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) || strings.Contains(email, "..") {
		return fmt.Errorf("bad_format")
	}
	return nil
}

func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 32 {
		return fmt.Errorf("long_password")
	}

	if !lowercase.MatchString(password) {
		return fmt.Errorf("no_lowercase")
	}
	if !uppercase.MatchString(password) {
		return fmt.Errorf("no_uppercase")
	}
	if !number.MatchString(password) {
		return fmt.Errorf("no_number")
	}
	return nil
}

var rules = map[string]func(string) error{
	"username":  Username,
	"chatemail": Email,
	"password":  Password,
}

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	// report json names instead of go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, rule := range rules {
		v.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
			return rule(fl.Field().String()) == nil
		})
	}
	v.RegisterValidation("hexcolor6", func(fl playground.FieldLevel) bool {
		return colorRegex.MatchString(fl.Field().String())
	})
	return v
}

// Struct runs the `validate` tags of a request body and turns the first
// failure into a ValidationFailed error
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors playground.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return apperr.Invalid("Invalid request")
	}

	fe := fieldErrors[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperr.Invalid(fmt.Sprintf("%s is required", field))
	case "max":
		return apperr.Invalid(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "oneof":
		return apperr.Invalid(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "username", "chatemail", "password":
		value, _ := fe.Value().(string)
		if ruleErr := rules[fe.Tag()](value); ruleErr != nil {
			return apperr.Invalid(ruleErr.Error())
		}
	}
	return apperr.Invalid(fmt.Sprintf("%s is invalid", field))
}
