package handler

import (
    "errors"
    "fmt"
    "strings"

    "github.com/go-playground/validator/v10"
)

// RequestValidator adapts validator/v10 to echo.Validator.
type RequestValidator struct {
    v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
    return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i interface{}) error {
    if err := rv.v.Struct(i); err != nil {
        return validationError{err: err}
    }
    return nil
}

// validationError renders field errors as "field: rule" pairs.
type validationError struct{ err error }

func (e validationError) Error() string {
    var fields validator.ValidationErrors
    if !errors.As(e.err, &fields) {
        return e.err.Error()
    }
    msgs := make([]string, 0, len(fields))
    for _, fe := range fields {
        if fe.Param() != "" {
            msgs = append(msgs, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
        } else {
            msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
        }
    }
    return strings.Join(msgs, "; ")
}

func (e validationError) Unwrap() error { return e.err }
