package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront/internal/envelope"
)

// FieldError names one invalid field of a request.
type FieldError = envelope.FieldError

type trimmer interface{ trim() }

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		abort(c, "Invalid request body", []FieldError{{Field: "body", Message: err.Error()}})
		return err
	}
	return check(c, out, v, "Validation failed")
}

// BindQuery binds query parameters into `out` and validates them like
// BindAndValidate.
func BindQuery(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		abort(c, "Invalid query parameters", []FieldError{{Field: "query", Message: err.Error()}})
		return err
	}
	return check(c, out, v, "Invalid query parameters")
}

func check(c *gin.Context, out interface{}, v *validatorv10.Validate, message string) error {
	if t, ok := out.(trimmer); ok {
		t.trim()
	}
	if err := v.Struct(out); err != nil {
		abort(c, message, Errors(err))
		return err
	}
	return nil
}

func abort(c *gin.Context, message string, fields []FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope.Invalid(message, fields))
}

// Errors converts a validator error into per-field messages.
func Errors(err error) []FieldError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "unknown", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the root struct name: CreateOrderRequest.items[0].quantity -> items[0].quantity
func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validatorv10.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind().String() {
		case "string":
			return fmt.Sprintf("%s must be %s %s characters long", field, bound, fe.Param())
		case "slice":
			return fmt.Sprintf("%s must contain %s %s items", field, bound, fe.Param())
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "alphanum":
		return field + " must contain only letters and numbers"
	case "uuid":
		return "Invalid " + field + " format"
	case "url":
		return field + " must be a valid URL"
	case "price":
		return field + " must have at most 2 decimal places"
	case "password":
		return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	case "atleastone":
		return "At least one field must be provided for update"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
