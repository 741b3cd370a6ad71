package validation

import (
	"reflect"
	"strings"
	"unicode"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with the custom tags and struct-level
// rules used by the request types.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	_ = v.RegisterValidation("price", validatePrice)
	_ = v.RegisterValidation("password", validatePassword)
	v.RegisterStructValidation(updateProductStructValidation, UpdateProductRequest{})

	return v
}

// validatePrice allows at most two decimal places.
func validatePrice(fl validatorv10.FieldLevel) bool {
	return decimal.NewFromFloat(fl.Field().Float()).Exponent() >= -2
}

// validatePassword requires an upper-case letter, a lower-case letter and a digit.
func validatePassword(fl validatorv10.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func updateProductStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateProductRequest)
	if req.empty() {
		sl.ReportError(req, "body", "Body", "atleastone", "")
	}
}
