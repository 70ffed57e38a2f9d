package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// ISO 4217 alpha code, any case
	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return validate.Var(strings.ToUpper(fl.Field().String()), "iso4217") == nil
	})

	validate.RegisterValidation("owner_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "admin", "doctor", "user":
			return true
		}
		return false
	})

	validate.RegisterValidation("refund_target", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "none", "wallet", "external":
			return true
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "oneof":
			errors[field] = "Value must be one of: " + err.Param()
		case "datetime":
			errors[field] = "Invalid date. Expected format " + err.Param()
		case "currency", "iso4217":
			errors[field] = "Invalid currency. Must be an ISO 4217 code"
		case "owner_type":
			errors[field] = "Invalid owner type. Must be: admin, doctor, or user"
		case "refund_target":
			errors[field] = "Invalid refund target. Must be: none, wallet, or external"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
