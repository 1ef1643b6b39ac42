package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const bucketLayout = "15:04"

// NewValidator registers the custom tags used by request models
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		t, err := time.Parse(bucketLayout, s)
		return err == nil && t.Format(bucketLayout) == s
	})
	return v
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
