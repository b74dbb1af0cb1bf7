package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/warp/hours-engine/generic"
)

// validate checks the `validate` tags of request bodies after decoding.
// Semantic checks (overlaps, unknown slots) stay with the engine and stores.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, fn := range map[string]validator.Func{
		"weekday": validateWeekday,
		"hhmm":    validateTimeOfDay,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("register validation " + tag + ": " + err.Error())
		}
	}
	return v
}

// validateWeekday accepts lowercase English weekday names.
func validateWeekday(fl validator.FieldLevel) bool {
	_, err := generic.ParseDayOfWeek(fl.Field().String())
	return err == nil
}

// validateTimeOfDay accepts HH:MM; empty is left to `required`.
func validateTimeOfDay(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := generic.ParseTimeOfDay(s)
	return err == nil
}
