package transport

import (
	"regexp"

	"leadfunnel_backend/internal/leads/scoring"
	"leadfunnel_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

var sourcePattern = regexp.MustCompile(`^[a-z0-9_-]{1,50}$`)

// RegisterValidations installs the custom tags used by the lead DTOs.
func RegisterValidations(val *validator.Validator) error {
	if err := val.RegisterValidation("budget", func(fl playground.FieldLevel) bool {
		return scoring.IsBudgetTier(fl.Field().String())
	}); err != nil {
		return err
	}
	return val.RegisterValidation("leadsource", func(fl playground.FieldLevel) bool {
		return sourcePattern.MatchString(fl.Field().String())
	})
}
