package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/smarthotel/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct проверяет структуру по тегам validate и приводит ошибки к model.ErrValidation.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field()+" "+fe.Tag())
		}
		return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(fields, ", "))
	}

	return fmt.Errorf("%w: %s", model.ErrValidation, err.Error())
}

// ValidateCredentials проверяет длину логина и пароля.
func ValidateCredentials(email, password string) error {
	if len(email) <= 3 || len(password) <= 6 {
		return fmt.Errorf("%w: email must be longer than 3 and password longer than 6 characters", model.ErrValidation)
	}
	return nil
}

// ValidateRegistrationRole проверяет роль, доступную при самостоятельной регистрации.
func ValidateRegistrationRole(role string) error {
	switch role {
	case model.RoleUser, model.RoleHotelManager:
		return nil
	}
	return fmt.Errorf("%w: role must be %s or %s", model.ErrValidation, model.RoleUser, model.RoleHotelManager)
}

// ValidateLoginRole проверяет роль, указанную при входе.
func ValidateLoginRole(role string) error {
	switch role {
	case model.RoleUser, model.RoleAdmin, model.RoleHotelManager:
		return nil
	}
	return fmt.Errorf("%w: invalid role %q", model.ErrValidation, role)
}
