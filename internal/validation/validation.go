package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CollectionPattern определяет допустимое имя коллекции (оно же REST ресурс)
// Строчные латинские буквы, цифры, '-' и '_'; первая буква обязательна.
// Длина: 1-64 символа
var CollectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

const (
	// MaxEntityIDLen максимальная длина id записи
	MaxEntityIDLen = 128
	// MinPasswordLen минимальная длина пароля при входе
	MinPasswordLen = 8
)

// MutationRequest описывает мутацию, которую пользователь передает оркестратору
type MutationRequest struct {
	Payload    map[string]any
	Collection string `validate:"required,collection"`
	Action     string `validate:"required,oneof=create update delete"`
	EntityID   string `validate:"required_unless=Action create,max=128"`
}

// Credentials данные для входа
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("collection", func(fl validator.FieldLevel) bool {
			return CollectionPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateCollection проверяет имя коллекции
func ValidateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("collection cannot be empty")
	}

	if !CollectionPattern.MatchString(name) {
		return fmt.Errorf("invalid collection %q: only lowercase letters, numbers, '-' and '_' are allowed", name)
	}

	return nil
}

// ValidateMutation проверяет мутацию перед оптимистичным применением
func ValidateMutation(req MutationRequest) error {
	if err := instance().Struct(req); err != nil {
		return describe(err)
	}
	if req.Action == "update" && len(req.Payload) == 0 {
		return fmt.Errorf("update of %s/%s has empty payload", req.Collection, req.EntityID)
	}
	return nil
}

// ValidateCredentials проверяет email и пароль
func ValidateCredentials(email, password string) error {
	if err := instance().Struct(Credentials{Email: email, Password: password}); err != nil {
		return describe(err)
	}
	return nil
}

// describe превращает ошибки validator в одну читаемую ошибку
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_unless":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", strings.ToLower(fe.Field()), fe.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
