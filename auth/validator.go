package auth

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	"qna-live/errors"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,min=2,max=64"`
	Password string `validate:"required,min=12,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// CreateGroupRequest validates group room creation: a group needs a
// name and at least two members.
type CreateGroupRequest struct {
	Name    string   `validate:"required,min=3,max=64"`
	Members []string `validate:"required,min=2,dive,required"`
}

func ValidateCreateGroup(req CreateGroupRequest) error {
	return validate.Struct(req)
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
