package web

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// RegistrationPayload is the registration form payload
type RegistrationPayload struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"-"`
	Confirm     string `form:"confirm" json:"-"`
	FirstName   string `form:"first_name" json:"first_name"`
	LastName    string `form:"last_name" json:"last_name"`
	CompanyName string `form:"company_name" json:"company_name"`
	Sector      string `form:"sector" json:"sector"`
	Country     string `form:"country" json:"country"`
	Address     string `form:"address" json:"address"`
	Phone       string `form:"phone_number" json:"phone_number"`
}

// Validate will run validation rules
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 20)),
		validation.Field(
			&r.Confirm,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
	)
}

// LoginPayload is the login form payload
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"-"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ResetEmailPayload asks for the email a reset link should go to
type ResetEmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ResetEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordPayload sets the new password after a reset link.
// Same length and match rules as registration.
type ResetPasswordPayload struct {
	Password string `form:"password" json:"-"`
	Confirm  string `form:"confirm" json:"-"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 20)),
		validation.Field(
			&r.Confirm,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts an empty phone, otherwise requires an
// international number phonenumbers can parse and validate.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "")
	if err != nil {
		return errors.New("must be an international phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a map
// the templates can render per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
