package utils

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"plantcareapi/pkg/schemas"

	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"
)

// NewValidator returns a validator with the custom tags used by request bodies.
func NewValidator() *validator.Validate {

	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("password", PasswordValidator)
	v.RegisterValidation("maxgraphemes", MaxGraphemesValidator)

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		ns, ok := field.Interface().(schemas.NullableString)
		if !ok || !ns.Valid {
			return nil
		}
		return ns.Value
	}, schemas.NullableString{})

	return v

}

// at least 8 characters, one upper-case letter and one digit
func PasswordValidator(fl validator.FieldLevel) bool {

	password := fl.Field().String()
	if len([]rune(password)) < 8 || len(password) > 128 {
		return false
	}

	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	return upper && digit

}

func MaxGraphemesValidator(fl validator.FieldLevel) bool {

	maxLength, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	gr := uniseg.NewGraphemes(fl.Field().String())
	count := 0
	for gr.Next() {
		count++
		if count > maxLength {
			return false
		}
	}

	return true

}

// ValidationDetails maps validator errors to german messages per json field.
func ValidationDetails(err error) map[string][]string {

	details := map[string][]string{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return details
	}

	for _, fe := range verrs {
		field := fe.Field()
		details[field] = append(details[field], fieldMessage(fe))
	}

	return details

}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Dieses Feld ist erforderlich."
	case "email":
		return "Bitte gib eine gültige E-Mail-Adresse ein."
	case "password":
		return "Das Passwort muss mindestens 8 Zeichen, einen Großbuchstaben und eine Zahl enthalten."
	case "min":
		return "Mindestens " + fe.Param() + " Zeichen erforderlich."
	case "max", "maxgraphemes":
		return "Maximal " + fe.Param() + " Zeichen erlaubt."
	case "datetime":
		return "Ungültiges Datum (JJJJ-MM-TT)."
	default:
		return "Ungültiger Wert."
	}
}
