package utils

import (
	"testing"

	"plantcareapi/pkg/schemas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordValidation(t *testing.T) {
	v := NewValidator()

	type body struct {
		Password string `json:"password" validate:"required,password"`
	}

	assert.NoError(t, v.Struct(&body{Password: "Geheim123"}))
	assert.Error(t, v.Struct(&body{Password: "Kurz1"}))
	assert.Error(t, v.Struct(&body{Password: "keingross1"}))
	assert.Error(t, v.Struct(&body{Password: "KeineZahlHier"}))
}

func TestMaxGraphemes(t *testing.T) {
	v := NewValidator()

	type body struct {
		Name string `json:"name" validate:"maxgraphemes=3"`
	}

	// flags are multi-rune single graphemes
	assert.NoError(t, v.Struct(&body{Name: "🇩🇪🇩🇪🇩🇪"}))
	assert.Error(t, v.Struct(&body{Name: "abcd"}))
}

func TestNullableStringValidation(t *testing.T) {
	v := NewValidator()

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}

	ok := schemas.PlantUpdate{Species: schemas.NullableString{Set: true}}
	assert.NoError(t, v.Struct(&ok))

	bad := schemas.PlantUpdate{Species: schemas.NullableString{Set: true, Valid: true, Value: string(long)}}
	err := v.Struct(&bad)
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.Contains(t, details, "species")

	badDate := schemas.PlantUpdate{PlantedAt: schemas.NullableString{Set: true, Valid: true, Value: "31.12.2024"}}
	err = v.Struct(&badDate)
	require.Error(t, err)
	assert.Contains(t, ValidationDetails(err), "planted_at")
}

func TestValidationDetails_FieldNames(t *testing.T) {
	v := NewValidator()

	type body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,password"`
	}

	err := v.Struct(&body{Email: "nope", Password: "x"})
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.Equal(t, []string{"Bitte gib eine gültige E-Mail-Adresse ein."}, details["email"])
	assert.Len(t, details["password"], 1)
}
