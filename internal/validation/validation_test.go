package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=10"`
	Password string `json:"password" validate:"min=8"`
	Items    []item `json:"items" validate:"dive"`
}

type item struct {
	Label string `json:"label" validate:"omitempty,oneof=food travel"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&signup{Email: "a@example.com", Name: "Alice", Password: "12345678"}))

	err := Struct(&signup{
		Email:    "nope",
		Password: "short",
		Items:    []item{{Label: "food"}, {Label: "rockets"}},
	})
	var verr *Error
	require.True(t, errors.As(err, &verr))

	byField := map[string]FieldError{}
	for _, f := range verr.Fields {
		byField[f.Field] = f
	}
	assert.Equal(t, "email", byField["email"].Type)
	assert.Equal(t, "This field is required", byField["name"].Message)
	assert.Equal(t, "min", byField["password"].Type)
	assert.Equal(t, "Value must be one of: food travel", byField["items[1].label"].Message)
	assert.Contains(t, err.Error(), "invalid request: ")
}
