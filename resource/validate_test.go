package resource_test

import (
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gadget struct {
	Name     string  `json:"name" validate:"required,min=3,max=10"`
	Kind     string  `json:"kind" validate:"required,oneof=small large"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Price    float64 `json:"price" validate:"gt=0"`
	Discount float64 `json:"discount" validate:"omitempty,ltfield=Price"`
	Rating   float64 `json:"rating" validate:"omitempty,min=1,max=5"`
}

func TestValidator_Valid(t *testing.T) {
	v := resource.NewValidator()
	assert.NoError(t, v.Validate(&gadget{Name: "gizmo", Kind: "small", Price: 10, Discount: 2}))
}

func TestValidator_Messages(t *testing.T) {
	tests := []struct {
		name    string
		record  gadget
		field   string
		message string
	}{
		{
			name:    "required",
			record:  gadget{Kind: "small", Price: 1},
			field:   "name",
			message: "name is required.",
		},
		{
			name:    "min length",
			record:  gadget{Name: "ab", Kind: "small", Price: 1},
			field:   "name",
			message: "name must have at least 3 characters.",
		},
		{
			name:    "max length",
			record:  gadget{Name: "a very long name", Kind: "small", Price: 1},
			field:   "name",
			message: "name must have at most 10 characters.",
		},
		{
			name:    "oneof",
			record:  gadget{Name: "gizmo", Kind: "medium", Price: 1},
			field:   "kind",
			message: "kind must be one of: small, large.",
		},
		{
			name:    "email",
			record:  gadget{Name: "gizmo", Kind: "small", Price: 1, Email: "nope"},
			field:   "email",
			message: "Please provide a valid email.",
		},
		{
			name:    "gt",
			record:  gadget{Name: "gizmo", Kind: "small"},
			field:   "price",
			message: "price must be greater than 0.",
		},
		{
			name:    "ltfield",
			record:  gadget{Name: "gizmo", Kind: "small", Price: 10, Discount: 20},
			field:   "discount",
			message: "discount should be below the regular price.",
		},
		{
			name:    "numeric max",
			record:  gadget{Name: "gizmo", Kind: "small", Price: 10, Rating: 7},
			field:   "rating",
			message: "rating must be at most 5.",
		},
	}

	v := resource.NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.record)
			require.Error(t, err)

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, errors.CategoryValidation, richErr.Category)
			assert.Equal(t, resource.TextCodeValidation, richErr.TextCode)
			assert.Equal(t, errors.CodeBadRequest, richErr.Code)

			require.Len(t, richErr.ValidationErrors, 1)
			assert.Equal(t, tt.field, richErr.ValidationErrors[0].Field)
			assert.Equal(t, tt.message, richErr.ValidationErrors[0].Message)
		})
	}
}

func TestValidator_ReportsEveryField(t *testing.T) {
	err := resource.NewValidator().Validate(&gadget{})
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))

	fields := []string{}
	for _, fe := range richErr.ValidationErrors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"name", "kind", "price"}, fields)
}
