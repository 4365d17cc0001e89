package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("nodes[0].action", ErrCodeLookup, "action not registered")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "nodes[0].action", r.Errors[0].Path)
	assert.Equal(t, ErrCodeLookup, r.Errors[0].Code)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
}

func TestValidationResult_AddWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[1].text", ErrCodeValidation, "interpolation in text node")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")
	r1.AddWarning("/", ErrCodeValidation, "warn1")

	r2 := &ValidationResult{}
	r2.AddError("nodes[0]", ErrCodeLookup, "err2")
	r2.AddWarning("nodes[1]", ErrCodeValidation, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Len(t, r1.Errors, 2)
	assert.Len(t, r1.Warnings, 2)
}

func TestValidationResult_ToError(t *testing.T) {
	t.Run("single error keeps its message", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("nodes[0]", ErrCodeLookup, "action \"x\" not registered")

		err := r.ToError()
		require.Error(t, err)
		assert.Equal(t, ErrCodeValidation, CodeOf(err))
		assert.Contains(t, err.Error(), `action "x" not registered`)
	})

	t.Run("several errors are counted", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("a", ErrCodeValidation, "first")
		r.AddError("b", ErrCodeValidation, "second")
		r.AddWarning("c", ErrCodeValidation, "warn")

		err := r.ToError()
		var se *StencilError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "validation failed with 2 errors", se.Message)
		assert.Equal(t, 2, se.Details["error_count"])
		assert.Equal(t, 1, se.Details["warning_count"])
	})
}
