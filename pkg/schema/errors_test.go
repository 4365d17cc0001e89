package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStencilError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StencilError
		want string
	}{
		{"plain", NewError(ErrCodeLookup, "missing"), "[LOOKUP_ERROR] missing"},
		{"template and line", NewError(ErrCodeExecution, "boom").WithLocation(Location{Template: "page", Line: 4}), "[EXECUTION_ERROR] page:4: boom"},
		{"line only", NewErrorf(ErrCodeContract, "nothing written by %s", "out").WithLocation(Location{Line: 2}), "[CONTRACT_ERROR] line 2: nothing written by out"},
		{"zero location", NewError(ErrCodeConflict, "dup").WithLocation(Location{}), "[CONFLICT] dup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCodeOfAndHasCode(t *testing.T) {
	cause := errors.New("disk full")
	inner := NewError(ErrCodeStore, "append failed").WithCause(cause)
	outer := NewError(ErrCodeExecution, "trace failed").WithCause(inner)
	wrapped := fmt.Errorf("render: %w", outer)

	assert.Equal(t, ErrCodeExecution, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(cause))
	assert.Equal(t, "", CodeOf(nil))

	assert.True(t, HasCode(wrapped, ErrCodeExecution))
	assert.True(t, HasCode(wrapped, ErrCodeStore))
	assert.False(t, HasCode(wrapped, ErrCodeLookup))
	assert.ErrorIs(t, wrapped, cause)
}
