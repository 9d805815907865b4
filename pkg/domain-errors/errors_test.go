package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeConflict, "unit already reserved")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "request missing")
		outer := Wrap(inner, CodeInternal, "allocation failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotFound))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("allocate: %w", New(CodeInsufficientInventory, "2 of 3 units available"))
		assert.True(t, HasCode(err, CodeInsufficientInventory))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeInvalidInput, CodeOf(New(CodeInvalidInput, "volume must be positive")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:          http.StatusBadRequest,
		CodeInvalidState:          http.StatusUnprocessableEntity,
		CodeInvalidTransition:     http.StatusUnprocessableEntity,
		CodeConflict:              http.StatusConflict,
		CodeInsufficientInventory: http.StatusConflict,
		CodeNotFound:              http.StatusNotFound,
		CodeUnauthorized:          http.StatusUnauthorized,
		CodeForbidden:             http.StatusForbidden,
		CodeInternal:              http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
