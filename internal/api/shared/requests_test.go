package shared

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagValidatedRequest struct {
	Name string `validate:"required,min=3"`
}

type selfValidatedRequest struct {
	err error
}

func (r selfValidatedRequest) Validate() error { return r.err }

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"Name":"ok"}`))

	var out tagValidatedRequest
	require.NoError(t, DecodeJSON(req, &out))
	assert.Equal(t, "ok", out.Name)

	bad := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	assert.Error(t, DecodeJSON(bad, &out))
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	t.Run("struct tags", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, ValidateRequest(tagValidatedRequest{Name: "valid"}))
		assert.Error(t, ValidateRequest(tagValidatedRequest{Name: "x"}))
		assert.Error(t, ValidateRequest(tagValidatedRequest{}))
	})

	t.Run("prefers the type's own Validate method", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("self validation failed")
		assert.ErrorIs(t, ValidateRequest(selfValidatedRequest{err: sentinel}), sentinel)
		assert.NoError(t, ValidateRequest(selfValidatedRequest{}))
	})
}
