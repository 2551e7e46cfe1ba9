package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
)

type listParams struct {
	Page  int    `form:"page" validate:"omitempty,min=1"`
	Scope string `form:"scope" validate:"omitempty,oneof=mine all"`
}

func TestValidate(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&listParams{Page: 2, Scope: "mine"}))
	assert.NoError(t, v.Validate(&listParams{}))

	err := v.Validate(&listParams{Page: -1, Scope: "everyone"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "page must be at least 1")
	assert.Contains(t, err.Error(), "scope must be one of [mine all]")
}
