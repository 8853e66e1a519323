package utils

import (
	"testing"

	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name     string `validate:"required,max=10"`
	TargetID string `validate:"omitempty,uuid"`
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(sampleRequest{Name: "ok"}))
}

func TestValidateStruct_ReturnsTypedValidationError(t *testing.T) {
	err := ValidateStruct(sampleRequest{TargetID: "not-a-uuid"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "targetid must be a valid uuid")
}
