package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("groceries"))
	assert.NoError(t, ValidateName("  trimmed  "))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("   "))
	assert.Error(t, ValidateName(strings.Repeat("x", 201)))
	assert.NoError(t, ValidateName(strings.Repeat("x", 200)))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(99.95))
	assert.Error(t, ValidateAmount(-0.01))
}
