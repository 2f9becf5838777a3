package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	errBadID := Invalid("malformed id")
	errGone := NotFound("image not found")

	assert.Equal(t, ClassInvalid, ClassOf(errBadID))
	assert.Equal(t, ClassInvalid, ClassOf(fmt.Errorf("delete image: %w", errBadID)))
	assert.Equal(t, ClassInvalid, ClassOf(Invalidf("order must be numeric, got %q", "x")))
	assert.Equal(t, ClassNotFound, ClassOf(fmt.Errorf("patch: %w", errGone)))
	assert.Equal(t, ClassInternal, ClassOf(errors.New("socket closed")))
	assert.Equal(t, "malformed id", errBadID.Error())
	assert.True(t, errors.Is(fmt.Errorf("x: %w", errBadID), errBadID))
	assert.Equal(t, "not_found", ClassNotFound.String())
}
