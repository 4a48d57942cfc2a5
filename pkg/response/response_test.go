package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"backoffice/internal/apperror"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromTypedError(t *testing.T) {
	err := fmt.Errorf("allocate: %w", apperror.OverAllocation("600.00", "500.00"))

	status, res := ErrorFrom(err)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, apperror.CodeOverAllocation, res.Code)
	assert.Equal(t, "600.00", res.Details["requested"])
}

func TestErrorFromUntypedErrorHidesMessage(t *testing.T) {
	status, res := ErrorFrom(errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", res.Error)
	assert.Equal(t, apperror.CodeInternal, res.Code)
}
